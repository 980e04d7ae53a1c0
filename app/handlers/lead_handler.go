package handlers

import (
	"context"
	"log"

	"github.com/amirphl/leaddesk/app/dto"
	businessflow "github.com/amirphl/leaddesk/business_flow"
	"github.com/amirphl/leaddesk/models"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// LeadHandlerInterface defines the contract for lead handlers
type LeadHandlerInterface interface {
	ListLeads(c fiber.Ctx) error
	CreateLead(c fiber.Ctx) error
	GetLead(c fiber.Ctx) error
	UpdateLead(c fiber.Ctx) error
	DeleteLead(c fiber.Ctx) error
	GetLeadByContact(c fiber.Ctx) error
	SearchLeads(c fiber.Ctx) error
	FilterLeads(c fiber.Ctx) error
	CallStatuses(c fiber.Ctx) error
	Products(c fiber.Ctx) error
	UnitTypes(c fiber.Ctx) error
	Budgets(c fiber.Ctx) error
	Dashboard(c fiber.Ctx) error
}

// LeadHandler handles lead-related HTTP requests
type LeadHandler struct {
	leadFlow      businessflow.LeadFlow
	leadQueryFlow businessflow.LeadQueryFlow
	validator     *validator.Validate
}

func (h *LeadHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *LeadHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewLeadHandler creates a new lead handler
func NewLeadHandler(leadFlow businessflow.LeadFlow, leadQueryFlow businessflow.LeadQueryFlow) *LeadHandler {
	return &LeadHandler{
		leadFlow:      leadFlow,
		leadQueryFlow: leadQueryFlow,
		validator:     newValidator(),
	}
}

// ListLeads returns one page of leads
// @Summary List Leads
// @Description Page through leads. statusMode (ALL, PENDING, EXACT) selects the status predicate explicitly; without it callStatus=All means pending calls and any other callStatus is an exact match.
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Param callby query string false "Agent username"
// @Param callStatus query string false "Call status"
// @Param statusMode query string false "ALL, PENDING or EXACT"
// @Param productName query string false "Exact product name"
// @Param contactNumber query string false "Contact number substring"
// @Param startDate query string false "Creation date from (YYYY-MM-DD)"
// @Param endDate query string false "Creation date to (YYYY-MM-DD)"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(10)
// @Success 200 {object} dto.APIResponse{data=dto.LeadListResponse} "Leads retrieved"
// @Failure 400 {object} dto.APIResponse "Invalid filter"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/leads [get]
func (h *LeadHandler) ListLeads(c fiber.Ctx) error {
	status, err := listingStatus(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_STATUS_MODE", nil)
	}
	start, end, err := parseDateRange(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Dates must be formatted as YYYY-MM-DD", "INVALID_DATE", nil)
	}

	params := pageParams(c)
	req := &dto.LeadListRequest{
		CallBy:           scopedCallBy(c, c.Query("callby")),
		Status:           status,
		ProductName:      c.Query("productName"),
		ContactSubstring: contactQuery(c),
		StartDate:        start,
		EndDate:          end,
		Page:             params.Page,
		Limit:            params.Limit,
	}

	ctx, cancel := createRequestContext(c, "/api/v1/leads")
	defer cancel()

	result, err := h.leadQueryFlow.ListLeads(ctx, req)
	if err != nil {
		if businessflow.IsStartDateAfterEndDate(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Start date cannot be after end date", "INVALID_DATE_RANGE", nil)
		}

		log.Println("List leads failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to retrieve leads", "LEAD_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Leads retrieved successfully", result)
}

// CreateLead stores a new lead
// @Summary Create Lead
// @Tags Leads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateLeadRequest true "Lead data"
// @Success 201 {object} dto.APIResponse{data=dto.LeadResponse} "Lead created"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/leads [post]
func (h *LeadHandler) CreateLead(c fiber.Ctx) error {
	var req dto.CreateLeadRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if username, ok := c.Locals("username").(string); ok && req.CallBy == "" {
		req.CallBy = username
	}
	req.CallBy = scopedCallBy(c, req.CallBy)

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c, "/api/v1/leads")
	defer cancel()

	lead, err := h.leadFlow.CreateLead(ctx, &req)
	if err != nil {
		if businessflow.IsLeadFieldsRequired(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "First name, last name, contact number and callby are required", "LEAD_FIELDS_REQUIRED", nil)
		}

		log.Println("Create lead failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create lead", "LEAD_CREATE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Lead created successfully", dto.LeadResponse{Lead: lead})
}

// GetLead returns a lead by id
// @Summary Get Lead
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Param id path int true "Lead ID"
// @Success 200 {object} dto.APIResponse{data=dto.LeadResponse} "Lead retrieved"
// @Failure 404 {object} dto.APIResponse "Lead not found"
// @Router /api/v1/leads/{id} [get]
func (h *LeadHandler) GetLead(c fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid lead id", "INVALID_LEAD_ID", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/leads/"+c.Params("id"))
	defer cancel()

	lead, err := h.leadFlow.GetLead(ctx, id)
	if err != nil {
		if businessflow.IsLeadNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", "LEAD_NOT_FOUND", nil)
		}

		log.Println("Get lead failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch lead", "LEAD_FETCH_FAILED", nil)
	}
	if !h.ownsLead(c, lead) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", "LEAD_NOT_FOUND", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Lead retrieved successfully", dto.LeadResponse{Lead: lead})
}

// UpdateLead applies a patch and records a history row
// @Summary Update Lead
// @Description Update lead fields. An empty callstatus returns the lead to pending; assignedTo hands it to another agent.
// @Tags Leads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Lead ID"
// @Param request body dto.UpdateLeadRequest true "Fields to change"
// @Success 200 {object} dto.APIResponse{data=dto.LeadResponse} "Lead updated"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Lead or owner not found"
// @Router /api/v1/leads/{id} [put]
func (h *LeadHandler) UpdateLead(c fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid lead id", "INVALID_LEAD_ID", nil)
	}

	var req dto.UpdateLeadRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c, "/api/v1/leads/"+c.Params("id"))
	defer cancel()

	if userType, _ := c.Locals("user_type").(string); userType == models.UserTypeAgent {
		current, err := h.leadFlow.GetLead(ctx, id)
		if err != nil && !businessflow.IsLeadNotFound(err) {
			log.Println("Get lead failed", err)
			return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update lead", "LEAD_UPDATE_FAILED", nil)
		}
		if current == nil || !h.ownsLead(c, current) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", "LEAD_NOT_FOUND", nil)
		}
	}

	lead, err := h.leadFlow.UpdateLead(ctx, id, &req)
	if err != nil {
		if businessflow.IsLeadNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", "LEAD_NOT_FOUND", nil)
		}
		if businessflow.IsUserNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Lead owner not found", "USER_NOT_FOUND", nil)
		}

		log.Println("Update lead failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update lead", "LEAD_UPDATE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Lead updated successfully", dto.LeadResponse{Lead: lead})
}

// DeleteLead removes a lead
// @Summary Delete Lead
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Param id path int true "Lead ID"
// @Success 200 {object} dto.APIResponse "Lead deleted"
// @Failure 404 {object} dto.APIResponse "Lead not found"
// @Router /api/v1/leads/{id} [delete]
func (h *LeadHandler) DeleteLead(c fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid lead id", "INVALID_LEAD_ID", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/leads/"+c.Params("id"))
	defer cancel()

	if err := h.leadFlow.DeleteLead(ctx, id); err != nil {
		if businessflow.IsLeadNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", "LEAD_NOT_FOUND", nil)
		}

		log.Println("Delete lead failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete lead", "LEAD_DELETE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Lead deleted successfully", fiber.Map{"id": id})
}

// GetLeadByContact finds a lead by its contact number
// @Summary Get Lead By Contact
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Param contactNumber path string true "Contact number"
// @Param callby query string false "Agent username"
// @Success 200 {object} dto.APIResponse{data=dto.LeadResponse} "Lead retrieved"
// @Failure 404 {object} dto.APIResponse "Lead not found"
// @Router /api/v1/leads/contact/{contactNumber} [get]
func (h *LeadHandler) GetLeadByContact(c fiber.Ctx) error {
	contactNumber := c.Params("contactNumber")

	ctx, cancel := createRequestContext(c, "/api/v1/leads/contact")
	defer cancel()

	lead, err := h.leadFlow.GetLeadByContact(ctx, contactNumber, scopedCallBy(c, c.Query("callby")))
	if err != nil {
		if businessflow.IsContactRequired(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Contact number is required", "CONTACT_REQUIRED", nil)
		}
		if businessflow.IsLeadNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", "LEAD_NOT_FOUND", nil)
		}

		log.Println("Get lead by contact failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch lead", "LEAD_FETCH_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Lead retrieved successfully", dto.LeadResponse{Lead: lead})
}

// SearchLeads matches leads by contact and/or name
// @Summary Search Leads
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Param contactNumber query string false "Contact number substring"
// @Param name query string false "First or last name substring"
// @Param callby query string false "Agent username"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(10)
// @Success 200 {object} dto.APIResponse "Leads matched"
// @Failure 400 {object} dto.APIResponse "No search criterion"
// @Router /api/v1/leads/search [get]
func (h *LeadHandler) SearchLeads(c fiber.Ctx) error {
	params := pageParams(c)
	req := &dto.SearchLeadsRequest{
		ContactNumber: contactQuery(c),
		Name:          c.Query("name"),
		CallBy:        scopedCallBy(c, c.Query("callby")),
		Page:          params.Page,
		Limit:         params.Limit,
	}

	ctx, cancel := createRequestContext(c, "/api/v1/leads/search")
	defer cancel()

	result, err := h.leadFlow.SearchLeads(ctx, req)
	if err != nil {
		if businessflow.IsSearchCriteriaRequired(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Contact number or name is required", "SEARCH_CRITERIA_REQUIRED", nil)
		}

		log.Println("Search leads failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to search leads", "LEAD_SEARCH_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Leads retrieved successfully", result)
}

// FilterLeads lists leads by exact product, unit type or budget
// @Summary Filter Leads
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Param productName query string false "Product name"
// @Param unitType query string false "Unit type"
// @Param budget query string false "Budget"
// @Param callStatus query string false "Call status"
// @Param statusMode query string false "ALL, PENDING or EXACT"
// @Param callby query string false "Agent username"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(10)
// @Success 200 {object} dto.APIResponse "Leads matched"
// @Router /api/v1/leads/filter [get]
func (h *LeadHandler) FilterLeads(c fiber.Ctx) error {
	status, err := listingStatus(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_STATUS_MODE", nil)
	}

	params := pageParams(c)
	req := &dto.LeadFilterRequest{
		CallBy:      scopedCallBy(c, c.Query("callby")),
		ProductName: c.Query("productName"),
		UnitType:    c.Query("unitType"),
		Budget:      c.Query("budget"),
		Status:      status,
		Page:        params.Page,
		Limit:       params.Limit,
	}

	ctx, cancel := createRequestContext(c, "/api/v1/leads/filter")
	defer cancel()

	result, err := h.leadFlow.FilterLeads(ctx, req)
	if err != nil {
		log.Println("Filter leads failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to filter leads", "LEAD_FILTER_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Leads retrieved successfully", result)
}

// CallStatuses lists the distinct non-empty call statuses of an agent
// @Summary Distinct Call Statuses
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Param callby query string false "Agent username"
// @Success 200 {object} dto.APIResponse{data=dto.DistinctValuesResponse}
// @Router /api/v1/leads/call-statuses [get]
func (h *LeadHandler) CallStatuses(c fiber.Ctx) error {
	return h.distinct(c, "/api/v1/leads/call-statuses", h.leadFlow.CallStatuses)
}

// Products lists the distinct product names of an agent
// @Summary Distinct Products
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Param callby query string false "Agent username"
// @Success 200 {object} dto.APIResponse{data=dto.DistinctValuesResponse}
// @Router /api/v1/leads/products [get]
func (h *LeadHandler) Products(c fiber.Ctx) error {
	return h.distinct(c, "/api/v1/leads/products", h.leadFlow.Products)
}

// UnitTypes lists the distinct unit types of an agent
// @Summary Distinct Unit Types
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Param callby query string false "Agent username"
// @Success 200 {object} dto.APIResponse{data=dto.DistinctValuesResponse}
// @Router /api/v1/leads/unit-types [get]
func (h *LeadHandler) UnitTypes(c fiber.Ctx) error {
	return h.distinct(c, "/api/v1/leads/unit-types", h.leadFlow.UnitTypes)
}

// Budgets lists the distinct budgets of an agent
// @Summary Distinct Budgets
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Param callby query string false "Agent username"
// @Success 200 {object} dto.APIResponse{data=dto.DistinctValuesResponse}
// @Router /api/v1/leads/budgets [get]
func (h *LeadHandler) Budgets(c fiber.Ctx) error {
	return h.distinct(c, "/api/v1/leads/budgets", h.leadFlow.Budgets)
}

func (h *LeadHandler) distinct(c fiber.Ctx, endpoint string, list func(ctx context.Context, callBy string) ([]string, error)) error {
	ctx, cancel := createRequestContext(c, endpoint)
	defer cancel()

	values, err := list(ctx, scopedCallBy(c, c.Query("callby")))
	if err != nil {
		log.Println("Distinct lead values failed", endpoint, err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list values", "LEAD_VALUES_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Values retrieved successfully", dto.DistinctValuesResponse{Values: values})
}

// Dashboard summarizes an agent's pipeline
// @Summary Agent Dashboard
// @Description Totals, pending count, status distribution and completed calls per submit date. Agents always see their own dashboard.
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Param callby query string false "Agent username"
// @Success 200 {object} dto.APIResponse{data=dto.AgentDashboardResponse}
// @Router /api/v1/leads/dashboard [get]
func (h *LeadHandler) Dashboard(c fiber.Ctx) error {
	callBy := scopedCallBy(c, c.Query("callby"))
	if callBy == "" {
		callBy, _ = c.Locals("username").(string)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/leads/dashboard")
	defer cancel()

	result, err := h.leadFlow.AgentDashboard(ctx, callBy)
	if err != nil {
		log.Println("Agent dashboard failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to build dashboard", "DASHBOARD_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Dashboard retrieved successfully", result)
}

// ownsLead reports whether the caller may see lead; only agents are restricted
func (h *LeadHandler) ownsLead(c fiber.Ctx, lead *models.Lead) bool {
	if userType, _ := c.Locals("user_type").(string); userType != models.UserTypeAgent {
		return true
	}
	username, _ := c.Locals("username").(string)
	return lead != nil && lead.CallBy == username
}
