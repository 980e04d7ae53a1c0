package handlers

import (
	"log"
	"strings"

	"github.com/amirphl/leaddesk/app/dto"
	businessflow "github.com/amirphl/leaddesk/business_flow"
	"github.com/amirphl/leaddesk/models"
	"github.com/gofiber/fiber/v3"
)

// ReportHandlerInterface defines the contract for team lead report handlers
type ReportHandlerInterface interface {
	DailyCompletion(c fiber.Ctx) error
	ListTeamLeads(c fiber.Ctx) error
	TeamMembers(c fiber.Ctx) error
	TeamPerformance(c fiber.Ctx) error
	TeamLeads(c fiber.Ctx) error
}

// ReportHandler handles team lead report HTTP requests
type ReportHandler struct {
	reportFlow    businessflow.ReportFlow
	leadQueryFlow businessflow.LeadQueryFlow
}

func (h *ReportHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *ReportHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewReportHandler creates a new report handler
func NewReportHandler(reportFlow businessflow.ReportFlow, leadQueryFlow businessflow.LeadQueryFlow) *ReportHandler {
	return &ReportHandler{
		reportFlow:    reportFlow,
		leadQueryFlow: leadQueryFlow,
	}
}

// DailyCompletion reports completed calls per day, team lead and agent
// @Summary Daily Call Completion
// @Description Completed calls grouped by day, team lead and agent. Defaults to the last 7 days.
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param startDate query string false "From (YYYY-MM-DD)"
// @Param endDate query string false "To (YYYY-MM-DD)"
// @Success 200 {object} dto.APIResponse{data=dto.DailyCompletionResponse}
// @Failure 400 {object} dto.APIResponse "Invalid date range"
// @Router /api/v1/tl/daily-completion [get]
func (h *ReportHandler) DailyCompletion(c fiber.Ctx) error {
	start, end, err := parseDateRange(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Dates must be formatted as YYYY-MM-DD", "INVALID_DATE", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/tl/daily-completion")
	defer cancel()

	result, err := h.reportFlow.DailyCompletion(ctx, start, end)
	if err != nil {
		if businessflow.IsStartDateAfterEndDate(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Start date cannot be after end date", "INVALID_DATE_RANGE", nil)
		}

		log.Println("Daily completion report failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to build report", "REPORT_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Report generated successfully", result)
}

// ListTeamLeads returns all team lead accounts
// @Summary List Team Leads
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=[]dto.UserDTO}
// @Router /api/v1/tl [get]
func (h *ReportHandler) ListTeamLeads(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/api/v1/tl")
	defer cancel()

	tls, err := h.reportFlow.ListTeamLeads(ctx)
	if err != nil {
		log.Println("List team leads failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list team leads", "TEAM_LEADS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Team leads retrieved successfully", tls)
}

// TeamMembers lists the agents of a team lead
// @Summary Team Members
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param tlId path int true "Team lead user ID"
// @Success 200 {object} dto.APIResponse{data=dto.TeamMembersResponse}
// @Failure 404 {object} dto.APIResponse "Team lead not found"
// @Router /api/v1/tl/{tlId}/members [get]
func (h *ReportHandler) TeamMembers(c fiber.Ctx) error {
	tlID, ok := parseID(c, "tlId")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid team lead id", "INVALID_TL_ID", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/tl/"+c.Params("tlId")+"/members")
	defer cancel()

	result, err := h.reportFlow.TeamMembers(ctx, tlID)
	if err != nil {
		if businessflow.IsTeamLeadNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Team lead not found", "TEAM_LEAD_NOT_FOUND", nil)
		}

		log.Println("Team members failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list team members", "TEAM_MEMBERS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Team members retrieved successfully", result)
}

// TeamPerformance aggregates a team's leads over a posting-date range
// @Summary Team Performance
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param tlId path int true "Team lead user ID"
// @Param startDate query string false "Posting date from (YYYY-MM-DD)"
// @Param endDate query string false "Posting date to (YYYY-MM-DD)"
// @Success 200 {object} dto.APIResponse{data=dto.TeamPerformanceResponse}
// @Failure 404 {object} dto.APIResponse "Team lead not found"
// @Router /api/v1/tl/{tlId}/performance [get]
func (h *ReportHandler) TeamPerformance(c fiber.Ctx) error {
	tlID, ok := parseID(c, "tlId")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid team lead id", "INVALID_TL_ID", nil)
	}
	start, end, err := parseDateRange(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Dates must be formatted as YYYY-MM-DD", "INVALID_DATE", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/tl/"+c.Params("tlId")+"/performance")
	defer cancel()

	result, err := h.reportFlow.TeamPerformance(ctx, tlID, start, end)
	if err != nil {
		if businessflow.IsTeamLeadNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Team lead not found", "TEAM_LEAD_NOT_FOUND", nil)
		}
		if businessflow.IsStartDateAfterEndDate(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Start date cannot be after end date", "INVALID_DATE_RANGE", nil)
		}

		log.Println("Team performance failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to build team performance", "REPORT_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Team performance retrieved successfully", result)
}

// TeamLeads lists the leads of every agent under a team lead
// @Summary Team Leads Listing
// @Description Leads owned by agents whose tl_name matches. callStatus absent means pending calls, "All" means every status, any other value is an exact match. Team leads default to their own team.
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param tlName query string false "Team lead username"
// @Param callStatus query string false "Call status"
// @Param startDate query string false "Creation date from (YYYY-MM-DD)"
// @Param endDate query string false "Creation date to (YYYY-MM-DD)"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(10)
// @Success 200 {object} dto.APIResponse{data=dto.TLLeadsResponse}
// @Failure 404 {object} dto.APIResponse "No agents under this team lead"
// @Router /api/v1/tl/leads [get]
func (h *ReportHandler) TeamLeads(c fiber.Ctx) error {
	tlName := strings.TrimSpace(c.Query("tlName"))
	if userType, _ := c.Locals("user_type").(string); userType == models.UserTypeTL {
		tlName, _ = c.Locals("username").(string)
	}
	if tlName == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "TL name is required", "VALIDATION_ERROR", nil)
	}

	start, end, err := parseDateRange(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Dates must be formatted as YYYY-MM-DD", "INVALID_DATE", nil)
	}

	params := pageParams(c)
	req := &dto.TLLeadsRequest{
		TLName:    tlName,
		Status:    teamStatus(c),
		StartDate: start,
		EndDate:   end,
		Page:      params.Page,
		Limit:     params.Limit,
	}

	ctx, cancel := createRequestContext(c, "/api/v1/tl/leads")
	defer cancel()

	result, err := h.leadQueryFlow.ListLeadsForTL(ctx, req)
	if err != nil {
		if businessflow.IsTeamLeadNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "No users found under this TL", "TEAM_HAS_NO_AGENTS", nil)
		}
		if businessflow.IsStartDateAfterEndDate(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Start date cannot be after end date", "INVALID_DATE_RANGE", nil)
		}

		log.Println("Team leads listing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to retrieve leads", "LEAD_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Leads retrieved successfully", result)
}
