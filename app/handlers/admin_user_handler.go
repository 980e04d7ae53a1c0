package handlers

import (
	"fmt"
	"log"

	"github.com/amirphl/leaddesk/app/dto"
	businessflow "github.com/amirphl/leaddesk/business_flow"
	"github.com/gofiber/fiber/v3"
)

// AdminUserHandlerInterface defines the contract for admin user management handlers
type AdminUserHandlerInterface interface {
	ListUsers(c fiber.Ctx) error
	ExportUsers(c fiber.Ctx) error
	ImportUsers(c fiber.Ctx) error
}

// AdminUserHandler handles admin user management HTTP requests
type AdminUserHandler struct {
	authFlow   businessflow.AuthFlow
	importFlow businessflow.ImportFlow
	exportFlow businessflow.ExportFlow
	upload     UploadSettings
}

func (h *AdminUserHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *AdminUserHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewAdminUserHandler creates a new admin user handler
func NewAdminUserHandler(authFlow businessflow.AuthFlow, importFlow businessflow.ImportFlow, exportFlow businessflow.ExportFlow, upload UploadSettings) *AdminUserHandler {
	return &AdminUserHandler{
		authFlow:   authFlow,
		importFlow: importFlow,
		exportFlow: exportFlow,
		upload:     upload,
	}
}

func (h *AdminUserHandler) usersRequest(c fiber.Ctx) (*dto.AdminUsersRequest, error) {
	start, end, err := parseDateRange(c)
	if err != nil {
		return nil, err
	}
	params := pageParams(c)
	return &dto.AdminUsersRequest{
		Search:    c.Query("search"),
		UserType:  c.Query("userType"),
		StartDate: start,
		EndDate:   end,
		Page:      params.Page,
		Limit:     params.Limit,
	}, nil
}

// ListUsers pages through accounts
// @Summary Admin List Users
// @Description Search by name, username or email and filter by creation date. Stats count every matching account.
// @Tags Admin Users
// @Produce json
// @Security BearerAuth
// @Param search query string false "Name, username or email substring"
// @Param userType query string false "admin, tl or user"
// @Param startDate query string false "Created from (YYYY-MM-DD)"
// @Param endDate query string false "Created to (YYYY-MM-DD)"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(10)
// @Success 200 {object} dto.APIResponse{data=dto.AdminUsersResponse}
// @Failure 400 {object} dto.APIResponse "Invalid filter"
// @Router /api/v1/admin/users [get]
func (h *AdminUserHandler) ListUsers(c fiber.Ctx) error {
	req, err := h.usersRequest(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Dates must be formatted as YYYY-MM-DD", "INVALID_DATE", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/admin/users")
	defer cancel()

	result, err := h.authFlow.AdminListUsers(ctx, req)
	if err != nil {
		if businessflow.IsStartDateAfterEndDate(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Start date cannot be after end date", "INVALID_DATE_RANGE", nil)
		}

		log.Println("Admin list users failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list users", "USERS_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Users retrieved successfully", result)
}

// ExportUsers downloads the matching accounts as a workbook
// @Summary Admin Export Users
// @Tags Admin Users
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param search query string false "Name, username or email substring"
// @Param userType query string false "admin, tl or user"
// @Param startDate query string false "Created from (YYYY-MM-DD)"
// @Param endDate query string false "Created to (YYYY-MM-DD)"
// @Success 200 {string} string "Workbook"
// @Router /api/v1/admin/users/export [get]
func (h *AdminUserHandler) ExportUsers(c fiber.Ctx) error {
	req, err := h.usersRequest(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Dates must be formatted as YYYY-MM-DD", "INVALID_DATE", nil)
	}

	ctx, cancel := createRequestContextWithTimeout(c, "/api/v1/admin/users/export", importRequestTimeout)
	defer cancel()

	file, err := h.exportFlow.ExportUsers(ctx, req)
	if err != nil {
		if businessflow.IsStartDateAfterEndDate(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Start date cannot be after end date", "INVALID_DATE_RANGE", nil)
		}

		log.Println("User export failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to export users", "USER_EXPORT_FAILED", nil)
	}

	return sendDownload(c, file)
}

// ImportUsers bulk-creates accounts with generated passwords
// @Summary Admin Import Users
// @Description Upload an .xlsx or .csv sheet with full name, username and email columns. Each new account gets a random password that is returned once.
// @Tags Admin Users
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param file formData file true "User sheet"
// @Success 200 {object} dto.APIResponse{data=dto.UserImportResponse} "Import finished"
// @Failure 400 {object} dto.APIResponse "File rejected"
// @Failure 413 {object} dto.APIResponse "File too large"
// @Failure 500 {object} dto.APIResponse "Import stopped part way; error details carry the partial summary"
// @Router /api/v1/admin/users/import [post]
func (h *AdminUserHandler) ImportUsers(c fiber.Ctx) error {
	req, berr := stageUpload(c, h.upload)
	if berr != nil {
		return h.ErrorResponse(c, importErrorStatus(berr), berr.Message, berr.Code, nil)
	}

	ctx, cancel := createRequestContextWithTimeout(c, "/api/v1/admin/users/import", importRequestTimeout)
	defer cancel()

	result, err := h.importFlow.ImportUsers(ctx, req, clientMetadata(c))
	if err != nil {
		if ie, ok := businessflow.AsImportError(err); ok {
			log.Println("User import stopped", err)
			return h.ErrorResponse(c, fiber.StatusInternalServerError, "Import stopped part way; earlier batches were saved", "IMPORT_PARTIAL", fiber.Map{
				"summary":     ie.Summary,
				"failedBatch": ie.FailedBatch,
				"credentials": ie.Credentials,
			})
		}
		if be, ok := err.(*businessflow.BusinessError); ok && importErrorStatus(err) != fiber.StatusInternalServerError {
			return h.ErrorResponse(c, importErrorStatus(err), be.Message, be.Code, nil)
		}

		log.Println("User import failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to import users", "IMPORT_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, fmt.Sprintf("Imported %d of %d rows", result.ProcessedRows, result.TotalRows), result)
}
