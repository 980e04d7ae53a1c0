package handlers

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/amirphl/leaddesk/app/dto"
	businessflow "github.com/amirphl/leaddesk/business_flow"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

const importRequestTimeout = 5 * time.Minute

// UploadSettings controls where uploaded spreadsheets are staged before import
type UploadSettings struct {
	Dir         string
	MaxFileSize int64
}

// stageUpload saves the multipart "file" field under settings.Dir with a random name.
// The import flow removes the staged file when it finishes.
func stageUpload(c fiber.Ctx, settings UploadSettings) (*dto.ImportRequest, *businessflow.BusinessError) {
	fileHeader, err := c.FormFile("file")
	if err != nil || fileHeader == nil {
		return nil, businessflow.NewBusinessError("IMPORT_FILE_REQUIRED", "file is required", businessflow.ErrImportUnreadable)
	}
	if settings.MaxFileSize > 0 && fileHeader.Size > settings.MaxFileSize {
		return nil, businessflow.NewBusinessErrorf("IMPORT_FILE_TOO_LARGE", "File exceeds the %d MB limit", businessflow.ErrImportFileTooLarge, settings.MaxFileSize/(1024*1024))
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if ext != ".xlsx" && ext != ".xlsm" && ext != ".csv" {
		return nil, businessflow.NewBusinessError("IMPORT_FILE_UNSUPPORTED", "Only .xlsx and .csv files are accepted", businessflow.ErrImportUnsupported)
	}

	dir := settings.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, businessflow.NewBusinessError("IMPORT_STAGING_FAILED", "Failed to store upload", err)
	}

	path := filepath.Join(dir, uuid.New().String()+ext)
	if err := c.SaveFile(fileHeader, path); err != nil {
		return nil, businessflow.NewBusinessError("IMPORT_STAGING_FAILED", "Failed to store upload", err)
	}

	req := &dto.ImportRequest{
		OriginalFilename: fileHeader.Filename,
		Path:             path,
		Size:             fileHeader.Size,
	}
	if userID, ok := c.Locals("user_id").(uint); ok {
		req.ActorID = userID
	}
	if username, ok := c.Locals("username").(string); ok {
		req.ActorUsername = username
	}
	return req, nil
}

// importErrorStatus maps file level import failures to a status code
func importErrorStatus(err error) int {
	switch {
	case businessflow.IsImportFileTooLarge(err):
		return fiber.StatusRequestEntityTooLarge
	case businessflow.IsImportUnsupported(err),
		businessflow.IsImportUnreadable(err),
		businessflow.IsImportNoRows(err),
		businessflow.IsImportMissingColumn(err):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func sendDownload(c fiber.Ctx, file *dto.FileDownload) error {
	c.Set("Content-Type", file.ContentType)
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	return c.Send(file.Data)
}

// LeadSpreadsheetHandlerInterface defines the contract for lead upload and download handlers
type LeadSpreadsheetHandlerInterface interface {
	ImportLeads(c fiber.Ctx) error
	ExportLeads(c fiber.Ctx) error
	Template(c fiber.Ctx) error
	SampleCSV(c fiber.Ctx) error
}

// LeadSpreadsheetHandler handles lead import, export and template downloads
type LeadSpreadsheetHandler struct {
	importFlow businessflow.ImportFlow
	exportFlow businessflow.ExportFlow
	upload     UploadSettings
}

func (h *LeadSpreadsheetHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *LeadSpreadsheetHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewLeadSpreadsheetHandler creates a new lead spreadsheet handler
func NewLeadSpreadsheetHandler(importFlow businessflow.ImportFlow, exportFlow businessflow.ExportFlow, upload UploadSettings) *LeadSpreadsheetHandler {
	return &LeadSpreadsheetHandler{
		importFlow: importFlow,
		exportFlow: exportFlow,
		upload:     upload,
	}
}

// ImportLeads bulk-inserts the rows of an uploaded sheet
// @Summary Import Leads
// @Description Upload an .xlsx or .csv lead sheet (<=10MB). Rows are inserted in batches of 100; a failing batch stops the import and earlier batches stay committed.
// @Tags Lead Spreadsheets
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Lead sheet"
// @Success 200 {object} dto.APIResponse{data=dto.ImportSummary} "Import finished"
// @Failure 400 {object} dto.APIResponse "File rejected"
// @Failure 413 {object} dto.APIResponse "File too large"
// @Failure 500 {object} dto.APIResponse "Import stopped part way; error details carry the partial summary"
// @Router /api/v1/leads/import [post]
func (h *LeadSpreadsheetHandler) ImportLeads(c fiber.Ctx) error {
	req, berr := stageUpload(c, h.upload)
	if berr != nil {
		return h.ErrorResponse(c, importErrorStatus(berr), berr.Message, berr.Code, nil)
	}

	ctx, cancel := createRequestContextWithTimeout(c, "/api/v1/leads/import", importRequestTimeout)
	defer cancel()

	summary, err := h.importFlow.ImportLeads(ctx, req, clientMetadata(c))
	if err != nil {
		if ie, ok := businessflow.AsImportError(err); ok {
			log.Println("Lead import stopped", err)
			return h.ErrorResponse(c, fiber.StatusInternalServerError, "Import stopped part way; earlier batches were saved", "IMPORT_PARTIAL", fiber.Map{
				"summary":     ie.Summary,
				"failedBatch": ie.FailedBatch,
			})
		}
		if be, ok := err.(*businessflow.BusinessError); ok && importErrorStatus(err) != fiber.StatusInternalServerError {
			return h.ErrorResponse(c, importErrorStatus(err), be.Message, be.Code, nil)
		}

		log.Println("Lead import failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to import leads", "IMPORT_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, fmt.Sprintf("Imported %d of %d rows", summary.ProcessedRows, summary.TotalRows), summary)
}

// ExportLeads downloads the matching leads as a workbook
// @Summary Export Leads
// @Tags Lead Spreadsheets
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param callby query string false "Agent username"
// @Param callStatus query string false "Call status"
// @Param statusMode query string false "ALL, PENDING or EXACT"
// @Param productName query string false "Exact product name"
// @Param startDate query string false "Creation date from (YYYY-MM-DD)"
// @Param endDate query string false "Creation date to (YYYY-MM-DD)"
// @Success 200 {string} string "Workbook"
// @Router /api/v1/leads/export [get]
func (h *LeadSpreadsheetHandler) ExportLeads(c fiber.Ctx) error {
	status, err := listingStatus(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_STATUS_MODE", nil)
	}
	start, end, err := parseDateRange(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Dates must be formatted as YYYY-MM-DD", "INVALID_DATE", nil)
	}

	req := &dto.LeadListRequest{
		CallBy:           scopedCallBy(c, c.Query("callby")),
		Status:           status,
		ProductName:      c.Query("productName"),
		ContactSubstring: contactQuery(c),
		StartDate:        start,
		EndDate:          end,
	}

	ctx, cancel := createRequestContextWithTimeout(c, "/api/v1/leads/export", importRequestTimeout)
	defer cancel()

	file, err := h.exportFlow.ExportLeads(ctx, req)
	if err != nil {
		if businessflow.IsStartDateAfterEndDate(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Start date cannot be after end date", "INVALID_DATE_RANGE", nil)
		}

		log.Println("Lead export failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to export leads", "LEAD_EXPORT_FAILED", nil)
	}

	return sendDownload(c, file)
}

// Template downloads the lead upload template
// @Summary Lead Upload Template
// @Description Workbook with the import headers, sample rows, dropdowns for call status and unit type and an instructions sheet
// @Tags Lead Spreadsheets
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Success 200 {string} string "Workbook"
// @Router /api/v1/leads/template [get]
func (h *LeadSpreadsheetHandler) Template(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/api/v1/leads/template")
	defer cancel()

	file, err := h.exportFlow.LeadTemplate(ctx)
	if err != nil {
		log.Println("Lead template failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to build template", "EXCEL_WRITE_ERROR", nil)
	}

	return sendDownload(c, file)
}

// SampleCSV downloads a minimal csv lead file
// @Summary Lead Sample CSV
// @Tags Lead Spreadsheets
// @Produce text/csv
// @Security BearerAuth
// @Success 200 {string} string "CSV"
// @Router /api/v1/leads/sample-csv [get]
func (h *LeadSpreadsheetHandler) SampleCSV(c fiber.Ctx) error {
	file, err := h.exportFlow.SampleCSV()
	if err != nil {
		log.Println("Sample csv failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to build sample file", "CSV_WRITE_ERROR", nil)
	}

	return sendDownload(c, file)
}
