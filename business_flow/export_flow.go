package businessflow

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/amirphl/leaddesk/app/dto"
	"github.com/amirphl/leaddesk/models"
	"github.com/amirphl/leaddesk/repository"
	"github.com/amirphl/leaddesk/utils"
	"github.com/xuri/excelize/v2"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	csvContentType  = "text/csv"
	templateRows    = 1000
)

var templateCallStatuses = []string{"New Buyer", "Resale - Buyer", "Resale - Seller", "Not Interested", "Follow Up"}

var templateUnitTypes = []string{"1BHK", "2BHK", "3BHK", "4BHK", "Villa", "Plot", "Shop", "Office"}

// ExportFlow renders leads and users as spreadsheets and serves upload templates
type ExportFlow interface {
	ExportLeads(ctx context.Context, req *dto.LeadListRequest) (*dto.FileDownload, error)
	ExportUsers(ctx context.Context, req *dto.AdminUsersRequest) (*dto.FileDownload, error)
	LeadTemplate(ctx context.Context) (*dto.FileDownload, error)
	SampleCSV() (*dto.FileDownload, error)
}

// ExportFlowImpl implements the export business flow
type ExportFlowImpl struct {
	leadRepo repository.LeadRepository
	userRepo repository.UserRepository
}

// NewExportFlow creates a new export flow instance
func NewExportFlow(leadRepo repository.LeadRepository, userRepo repository.UserRepository) ExportFlow {
	return &ExportFlowImpl{leadRepo: leadRepo, userRepo: userRepo}
}

// ExportLeads writes every matching lead with the lead import headers, oldest first
func (f *ExportFlowImpl) ExportLeads(ctx context.Context, req *dto.LeadListRequest) (*dto.FileDownload, error) {
	if req == nil {
		req = &dto.LeadListRequest{}
	}
	rng, err := dateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, NewBusinessError("LEAD_FILTER_INVALID", "Invalid date range", err)
	}

	filter := models.LeadFilter{
		CallBy:           trimPtr(req.CallBy),
		Status:           req.Status,
		ProductName:      trimPtr(req.ProductName),
		ContactSubstring: trimPtr(req.ContactSubstring),
		CreatedBetween:   rng,
	}
	leads, err := f.leadRepo.ByFilter(ctx, filter, "id ASC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("LEAD_EXPORT_FAILED", "Failed to load leads for export", err)
	}

	rows := make([][]string, 0, len(leads))
	for _, l := range leads {
		rows = append(rows, []string{
			l.FirstName,
			l.LastName,
			l.EmailID,
			l.ContactNumber,
			l.CallStatus,
			l.Remarks,
			utils.FormatDatePtr(l.PostingDate),
			l.CallBy,
			utils.FormatDatePtr(l.SubmitOn),
			l.ProductName,
			l.UnitType,
			l.Budget,
			l.FollowUp,
			l.AssignTL,
		})
	}

	data, err := renderWorkbook("Leads", leadSheetHeaders, rows, nil)
	if err != nil {
		return nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	return &dto.FileDownload{
		Filename:    fmt.Sprintf("leads_%s.xlsx", utils.UTCNow().Format("20060102_150405")),
		ContentType: xlsxContentType,
		Data:        data,
	}, nil
}

// ExportUsers writes every account matching the admin listing filters
func (f *ExportFlowImpl) ExportUsers(ctx context.Context, req *dto.AdminUsersRequest) (*dto.FileDownload, error) {
	if req == nil {
		req = &dto.AdminUsersRequest{}
	}
	rng, err := dateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, NewBusinessError("USERS_FILTER_INVALID", "Invalid date range", err)
	}

	filter := models.UserFilter{
		Search:   trimPtr(req.Search),
		UserType: trimPtr(strings.ToLower(req.UserType)),
	}
	if rng != nil {
		filter.CreatedAfter = &rng.Start
		filter.CreatedBefore = utils.ToPtr(rng.End.AddDate(0, 0, 1))
	}

	users, err := f.userRepo.ByFilter(ctx, filter, "created_at DESC, id DESC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("USER_EXPORT_FAILED", "Failed to load users for export", err)
	}

	rows := make([][]string, 0, len(users))
	for _, u := range users {
		online := "No"
		if u.IsOnline() {
			online = "Yes"
		}
		rows = append(rows, []string{
			u.FullName,
			u.Username,
			u.UserEmail,
			u.UserType,
			utils.Deref(u.TLName),
			online,
			u.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	data, err := renderWorkbook("Users", userSheetHeaders, rows, nil)
	if err != nil {
		return nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	return &dto.FileDownload{
		Filename:    fmt.Sprintf("users_%s.xlsx", utils.UTCNow().Format("20060102_150405")),
		ContentType: xlsxContentType,
		Data:        data,
	}, nil
}

// LeadTemplate is an empty lead sheet with sample rows, dropdowns for call status and
// unit type, and an instructions sheet
func (f *ExportFlowImpl) LeadTemplate(ctx context.Context) (*dto.FileDownload, error) {
	unitTypes := slices.Clone(templateUnitTypes)
	if known, err := f.leadRepo.DistinctUnitTypes(ctx, ""); err == nil {
		for _, u := range known {
			if !slices.Contains(unitTypes, u) {
				unitTypes = append(unitTypes, u)
			}
		}
	}

	today := utils.TodayUTC().Format(utils.DateLayout)
	samples := [][]string{
		{"Rahul", "Sharma", "rahul.sharma@example.com", "9876543210", "", "Interested in sea view", today, "agent1", today, "Skyline Towers", "2BHK", "5000000", "", ""},
		{"Priya", "Verma", "", "9123456780", "Follow Up", "Call after 6pm", today, "agent2", today, "Green Acres", "3BHK", "8500000", today, ""},
	}

	data, err := renderWorkbook("Leads", leadSheetHeaders, samples, func(xl *excelize.File, sheet string) error {
		if err := addDropList(xl, sheet, 5, templateCallStatuses); err != nil {
			return err
		}
		if err := addDropList(xl, sheet, 11, unitTypes); err != nil {
			return err
		}
		return addInstructions(xl)
	})
	if err != nil {
		return nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	return &dto.FileDownload{
		Filename:    "lead_upload_template.xlsx",
		ContentType: xlsxContentType,
		Data:        data,
	}, nil
}

// SampleCSV is a minimal lead file for the csv upload path
func (f *ExportFlowImpl) SampleCSV() (*dto.FileDownload, error) {
	today := utils.TodayUTC().Format(utils.DateLayout)
	records := [][]string{
		{"FirstName", "LastName", "EmailId", "ContactNumber", "callstatus", "remarks", "PostingDate", "callby", "submiton"},
		{"Rahul", "Sharma", "rahul.sharma@example.com", "9876543210", "", "Interested in sea view", today, "agent1", today},
		{"Priya", "Verma", "", "9123456780", "Follow Up", "Call after 6pm", today, "agent2", today},
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return nil, NewBusinessError("CSV_WRITE_ERROR", "Failed to write CSV file", err)
	}
	return &dto.FileDownload{
		Filename:    "lead_upload_sample.csv",
		ContentType: csvContentType,
		Data:        buf.Bytes(),
	}, nil
}

// renderWorkbook writes one sheet named sheet; decorate may add validations or sheets
func renderWorkbook(sheet string, header []string, rows [][]string, decorate func(*excelize.File, string) error) ([]byte, error) {
	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	if err := xl.SetSheetName(xl.GetSheetName(0), sheet); err != nil {
		return nil, err
	}
	if err := writeSheet(xl, sheet, header, rows); err != nil {
		return nil, err
	}

	bold, err := xl.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	last, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return nil, err
	}
	if err := xl.SetCellStyle(sheet, "A1", last+"1", bold); err != nil {
		return nil, err
	}
	if err := xl.SetColWidth(sheet, "A", last, 18); err != nil {
		return nil, err
	}

	if decorate != nil {
		if err := decorate(xl, sheet); err != nil {
			return nil, err
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// addDropList restricts column col (1-based) below the header to values
func addDropList(xl *excelize.File, sheet string, col int, values []string) error {
	name, err := excelize.ColumnNumberToName(col)
	if err != nil {
		return err
	}
	dv := excelize.NewDataValidation(true)
	dv.Sqref = fmt.Sprintf("%s2:%s%d", name, name, templateRows)
	if err := dv.SetDropList(values); err != nil {
		return err
	}
	return xl.AddDataValidation(sheet, dv)
}

func addInstructions(xl *excelize.File) error {
	const sheet = "Instructions"
	if _, err := xl.NewSheet(sheet); err != nil {
		return err
	}
	lines := []string{
		"Columns marked with * are required: First Name, Last Name, Contact Number and Call By.",
		"Call By is the username of the agent who owns the lead.",
		"Leave Call Status empty for leads that have not been called yet.",
		"Dates use the YYYY-MM-DD format. Posting Date and Submit On default to the upload day.",
		"Rows missing a required value are skipped and counted in the upload summary.",
		fmt.Sprintf("Files are limited to %d MB and imported in batches of %d rows.", utils.MaxImportFileSize/(1024*1024), utils.ImportBatchSize),
	}
	for i, line := range lines {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := xl.SetCellValue(sheet, cell, line); err != nil {
			return err
		}
	}
	return xl.SetColWidth(sheet, "A", "A", 100)
}
