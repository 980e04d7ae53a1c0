package businessflow

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/leaddesk/utils"
	"github.com/xuri/excelize/v2"
)

// Canonical column keys. Headers are matched after normalizeHeader, so
// "First Name*", "FirstName" and "first_name" all map to colFirstName.
const (
	colFirstName     = "firstname"
	colLastName      = "lastname"
	colEmail         = "email"
	colContactNumber = "contactnumber"
	colCallStatus    = "callstatus"
	colRemarks       = "remarks"
	colPostingDate   = "postingdate"
	colCallBy        = "callby"
	colSubmitOn      = "submiton"
	colProductName   = "productname"
	colUnitType      = "unittype"
	colBudget        = "budget"
	colFollowUp      = "followup"
	colAssignTL      = "assigntl"

	colFullName = "fullname"
	colUsername = "username"
	colUserType = "usertype"
	colTLName   = "tlname"
)

var headerAliases = map[string]string{
	"emailid":   colEmail,
	"useremail": colEmail,
	"contact":   colContactNumber,
	"mobile":    colContactNumber,
	"phone":     colContactNumber,
	"product":   colProductName,
	"unit":      colUnitType,
	"tl":        colAssignTL,
	"name":      colFullName,
}

// Export headers. They normalize back to the lead import columns.
var leadSheetHeaders = []string{
	"First Name*", "Last Name*", "Email ID", "Contact Number*", "Call Status", "Remarks",
	"Posting Date", "Call By*", "Submit On", "Product Name", "Unit Type", "Budget", "Follow Up", "Assign TL",
}

var userSheetHeaders = []string{"Full Name*", "Username*", "Email*", "User Type", "TL Name", "Online", "Created At"}

// normalizeHeader lowercases and drops '*', spaces, '_' and '-'
func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer("*", "", " ", "", "_", "", "-", "").Replace(h)
	if alias, ok := headerAliases[h]; ok {
		return alias
	}
	return h
}

// sheetTable is a parsed spreadsheet: a header index plus data rows
type sheetTable struct {
	index map[string]int
	rows  [][]string
}

func newSheetTable(all [][]string) *sheetTable {
	t := &sheetTable{index: make(map[string]int)}
	if len(all) == 0 {
		return t
	}
	for i, h := range all[0] {
		key := normalizeHeader(h)
		if key == "" {
			continue
		}
		if _, dup := t.index[key]; !dup {
			t.index[key] = i
		}
	}
	for _, row := range all[1:] {
		if isBlankRow(row) {
			continue
		}
		t.rows = append(t.rows, row)
	}
	return t
}

// missing returns the first required column absent from the header
func (t *sheetTable) missing(required ...string) (string, bool) {
	for _, col := range required {
		if _, ok := t.index[col]; !ok {
			return col, true
		}
	}
	return "", false
}

// cell returns the trimmed value of col in row, or "" when absent
func (t *sheetTable) cell(row []string, col string) string {
	i, ok := t.index[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// readSheet loads the first worksheet of an xlsx file or a csv file
func readSheet(path, filename string) (*sheetTable, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(path))
	}

	var all [][]string
	var err error
	switch ext {
	case ".xlsx", ".xlsm":
		all, err = readXLSX(path)
	case ".csv":
		all, err = readCSV(path)
	default:
		return nil, ErrImportUnsupported
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportUnreadable, err)
	}
	return newSheetTable(all), nil
}

func readXLSX(path string) ([][]string, error) {
	xl, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = xl.Close() }()

	sheets := xl.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return xl.GetRows(sheets[0])
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(bufio.NewReader(f))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var all [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		all = append(all, rec)
	}
	return all, nil
}

var sheetDateLayouts = []string{
	utils.DateLayout,
	time.RFC3339,
	"2006/01/02",
	"02-01-2006",
	"02/01/2006",
	"01-02-06",
	"2006-01-02 15:04:05",
}

// parseSheetDate accepts the common textual layouts and Excel serial day numbers.
// Unparseable values yield nil.
func parseSheetDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range sheetDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := utils.StartOfDay(t)
			return &d
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			d := utils.StartOfDay(t)
			return &d
		}
	}
	return nil
}

// writeSheet renders a header and rows into sheet, starting at A1
func writeSheet(xl *excelize.File, sheet string, header []string, rows [][]string) error {
	if err := xl.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for ri, record := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, ri+2)
		if err != nil {
			return err
		}
		if err := xl.SetSheetRow(sheet, cellRef, &record); err != nil {
			return err
		}
	}
	return nil
}
