package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/amirphl/leaddesk/app/dto"
	"github.com/amirphl/leaddesk/models"
	"github.com/amirphl/leaddesk/repository"
	"github.com/amirphl/leaddesk/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const userImportNotice = "Generated passwords are shown only once. Share them securely and ask every user to change it after first login."

var (
	importRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_rows_total",
			Help: "Spreadsheet rows handled by bulk imports",
		},
		[]string{"kind", "outcome"},
	)
	importBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_batches_total",
			Help: "Bulk import batches by result",
		},
		[]string{"kind", "result"},
	)
)

// ImportSettings tunes bulk imports; zero values fall back to the utils defaults
type ImportSettings struct {
	BatchSize      int
	MaxFileSize    int64
	PasswordLength int
	HashCost       int
}

// ImportFlow loads leads and users from uploaded spreadsheets in batches
type ImportFlow interface {
	ImportLeads(ctx context.Context, req *dto.ImportRequest, metadata *ClientMetadata) (*dto.ImportSummary, error)
	ImportUsers(ctx context.Context, req *dto.ImportRequest, metadata *ClientMetadata) (*dto.UserImportResponse, error)
}

// ImportFlowImpl implements the bulk import business flow
type ImportFlowImpl struct {
	leadRepo  repository.LeadRepository
	userRepo  repository.UserRepository
	auditRepo repository.AuditLogRepository
	db        *gorm.DB
	settings  ImportSettings
}

// NewImportFlow creates a new import flow instance
func NewImportFlow(
	leadRepo repository.LeadRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditLogRepository,
	db *gorm.DB,
	settings ImportSettings,
) ImportFlow {
	if settings.BatchSize <= 0 {
		settings.BatchSize = utils.ImportBatchSize
	}
	if settings.MaxFileSize <= 0 {
		settings.MaxFileSize = utils.MaxImportFileSize
	}
	if settings.PasswordLength <= 0 {
		settings.PasswordLength = utils.DefaultPasswordLength
	}
	if settings.HashCost == 0 {
		settings.HashCost = bcrypt.DefaultCost
	}
	return &ImportFlowImpl{
		leadRepo:  leadRepo,
		userRepo:  userRepo,
		auditRepo: auditRepo,
		db:        db,
		settings:  settings,
	}
}

// ImportLeads inserts the valid rows of a lead sheet. Each batch commits on its own;
// a failing batch stops the import and an *ImportError reports what was kept.
func (f *ImportFlowImpl) ImportLeads(ctx context.Context, req *dto.ImportRequest, metadata *ClientMetadata) (*dto.ImportSummary, error) {
	started := time.Now()
	if req != nil && req.Path != "" {
		defer removeUpload(req.Path)
	}

	table, err := f.open(req, colFirstName, colLastName, colContactNumber, colCallBy)
	if err != nil {
		return nil, err
	}
	readDone := time.Now()

	summary := &dto.ImportSummary{TotalRows: len(table.rows)}
	leads := make([]*models.Lead, 0, len(table.rows))
	today := utils.TodayUTC()
	for _, row := range table.rows {
		lead, ok := leadFromRow(table, row, today)
		if !ok {
			summary.SkippedRows++
			continue
		}
		leads = append(leads, lead)
	}
	importRowsTotal.WithLabelValues("lead", "skipped").Add(float64(summary.SkippedRows))

	for start := 0; start < len(leads); start += f.settings.BatchSize {
		end := min(start+f.settings.BatchSize, len(leads))
		batch := leads[start:end]
		batchNo := summary.Batches + 1

		err := repository.WithTransaction(ctx, f.db, func(ctx context.Context) error {
			return f.leadRepo.SaveBatch(ctx, batch)
		})
		if err != nil {
			importBatchesTotal.WithLabelValues("lead", "failed").Inc()
			return nil, f.fail(ctx, req, metadata, models.AuditActionLeadsImported, summary, batchNo, err, started, readDone)
		}

		importBatchesTotal.WithLabelValues("lead", "committed").Inc()
		importRowsTotal.WithLabelValues("lead", "processed").Add(float64(len(batch)))
		summary.Batches = batchNo
		summary.ProcessedRows += len(batch)
	}

	summary.Timing = timing(started, readDone)
	f.audit(ctx, req, metadata, models.AuditActionLeadsImported, summary, nil)
	return summary, nil
}

// ImportUsers inserts the valid rows of a user sheet with generated passwords.
// Usernames or emails already taken, in the database or earlier in the file, are skipped.
func (f *ImportFlowImpl) ImportUsers(ctx context.Context, req *dto.ImportRequest, metadata *ClientMetadata) (*dto.UserImportResponse, error) {
	started := time.Now()
	if req != nil && req.Path != "" {
		defer removeUpload(req.Path)
	}

	table, err := f.open(req, colFullName, colUsername, colEmail)
	if err != nil {
		return nil, err
	}
	readDone := time.Now()

	resp := &dto.UserImportResponse{Credentials: []dto.GeneratedCredential{}}
	summary := &resp.ImportSummary
	summary.TotalRows = len(table.rows)

	seenUsernames := make(map[string]bool, len(table.rows))
	seenEmails := make(map[string]bool, len(table.rows))
	users := make([]*models.User, 0, len(table.rows))
	for _, row := range table.rows {
		user, ok := userFromRow(table, row)
		if !ok || seenUsernames[user.Username] || seenEmails[user.UserEmail] {
			summary.SkippedRows++
			continue
		}
		seenUsernames[user.Username] = true
		seenEmails[user.UserEmail] = true
		users = append(users, user)
	}

	for start := 0; start < len(users); start += f.settings.BatchSize {
		end := min(start+f.settings.BatchSize, len(users))
		batchNo := summary.Batches + 1

		var inserted []*models.User
		var passwords []string
		var taken int
		err := repository.WithTransaction(ctx, f.db, func(ctx context.Context) error {
			var err error
			inserted, taken, err = f.dropExisting(ctx, users[start:end])
			if err != nil {
				return err
			}
			passwords, err = f.hashPasswords(ctx, inserted)
			if err != nil {
				return err
			}
			return f.userRepo.SaveBatch(ctx, inserted)
		})
		if err != nil {
			importBatchesTotal.WithLabelValues("user", "failed").Inc()
			ferr := f.fail(ctx, req, metadata, models.AuditActionUsersImported, summary, batchNo, err, started, readDone)
			if ie, ok := AsImportError(ferr); ok {
				ie.Credentials = resp.Credentials
			}
			return nil, ferr
		}

		importBatchesTotal.WithLabelValues("user", "committed").Inc()
		importRowsTotal.WithLabelValues("user", "processed").Add(float64(len(inserted)))
		summary.Batches = batchNo
		summary.ProcessedRows += len(inserted)
		summary.SkippedRows += taken
		for i, u := range inserted {
			resp.Credentials = append(resp.Credentials, dto.GeneratedCredential{
				Username: u.Username,
				Email:    u.UserEmail,
				Password: passwords[i],
			})
		}
	}
	importRowsTotal.WithLabelValues("user", "skipped").Add(float64(summary.SkippedRows))

	if summary.ProcessedRows > 0 {
		summary.Notice = userImportNotice
	}
	summary.Timing = timing(started, readDone)
	f.audit(ctx, req, metadata, models.AuditActionUsersImported, summary, nil)
	return resp, nil
}

// open applies the file level checks and parses the sheet
func (f *ImportFlowImpl) open(req *dto.ImportRequest, required ...string) (*sheetTable, error) {
	if req == nil || req.Path == "" {
		return nil, NewBusinessError("IMPORT_FILE_REQUIRED", "File is required", ErrImportUnreadable)
	}

	info, err := os.Stat(req.Path)
	if err != nil {
		return nil, NewBusinessError("IMPORT_FILE_UNREADABLE", "Uploaded file could not be read", fmt.Errorf("%w: %v", ErrImportUnreadable, err))
	}
	if info.Size() > f.settings.MaxFileSize || req.Size > f.settings.MaxFileSize {
		return nil, NewBusinessErrorf("IMPORT_FILE_TOO_LARGE", "File exceeds the %d MB limit", ErrImportFileTooLarge, f.settings.MaxFileSize/(1024*1024))
	}

	table, err := readSheet(req.Path, req.OriginalFilename)
	if err != nil {
		if errors.Is(err, ErrImportUnsupported) {
			return nil, NewBusinessError("IMPORT_FILE_UNSUPPORTED", "Only .xlsx and .csv files are accepted", err)
		}
		return nil, NewBusinessError("IMPORT_FILE_UNREADABLE", "Uploaded file could not be read", err)
	}
	if len(table.rows) == 0 {
		return nil, NewBusinessError("IMPORT_NO_ROWS", "File has no data rows", ErrImportNoRows)
	}
	if col, missing := table.missing(required...); missing {
		return nil, NewBusinessErrorf("IMPORT_MISSING_COLUMN", "File is missing the %q column", ErrImportMissingColumn, col)
	}
	return table, nil
}

// dropExisting removes users whose username or email is already stored
func (f *ImportFlowImpl) dropExisting(ctx context.Context, batch []*models.User) ([]*models.User, int, error) {
	usernames := make([]string, 0, len(batch))
	emails := make([]string, 0, len(batch))
	for _, u := range batch {
		usernames = append(usernames, u.Username)
		emails = append(emails, u.UserEmail)
	}

	takenUsernames, takenEmails, err := f.userRepo.ExistingUsernamesOrEmails(ctx, usernames, emails)
	if err != nil {
		return nil, 0, err
	}

	kept := make([]*models.User, 0, len(batch))
	for _, u := range batch {
		if takenUsernames[u.Username] || takenEmails[u.UserEmail] {
			continue
		}
		kept = append(kept, u)
	}
	return kept, len(batch) - len(kept), nil
}

// hashPasswords generates and hashes one password per user concurrently.
// It returns the clear-text passwords in batch order.
func (f *ImportFlowImpl) hashPasswords(ctx context.Context, batch []*models.User) ([]string, error) {
	passwords := make([]string, len(batch))
	if len(batch) == 0 {
		return passwords, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(batch))
	for i, u := range batch {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			password, err := utils.RandomPassword(f.settings.PasswordLength)
			if err != nil {
				return err
			}
			hashed, err := bcrypt.GenerateFromPassword([]byte(password), f.settings.HashCost)
			if err != nil {
				return fmt.Errorf("failed to hash password for %s: %w", u.Username, err)
			}
			passwords[i] = password
			u.Password = string(hashed)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return passwords, nil
}

// fail builds the partial-import error; rows not committed count as skipped
func (f *ImportFlowImpl) fail(ctx context.Context, req *dto.ImportRequest, metadata *ClientMetadata, action string, summary *dto.ImportSummary, batchNo int, cause error, started, readDone time.Time) error {
	log.Printf("Import batch %d failed: %v", batchNo, cause)

	partial := *summary
	partial.SkippedRows = partial.TotalRows - partial.ProcessedRows
	partial.Timing = timing(started, readDone)

	ie := &ImportError{
		Summary:     partial,
		FailedBatch: batchNo,
		Err:         fmt.Errorf("%w: %v", ErrImportBatchFailed, cause),
	}
	errMsg := ie.Error()
	f.audit(ctx, req, metadata, action, &partial, &errMsg)
	return ie
}

func (f *ImportFlowImpl) audit(ctx context.Context, req *dto.ImportRequest, metadata *ClientMetadata, action string, summary *dto.ImportSummary, errMsg *string) {
	var actor *uint
	filename := ""
	if req != nil {
		filename = req.OriginalFilename
		if req.ActorID != 0 {
			actor = utils.ToPtr(req.ActorID)
		}
	}
	msg := fmt.Sprintf("Imported %d of %d rows from %s (%d skipped, %d batches)",
		summary.ProcessedRows, summary.TotalRows, filename, summary.SkippedRows, summary.Batches)
	recordAudit(ctx, f.auditRepo, actor, action, msg, errMsg == nil, errMsg, metadata)
}

func leadFromRow(t *sheetTable, row []string, today time.Time) (*models.Lead, bool) {
	lead := &models.Lead{
		FirstName:     t.cell(row, colFirstName),
		LastName:      t.cell(row, colLastName),
		EmailID:       t.cell(row, colEmail),
		ContactNumber: t.cell(row, colContactNumber),
		CallStatus:    t.cell(row, colCallStatus),
		Remarks:       t.cell(row, colRemarks),
		PostingDate:   parseSheetDate(t.cell(row, colPostingDate)),
		FollowUp:      t.cell(row, colFollowUp),
		ProductName:   t.cell(row, colProductName),
		UnitType:      t.cell(row, colUnitType),
		Budget:        t.cell(row, colBudget),
		CallBy:        t.cell(row, colCallBy),
		AssignTL:      t.cell(row, colAssignTL),
		SubmitOn:      parseSheetDate(t.cell(row, colSubmitOn)),
	}
	if lead.FirstName == "" || lead.LastName == "" || lead.ContactNumber == "" || lead.CallBy == "" {
		return nil, false
	}
	if lead.PostingDate == nil {
		lead.PostingDate = utils.ToPtr(today)
	}
	if lead.SubmitOn == nil {
		lead.SubmitOn = utils.ToPtr(today)
	}
	return lead, true
}

func userFromRow(t *sheetTable, row []string) (*models.User, bool) {
	user := &models.User{
		FullName:  t.cell(row, colFullName),
		Username:  t.cell(row, colUsername),
		UserEmail: strings.ToLower(t.cell(row, colEmail)),
		UserType:  strings.ToLower(t.cell(row, colUserType)),
		TLName:    trimPtr(t.cell(row, colTLName)),
	}
	if user.FullName == "" || user.Username == "" || user.UserEmail == "" || !strings.Contains(user.UserEmail, "@") {
		return nil, false
	}
	switch user.UserType {
	case "":
		user.UserType = models.UserTypeAgent
	case models.UserTypeAdmin, models.UserTypeTL, models.UserTypeAgent:
	default:
		return nil, false
	}
	return user, true
}

func timing(started, readDone time.Time) dto.ImportTiming {
	now := time.Now()
	return dto.ImportTiming{
		ReadMs:    readDone.Sub(started).Milliseconds(),
		ProcessMs: now.Sub(readDone).Milliseconds(),
		TotalMs:   now.Sub(started).Milliseconds(),
	}
}

func removeUpload(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Println("Failed to remove upload", path, err)
	}
}
