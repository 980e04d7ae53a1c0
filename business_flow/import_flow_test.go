package businessflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/amirphl/leaddesk/app/dto"
	"github.com/amirphl/leaddesk/models"
	"github.com/amirphl/leaddesk/repository"
	testingutil "github.com/amirphl/leaddesk/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"
)

// flakyLeadRepo fails the failOn-th SaveBatch call and delegates everything else
type flakyLeadRepo struct {
	repository.LeadRepository
	failOn int
	calls  int
}

func (r *flakyLeadRepo) SaveBatch(ctx context.Context, leads []*models.Lead) error {
	r.calls++
	if r.calls == r.failOn {
		return errors.New("deadlock detected")
	}
	return r.LeadRepository.SaveBatch(ctx, leads)
}

func writeCSV(t *testing.T, name string, lines []string) *dto.ImportRequest {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))
	info, err := os.Stat(path)
	require.NoError(t, err)
	return &dto.ImportRequest{OriginalFilename: name, Path: path, Size: info.Size()}
}

func leadLines(n int) []string {
	lines := []string{"First Name*,Last Name*,Email ID,Contact Number*,Call Status,Posting Date,Call By*,Product Name"}
	for i := range n {
		lines = append(lines, fmt.Sprintf("First%d,Last%d,lead%d@example.com,98%08d,,2026-02-03,alice,Skyline Towers", i, i, i, i))
	}
	return lines
}

func TestImportLeads(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		leadRepo := repository.NewLeadRepository(testDB.DB)
		userRepo := repository.NewUserRepository(testDB.DB)
		auditRepo := repository.NewAuditLogRepository(testDB.DB)
		ctx := context.Background()

		t.Run("BatchesOfHundred", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())
			flow := NewImportFlow(leadRepo, userRepo, auditRepo, testDB.DB, ImportSettings{BatchSize: 100})
			req := writeCSV(t, "leads.csv", leadLines(250))

			summary, err := flow.ImportLeads(ctx, req, nil)
			require.NoError(t, err)
			assert.Equal(t, 250, summary.TotalRows)
			assert.Equal(t, 250, summary.ProcessedRows)
			assert.Equal(t, 0, summary.SkippedRows)
			assert.Equal(t, 3, summary.Batches)

			count, err := leadRepo.Count(ctx, models.LeadFilter{})
			require.NoError(t, err)
			assert.Equal(t, int64(250), count)

			// The staged upload is removed once the import finishes
			_, statErr := os.Stat(req.Path)
			assert.True(t, os.IsNotExist(statErr))
		})

		t.Run("FailingBatchKeepsEarlierBatches", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())
			flaky := &flakyLeadRepo{LeadRepository: leadRepo, failOn: 2}
			flow := NewImportFlow(flaky, userRepo, auditRepo, testDB.DB, ImportSettings{BatchSize: 100})

			_, err := flow.ImportLeads(ctx, writeCSV(t, "leads.csv", leadLines(250)), nil)
			require.Error(t, err)
			assert.True(t, IsImportBatchFailed(err))

			ie, ok := AsImportError(err)
			require.True(t, ok)
			assert.Equal(t, 2, ie.FailedBatch)
			assert.Equal(t, 250, ie.Summary.TotalRows)
			assert.Equal(t, 100, ie.Summary.ProcessedRows)
			assert.Equal(t, 150, ie.Summary.SkippedRows)
			assert.Equal(t, 1, ie.Summary.Batches)

			count, err := leadRepo.Count(ctx, models.LeadFilter{})
			require.NoError(t, err)
			assert.Equal(t, int64(100), count)
		})

		t.Run("InvalidAndBlankRows", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())
			flow := NewImportFlow(leadRepo, userRepo, auditRepo, testDB.DB, ImportSettings{})
			req := writeCSV(t, "leads.csv", []string{
				"firstname,lastname,contactnumber,callby,postingdate",
				"Ann,Lee,9000000001,alice,not-a-date",
				",Missing,9000000002,alice,",
				",,,,",
				"Bo,Kim,9000000003,bob,03/02/2026",
			})

			summary, err := flow.ImportLeads(ctx, req, nil)
			require.NoError(t, err)
			assert.Equal(t, 3, summary.TotalRows)
			assert.Equal(t, 2, summary.ProcessedRows)
			assert.Equal(t, 1, summary.SkippedRows)

			contact := "9000000001"
			leads, err := leadRepo.ByFilter(ctx, models.LeadFilter{ContactNumber: &contact}, "", 0, 0)
			require.NoError(t, err)
			require.Len(t, leads, 1)
			require.NotNil(t, leads[0].PostingDate)
			assert.Empty(t, leads[0].CallStatus)
		})

		t.Run("MissingColumn", func(t *testing.T) {
			flow := NewImportFlow(leadRepo, userRepo, auditRepo, testDB.DB, ImportSettings{})
			_, err := flow.ImportLeads(ctx, writeCSV(t, "leads.csv", []string{"firstname,lastname,callby", "A,B,alice"}), nil)
			assert.True(t, IsImportMissingColumn(err))
		})

		t.Run("NoRows", func(t *testing.T) {
			flow := NewImportFlow(leadRepo, userRepo, auditRepo, testDB.DB, ImportSettings{})
			_, err := flow.ImportLeads(ctx, writeCSV(t, "leads.csv", leadLines(0)), nil)
			assert.True(t, IsImportNoRows(err))
		})

		t.Run("UnsupportedExtension", func(t *testing.T) {
			flow := NewImportFlow(leadRepo, userRepo, auditRepo, testDB.DB, ImportSettings{})
			_, err := flow.ImportLeads(ctx, writeCSV(t, "leads.txt", leadLines(1)), nil)
			assert.True(t, IsImportUnsupported(err))
		})

		t.Run("TooLarge", func(t *testing.T) {
			flow := NewImportFlow(leadRepo, userRepo, auditRepo, testDB.DB, ImportSettings{MaxFileSize: 64})
			_, err := flow.ImportLeads(ctx, writeCSV(t, "leads.csv", leadLines(10)), nil)
			assert.True(t, IsImportFileTooLarge(err))
		})

		t.Run("XLSX", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())
			xl := excelize.NewFile()
			rows := [][]any{
				{"First Name*", "Last Name*", "Contact Number*", "Call By*", "Call Status"},
				{"Cy", "Ray", "9111111111", "alice", "Interested"},
			}
			for i, row := range rows {
				cell, err := excelize.CoordinatesToCellName(1, i+1)
				require.NoError(t, err)
				require.NoError(t, xl.SetSheetRow("Sheet1", cell, &row))
			}
			path := filepath.Join(t.TempDir(), "leads.xlsx")
			require.NoError(t, xl.SaveAs(path))

			flow := NewImportFlow(leadRepo, userRepo, auditRepo, testDB.DB, ImportSettings{})
			summary, err := flow.ImportLeads(ctx, &dto.ImportRequest{OriginalFilename: "leads.xlsx", Path: path}, nil)
			require.NoError(t, err)
			assert.Equal(t, 1, summary.ProcessedRows)

			count, err := leadRepo.Count(ctx, models.LeadFilter{Status: models.ExactStatus("Interested")})
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestImportUsers(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		leadRepo := repository.NewLeadRepository(testDB.DB)
		userRepo := repository.NewUserRepository(testDB.DB)
		auditRepo := repository.NewAuditLogRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := context.Background()

		existing, err := fixtures.CreateTestUser("taken", models.UserTypeAgent, "")
		require.NoError(t, err)

		flow := NewImportFlow(leadRepo, userRepo, auditRepo, testDB.DB, ImportSettings{
			BatchSize:      2,
			PasswordLength: 12,
			HashCost:       bcrypt.MinCost,
		})
		req := writeCSV(t, "users.csv", []string{
			"Full Name,Username,Email,User Type,TL Name",
			"Ann Lee,ann,Ann@Example.com,,",
			"Bo Kim,bo,bo@example.com,tl,",
			"Dup Name,taken,fresh@example.com,,",
			"Again,ann,again@example.com,,",
			"Bad Type,cy,cy@example.com,owner,",
			"No Mail,dy,,,",
			"Eve,eve,eve@example.com,user,bo",
		})

		resp, err := flow.ImportUsers(ctx, req, nil)
		require.NoError(t, err)
		assert.Equal(t, 7, resp.TotalRows)
		assert.Equal(t, 3, resp.ProcessedRows)
		assert.Equal(t, 4, resp.SkippedRows)
		assert.NotEmpty(t, resp.Notice)
		require.Len(t, resp.Credentials, 3)

		for _, cred := range resp.Credentials {
			assert.Len(t, cred.Password, 12)
			stored, err := userRepo.ByUsername(ctx, cred.Username)
			require.NoError(t, err)
			require.NotNil(t, stored)
			assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte(cred.Password)))
		}

		ann, err := userRepo.ByUsername(ctx, "ann")
		require.NoError(t, err)
		assert.Equal(t, "ann@example.com", ann.UserEmail)
		assert.Equal(t, models.UserTypeAgent, ann.UserType)

		eve, err := userRepo.ByUsername(ctx, "eve")
		require.NoError(t, err)
		require.NotNil(t, eve.TLName)
		assert.Equal(t, "bo", *eve.TLName)

		// The pre-existing account keeps its password
		stillTaken, err := userRepo.ByUsername(ctx, existing.Username)
		require.NoError(t, err)
		assert.Equal(t, existing.Password, stillTaken.Password)

		return nil
	})
	require.NoError(t, err)
}

func TestImportUsersUsernameLooksLikeEmail(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		leadRepo := repository.NewLeadRepository(testDB.DB)
		userRepo := repository.NewUserRepository(testDB.DB)
		auditRepo := repository.NewAuditLogRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := context.Background()

		// Stored username spelled like an incoming email
		_, err := fixtures.CreateTestUser("lee@example.com", models.UserTypeAgent, "")
		require.NoError(t, err)

		flow := NewImportFlow(leadRepo, userRepo, auditRepo, testDB.DB, ImportSettings{
			BatchSize:      10,
			PasswordLength: 12,
			HashCost:       bcrypt.MinCost,
		})
		req := writeCSV(t, "users.csv", []string{
			"Full Name,Username,Email",
			"Kim One,kim@example.com,kim.one@example.com",
			"Kim Two,kim,kim@example.com",
			"Lee,lee,lee@example.com",
		})

		resp, err := flow.ImportUsers(ctx, req, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, resp.ProcessedRows)
		assert.Zero(t, resp.SkippedRows)

		for _, username := range []string{"kim@example.com", "kim", "lee"} {
			stored, err := userRepo.ByUsername(ctx, username)
			require.NoError(t, err)
			assert.NotNil(t, stored, username)
		}
		return nil
	})
	require.NoError(t, err)
}
