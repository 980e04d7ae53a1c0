package businessflow

import (
	"context"
	"testing"

	"github.com/amirphl/leaddesk/app/dto"
	"github.com/amirphl/leaddesk/models"
	"github.com/amirphl/leaddesk/repository"
	testingutil "github.com/amirphl/leaddesk/testing"
	"github.com/amirphl/leaddesk/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeadFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		leadRepo := repository.NewLeadRepository(testDB.DB)
		historyRepo := repository.NewCallHistoryRepository(testDB.DB)
		userRepo := repository.NewUserRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := NewLeadFlow(leadRepo, historyRepo, userRepo, nil, "", testDB.DB)
		ctx := context.Background()

		_, err := fixtures.CreateTestUser("bo", models.UserTypeTL, "")
		require.NoError(t, err)
		_, err = fixtures.CreateTestUser("ann", models.UserTypeAgent, "bo")
		require.NoError(t, err)
		_, err = fixtures.CreateTestUser("cy", models.UserTypeAgent, "")
		require.NoError(t, err)

		var created *models.Lead
		t.Run("CreateDefaultsDates", func(t *testing.T) {
			created, err = flow.CreateLead(ctx, &dto.CreateLeadRequest{
				FirstName: " Rahul ", LastName: "Sharma", ContactNumber: "9876543210", CallBy: "ann", ProductName: "Skyline Towers",
			})
			require.NoError(t, err)
			assert.Equal(t, "Rahul", created.FirstName)
			require.NotNil(t, created.PostingDate)
			assert.True(t, utils.TodayUTC().Equal(created.PostingDate.UTC()))
			assert.Empty(t, created.CallStatus)
		})
		require.NotNil(t, created)

		t.Run("CreateRequiresFields", func(t *testing.T) {
			_, err := flow.CreateLead(ctx, &dto.CreateLeadRequest{FirstName: "A", LastName: "B", CallBy: "ann"})
			assert.True(t, IsLeadFieldsRequired(err))

			_, err = flow.CreateLead(ctx, &dto.CreateLeadRequest{
				FirstName: "A", LastName: "B", ContactNumber: "1", CallBy: "ann", PostingDate: "31/31/2026",
			})
			assert.True(t, IsInvalidDate(err))
		})

		t.Run("UpdateWritesHistory", func(t *testing.T) {
			status := "Interested"
			remarks := "wants sea view"
			updated, err := flow.UpdateLead(ctx, created.ID, &dto.UpdateLeadRequest{CallStatus: &status, Remarks: &remarks})
			require.NoError(t, err)
			assert.Equal(t, "Interested", updated.CallStatus)
			assert.Equal(t, "wants sea view", updated.Remarks)
			assert.Equal(t, "bo", updated.AssignTL)
			assert.Equal(t, "ann", updated.CallBy)

			rows, err := historyRepo.ByFilter(ctx, models.CallHistoryFilter{LeadID: &created.ID}, "", 0, 0)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, "Interested", rows[0].Status)
			assert.Equal(t, "ann", rows[0].CallDoneBy)
			assert.NotNil(t, rows[0].CallDoneAt)
			assert.Empty(t, rows[0].AssignTo)
		})

		t.Run("UpdateReassigns", func(t *testing.T) {
			updated, err := flow.UpdateLead(ctx, created.ID, &dto.UpdateLeadRequest{AssignedTo: "cy"})
			require.NoError(t, err)
			assert.Equal(t, "cy", updated.CallBy)
			// Untouched fields keep their values
			assert.Equal(t, "Interested", updated.CallStatus)

			rows, err := historyRepo.ByFilter(ctx, models.CallHistoryFilter{LeadID: &created.ID}, "", 1, 0)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, "updated", rows[0].Status)
			assert.Equal(t, "ann", rows[0].AssignFrom)
			assert.Equal(t, "cy", rows[0].AssignTo)
		})

		t.Run("UpdateMissingLead", func(t *testing.T) {
			_, err := flow.UpdateLead(ctx, 9999, &dto.UpdateLeadRequest{})
			assert.True(t, IsLeadNotFound(err))
		})

		t.Run("Lookup", func(t *testing.T) {
			lead, err := flow.GetLeadByContact(ctx, " 9876543210 ", "")
			require.NoError(t, err)
			assert.Equal(t, created.ID, lead.ID)

			_, err = flow.GetLeadByContact(ctx, "9876543210", "ann")
			assert.True(t, IsLeadNotFound(err))

			_, err = flow.GetLeadByContact(ctx, " ", "")
			assert.True(t, IsContactRequired(err))
		})

		t.Run("SearchAndFilter", func(t *testing.T) {
			_, err := fixtures.CreateTestLeads(3, "ann", "")
			require.NoError(t, err)

			res, err := flow.SearchLeads(ctx, &dto.SearchLeadsRequest{Name: "rah", Page: 1, Limit: 10})
			require.NoError(t, err)
			require.Len(t, res.Data, 1)
			assert.Equal(t, created.ID, res.Data[0].ID)

			_, err = flow.SearchLeads(ctx, &dto.SearchLeadsRequest{})
			assert.True(t, IsSearchCriteriaRequired(err))

			filtered, err := flow.FilterLeads(ctx, &dto.LeadFilterRequest{UnitType: "2BHK", CallBy: "ann", Limit: 2})
			require.NoError(t, err)
			assert.Len(t, filtered.Data, 2)
			assert.Equal(t, int64(3), filtered.Pagination.TotalItems)
		})

		t.Run("AgentDashboard", func(t *testing.T) {
			dash, err := flow.AgentDashboard(ctx, "ann")
			require.NoError(t, err)
			assert.Equal(t, int64(3), dash.TotalLeads)
			assert.Equal(t, int64(3), dash.Pending)
			assert.Zero(t, dash.CallingDone)
			assert.Empty(t, dash.StatusDistribution)

			dash, err = flow.AgentDashboard(ctx, "cy")
			require.NoError(t, err)
			assert.Equal(t, int64(1), dash.CallingDone)
			require.Len(t, dash.CallingDoneByDate, 1)
			assert.Equal(t, utils.TodayUTC().Format(utils.DateLayout), dash.CallingDoneByDate[0].Day)
		})

		t.Run("Delete", func(t *testing.T) {
			require.NoError(t, flow.DeleteLead(ctx, created.ID))
			assert.True(t, IsLeadNotFound(flow.DeleteLead(ctx, created.ID)))

			_, err := flow.GetLead(ctx, created.ID)
			assert.True(t, IsLeadNotFound(err))

			// History survives the lead
			count, err := historyRepo.Count(ctx, models.CallHistoryFilter{LeadID: &created.ID})
			require.NoError(t, err)
			assert.Equal(t, int64(2), count)
		})

		return nil
	})
	require.NoError(t, err)
}
