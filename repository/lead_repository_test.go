package repository_test

import (
	"testing"
	"time"

	"github.com/amirphl/leaddesk/models"
	"github.com/amirphl/leaddesk/repository"
	testingutil "github.com/amirphl/leaddesk/testing"
	"github.com/amirphl/leaddesk/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeadRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewLeadRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		pending, err := fixtures.CreateTestLeads(3, "alice", "")
		require.NoError(t, err)
		interested, err := fixtures.CreateTestLeads(2, "alice", "Interested")
		require.NoError(t, err)
		_, err = fixtures.CreateTestLeads(4, "bob", "Not Reachable")
		require.NoError(t, err)

		alice := "alice"

		t.Run("StatusModes", func(t *testing.T) {
			count, err := repo.Count(ctx, models.LeadFilter{CallBy: &alice, Status: models.AllStatuses()})
			require.NoError(t, err)
			assert.Equal(t, int64(5), count)

			count, err = repo.Count(ctx, models.LeadFilter{CallBy: &alice, Status: models.PendingStatus()})
			require.NoError(t, err)
			assert.Equal(t, int64(3), count)

			count, err = repo.Count(ctx, models.LeadFilter{CallBy: &alice, Status: models.ExactStatus("Interested")})
			require.NoError(t, err)
			assert.Equal(t, int64(2), count)

			// An exact match on the empty string behaves like pending
			count, err = repo.Count(ctx, models.LeadFilter{Status: models.ExactStatus("")})
			require.NoError(t, err)
			assert.Equal(t, int64(3), count)
		})

		t.Run("ByFilterNewestFirst", func(t *testing.T) {
			leads, err := repo.ByFilter(ctx, models.LeadFilter{CallBy: &alice}, "", 2, 0)
			require.NoError(t, err)
			require.Len(t, leads, 2)
			assert.Equal(t, interested[1].ID, leads[0].ID)
			assert.Equal(t, interested[0].ID, leads[1].ID)

			leads, err = repo.ByFilter(ctx, models.LeadFilter{CallBy: &alice}, "", 2, 4)
			require.NoError(t, err)
			require.Len(t, leads, 1)
			assert.Equal(t, pending[0].ID, leads[0].ID)
		})

		t.Run("ProductAllIsIgnored", func(t *testing.T) {
			product := "ALL"
			count, err := repo.Count(ctx, models.LeadFilter{ProductName: &product})
			require.NoError(t, err)
			assert.Equal(t, int64(9), count)

			product = "Unknown Tower"
			count, err = repo.Count(ctx, models.LeadFilter{ProductName: &product})
			require.NoError(t, err)
			assert.Zero(t, count)
		})

		t.Run("ContactSubstring", func(t *testing.T) {
			target := pending[0].ContactNumber
			sub := target[3:7]
			leads, err := repo.ByFilter(ctx, models.LeadFilter{ContactSubstring: &sub}, "", 0, 0)
			require.NoError(t, err)
			ids := make([]uint, 0, len(leads))
			for _, l := range leads {
				ids = append(ids, l.ID)
			}
			assert.Contains(t, ids, pending[0].ID)
		})

		t.Run("CreatedBetweenIsInclusive", func(t *testing.T) {
			today := utils.TodayUTC()
			count, err := repo.Count(ctx, models.LeadFilter{CreatedBetween: &models.DateRange{Start: today, End: today}})
			require.NoError(t, err)
			assert.Equal(t, int64(9), count)

			yesterday := today.AddDate(0, 0, -1)
			count, err = repo.Count(ctx, models.LeadFilter{CreatedBetween: &models.DateRange{Start: yesterday, End: yesterday}})
			require.NoError(t, err)
			assert.Zero(t, count)
		})

		t.Run("ListWithLastCall", func(t *testing.T) {
			lead := interested[0]
			base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
			_, err := fixtures.CreateTestCall(lead.ID, "alice", "Busy", base)
			require.NoError(t, err)
			_, err = fixtures.CreateTestCall(lead.ID, "carol", "Interested", base.Add(2*time.Hour))
			require.NoError(t, err)

			// A reassignment without a call never counts as the latest call
			require.NoError(t, testDB.DB.Create(&models.CallHistory{LeadID: lead.ID, AssignFrom: "alice", AssignTo: "dave"}).Error)

			id := lead.ID
			rows, err := repo.ListWithLastCall(ctx, models.LeadFilter{ID: &id}, 10, 0)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			require.NotNil(t, rows[0].LastCallDoneAt)
			require.NotNil(t, rows[0].LastCallDoneBy)
			assert.Equal(t, "carol", *rows[0].LastCallDoneBy)
			assert.True(t, base.Add(2*time.Hour).Equal(rows[0].LastCallDoneAt.UTC()))

			// Leads without calls still appear, with no call data
			id = pending[0].ID
			rows, err = repo.ListWithLastCall(ctx, models.LeadFilter{ID: &id}, 10, 0)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Nil(t, rows[0].LastCallDoneAt)
		})

		t.Run("Distinct", func(t *testing.T) {
			statuses, err := repo.DistinctCallStatuses(ctx, "")
			require.NoError(t, err)
			assert.Equal(t, []string{"Interested", "Not Reachable"}, statuses)

			statuses, err = repo.DistinctCallStatuses(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, []string{"Interested"}, statuses)

			products, err := repo.DistinctProducts(ctx, "bob")
			require.NoError(t, err)
			assert.Equal(t, []string{"Skyline Towers"}, products)
		})

		t.Run("StatusDistribution", func(t *testing.T) {
			rows, err := repo.StatusDistribution(ctx, models.LeadFilter{})
			require.NoError(t, err)
			require.Len(t, rows, 2)
			assert.Equal(t, "Not Reachable", rows[0].CallStatus)
			assert.Equal(t, int64(4), rows[0].Count)
			assert.Equal(t, int64(2), rows[1].Count)
		})

		t.Run("UpdateAndDelete", func(t *testing.T) {
			lead := pending[1]
			lead.CallStatus = "Callback"
			lead.Remarks = "call after 6pm"
			require.NoError(t, repo.Update(ctx, lead))

			stored, err := repo.ByID(ctx, lead.ID)
			require.NoError(t, err)
			require.NotNil(t, stored)
			assert.Equal(t, "Callback", stored.CallStatus)
			assert.Equal(t, "call after 6pm", stored.Remarks)

			deleted, err := repo.Delete(ctx, lead.ID)
			require.NoError(t, err)
			assert.True(t, deleted)

			deleted, err = repo.Delete(ctx, lead.ID)
			require.NoError(t, err)
			assert.False(t, deleted)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestLeadRepositoryMemberPerformance(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewLeadRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		_, err := fixtures.CreateTestUser("lead1", models.UserTypeTL, "")
		require.NoError(t, err)
		_, err = fixtures.CreateTestUser("agent1", models.UserTypeAgent, "lead1")
		require.NoError(t, err)
		_, err = fixtures.CreateTestUser("agent2", models.UserTypeAgent, "lead1")
		require.NoError(t, err)

		_, err = fixtures.CreateTestLeads(2, "agent1", "")
		require.NoError(t, err)
		_, err = fixtures.CreateTestLeads(3, "agent1", "Interested")
		require.NoError(t, err)

		rows, err := repo.MemberPerformance(ctx, []string{"agent1", "agent2"}, nil)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, models.MemberPerformance{Username: "agent1", TotalLeads: 5, CallsCompleted: 3}, rows[0])
		assert.Equal(t, models.MemberPerformance{Username: "agent2"}, rows[1])

		rows, err = repo.MemberPerformance(ctx, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, rows)

		return nil
	})
	require.NoError(t, err)
}
