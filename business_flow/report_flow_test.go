package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/leaddesk/models"
	"github.com/amirphl/leaddesk/repository"
	testingutil "github.com/amirphl/leaddesk/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNestDailyCompletion(t *testing.T) {
	rows := []models.DailyCompletionRow{
		{Day: "2026-03-02", TLUsername: "bo", TLFullName: "Bo Kim", Username: "ann", FullName: "Ann Lee", CompletedCnt: 4},
		{Day: "2026-03-02", TLUsername: "bo", TLFullName: "Bo Kim", Username: "cy", FullName: "Cy Ray", CompletedCnt: 1},
		{Day: "2026-03-02", TLUsername: "di", TLFullName: "Di Fox", Username: "ed", FullName: "Ed Po", CompletedCnt: 2},
		{Day: "2026-03-01", TLUsername: "bo", TLFullName: "Bo Kim", Username: "ann", FullName: "Ann Lee", CompletedCnt: 3},
	}

	days := nestDailyCompletion(rows)
	require.Len(t, days, 2)

	assert.Equal(t, "2026-03-02", days[0].Date)
	assert.Equal(t, int64(7), days[0].TotalCalls)
	require.Len(t, days[0].TLs, 2)
	assert.Equal(t, "bo", days[0].TLs[0].TLUsername)
	assert.Equal(t, int64(5), days[0].TLs[0].TotalCalls)
	require.Len(t, days[0].TLs[0].Users, 2)
	assert.Equal(t, "cy", days[0].TLs[0].Users[1].Username)
	assert.Equal(t, int64(2), days[0].TLs[1].TotalCalls)

	assert.Equal(t, "2026-03-01", days[1].Date)
	assert.Equal(t, int64(3), days[1].TotalCalls)
	require.Len(t, days[1].TLs, 1)

	assert.Empty(t, nestDailyCompletion(nil))
	assert.NotNil(t, nestDailyCompletion(nil))
}

func TestReportFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		leadRepo := repository.NewLeadRepository(testDB.DB)
		historyRepo := repository.NewCallHistoryRepository(testDB.DB)
		userRepo := repository.NewUserRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := NewReportFlow(leadRepo, historyRepo, userRepo)
		ctx := context.Background()

		tl, err := fixtures.CreateTestUser("bo", models.UserTypeTL, "")
		require.NoError(t, err)
		_, err = fixtures.CreateTestUser("ann", models.UserTypeAgent, "bo")
		require.NoError(t, err)
		_, err = fixtures.CreateTestUser("cy", models.UserTypeAgent, "bo")
		require.NoError(t, err)
		agent, err := fixtures.CreateTestUser("solo", models.UserTypeAgent, "")
		require.NoError(t, err)

		leads, err := fixtures.CreateTestLeads(3, "ann", "Interested")
		require.NoError(t, err)
		for _, lead := range leads {
			lead.AssignTL = "bo"
			require.NoError(t, leadRepo.Update(ctx, lead))
		}
		_, err = fixtures.CreateTestLeads(1, "cy", "")
		require.NoError(t, err)

		day1 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		day2 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
		for _, at := range []time.Time{day1, day2, day2.Add(time.Hour)} {
			_, err = fixtures.CreateTestCall(leads[0].ID, "ann", "Interested", at)
			require.NoError(t, err)
		}
		_, err = fixtures.CreateTestCall(leads[1].ID, "cy", "Busy", day2)
		require.NoError(t, err)
		// Agents without a team lead never appear in the report
		_, err = fixtures.CreateTestCall(leads[1].ID, "solo", "Busy", day2)
		require.NoError(t, err)
		// Outside the requested range
		_, err = fixtures.CreateTestCall(leads[2].ID, "ann", "Busy", day2.AddDate(0, 0, 1))
		require.NoError(t, err)

		t.Run("DailyCompletion", func(t *testing.T) {
			start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
			end := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
			res, err := flow.DailyCompletion(ctx, &start, &end)
			require.NoError(t, err)
			assert.Equal(t, "2026-03-01", res.StartDate)
			assert.Equal(t, "2026-03-02", res.EndDate)

			require.Len(t, res.Days, 2)
			assert.Equal(t, "2026-03-02", res.Days[0].Date)
			assert.Equal(t, int64(3), res.Days[0].TotalCalls)
			require.Len(t, res.Days[0].TLs, 1)
			assert.Equal(t, "bo", res.Days[0].TLs[0].TLUsername)
			require.Len(t, res.Days[0].TLs[0].Users, 2)
			assert.Equal(t, "ann", res.Days[0].TLs[0].Users[0].Username)
			assert.Equal(t, int64(2), res.Days[0].TLs[0].Users[0].Calls)

			assert.Equal(t, "2026-03-01", res.Days[1].Date)
			assert.Equal(t, int64(1), res.Days[1].TotalCalls)
		})

		t.Run("DailyCompletionRejectsReversedRange", func(t *testing.T) {
			start := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
			end := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
			_, err := flow.DailyCompletion(ctx, &start, &end)
			assert.True(t, IsStartDateAfterEndDate(err))
		})

		t.Run("ListTeamLeads", func(t *testing.T) {
			tls, err := flow.ListTeamLeads(ctx)
			require.NoError(t, err)
			require.Len(t, tls, 1)
			assert.Equal(t, "bo", tls[0].Username)
		})

		t.Run("TeamMembers", func(t *testing.T) {
			res, err := flow.TeamMembers(ctx, tl.ID)
			require.NoError(t, err)
			assert.Equal(t, "bo", res.TL.Username)
			require.Len(t, res.Members, 2)
			assert.Equal(t, "ann", res.Members[0].Username)
			assert.Equal(t, "cy", res.Members[1].Username)

			_, err = flow.TeamMembers(ctx, agent.ID)
			assert.True(t, IsTeamLeadNotFound(err))
		})

		t.Run("TeamPerformance", func(t *testing.T) {
			res, err := flow.TeamPerformance(ctx, tl.ID, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, int64(3), res.TotalLeads)
			require.Len(t, res.StatusDistribution, 1)
			assert.Equal(t, "Interested", res.StatusDistribution[0].CallStatus)
			require.Len(t, res.Members, 2)
			assert.Equal(t, models.MemberPerformance{Username: "ann", TotalLeads: 3, CallsCompleted: 3}, res.Members[0])
			assert.Equal(t, models.MemberPerformance{Username: "cy", TotalLeads: 1}, res.Members[1])
			assert.Empty(t, res.StartDate)
		})

		return nil
	})
	require.NoError(t, err)
}
