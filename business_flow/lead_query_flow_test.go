package businessflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amirphl/leaddesk/app/dto"
	"github.com/amirphl/leaddesk/models"
	"github.com/amirphl/leaddesk/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubLeadRepo scripts the listing calls the tiered query makes
type stubLeadRepo struct {
	repository.LeadRepository

	total        int64
	byFilterErrs []error
	detailedErr  error
	slowFast     bool

	byFilterCalls int
	detailedCalls int
	lastFilter    models.LeadFilter
	lastLimit     int
	lastOffset    int
}

func (s *stubLeadRepo) Count(ctx context.Context, filter models.LeadFilter) (int64, error) {
	s.lastFilter = filter
	return s.total, nil
}

func (s *stubLeadRepo) ByFilter(ctx context.Context, filter models.LeadFilter, orderBy string, limit, offset int) ([]*models.Lead, error) {
	call := s.byFilterCalls
	s.byFilterCalls++
	s.lastLimit, s.lastOffset = limit, offset

	if call == 0 && s.slowFast {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if call < len(s.byFilterErrs) && s.byFilterErrs[call] != nil {
		return nil, s.byFilterErrs[call]
	}
	return []*models.Lead{{ID: 7, CallBy: "alice"}}, nil
}

func (s *stubLeadRepo) ListWithLastCall(ctx context.Context, filter models.LeadFilter, limit, offset int) ([]*models.LeadWithLastCall, error) {
	s.detailedCalls++
	if s.detailedErr != nil {
		return nil, s.detailedErr
	}
	doneBy := "carol"
	return []*models.LeadWithLastCall{{Lead: models.Lead{ID: 7}, LastCallDoneBy: &doneBy}}, nil
}

type stubUserRepo struct {
	repository.UserRepository
	teams map[string][]string
}

func (s *stubUserRepo) UsernamesByTL(ctx context.Context, tlName string) ([]string, error) {
	return s.teams[tlName], nil
}

func TestLeadQueryFlowTiers(t *testing.T) {
	ctx := context.Background()

	t.Run("FastTier", func(t *testing.T) {
		repo := &stubLeadRepo{total: 21}
		flow := NewLeadQueryFlow(repo, &stubUserRepo{}, time.Second)

		res, err := flow.ListLeads(ctx, &dto.LeadListRequest{Status: models.PendingStatus(), Page: 3, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, QueryTypeFast, res.QueryType)
		assert.Empty(t, res.Note)
		assert.Equal(t, "PENDING", res.StatusMode)
		assert.Equal(t, 0, repo.detailedCalls)
		assert.Equal(t, 10, repo.lastLimit)
		assert.Equal(t, 20, repo.lastOffset)
		assert.Equal(t, int64(21), res.Pagination.TotalItems)
		assert.Equal(t, 3, res.Pagination.TotalPages)
		assert.False(t, res.Pagination.HasNextPage)
		require.Len(t, res.Data, 1)
		assert.Nil(t, res.Data[0].LastCallDoneAt)
	})

	t.Run("TimeoutEscalatesToDetailed", func(t *testing.T) {
		repo := &stubLeadRepo{total: 1, slowFast: true}
		flow := NewLeadQueryFlow(repo, &stubUserRepo{}, 10*time.Millisecond)

		res, err := flow.ListLeads(ctx, &dto.LeadListRequest{Status: models.AllStatuses()})
		require.NoError(t, err)
		assert.Equal(t, QueryTypeDetailed, res.QueryType)
		require.Len(t, res.Data, 1)
		require.NotNil(t, res.Data[0].LastCallDoneBy)
		assert.Equal(t, "carol", *res.Data[0].LastCallDoneBy)
	})

	t.Run("FastErrorEscalatesToDetailed", func(t *testing.T) {
		repo := &stubLeadRepo{total: 1, byFilterErrs: []error{errors.New("connection reset")}}
		flow := NewLeadQueryFlow(repo, &stubUserRepo{}, time.Second)

		res, err := flow.ListLeads(ctx, &dto.LeadListRequest{})
		require.NoError(t, err)
		assert.Equal(t, QueryTypeDetailed, res.QueryType)
	})

	t.Run("BasicFallbackCarriesNote", func(t *testing.T) {
		repo := &stubLeadRepo{
			total:        1,
			byFilterErrs: []error{errors.New("boom")},
			detailedErr:  errors.New("window functions unsupported"),
		}
		flow := NewLeadQueryFlow(repo, &stubUserRepo{}, time.Second)

		res, err := flow.ListLeads(ctx, &dto.LeadListRequest{})
		require.NoError(t, err)
		assert.Equal(t, QueryTypeBasic, res.QueryType)
		assert.NotEmpty(t, res.Note)
		assert.Equal(t, 2, repo.byFilterCalls)
		assert.Equal(t, 1, repo.detailedCalls)
	})

	t.Run("AllTiersFail", func(t *testing.T) {
		repo := &stubLeadRepo{
			byFilterErrs: []error{errors.New("a"), errors.New("b")},
			detailedErr:  errors.New("c"),
		}
		flow := NewLeadQueryFlow(repo, &stubUserRepo{}, time.Second)

		_, err := flow.ListLeads(ctx, &dto.LeadListRequest{})
		require.Error(t, err)
		var be *BusinessError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, "LEAD_QUERY_FAILED", be.Code)
	})

	t.Run("StartAfterEnd", func(t *testing.T) {
		flow := NewLeadQueryFlow(&stubLeadRepo{}, &stubUserRepo{}, time.Second)
		start := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
		end := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

		_, err := flow.ListLeads(ctx, &dto.LeadListRequest{StartDate: &start, EndDate: &end})
		assert.True(t, IsStartDateAfterEndDate(err))
	})
}

func TestLeadQueryFlowForTL(t *testing.T) {
	ctx := context.Background()
	users := &stubUserRepo{teams: map[string][]string{"tl1": {"alice", "bob"}}}

	t.Run("ScopesToTeam", func(t *testing.T) {
		repo := &stubLeadRepo{total: 1}
		flow := NewLeadQueryFlow(repo, users, time.Second)

		res, err := flow.ListLeadsForTL(ctx, &dto.TLLeadsRequest{TLName: " tl1 ", Status: models.PendingStatus()})
		require.NoError(t, err)
		assert.Equal(t, "tl1", res.TLName)
		assert.Equal(t, []string{"alice", "bob"}, res.Agents)
		assert.Equal(t, []string{"alice", "bob"}, repo.lastFilter.CallByIn)
		assert.Equal(t, models.StatusPending, repo.lastFilter.Status.Mode)
	})

	t.Run("EmptyTeam", func(t *testing.T) {
		flow := NewLeadQueryFlow(&stubLeadRepo{}, users, time.Second)

		_, err := flow.ListLeadsForTL(ctx, &dto.TLLeadsRequest{TLName: "ghost"})
		assert.True(t, IsTeamLeadNotFound(err))
	})

	t.Run("MissingName", func(t *testing.T) {
		flow := NewLeadQueryFlow(&stubLeadRepo{}, users, time.Second)

		_, err := flow.ListLeadsForTL(ctx, &dto.TLLeadsRequest{})
		require.Error(t, err)
	})
}
