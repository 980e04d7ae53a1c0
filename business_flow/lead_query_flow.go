package businessflow

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/amirphl/leaddesk/app/dto"
	"github.com/amirphl/leaddesk/models"
	"github.com/amirphl/leaddesk/repository"
	"github.com/amirphl/leaddesk/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Query tiers reported with every lead listing
const (
	QueryTypeFast     = "fast"
	QueryTypeDetailed = "detailed"
	QueryTypeBasic    = "basic"
)

const basicTierNote = "Detailed query failed; showing basic results which may be incomplete"

var leadQueryTierTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "lead_query_tier_total",
		Help: "Lead listings served per query tier",
	},
	[]string{"tier"},
)

// LeadQueryFlow lists leads with a degrading query strategy
type LeadQueryFlow interface {
	ListLeads(ctx context.Context, req *dto.LeadListRequest) (*dto.LeadListResponse, error)
	ListLeadsForTL(ctx context.Context, req *dto.TLLeadsRequest) (*dto.TLLeadsResponse, error)
}

// LeadQueryFlowImpl implements the lead listing business flow
type LeadQueryFlowImpl struct {
	leadRepo    repository.LeadRepository
	userRepo    repository.UserRepository
	fastTimeout time.Duration
}

// NewLeadQueryFlow creates a new lead query flow; a non-positive timeout uses utils.FastQueryTimeout
func NewLeadQueryFlow(leadRepo repository.LeadRepository, userRepo repository.UserRepository, fastTimeout time.Duration) LeadQueryFlow {
	if fastTimeout <= 0 {
		fastTimeout = utils.FastQueryTimeout
	}
	return &LeadQueryFlowImpl{
		leadRepo:    leadRepo,
		userRepo:    userRepo,
		fastTimeout: fastTimeout,
	}
}

// tieredPage is the outcome of one degrading listing
type tieredPage struct {
	rows      []*models.LeadWithLastCall
	total     int64
	queryType string
	note      string
}

// ListLeads returns one page of leads matching the filters
func (f *LeadQueryFlowImpl) ListLeads(ctx context.Context, req *dto.LeadListRequest) (*dto.LeadListResponse, error) {
	if req == nil {
		return nil, NewBusinessError("VALIDATION_ERROR", "Request is required", nil)
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
	params := dto.ComputeOffset(req.Page, req.Limit)

	page, err := f.queryTiered(ctx, filter, params)
	if err != nil {
		return nil, err
	}

	env := dto.BuildPageEnvelope(page.rows, page.total, params.Page, params.Limit)
	return &dto.LeadListResponse{
		Data:       env.Data,
		Pagination: env.Pagination,
		QueryType:  page.queryType,
		Note:       page.note,
		StatusMode: req.Status.Mode.String(),
	}, nil
}

// ListLeadsForTL lists leads owned by any agent whose tl_name is req.TLName
func (f *LeadQueryFlowImpl) ListLeadsForTL(ctx context.Context, req *dto.TLLeadsRequest) (*dto.TLLeadsResponse, error) {
	if req == nil || strings.TrimSpace(req.TLName) == "" {
		return nil, NewBusinessError("VALIDATION_ERROR", "TL name is required", nil)
	}
	tlName := strings.TrimSpace(req.TLName)

	agents, err := f.userRepo.UsernamesByTL(ctx, tlName)
	if err != nil {
		return nil, NewBusinessError("TEAM_LOOKUP_FAILED", "Failed to load team members", err)
	}
	// An empty IN list would drop the owner predicate entirely
	if len(agents) == 0 {
		return nil, NewBusinessError("TEAM_HAS_NO_AGENTS", "No users found under this TL", ErrTeamLeadNotFound)
	}

	rng, err := dateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, NewBusinessError("LEAD_FILTER_INVALID", "Invalid date range", err)
	}

	filter := models.LeadFilter{
		CallByIn:       agents,
		Status:         req.Status,
		CreatedBetween: rng,
	}
	params := dto.ComputeOffset(req.Page, req.Limit)

	page, err := f.queryTiered(ctx, filter, params)
	if err != nil {
		return nil, err
	}

	env := dto.BuildPageEnvelope(page.rows, page.total, params.Page, params.Limit)
	return &dto.TLLeadsResponse{
		TLName:     tlName,
		Agents:     agents,
		Data:       env.Data,
		Pagination: env.Pagination,
		QueryType:  page.queryType,
		Note:       page.note,
	}, nil
}

// queryTiered counts the matches, then tries the plain query under the fast deadline,
// the enriched query, and finally the plain query without a deadline.
func (f *LeadQueryFlowImpl) queryTiered(ctx context.Context, filter models.LeadFilter, params dto.PageParams) (*tieredPage, error) {
	total, err := f.leadRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("LEAD_COUNT_FAILED", "Failed to count leads", err)
	}

	fastCtx, cancel := context.WithTimeout(ctx, f.fastTimeout)
	leads, err := f.leadRepo.ByFilter(fastCtx, filter, "", params.Limit, params.Offset)
	cancel()
	if err == nil {
		leadQueryTierTotal.WithLabelValues(QueryTypeFast).Inc()
		return &tieredPage{rows: withoutLastCall(leads), total: total, queryType: QueryTypeFast}, nil
	}
	if ctx.Err() != nil {
		return nil, NewBusinessError("LEAD_QUERY_FAILED", "Failed to list leads", ctx.Err())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		log.Printf("fast lead query exceeded %s, trying detailed query", f.fastTimeout)
	} else {
		log.Printf("fast lead query failed, trying detailed query: %v", err)
	}

	detailed, err := f.leadRepo.ListWithLastCall(ctx, filter, params.Limit, params.Offset)
	if err == nil {
		leadQueryTierTotal.WithLabelValues(QueryTypeDetailed).Inc()
		return &tieredPage{rows: detailed, total: total, queryType: QueryTypeDetailed}, nil
	}
	if ctx.Err() != nil {
		return nil, NewBusinessError("LEAD_QUERY_FAILED", "Failed to list leads", ctx.Err())
	}
	log.Printf("detailed lead query failed, falling back to basic query: %v", err)

	leads, err = f.leadRepo.ByFilter(ctx, filter, "", params.Limit, params.Offset)
	if err != nil {
		return nil, NewBusinessError("LEAD_QUERY_FAILED", "Failed to list leads", err)
	}
	leadQueryTierTotal.WithLabelValues(QueryTypeBasic).Inc()
	return &tieredPage{rows: withoutLastCall(leads), total: total, queryType: QueryTypeBasic, note: basicTierNote}, nil
}

func withoutLastCall(leads []*models.Lead) []*models.LeadWithLastCall {
	out := make([]*models.LeadWithLastCall, 0, len(leads))
	for _, l := range leads {
		out = append(out, &models.LeadWithLastCall{Lead: *l})
	}
	return out
}
