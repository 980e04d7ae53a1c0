package businessflow

import (
	"context"
	"strings"

	"github.com/amirphl/leaddesk/app/dto"
	"github.com/amirphl/leaddesk/models"
	"github.com/amirphl/leaddesk/repository"
	"github.com/amirphl/leaddesk/utils"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// LeadFlow handles lead maintenance and per-agent summaries
type LeadFlow interface {
	CreateLead(ctx context.Context, req *dto.CreateLeadRequest) (*models.Lead, error)
	UpdateLead(ctx context.Context, id uint, req *dto.UpdateLeadRequest) (*models.Lead, error)
	DeleteLead(ctx context.Context, id uint) error
	GetLead(ctx context.Context, id uint) (*models.Lead, error)
	GetLeadByContact(ctx context.Context, contactNumber, callBy string) (*models.Lead, error)
	SearchLeads(ctx context.Context, req *dto.SearchLeadsRequest) (*dto.PageEnvelope[*models.Lead], error)
	FilterLeads(ctx context.Context, req *dto.LeadFilterRequest) (*dto.PageEnvelope[*models.Lead], error)
	CallStatuses(ctx context.Context, callBy string) ([]string, error)
	Products(ctx context.Context, callBy string) ([]string, error)
	UnitTypes(ctx context.Context, callBy string) ([]string, error)
	Budgets(ctx context.Context, callBy string) ([]string, error)
	AgentDashboard(ctx context.Context, callBy string) (*dto.AgentDashboardResponse, error)
}

// LeadFlowImpl implements the lead business flow
type LeadFlowImpl struct {
	leadRepo    repository.LeadRepository
	historyRepo repository.CallHistoryRepository
	userRepo    repository.UserRepository
	rc          *redis.Client
	cachePrefix string
	db          *gorm.DB
}

// NewLeadFlow creates a new lead flow; rc may be nil to disable caching
func NewLeadFlow(
	leadRepo repository.LeadRepository,
	historyRepo repository.CallHistoryRepository,
	userRepo repository.UserRepository,
	rc *redis.Client,
	cachePrefix string,
	db *gorm.DB,
) LeadFlow {
	return &LeadFlowImpl{
		leadRepo:    leadRepo,
		historyRepo: historyRepo,
		userRepo:    userRepo,
		rc:          rc,
		cachePrefix: cachePrefix,
		db:          db,
	}
}

// CreateLead stores a new lead; posting and submit dates default to today
func (f *LeadFlowImpl) CreateLead(ctx context.Context, req *dto.CreateLeadRequest) (*models.Lead, error) {
	if err := f.validateCreateLeadRequest(req); err != nil {
		return nil, NewBusinessError("LEAD_VALIDATION_FAILED", "Lead validation failed", err)
	}

	today := utils.TodayUTC()
	postingDate := utils.ParseDatePtr(req.PostingDate)
	if postingDate == nil {
		postingDate = &today
	}
	submitOn := utils.ParseDatePtr(req.SubmitOn)
	if submitOn == nil {
		submitOn = &today
	}

	lead := &models.Lead{
		FirstName:     strings.TrimSpace(req.FirstName),
		LastName:      strings.TrimSpace(req.LastName),
		EmailID:       strings.TrimSpace(req.EmailID),
		ContactNumber: strings.TrimSpace(req.ContactNumber),
		CallStatus:    strings.TrimSpace(req.CallStatus),
		Remarks:       req.Remarks,
		PostingDate:   postingDate,
		FollowUp:      req.FollowUp,
		ProductName:   strings.TrimSpace(req.ProductName),
		UnitType:      strings.TrimSpace(req.UnitType),
		Budget:        strings.TrimSpace(req.Budget),
		CallBy:        strings.TrimSpace(req.CallBy),
		AssignTL:      strings.TrimSpace(req.AssignTL),
		SubmitOn:      submitOn,
	}

	if err := f.leadRepo.Save(ctx, lead); err != nil {
		return nil, NewBusinessError("LEAD_CREATE_FAILED", "Failed to create lead", err)
	}

	f.invalidateDashboard(ctx, lead.CallBy)
	return lead, nil
}

// UpdateLead applies the patch, stamps submiton and assign_tl, and appends a history row,
// all in one transaction.
func (f *LeadFlowImpl) UpdateLead(ctx context.Context, id uint, req *dto.UpdateLeadRequest) (*models.Lead, error) {
	if req == nil {
		return nil, NewBusinessError("VALIDATION_ERROR", "Request is required", nil)
	}

	var previousOwner string
	lead, err := f.WithLeadTransaction(ctx, func(ctx context.Context) (*models.Lead, error) {
		lead, err := f.leadRepo.ByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if lead == nil {
			return nil, ErrLeadNotFound
		}

		owner, err := f.userRepo.ByUsername(ctx, lead.CallBy)
		if err != nil {
			return nil, err
		}
		if owner == nil {
			return nil, ErrUserNotFound
		}
		previousOwner = lead.CallBy

		applyLeadPatch(lead, req)
		assignedTo := strings.TrimSpace(req.AssignedTo)
		if assignedTo != "" {
			lead.CallBy = assignedTo
		}
		lead.SubmitOn = utils.ToPtr(utils.TodayUTC())
		lead.AssignTL = utils.Deref(owner.TLName)

		if err := f.leadRepo.Update(ctx, lead); err != nil {
			return nil, err
		}

		status := "updated"
		if req.CallStatus != nil && strings.TrimSpace(*req.CallStatus) != "" {
			status = strings.TrimSpace(*req.CallStatus)
		}
		history := &models.CallHistory{
			LeadID:     lead.ID,
			AssignTo:   assignedTo,
			AssignFrom: previousOwner,
			Status:     status,
			CallDoneAt: utils.UTCNowPtr(),
			CallDoneBy: previousOwner,
		}
		if err := f.historyRepo.Save(ctx, history); err != nil {
			return nil, err
		}

		return lead, nil
	})
	if err != nil {
		return nil, NewBusinessError("LEAD_UPDATE_FAILED", "Failed to update lead", err)
	}

	f.invalidateDashboard(ctx, previousOwner, lead.CallBy)
	return lead, nil
}

// DeleteLead removes a lead; history rows are kept
func (f *LeadFlowImpl) DeleteLead(ctx context.Context, id uint) error {
	lead, err := f.leadRepo.ByID(ctx, id)
	if err != nil {
		return NewBusinessError("LEAD_DELETE_FAILED", "Failed to delete lead", err)
	}
	if lead == nil {
		return NewBusinessError("LEAD_NOT_FOUND", "Lead not found", ErrLeadNotFound)
	}

	deleted, err := f.leadRepo.Delete(ctx, id)
	if err != nil {
		return NewBusinessError("LEAD_DELETE_FAILED", "Failed to delete lead", err)
	}
	if !deleted {
		return NewBusinessError("LEAD_NOT_FOUND", "Lead not found", ErrLeadNotFound)
	}

	f.invalidateDashboard(ctx, lead.CallBy)
	return nil
}

func (f *LeadFlowImpl) GetLead(ctx context.Context, id uint) (*models.Lead, error) {
	lead, err := f.leadRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("LEAD_FETCH_FAILED", "Failed to fetch lead", err)
	}
	if lead == nil {
		return nil, NewBusinessError("LEAD_NOT_FOUND", "Lead not found", ErrLeadNotFound)
	}
	return lead, nil
}

// GetLeadByContact returns the newest lead with the contact number, optionally scoped to one agent
func (f *LeadFlowImpl) GetLeadByContact(ctx context.Context, contactNumber, callBy string) (*models.Lead, error) {
	contactNumber = strings.TrimSpace(contactNumber)
	if contactNumber == "" {
		return nil, NewBusinessError("VALIDATION_ERROR", "Contact number is required", ErrContactRequired)
	}

	filter := models.LeadFilter{
		ContactNumber: &contactNumber,
		CallBy:        trimPtr(callBy),
	}
	leads, err := f.leadRepo.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, NewBusinessError("LEAD_FETCH_FAILED", "Failed to fetch lead", err)
	}
	if len(leads) == 0 {
		return nil, NewBusinessError("LEAD_NOT_FOUND", "Lead not found", ErrLeadNotFound)
	}
	return leads[0], nil
}

// SearchLeads matches leads by contact and/or name substring
func (f *LeadFlowImpl) SearchLeads(ctx context.Context, req *dto.SearchLeadsRequest) (*dto.PageEnvelope[*models.Lead], error) {
	if req == nil || (strings.TrimSpace(req.ContactNumber) == "" && strings.TrimSpace(req.Name) == "") {
		return nil, NewBusinessError("VALIDATION_ERROR", "Contact number or name is required", ErrSearchCriteriaRequired)
	}

	filter := models.LeadFilter{
		CallBy:           trimPtr(req.CallBy),
		ContactSubstring: trimPtr(req.ContactNumber),
		NameSubstring:    trimPtr(req.Name),
	}
	return f.page(ctx, filter, req.Page, req.Limit)
}

// FilterLeads lists leads by exact product, unit type or budget
func (f *LeadFlowImpl) FilterLeads(ctx context.Context, req *dto.LeadFilterRequest) (*dto.PageEnvelope[*models.Lead], error) {
	if req == nil {
		return nil, NewBusinessError("VALIDATION_ERROR", "Request is required", nil)
	}

	filter := models.LeadFilter{
		CallBy:      trimPtr(req.CallBy),
		ProductName: trimPtr(req.ProductName),
		UnitType:    trimPtr(req.UnitType),
		Budget:      trimPtr(req.Budget),
		Status:      req.Status,
	}
	return f.page(ctx, filter, req.Page, req.Limit)
}

func (f *LeadFlowImpl) page(ctx context.Context, filter models.LeadFilter, page, limit int) (*dto.PageEnvelope[*models.Lead], error) {
	params := dto.ComputeOffset(page, limit)

	total, err := f.leadRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("LEAD_COUNT_FAILED", "Failed to count leads", err)
	}
	leads, err := f.leadRepo.ByFilter(ctx, filter, "", params.Limit, params.Offset)
	if err != nil {
		return nil, NewBusinessError("LEAD_QUERY_FAILED", "Failed to list leads", err)
	}

	env := dto.BuildPageEnvelope(leads, total, params.Page, params.Limit)
	return &env, nil
}

func (f *LeadFlowImpl) CallStatuses(ctx context.Context, callBy string) ([]string, error) {
	values, err := f.leadRepo.DistinctCallStatuses(ctx, strings.TrimSpace(callBy))
	if err != nil {
		return nil, NewBusinessError("CALL_STATUSES_FAILED", "Failed to list call statuses", err)
	}
	return nonNil(values), nil
}

func (f *LeadFlowImpl) Products(ctx context.Context, callBy string) ([]string, error) {
	values, err := f.leadRepo.DistinctProducts(ctx, strings.TrimSpace(callBy))
	if err != nil {
		return nil, NewBusinessError("PRODUCTS_FAILED", "Failed to list products", err)
	}
	return nonNil(values), nil
}

func (f *LeadFlowImpl) UnitTypes(ctx context.Context, callBy string) ([]string, error) {
	values, err := f.leadRepo.DistinctUnitTypes(ctx, strings.TrimSpace(callBy))
	if err != nil {
		return nil, NewBusinessError("UNIT_TYPES_FAILED", "Failed to list unit types", err)
	}
	return nonNil(values), nil
}

func (f *LeadFlowImpl) Budgets(ctx context.Context, callBy string) ([]string, error) {
	values, err := f.leadRepo.DistinctBudgets(ctx, strings.TrimSpace(callBy))
	if err != nil {
		return nil, NewBusinessError("BUDGETS_FAILED", "Failed to list budgets", err)
	}
	return nonNil(values), nil
}

// AgentDashboard summarizes an agent's leads. Results are cached for utils.DashboardCacheTTL
// and dropped whenever one of the agent's leads changes.
func (f *LeadFlowImpl) AgentDashboard(ctx context.Context, callBy string) (*dto.AgentDashboardResponse, error) {
	callBy = strings.TrimSpace(callBy)
	if callBy == "" {
		return nil, NewBusinessError("VALIDATION_ERROR", "callby is required", nil)
	}

	key := redisKey(f.cachePrefix, dashboardCacheKey, callBy)
	var cached dto.AgentDashboardResponse
	if cacheGetJSON(ctx, f.rc, key, &cached) {
		return &cached, nil
	}

	base := models.LeadFilter{CallBy: &callBy}
	total, err := f.leadRepo.Count(ctx, base)
	if err != nil {
		return nil, NewBusinessError("DASHBOARD_FAILED", "Failed to build dashboard", err)
	}

	pendingFilter := base
	pendingFilter.Status = models.PendingStatus()
	pending, err := f.leadRepo.Count(ctx, pendingFilter)
	if err != nil {
		return nil, NewBusinessError("DASHBOARD_FAILED", "Failed to build dashboard", err)
	}

	distribution, err := f.leadRepo.StatusDistribution(ctx, base)
	if err != nil {
		return nil, NewBusinessError("DASHBOARD_FAILED", "Failed to build dashboard", err)
	}

	byDate, err := f.leadRepo.SubmittedByDay(ctx, base)
	if err != nil {
		return nil, NewBusinessError("DASHBOARD_FAILED", "Failed to build dashboard", err)
	}

	if distribution == nil {
		distribution = []models.StatusCount{}
	}
	if byDate == nil {
		byDate = []models.DayCount{}
	}

	resp := &dto.AgentDashboardResponse{
		CallBy:             callBy,
		TotalLeads:         total,
		CallingDone:        total - pending,
		Pending:            pending,
		StatusDistribution: distribution,
		CallingDoneByDate:  byDate,
		GeneratedAt:        utils.UTCNow(),
	}

	cacheSetJSON(ctx, f.rc, key, resp, utils.DashboardCacheTTL)
	return resp, nil
}

func (f *LeadFlowImpl) invalidateDashboard(ctx context.Context, agents ...string) {
	keys := make([]string, 0, len(agents))
	seen := make(map[string]bool, len(agents))
	for _, a := range agents {
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		keys = append(keys, redisKey(f.cachePrefix, dashboardCacheKey, a))
	}
	cacheDelete(ctx, f.rc, keys...)
}

func (f *LeadFlowImpl) WithLeadTransaction(ctx context.Context, fn func(context.Context) (*models.Lead, error)) (*models.Lead, error) {
	var result *models.Lead
	var fnErr error

	err := repository.WithTransaction(ctx, f.db, func(ctx context.Context) error {
		result, fnErr = fn(ctx)
		return fnErr
	})

	if err != nil {
		return nil, err
	}
	return result, fnErr
}

func (f *LeadFlowImpl) validateCreateLeadRequest(req *dto.CreateLeadRequest) error {
	if req == nil {
		return ErrLeadFieldsRequired
	}
	if strings.TrimSpace(req.FirstName) == "" ||
		strings.TrimSpace(req.LastName) == "" ||
		strings.TrimSpace(req.ContactNumber) == "" ||
		strings.TrimSpace(req.CallBy) == "" {
		return ErrLeadFieldsRequired
	}
	if req.PostingDate != "" && utils.ParseDatePtr(req.PostingDate) == nil {
		return ErrInvalidDate
	}
	if req.SubmitOn != "" && utils.ParseDatePtr(req.SubmitOn) == nil {
		return ErrInvalidDate
	}
	return nil
}

func applyLeadPatch(lead *models.Lead, req *dto.UpdateLeadRequest) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&lead.FirstName, req.FirstName)
	set(&lead.LastName, req.LastName)
	set(&lead.EmailID, req.EmailID)
	set(&lead.ContactNumber, req.ContactNumber)
	set(&lead.CallStatus, req.CallStatus)
	set(&lead.FollowUp, req.FollowUp)
	set(&lead.ProductName, req.ProductName)
	set(&lead.UnitType, req.UnitType)
	set(&lead.Budget, req.Budget)
	if req.Remarks != nil {
		lead.Remarks = *req.Remarks
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
