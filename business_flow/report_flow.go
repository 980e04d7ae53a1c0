package businessflow

import (
	"context"
	"strings"
	"time"

	"github.com/amirphl/leaddesk/app/dto"
	"github.com/amirphl/leaddesk/models"
	"github.com/amirphl/leaddesk/repository"
	"github.com/amirphl/leaddesk/utils"
)

// ReportFlow builds team lead reports
type ReportFlow interface {
	DailyCompletion(ctx context.Context, start, end *time.Time) (*dto.DailyCompletionResponse, error)
	ListTeamLeads(ctx context.Context) ([]dto.UserDTO, error)
	TeamMembers(ctx context.Context, tlID uint) (*dto.TeamMembersResponse, error)
	TeamPerformance(ctx context.Context, tlID uint, start, end *time.Time) (*dto.TeamPerformanceResponse, error)
}

// ReportFlowImpl implements the report business flow
type ReportFlowImpl struct {
	leadRepo    repository.LeadRepository
	historyRepo repository.CallHistoryRepository
	userRepo    repository.UserRepository
}

// NewReportFlow creates a new report flow instance
func NewReportFlow(
	leadRepo repository.LeadRepository,
	historyRepo repository.CallHistoryRepository,
	userRepo repository.UserRepository,
) ReportFlow {
	return &ReportFlowImpl{
		leadRepo:    leadRepo,
		historyRepo: historyRepo,
		userRepo:    userRepo,
	}
}

// DailyCompletion counts completed calls per day, team lead and agent.
// Without a range it covers the last 7 days including today.
func (f *ReportFlowImpl) DailyCompletion(ctx context.Context, start, end *time.Time) (*dto.DailyCompletionResponse, error) {
	rng, err := dateRange(start, end)
	if err != nil {
		return nil, NewBusinessError("REPORT_FILTER_INVALID", "Invalid date range", err)
	}
	if rng == nil {
		today := utils.TodayUTC()
		rng = &models.DateRange{Start: today.AddDate(0, 0, -6), End: today}
	}

	rows, err := f.historyRepo.DailyCompletionByTL(ctx, rng.Start, rng.End.AddDate(0, 0, 1))
	if err != nil {
		return nil, NewBusinessError("REPORT_FAILED", "Failed to build daily completion report", err)
	}

	return &dto.DailyCompletionResponse{
		StartDate: rng.Start.Format(utils.DateLayout),
		EndDate:   rng.End.Format(utils.DateLayout),
		Days:      nestDailyCompletion(rows),
	}, nil
}

// nestDailyCompletion groups flat rows into date -> team leads -> agents, keeping row order
func nestDailyCompletion(rows []models.DailyCompletionRow) []dto.DailyCompletionDay {
	days := make([]dto.DailyCompletionDay, 0)
	dayIdx := make(map[string]int)
	tlIdx := make(map[string]int)

	for _, row := range rows {
		di, ok := dayIdx[row.Day]
		if !ok {
			di = len(days)
			dayIdx[row.Day] = di
			days = append(days, dto.DailyCompletionDay{Date: row.Day, TLs: []dto.DailyCompletionTL{}})
		}
		day := &days[di]

		key := row.Day + "|" + row.TLUsername
		ti, ok := tlIdx[key]
		if !ok {
			ti = len(day.TLs)
			tlIdx[key] = ti
			day.TLs = append(day.TLs, dto.DailyCompletionTL{
				TLUsername: row.TLUsername,
				TLFullName: row.TLFullName,
				Users:      []dto.DailyCompletionUser{},
			})
		}
		tl := &day.TLs[ti]

		tl.Users = append(tl.Users, dto.DailyCompletionUser{
			Username: row.Username,
			FullName: row.FullName,
			Calls:    row.CompletedCnt,
		})
		tl.TotalCalls += row.CompletedCnt
		day.TotalCalls += row.CompletedCnt
	}
	return days
}

// ListTeamLeads returns every team lead account
func (f *ReportFlowImpl) ListTeamLeads(ctx context.Context) ([]dto.UserDTO, error) {
	tls, err := f.userRepo.ByFilter(ctx, models.UserFilter{UserType: utils.ToPtr(models.UserTypeTL)}, "username ASC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("TEAM_LEADS_FAILED", "Failed to list team leads", err)
	}
	return ToUserDTOs(tls), nil
}

// TeamMembers lists the agents whose tl_name is the team lead's username
func (f *ReportFlowImpl) TeamMembers(ctx context.Context, tlID uint) (*dto.TeamMembersResponse, error) {
	tl, err := f.teamLead(ctx, tlID)
	if err != nil {
		return nil, err
	}

	members, err := f.userRepo.ByFilter(ctx, models.UserFilter{TLName: &tl.Username}, "username ASC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("TEAM_MEMBERS_FAILED", "Failed to list team members", err)
	}

	return &dto.TeamMembersResponse{
		TL:      ToUserDTO(*tl),
		Members: ToUserDTOs(members),
	}, nil
}

// TeamPerformance aggregates the team's leads (by assign_tl) and each member's totals
// over an optional posting-date range.
func (f *ReportFlowImpl) TeamPerformance(ctx context.Context, tlID uint, start, end *time.Time) (*dto.TeamPerformanceResponse, error) {
	tl, err := f.teamLead(ctx, tlID)
	if err != nil {
		return nil, err
	}

	rng, err := dateRange(start, end)
	if err != nil {
		return nil, NewBusinessError("REPORT_FILTER_INVALID", "Invalid date range", err)
	}

	teamFilter := models.LeadFilter{AssignTL: &tl.Username, PostedBetween: rng}
	total, err := f.leadRepo.Count(ctx, teamFilter)
	if err != nil {
		return nil, NewBusinessError("REPORT_FAILED", "Failed to build team performance", err)
	}

	distribution, err := f.leadRepo.StatusDistribution(ctx, teamFilter)
	if err != nil {
		return nil, NewBusinessError("REPORT_FAILED", "Failed to build team performance", err)
	}

	usernames, err := f.userRepo.UsernamesByTL(ctx, tl.Username)
	if err != nil {
		return nil, NewBusinessError("REPORT_FAILED", "Failed to build team performance", err)
	}

	members, err := f.leadRepo.MemberPerformance(ctx, usernames, rng)
	if err != nil {
		return nil, NewBusinessError("REPORT_FAILED", "Failed to build team performance", err)
	}

	if distribution == nil {
		distribution = []models.StatusCount{}
	}
	if members == nil {
		members = []models.MemberPerformance{}
	}

	resp := &dto.TeamPerformanceResponse{
		TL:                 ToUserDTO(*tl),
		TotalLeads:         total,
		StatusDistribution: distribution,
		Members:            members,
	}
	if rng != nil {
		resp.StartDate = rng.Start.Format(utils.DateLayout)
		resp.EndDate = rng.End.Format(utils.DateLayout)
	}
	return resp, nil
}

func (f *ReportFlowImpl) teamLead(ctx context.Context, tlID uint) (*models.User, error) {
	tl, err := f.userRepo.ByID(ctx, tlID)
	if err != nil {
		return nil, NewBusinessError("TEAM_LEAD_LOOKUP_FAILED", "Failed to load team lead", err)
	}
	if tl == nil || !strings.EqualFold(tl.UserType, models.UserTypeTL) {
		return nil, NewBusinessError("TEAM_LEAD_NOT_FOUND", "Team lead not found", ErrTeamLeadNotFound)
	}
	return tl, nil
}
