package dto

import (
	"time"

	"github.com/amirphl/leaddesk/models"
)

// DailyCompletionUser is one agent's completed calls on a day
type DailyCompletionUser struct {
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Calls    int64  `json:"calls"`
}

// DailyCompletionTL groups agents under their team lead for a day
type DailyCompletionTL struct {
	TLUsername string                `json:"tlUsername"`
	TLFullName string                `json:"tlFullName"`
	TotalCalls int64                 `json:"totalCalls"`
	Users      []DailyCompletionUser `json:"users"`
}

// DailyCompletionDay is one day of the completion report
type DailyCompletionDay struct {
	Date       string              `json:"date"`
	TotalCalls int64               `json:"totalCalls"`
	TLs        []DailyCompletionTL `json:"tls"`
}

// DailyCompletionResponse is the completion report over a date range, most recent day first
type DailyCompletionResponse struct {
	StartDate string               `json:"startDate"`
	EndDate   string               `json:"endDate"`
	Days      []DailyCompletionDay `json:"days"`
}

// TLLeadsRequest lists leads owned by the agents of a team lead
type TLLeadsRequest struct {
	TLName    string
	Status    models.StatusFilter
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	Limit     int
}

// TLLeadsResponse is one page of a team's leads
type TLLeadsResponse struct {
	TLName     string                     `json:"tlName"`
	Agents     []string                   `json:"agents"`
	Data       []*models.LeadWithLastCall `json:"data"`
	Pagination Pagination                 `json:"pagination"`
	QueryType  string                     `json:"queryType"`
	Note       string                     `json:"note,omitempty"`
}

// TeamMembersResponse lists the agents reporting to a team lead
type TeamMembersResponse struct {
	TL      UserDTO   `json:"tl"`
	Members []UserDTO `json:"members"`
}

// TeamPerformanceResponse aggregates a team's leads over a posting-date range
type TeamPerformanceResponse struct {
	TL                 UserDTO                    `json:"tl"`
	StartDate          string                     `json:"startDate,omitempty"`
	EndDate            string                     `json:"endDate,omitempty"`
	TotalLeads         int64                      `json:"totalLeads"`
	StatusDistribution []models.StatusCount       `json:"statusDistribution"`
	Members            []models.MemberPerformance `json:"members"`
}
