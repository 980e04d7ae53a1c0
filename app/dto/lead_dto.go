package dto

import (
	"time"

	"github.com/amirphl/leaddesk/models"
)

// LeadListRequest is the resolved filter set of the lead listing endpoint
type LeadListRequest struct {
	CallBy           string
	Status           models.StatusFilter
	ProductName      string
	ContactSubstring string
	StartDate        *time.Time
	EndDate          *time.Time
	Page             int
	Limit            int
}

// LeadListResponse is one page of leads and the query tier that produced it
type LeadListResponse struct {
	Data       []*models.LeadWithLastCall `json:"data"`
	Pagination Pagination                 `json:"pagination"`
	QueryType  string                     `json:"queryType" example:"fast"`
	Note       string                     `json:"note,omitempty" example:"Enriched query failed; results may be incomplete"`
	StatusMode string                     `json:"statusMode" example:"PENDING"`
}

// CreateLeadRequest represents the request payload for creating a lead
type CreateLeadRequest struct {
	FirstName     string `json:"FirstName" validate:"required,max=100" example:"John"`
	LastName      string `json:"LastName" validate:"required,max=100" example:"Doe"`
	EmailID       string `json:"EmailId" validate:"omitempty,email,max=255" example:"john@example.com"`
	ContactNumber string `json:"ContactNumber" validate:"required,max=20" example:"9876543210"`
	CallStatus    string `json:"callstatus" validate:"max=100" example:"Follow Up"`
	Remarks       string `json:"remarks" example:"Interested in 2BHK"`
	PostingDate   string `json:"PostingDate" validate:"omitempty,datetime=2006-01-02" example:"2024-01-15"`
	FollowUp      string `json:"followup" validate:"max=255" example:"Call next week"`
	ProductName   string `json:"productname" validate:"max=255" example:"Skyline Towers"`
	UnitType      string `json:"unittype" validate:"max=50" example:"2BHK"`
	Budget        string `json:"budget" validate:"max=50" example:"5000000"`
	CallBy        string `json:"callby" validate:"required,max=100" example:"agent1"`
	SubmitOn      string `json:"submiton" validate:"omitempty,datetime=2006-01-02" example:"2024-01-15"`
	AssignTL      string `json:"assign_tl" validate:"max=100" example:"tl1"`
}

// UpdateLeadRequest carries the fields to change; absent fields keep the stored value.
// AssignedTo, when non-empty, reassigns the lead to another agent.
type UpdateLeadRequest struct {
	FirstName     *string `json:"FirstName" validate:"omitempty,max=100"`
	LastName      *string `json:"LastName" validate:"omitempty,max=100"`
	EmailID       *string `json:"EmailId" validate:"omitempty,max=255"`
	ContactNumber *string `json:"ContactNumber" validate:"omitempty,max=20"`
	CallStatus    *string `json:"callstatus" validate:"omitempty,max=100"`
	Remarks       *string `json:"remarks"`
	FollowUp      *string `json:"followup" validate:"omitempty,max=255"`
	ProductName   *string `json:"productname" validate:"omitempty,max=255"`
	UnitType      *string `json:"unittype" validate:"omitempty,max=50"`
	Budget        *string `json:"budget" validate:"omitempty,max=50"`
	AssignedTo    string  `json:"assignedTo" validate:"max=100" example:"agent2"`
}

// LeadResponse wraps a single lead
type LeadResponse struct {
	Lead *models.Lead `json:"lead"`
}

// SearchLeadsRequest matches leads by contact and/or name substring
type SearchLeadsRequest struct {
	ContactNumber string
	Name          string
	CallBy        string
	Page          int
	Limit         int
}

// LeadFilterRequest is the exact-match listing by product, unit type or budget
type LeadFilterRequest struct {
	CallBy      string
	ProductName string
	UnitType    string
	Budget      string
	Status      models.StatusFilter
	Page        int
	Limit       int
}

// DistinctValuesResponse lists the distinct values of one lead column
type DistinctValuesResponse struct {
	Values []string `json:"values"`
}

// AgentDashboardResponse summarizes one agent's pipeline
type AgentDashboardResponse struct {
	CallBy             string               `json:"callby"`
	TotalLeads         int64                `json:"totalLeads"`
	CallingDone        int64                `json:"callingDone"`
	Pending            int64                `json:"pending"`
	StatusDistribution []models.StatusCount `json:"statusDistribution"`
	CallingDoneByDate  []models.DayCount    `json:"callingDoneByDate"`
	GeneratedAt        time.Time            `json:"generatedAt"`
}
