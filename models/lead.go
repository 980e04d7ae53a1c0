// Package models contains domain entities for leads, agents and their call history
package models

import (
	"strings"
	"time"

	"github.com/amirphl/leaddesk/utils"
	"gorm.io/gorm"
)

// Lead is a prospective customer tracked through the call pipeline.
// An empty CallStatus means the lead has not been called yet.
type Lead struct {
	ID            uint       `gorm:"column:id;primaryKey" json:"id"`
	FirstName     string     `gorm:"column:firstname;size:100;not null" json:"FirstName"`
	LastName      string     `gorm:"column:lastname;size:100;not null" json:"LastName"`
	EmailID       string     `gorm:"column:emailid;size:255" json:"EmailId"`
	ContactNumber string     `gorm:"column:contactnumber;size:20;not null;index:idx_tblmaster_contactnumber" json:"ContactNumber"`
	CallStatus    string     `gorm:"column:callstatus;size:100;not null;default:'';index:idx_tblmaster_callstatus;index:idx_tblmaster_callby_callstatus,priority:2" json:"callstatus"`
	Remarks       string     `gorm:"column:remarks;type:text" json:"remarks"`
	PostingDate   *time.Time `gorm:"column:postingdate" json:"PostingDate"`
	FollowUp      string     `gorm:"column:followup;size:255" json:"followup"`
	ProductName   string     `gorm:"column:productname;size:255;index:idx_tblmaster_productname" json:"productname"`
	UnitType      string     `gorm:"column:unittype;size:50" json:"unittype"`
	Budget        string     `gorm:"column:budget;size:50" json:"budget"`
	CallBy        string     `gorm:"column:callby;size:100;not null;index:idx_tblmaster_callby;index:idx_tblmaster_callby_callstatus,priority:1" json:"callby"`
	AssignTL      string     `gorm:"column:assign_tl;size:100;index:idx_tblmaster_assign_tl" json:"assign_tl"`
	SubmitOn      *time.Time `gorm:"column:submiton;index:idx_tblmaster_submiton" json:"submiton"`
	CreatedAt     time.Time  `gorm:"column:createdat;index:idx_tblmaster_createdat" json:"createdAt"`
}

func (Lead) TableName() string {
	return "tblmaster"
}

func (l *Lead) BeforeCreate(tx *gorm.DB) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = utils.UTCNow()
	}
	return nil
}

// IsPending reports whether the lead still waits for its first call
func (l *Lead) IsPending() bool {
	return l.CallStatus == ""
}

// LeadWithLastCall is a lead annotated with its most recent completed call
type LeadWithLastCall struct {
	Lead
	LastCallDoneAt *time.Time `gorm:"column:last_call_done_at" json:"lastCallDoneAt,omitempty"`
	LastCallDoneBy *string    `gorm:"column:last_call_done_by" json:"lastCallDoneBy,omitempty"`
}

// StatusMode selects how a status filter constrains callstatus
type StatusMode int

const (
	// StatusAll applies no status predicate
	StatusAll StatusMode = iota
	// StatusPending matches only leads with an empty callstatus
	StatusPending
	// StatusExact matches callstatus equal to Value
	StatusExact
)

func (m StatusMode) String() string {
	switch m {
	case StatusPending:
		return "PENDING"
	case StatusExact:
		return "EXACT"
	default:
		return "ALL"
	}
}

// StatusFilter is the explicit status selector used by lead listings
type StatusFilter struct {
	Mode  StatusMode
	Value string
}

func AllStatuses() StatusFilter {
	return StatusFilter{Mode: StatusAll}
}

func PendingStatus() StatusFilter {
	return StatusFilter{Mode: StatusPending}
}

func ExactStatus(value string) StatusFilter {
	return StatusFilter{Mode: StatusExact, Value: value}
}

// ParseStatusMode resolves an explicit mode name (ALL, PENDING, EXACT)
func ParseStatusMode(mode, value string) (StatusFilter, bool) {
	switch strings.ToUpper(strings.TrimSpace(mode)) {
	case "ALL":
		return AllStatuses(), true
	case "PENDING":
		return PendingStatus(), true
	case "EXACT":
		return ExactStatus(value), true
	}
	return StatusFilter{}, false
}

// DateRange is an inclusive range of UTC days
type DateRange struct {
	Start time.Time
	End   time.Time
}

// LeadFilter represents filter criteria for lead queries
type LeadFilter struct {
	ID               *uint
	CallBy           *string
	CallByIn         []string
	AssignTL         *string
	Status           StatusFilter
	ProductName      *string
	UnitType         *string
	ContactNumber    *string
	ContactSubstring *string
	NameSubstring    *string
	Budget           *string
	CreatedBetween   *DateRange
	PostedBetween    *DateRange
	SubmittedBetween *DateRange
}

// StatusCount is one bucket of a callstatus distribution
type StatusCount struct {
	CallStatus string `gorm:"column:callstatus" json:"callstatus"`
	Count      int64  `gorm:"column:tcount" json:"tcount"`
}

// DayCount is a per-day counter
type DayCount struct {
	Day   string `json:"date"`
	Count int64  `json:"count"`
}

// MemberPerformance aggregates one agent's leads
type MemberPerformance struct {
	Username       string `gorm:"column:username" json:"username"`
	TotalLeads     int64  `gorm:"column:total_leads" json:"total_leads"`
	CallsCompleted int64  `gorm:"column:calls_completed" json:"calls_completed"`
}
