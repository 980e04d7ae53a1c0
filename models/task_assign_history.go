package models

import (
	"time"

	"github.com/amirphl/leaddesk/utils"
	"gorm.io/gorm"
)

// CallHistory is an append-only record written on every lead update.
// A nil CallDoneAt marks a plain reassignment rather than a completed call.
type CallHistory struct {
	ID         uint       `gorm:"column:id;primaryKey" json:"id"`
	LeadID     uint       `gorm:"column:leadid;not null;index:idx_history_leadid_calldoneat,priority:1" json:"leadId"`
	AssignTo   string     `gorm:"column:assignto;size:100" json:"assignTo"`
	AssignFrom string     `gorm:"column:assignfrom;size:100" json:"assignFrom"`
	Status     string     `gorm:"column:status;size:100" json:"status"`
	CallDoneAt *time.Time `gorm:"column:calldoneat;index:idx_history_leadid_calldoneat,priority:2;index:idx_history_calldoneat" json:"callDoneAt"`
	CallDoneBy string     `gorm:"column:calldoneby;size:100;index:idx_history_calldoneby" json:"callDoneBy"`
	CreatedAt  time.Time  `gorm:"column:createdat" json:"createdAt"`
	UpdatedAt  time.Time  `gorm:"column:updatedat" json:"updatedAt"`
}

func (CallHistory) TableName() string {
	return "task_assign_history"
}

func (h *CallHistory) BeforeCreate(tx *gorm.DB) error {
	now := utils.UTCNow()
	if h.CreatedAt.IsZero() {
		h.CreatedAt = now
	}
	if h.UpdatedAt.IsZero() {
		h.UpdatedAt = now
	}
	return nil
}

// CallHistoryFilter represents filter criteria for history queries
type CallHistoryFilter struct {
	LeadID     *uint
	CallDoneBy *string
	Completed  *bool
	DoneAfter  *time.Time
	DoneBefore *time.Time
}

// DailyCompletionRow is one (day, tl, agent) bucket of completed calls
type DailyCompletionRow struct {
	Day          string `gorm:"column:call_day"`
	TLUsername   string `gorm:"column:tl_username"`
	TLFullName   string `gorm:"column:tl_fullname"`
	Username     string `gorm:"column:username"`
	FullName     string `gorm:"column:fullname"`
	CompletedCnt int64  `gorm:"column:completed"`
}
