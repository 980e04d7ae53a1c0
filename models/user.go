package models

import (
	"time"

	"github.com/amirphl/leaddesk/utils"
	"gorm.io/gorm"
)

// User types
const (
	UserTypeAdmin = "admin"
	UserTypeTL    = "tl"
	UserTypeAgent = "user"
)

// User is an operator account: an admin, a team lead or an agent.
// Agents point at their team lead by username through TLName.
type User struct {
	ID          uint      `gorm:"column:id;primaryKey" json:"id"`
	FullName    string    `gorm:"column:fullname;size:255;not null" json:"FullName"`
	Username    string    `gorm:"column:username;size:100;not null;uniqueIndex:uk_tblusers_username" json:"Username"`
	UserEmail   string    `gorm:"column:useremail;size:255;not null;uniqueIndex:uk_tblusers_useremail" json:"UserEmail"`
	Password    string    `gorm:"column:password;size:255;not null" json:"-"`
	UserType    string    `gorm:"column:usertype;size:20;not null;default:'user';index:idx_tblusers_usertype" json:"userType"`
	TLName      *string   `gorm:"column:tl_name;size:100;index:idx_tblusers_tl_name" json:"tl_name"`
	LoginStatus int       `gorm:"column:loginstatus;not null;default:0;index:idx_tblusers_loginstatus" json:"loginstatus"`
	CreatedAt   time.Time `gorm:"column:created_at;index:idx_tblusers_created_at" json:"created_at"`
}

func (User) TableName() string {
	return "tblusers"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = utils.UTCNow()
	}
	if u.UserType == "" {
		u.UserType = UserTypeAgent
	}
	return nil
}

func (u *User) IsTL() bool {
	return u.UserType == UserTypeTL
}

func (u *User) IsAdmin() bool {
	return u.UserType == UserTypeAdmin
}

func (u *User) IsOnline() bool {
	return u.LoginStatus == 1
}

// UserFilter represents filter criteria for user queries
type UserFilter struct {
	ID            *uint
	Username      *string
	UserEmail     *string
	UserType      *string
	TLName        *string
	LoginStatus   *int
	Search        *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
