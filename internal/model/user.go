package model

import (
	"strings"
	"time"
)

type UserRole string

const (
	SuperAdmin UserRole = "superadmin"
	Admin      UserRole = "admin"
	Trainee    UserRole = "trainee"
)

var AllRoles = []UserRole{SuperAdmin, Admin, Trainee}

func (r UserRole) Valid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin 超级管理员与管理员均拥有管理权限
func (r UserRole) IsAdmin() bool {
	return r == SuperAdmin || r == Admin
}

type UserStatus string

const (
	UserPending  UserStatus = "pending"
	UserAccepted UserStatus = "accepted"
)

// swagger:model User
type User struct {
	BaseModel
	UserID      string     `gorm:"size:64;uniqueIndex;not null" json:"userId"`
	FirstName   string     `gorm:"size:100;not null" json:"firstName"`
	LastName    string     `gorm:"size:100;not null" json:"lastName"`
	Email       string     `gorm:"size:191;uniqueIndex;not null" json:"email"`
	Password    string     `gorm:"size:100;not null" json:"-"`
	Role        UserRole   `gorm:"size:20;index;not null" json:"role"`
	Status      UserStatus `gorm:"size:20;default:'pending'" json:"status"`
	InvitedBy   string     `gorm:"size:64" json:"invitedBy,omitempty"`
	InvitedAt   *time.Time `json:"invitedAt,omitempty"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// RecordLogin 登录时更新最后登录时间，pending 用户转为 accepted
func (u *User) RecordLogin(now time.Time) {
	u.LastLoginAt = &now
	if u.Status == UserPending {
		u.Status = UserAccepted
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
