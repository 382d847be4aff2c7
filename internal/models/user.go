package models

import "time"

// UserModel represents a registered account.
type UserModel struct {
	Base
	Username      string     `json:"username"        gorm:"uniqueIndex;not null"`
	Name          string     `json:"name"`
	Email         string     `json:"email"           gorm:"index;size:254"`
	Password      string     `json:"-"               gorm:"not null"`
	IsActive      bool       `json:"is_active"       gorm:"default:true"`
	LastLoginTime *time.Time `json:"last_login_time"`
	LastLoginIP   string     `json:"last_login_ip"`
}

func (UserModel) TableName() string { return "users" }
