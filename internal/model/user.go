package model

import (
	"time"
)

// swagger:model User
type User struct {
	BaseModel
	Username    string       `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Email       string       `gorm:"size:100" json:"email"`
	IsSuperuser bool         `gorm:"default:false" json:"isSuperuser"`
	LastSeen    time.Time    `json:"lastSeen"`
	Profile     *UserProfile `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"profile,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// UserProfile 用户的封禁状态，与 User 一对一
type UserProfile struct {
	BaseModel
	UserID uint `gorm:"uniqueIndex;not null" json:"userId"`
	Banned bool `gorm:"default:false" json:"banned"`
}

func (UserProfile) TableName() string {
	return "user_profiles"
}
