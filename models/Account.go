package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"

	DefaultStatus = StatusOffline
)

// Account represents a registered community member that can
// authenticate with the site.
type Account struct {
	gorm.Model
	Username     string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Email        string
	IsAdmin      bool   `gorm:"default:false"`
	AvatarURL    string `gorm:"column:avatar_url"`
	Bio          string
	Level        int    `gorm:"default:1"`
	Experience   int    `gorm:"default:0"`
	OnlineStatus string `gorm:"type:varchar(16);default:offline"`
	Token        string `gorm:"index"`
	LastLogin    *time.Time
}

// ValidStatus reports whether value is a recognised presence status.
func ValidStatus(value string) bool {
	switch value {
	case StatusOnline, StatusOffline:
		return true
	default:
		return false
	}
}

// NormalizeStatus trims the value and falls back to the default when it
// is not a recognised status.
func NormalizeStatus(value string) string {
	trimmed := strings.TrimSpace(value)
	if ValidStatus(trimmed) {
		return trimmed
	}
	return DefaultStatus
}
