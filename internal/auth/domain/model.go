// Package domain contains core types for the auth service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User represents a portal sign-in account.
type User struct {
	ID                  snowflake.ID `gorm:"primaryKey"`
	ExternalID          string       `gorm:"column:external_id;type:text;not null;uniqueIndex"`
	Email               string       `gorm:"column:email;not null;uniqueIndex"`
	DisplayName         string       `gorm:"column:display_name;type:text"`
	PasswordHash        *string      `gorm:"type:text"`
	LastPasswordChanged *time.Time   `gorm:"column:last_password_changed"`
	LastLoginAt         *time.Time   `gorm:"column:last_login_at"`
	CreatedAt           time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt           time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (User) TableName() string { return "users" }

// Session represents a persisted login session.
type Session struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	UserID           snowflake.ID `gorm:"column:user_id;not null;index"`
	SessionTokenHash string       `gorm:"column:session_token_hash;type:text;not null;uniqueIndex"`
	UserAgent        string       `gorm:"column:user_agent;type:text"`
	IPAddress        string       `gorm:"column:ip_address;type:text"`
	ExpiresAt        time.Time    `gorm:"column:expires_at;not null;index"`
	RevokedAt        *time.Time   `gorm:"column:revoked_at"`
	CreatedAt        time.Time    `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
	LastSeenAt       time.Time    `gorm:"column:last_seen_at;not null;default:CURRENT_TIMESTAMP"`
}

func (Session) TableName() string { return "sessions" }

// Live reports why the session can no longer authenticate, or nil when it can.
// Revocation wins over expiry.
func (s *Session) Live(now time.Time) error {
	switch {
	case s.RevokedAt != nil:
		return ErrSessionRevoked
	case now.After(s.ExpiresAt):
		return ErrSessionExpired
	}
	return nil
}

// Identity is the authenticated principal resolved from a session.
// It carries no customer data; mapping to a billing customer happens elsewhere.
type Identity struct {
	ID    snowflake.ID `json:"id"`
	Email string       `json:"email"`
}
