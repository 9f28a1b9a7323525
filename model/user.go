package model

import (
	"time"

	"gorm.io/gorm"
)

// Subscription statuses gating voice tutoring access
const (
	SubscriptionActive    = "active"
	SubscriptionPastDue   = "past_due"
	SubscriptionCancelled = "cancelled"
	SubscriptionNone      = "none"
)

// User represents a registered account (typically a parent) in the system
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"` // Never expose password in JSON
	Name         string         `gorm:"not null" json:"name"`
	Role         string         `gorm:"type:varchar(20);default:'parent'" json:"role"` // parent, admin
	TokenVersion int            `gorm:"default:0" json:"-"`                            // Increment to invalidate all user tokens

	// Voice quota accounting. The session core only ever increments
	// MonthlyVoiceMinutesUsed; the allowance, bonus grants and the monthly
	// reset belong to the billing scheduler.
	SubscriptionStatus      string     `gorm:"type:varchar(20);default:'none'" json:"subscription_status"`
	MonthlyVoiceMinutes     int        `gorm:"default:0" json:"monthly_voice_minutes"`
	MonthlyVoiceMinutesUsed int        `gorm:"default:0" json:"monthly_voice_minutes_used"`
	BonusMinutes            int        `gorm:"default:0" json:"bonus_minutes"`
	MonthlyResetDate        *time.Time `json:"monthly_reset_date,omitempty"`

	// Relationships
	Students       []Student           `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"students,omitempty"`
	AgentSessions  []AgentSession      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	UsageLogs      []VoiceUsageLog     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Documents      []StudyDocument     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	TokenBlacklist []JWTTokenBlacklist `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// Student represents a child profile attached to a parent account
type Student struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	Name      string         `gorm:"not null" json:"name"`
	GradeBand GradeBand      `gorm:"type:varchar(20)" json:"grade_band"`

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}
