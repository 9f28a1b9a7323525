package model

import (
	"time"
)

// Session types recorded in the usage log
const (
	SessionTypeVoiceTutoring = "voice_tutoring"
)

// VoiceUsageLog is an append-only record of voice minutes consumed by a
// user. Entries are written once and never updated or deleted.
type VoiceUsageLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	SessionID   *string   `gorm:"type:varchar(36);index" json:"session_id,omitempty"`
	MinutesUsed int       `gorm:"not null" json:"minutes_used"`
	SessionType string    `gorm:"type:varchar(40);not null" json:"session_type"`

	// Relationships
	User    User          `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Session *AgentSession `gorm:"foreignKey:SessionID;constraint:OnDelete:SET NULL" json:"-"`
}

// TableName specifies the table name for VoiceUsageLog
func (VoiceUsageLog) TableName() string {
	return "voice_usage_logs"
}
