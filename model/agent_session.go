package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// GradeBand is the age/level category driving agent template selection
// and tutoring tone.
type GradeBand string

const (
	GradeBandK2      GradeBand = "K-2"
	GradeBand35      GradeBand = "3-5"
	GradeBand68      GradeBand = "6-8"
	GradeBand912     GradeBand = "9-12"
	GradeBandCollege GradeBand = "College/Adult"
)

// GradeBands lists every configured grade band.
var GradeBands = []GradeBand{
	GradeBandK2,
	GradeBand35,
	GradeBand68,
	GradeBand912,
	GradeBandCollege,
}

// Valid reports whether the grade band is one of the configured values.
func (g GradeBand) Valid() bool {
	for _, b := range GradeBands {
		if g == b {
			return true
		}
	}
	return false
}

// AgentSession is the registry row for one ephemeral tutoring-agent instance
// on the external provider. Rows are never deleted: a session remains as a
// permanent audit record after its remote resources are gone.
//
// The persisted AgentID and FileIDs double as the creation saga's step log.
// A row with an empty AgentID records an abandoned creation; FileIDs records
// exactly which provider documents still owe remote cleanup.
type AgentSession struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID      uint      `gorm:"not null;index" json:"user_id"`
	StudentID   *uint     `gorm:"index" json:"student_id,omitempty"`
	StudentName string    `gorm:"not null" json:"student_name"`
	GradeBand   GradeBand `gorm:"type:varchar(20);not null" json:"grade_band"`
	Subject     string    `gorm:"not null" json:"subject"`

	// External bindings. AgentID stays empty until the provider agent is
	// created; FileIDs is always the successfully uploaded subset of
	// DocumentIDs (partial upload failure is tolerated).
	BaseAgentID     string         `gorm:"type:varchar(100);not null" json:"base_agent_id"`
	AgentID         string         `gorm:"type:varchar(100);index" json:"agent_id"`
	ConversationID  string         `gorm:"type:varchar(100)" json:"conversation_id"`
	KnowledgeBaseID string         `gorm:"type:varchar(100)" json:"knowledge_base_id,omitempty"`
	DocumentIDs     datatypes.JSON `gorm:"type:jsonb" json:"document_ids"`
	FileIDs         datatypes.JSON `gorm:"type:jsonb" json:"file_ids"`

	// ExpiresAt is fixed at creation; EndedAt, once set, is terminal and is
	// never cleared or moved backward.
	ExpiresAt time.Time  `gorm:"not null;index" json:"expires_at"`
	EndedAt   *time.Time `gorm:"index" json:"ended_at,omitempty"`

	// Relationships
	User    User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Student *Student `gorm:"foreignKey:StudentID;constraint:OnDelete:SET NULL" json:"student,omitempty"`
}

// TableName specifies the table name for AgentSession
func (AgentSession) TableName() string {
	return "agent_sessions"
}

// Ended reports whether the session has reached its terminal state.
func (s *AgentSession) Ended() bool {
	return s.EndedAt != nil
}

// SetDocumentIDs stores the requested local document ids.
func (s *AgentSession) SetDocumentIDs(ids []uint) {
	s.DocumentIDs = mustJSON(ids)
}

// DocumentIDList decodes the requested local document ids.
func (s *AgentSession) DocumentIDList() []uint {
	var ids []uint
	if len(s.DocumentIDs) > 0 {
		_ = json.Unmarshal(s.DocumentIDs, &ids)
	}
	return ids
}

// SetFileIDs stores the provider file ids that were actually uploaded.
func (s *AgentSession) SetFileIDs(ids []string) {
	s.FileIDs = mustJSON(ids)
}

// FileIDList decodes the provider file ids owed remote cleanup.
func (s *AgentSession) FileIDList() []string {
	var ids []string
	if len(s.FileIDs) > 0 {
		_ = json.Unmarshal(s.FileIDs, &ids)
	}
	return ids
}

func mustJSON(v interface{}) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(data)
}
