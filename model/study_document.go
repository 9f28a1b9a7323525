package model

import (
	"time"

	"gorm.io/gorm"
)

// StudyDocument is the local metadata row for an uploaded study material.
// The raw content lives in Spaces under SpacesKey; text extraction and
// embedding happen elsewhere. The voice session core only reads these rows
// to bind materials to a tutoring agent's knowledge base.
type StudyDocument struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	UserID       uint           `gorm:"not null;index" json:"user_id"`
	StudentID    *uint          `gorm:"index" json:"student_id,omitempty"`
	OriginalName string         `gorm:"not null" json:"original_name"`
	FileType     string         `gorm:"type:varchar(100)" json:"file_type"` // MIME type
	SpacesKey    string         `gorm:"not null" json:"spaces_key"`
	FileSize     int64          `gorm:"default:0" json:"file_size"`
	PageCount    int            `gorm:"default:0" json:"page_count"`

	// Relationships
	User    User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Student *Student `gorm:"foreignKey:StudentID;constraint:OnDelete:SET NULL" json:"-"`
}

// TableName specifies the table name for StudyDocument
func (StudyDocument) TableName() string {
	return "study_documents"
}
