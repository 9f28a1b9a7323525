package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/voicetutor/api/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// The methods below implement the services.Store persistence contract on
// top of GORM.

// CreateAgentSession inserts a new registry row
func (s *GORMStore) CreateAgentSession(ctx context.Context, session *model.AgentSession) error {
	return s.db.WithContext(ctx).Create(session).Error
}

// SetAgentSessionFiles records the uploaded provider file ids on a row
func (s *GORMStore) SetAgentSessionFiles(ctx context.Context, id string, fileIDs []string) error {
	data, err := json.Marshal(fileIDs)
	if err != nil {
		return fmt.Errorf("failed to encode file ids: %w", err)
	}
	return s.db.WithContext(ctx).
		Model(&model.AgentSession{}).
		Where("id = ?", id).
		Update("file_ids", datatypes.JSON(data)).
		Error
}

// SetAgentSessionAgent records the provider agent id on a row
func (s *GORMStore) SetAgentSessionAgent(ctx context.Context, id string, agentID string) error {
	return s.db.WithContext(ctx).
		Model(&model.AgentSession{}).
		Where("id = ?", id).
		Update("agent_id", agentID).
		Error
}

// GetAgentSession returns the registry row for an id, or (nil, nil) when no
// row matches
func (s *GORMStore) GetAgentSession(ctx context.Context, id string) (*model.AgentSession, error) {
	var session model.AgentSession
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&session).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// EndAgentSession finalizes a session. The ended_at IS NULL guard makes the
// transition one-way: an already-ended row is never re-stamped, so ended_at
// can never move backward even under concurrent sweeps.
func (s *GORMStore) EndAgentSession(ctx context.Context, id string, endedAt time.Time) error {
	return s.db.WithContext(ctx).
		Model(&model.AgentSession{}).
		Where("id = ? AND ended_at IS NULL", id).
		Update("ended_at", endedAt).
		Error
}

// GetExpiredAgentSessions returns open sessions whose TTL has passed
func (s *GORMStore) GetExpiredAgentSessions(ctx context.Context, now time.Time) ([]model.AgentSession, error) {
	var sessions []model.AgentSession
	err := s.db.WithContext(ctx).
		Where("expires_at < ? AND ended_at IS NULL", now).
		Find(&sessions).Error
	return sessions, err
}

// GetOrphanedAgentSessions returns open rows whose creation saga never
// recorded a remote agent and that are older than the given cutoff
func (s *GORMStore) GetOrphanedAgentSessions(ctx context.Context, abandonedBefore time.Time) ([]model.AgentSession, error) {
	var sessions []model.AgentSession
	err := s.db.WithContext(ctx).
		Where("agent_id = '' AND ended_at IS NULL AND created_at < ?", abandonedBefore).
		Find(&sessions).Error
	return sessions, err
}

// GetUser returns a user by id, or (nil, nil) when no user matches
func (s *GORMStore) GetUser(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetStudent returns a student profile scoped to its owning user, or
// (nil, nil) when it does not exist or belongs to someone else
func (s *GORMStore) GetStudent(ctx context.Context, id uint, userID uint) (*model.Student, error) {
	var student model.Student
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&student).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &student, nil
}

// AddUsage appends the usage log entry and increments the user's used
// minutes in one transaction
func (s *GORMStore) AddUsage(ctx context.Context, entry *model.VoiceUsageLog) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to append usage log: %w", err)
		}
		result := tx.Model(&model.User{}).
			Where("id = ?", entry.UserID).
			UpdateColumn("monthly_voice_minutes_used", gorm.Expr("monthly_voice_minutes_used + ?", entry.MinutesUsed))
		if result.Error != nil {
			return fmt.Errorf("failed to increment used minutes: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("user %d not found", entry.UserID)
		}
		return nil
	})
}
