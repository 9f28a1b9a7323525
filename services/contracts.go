package services

import (
	"context"
	"errors"
	"time"

	"github.com/voicetutor/api/model"
)

var (
	// ErrSessionNotFound is returned when no agent session exists for an id.
	ErrSessionNotFound = errors.New("agent session not found")
	// ErrUserNotFound is returned when the quota owner does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrStudentNotFound is returned when a student id does not belong to the caller.
	ErrStudentNotFound = errors.New("student not found")
	// ErrNoAgentTemplate is a configuration error: no base agent is
	// configured for the requested grade band. No remote calls are made.
	ErrNoAgentTemplate = errors.New("no agent template configured for grade band")
	// ErrInvalidRequest covers missing or malformed create-session fields.
	ErrInvalidRequest = errors.New("invalid session request")
)

// AgentProvider is the boundary to the external conversational-agent and
// document-hosting service. Creation failures are fatal to the caller;
// teardown and per-document upload failures are logged and skipped.
type AgentProvider interface {
	CreateAgent(ctx context.Context, name, prompt, firstMessage string) (agentID string, err error)
	DeleteAgent(ctx context.Context, agentID string) error
	UploadDocument(ctx context.Context, name string, content []byte, mimeType string) (fileID string, err error)
	DeleteDocument(ctx context.Context, fileID string) error
	UpdateAgentKnowledgeBase(ctx context.Context, agentID string, fileIDs []string) error
}

// DocumentSource exposes previously uploaded study materials by id.
// A nil document or nil content (without error) means the document is
// unavailable and must be skipped, never aborting session creation.
type DocumentSource interface {
	GetDocument(ctx context.Context, docID uint, userID uint) (*model.StudyDocument, error)
	GetDocumentContent(ctx context.Context, docID uint) ([]byte, error)
}

// Store is the persistence contract for the session registry and the quota
// ledger. database.GORMStore is the production implementation; tests use an
// in-memory fake.
type Store interface {
	CreateAgentSession(ctx context.Context, session *model.AgentSession) error
	// SetAgentSessionFiles records the uploaded provider file ids on a row.
	SetAgentSessionFiles(ctx context.Context, id string, fileIDs []string) error
	// SetAgentSessionAgent records the provider agent id on a row.
	SetAgentSessionAgent(ctx context.Context, id string, agentID string) error
	// GetAgentSession returns (nil, nil) when no row matches.
	GetAgentSession(ctx context.Context, id string) (*model.AgentSession, error)
	// EndAgentSession sets ended_at only when it is still null, so a row
	// transitions from open to ended at most once.
	EndAgentSession(ctx context.Context, id string, endedAt time.Time) error
	GetExpiredAgentSessions(ctx context.Context, now time.Time) ([]model.AgentSession, error)
	// GetOrphanedAgentSessions returns open rows whose creation saga was
	// abandoned before the given cutoff (no remote agent was ever created).
	GetOrphanedAgentSessions(ctx context.Context, abandonedBefore time.Time) ([]model.AgentSession, error)

	// GetUser returns (nil, nil) when no user matches.
	GetUser(ctx context.Context, id uint) (*model.User, error)
	// GetStudent returns (nil, nil) when the student does not exist or does
	// not belong to the user.
	GetStudent(ctx context.Context, id uint, userID uint) (*model.Student, error)
	// AddUsage appends the log entry and increments the user's used minutes
	// in one transaction.
	AddUsage(ctx context.Context, entry *model.VoiceUsageLog) error
}

// AgentTemplates maps each grade band to the pre-configured base agent id
// used as the starting point for session-specific agents. It is injected
// into the orchestrator at construction rather than read from the process
// environment.
type AgentTemplates map[model.GradeBand]string

// Resolve returns the base agent id for a grade band.
func (t AgentTemplates) Resolve(band model.GradeBand) (string, error) {
	id, ok := t[band]
	if !ok || id == "" {
		return "", ErrNoAgentTemplate
	}
	return id, nil
}
