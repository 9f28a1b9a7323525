package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/voicetutor/api/model"
)

const (
	// DefaultSessionTTL is how long a session's remote resources are kept
	// before the expiry sweep reclaims them.
	DefaultSessionTTL = 24 * time.Hour
	// DefaultAbandonedAfter is how old an agentless registry row must be
	// before the orphan sweep treats its creation saga as abandoned.
	DefaultAbandonedAfter = 1 * time.Hour
)

// SessionService orchestrates the lifecycle of ephemeral tutoring agents:
// provisioning a per-student agent on the external provider, binding study
// materials to it, and guaranteeing eventual teardown of remote resources.
type SessionService struct {
	store          Store
	provider       AgentProvider
	docs           DocumentSource
	templates      AgentTemplates
	sessionTTL     time.Duration
	abandonedAfter time.Duration
}

// SessionConfig holds construction options for the session service
type SessionConfig struct {
	Templates      AgentTemplates
	SessionTTL     time.Duration // defaults to DefaultSessionTTL
	AbandonedAfter time.Duration // defaults to DefaultAbandonedAfter
}

// NewSessionService creates a new session lifecycle service
func NewSessionService(store Store, provider AgentProvider, docs DocumentSource, config SessionConfig) *SessionService {
	if config.SessionTTL <= 0 {
		config.SessionTTL = DefaultSessionTTL
	}
	if config.AbandonedAfter <= 0 {
		config.AbandonedAfter = DefaultAbandonedAfter
	}
	return &SessionService{
		store:          store,
		provider:       provider,
		docs:           docs,
		templates:      config.Templates,
		sessionTTL:     config.SessionTTL,
		abandonedAfter: config.AbandonedAfter,
	}
}

// CreateSessionRequest holds the inputs for a new tutoring session
type CreateSessionRequest struct {
	UserID      uint
	StudentID   *uint
	StudentName string
	GradeBand   model.GradeBand
	Subject     string
	DocumentIDs []uint
}

// CreateSessionResult identifies the provisioned session
type CreateSessionResult struct {
	SessionID      string `json:"session_id"`
	AgentID        string `json:"agent_id"`
	ConversationID string `json:"conversation_id"`
}

// CreateSession provisions a session-specific agent on the external
// provider and persists the registry row.
//
// The operation is a multi-step saga with no cross-resource transaction.
// The registry row is the saga's step log: it is inserted with an empty
// agent id before any remote call, uploaded file ids are recorded as they
// land, and the agent id is recorded once the agent exists. A failure at
// any remote step leaves an agentless row whose FileIDs name exactly the
// resources the orphan sweep must reclaim. Document uploads are
// individually best-effort (the session proceeds with whatever subset
// uploaded); agent creation is fatal. Repeated calls with identical input
// create distinct agents.
func (s *SessionService) CreateSession(ctx context.Context, req CreateSessionRequest) (*CreateSessionResult, error) {
	if req.StudentName == "" || req.Subject == "" {
		return nil, fmt.Errorf("%w: student name and subject are required", ErrInvalidRequest)
	}
	if !req.GradeBand.Valid() {
		return nil, fmt.Errorf("%w: unknown grade band %q", ErrInvalidRequest, req.GradeBand)
	}

	// Resolve the base template before any remote call; a missing template
	// is a deployment configuration error, not a provider failure.
	baseAgentID, err := s.templates.Resolve(req.GradeBand)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, req.GradeBand)
	}

	if req.StudentID != nil {
		student, err := s.store.GetStudent(ctx, *req.StudentID, req.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to load student %d: %w", *req.StudentID, err)
		}
		if student == nil {
			return nil, ErrStudentNotFound
		}
	}

	now := time.Now()
	session := &model.AgentSession{
		ID:             uuid.New().String(),
		UserID:         req.UserID,
		StudentID:      req.StudentID,
		StudentName:    req.StudentName,
		GradeBand:      req.GradeBand,
		Subject:        req.Subject,
		BaseAgentID:    baseAgentID,
		ConversationID: uuid.New().String(),
		ExpiresAt:      now.Add(s.sessionTTL),
	}
	session.SetDocumentIDs(req.DocumentIDs)
	session.SetFileIDs(nil)

	if err := s.store.CreateAgentSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	fileIDs := s.uploadDocuments(ctx, req.UserID, req.DocumentIDs)
	if len(fileIDs) > 0 {
		if err := s.store.SetAgentSessionFiles(ctx, session.ID, fileIDs); err != nil {
			// Unrecorded uploads are invisible to the sweep, so reclaim
			// them here instead of leaving them to leak.
			s.deleteFiles(ctx, session.ID, fileIDs)
			return nil, fmt.Errorf("failed to record uploads for session %s: %w", session.ID, err)
		}
		session.SetFileIDs(fileIDs)
	}

	prompt := BuildTutorPrompt(req.StudentName, req.GradeBand, req.Subject, len(fileIDs) > 0)
	firstMessage := BuildFirstMessage(req.StudentName, req.Subject)
	agentName := fmt.Sprintf("tutor-%s-%s", req.GradeBand, session.ID[:8])

	agentID, err := s.provider.CreateAgent(ctx, agentName, prompt, firstMessage)
	if err != nil {
		// The agentless row stays open; the orphan sweep finalizes it and
		// reclaims the recorded uploads.
		return nil, fmt.Errorf("provider failed to create agent: %w", err)
	}

	if err := s.store.SetAgentSessionAgent(ctx, session.ID, agentID); err != nil {
		// An unrecorded agent is invisible to the sweep too.
		if delErr := s.provider.DeleteAgent(ctx, agentID); delErr != nil {
			log.Printf("SessionService: failed to delete unrecorded agent %s for session %s: %v", agentID, session.ID, delErr)
		}
		return nil, fmt.Errorf("failed to record agent for session %s: %w", session.ID, err)
	}
	session.AgentID = agentID

	if len(fileIDs) > 0 {
		// The agent is usable without its materials, so a failed bind is
		// logged rather than aborting a session we already paid to create.
		if err := s.provider.UpdateAgentKnowledgeBase(ctx, agentID, fileIDs); err != nil {
			log.Printf("SessionService: failed to bind knowledge base for agent %s: %v", agentID, err)
		}
	}

	return &CreateSessionResult{
		SessionID:      session.ID,
		AgentID:        session.AgentID,
		ConversationID: session.ConversationID,
	}, nil
}

// deleteFiles removes provider documents best-effort.
func (s *SessionService) deleteFiles(ctx context.Context, sessionID string, fileIDs []string) {
	for _, fileID := range fileIDs {
		if err := s.provider.DeleteDocument(ctx, fileID); err != nil {
			log.Printf("SessionService: failed to delete provider document %s for session %s: %v", fileID, sessionID, err)
		}
	}
}

// uploadDocuments fetches each requested document and uploads it to the
// provider. Missing content, missing metadata and per-document upload
// failures are all warned and skipped; the returned list is the subset that
// made it to the provider.
func (s *SessionService) uploadDocuments(ctx context.Context, userID uint, docIDs []uint) []string {
	fileIDs := make([]string, 0, len(docIDs))
	if s.docs == nil {
		if len(docIDs) > 0 {
			log.Printf("SessionService: no document source configured, skipping %d documents", len(docIDs))
		}
		return fileIDs
	}
	for _, docID := range docIDs {
		doc, err := s.docs.GetDocument(ctx, docID, userID)
		if err != nil {
			log.Printf("SessionService: failed to load document %d: %v", docID, err)
			continue
		}
		if doc == nil {
			log.Printf("SessionService: document %d not found for user %d, skipping", docID, userID)
			continue
		}

		content, err := s.docs.GetDocumentContent(ctx, docID)
		if err != nil {
			log.Printf("SessionService: failed to fetch content for document %d: %v", docID, err)
			continue
		}
		if content == nil {
			log.Printf("SessionService: document %d has no content, skipping", docID)
			continue
		}

		fileID, err := s.provider.UploadDocument(ctx, doc.OriginalName, content, doc.FileType)
		if err != nil {
			log.Printf("SessionService: failed to upload document %d (%s): %v", docID, doc.OriginalName, err)
			continue
		}
		fileIDs = append(fileIDs, fileID)
	}
	return fileIDs
}

// GetSession returns the registry row for a session id.
func (s *SessionService) GetSession(ctx context.Context, id string) (*model.AgentSession, error) {
	session, err := s.store.GetAgentSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// EndSession tears down the session's remote resources best-effort and
// finalizes the registry row. Every teardown step is independently
// non-fatal: the local ended_at write happens regardless, so the local
// state machine always reaches its terminal state. Ending an already-ended
// session is a no-op.
func (s *SessionService) EndSession(ctx context.Context, id string) error {
	session, err := s.store.GetAgentSession(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load session %s: %w", id, err)
	}
	if session == nil {
		return ErrSessionNotFound
	}
	if session.Ended() {
		return nil
	}

	if session.AgentID != "" {
		if err := s.provider.DeleteAgent(ctx, session.AgentID); err != nil {
			log.Printf("SessionService: failed to delete agent %s for session %s: %v", session.AgentID, id, err)
		}
	}
	s.deleteFiles(ctx, id, session.FileIDList())

	if err := s.store.EndAgentSession(ctx, id, time.Now()); err != nil {
		return fmt.Errorf("failed to finalize session %s: %w", id, err)
	}
	return nil
}

// CleanupExpiredSessions finalizes every open session whose TTL has passed
// and returns how many were ended. Safe to invoke repeatedly and
// concurrently: the ended_at-null filter means each row is finalized once.
func (s *SessionService) CleanupExpiredSessions(ctx context.Context) (int, error) {
	sessions, err := s.store.GetExpiredAgentSessions(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to list expired sessions: %w", err)
	}
	return s.endAll(ctx, sessions), nil
}

// CleanupOrphanedSessions finalizes open rows whose creation saga was
// abandoned: no remote agent was ever recorded and the row is past the
// abandonment window. The same end path reclaims whatever documents the
// step log says were uploaded.
func (s *SessionService) CleanupOrphanedSessions(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.abandonedAfter)
	sessions, err := s.store.GetOrphanedAgentSessions(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list orphaned sessions: %w", err)
	}
	return s.endAll(ctx, sessions), nil
}

func (s *SessionService) endAll(ctx context.Context, sessions []model.AgentSession) int {
	ended := 0
	for i := range sessions {
		if err := s.EndSession(ctx, sessions[i].ID); err != nil {
			log.Printf("SessionService: sweep failed to end session %s: %v", sessions[i].ID, err)
			continue
		}
		ended++
	}
	return ended
}
