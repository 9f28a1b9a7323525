package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voicetutor/api/model"
)

func newTestSessionService(store *fakeStore, provider *fakeProvider, docs DocumentSource) *SessionService {
	return NewSessionService(store, provider, docs, SessionConfig{Templates: testTemplates()})
}

func TestCreateSessionHappyPath(t *testing.T) {
	store := newFakeStore()
	provider := newFakeProvider()
	svc := newTestSessionService(store, provider, newFakeDocs())

	before := time.Now()
	result, err := svc.CreateSession(context.Background(), CreateSessionRequest{
		UserID:      1,
		StudentName: "Maya",
		GradeBand:   model.GradeBand35,
		Subject:     "fractions",
	})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if result.SessionID == "" || result.AgentID == "" || result.ConversationID == "" {
		t.Fatalf("result has empty identifiers: %+v", result)
	}

	session := store.sessions[result.SessionID]
	if session == nil {
		t.Fatal("session row was not persisted")
	}
	if session.AgentID != result.AgentID {
		t.Errorf("persisted agent id %q, want %q", session.AgentID, result.AgentID)
	}
	if session.BaseAgentID != "base-35" {
		t.Errorf("base agent id = %q, want base-35", session.BaseAgentID)
	}
	if session.Ended() {
		t.Error("new session must be open")
	}
	if want := "tutor-3-5-" + result.SessionID[:8]; provider.agentNames[0] != want {
		t.Errorf("agent name = %q, want %q", provider.agentNames[0], want)
	}

	wantExpiry := before.Add(DefaultSessionTTL)
	if session.ExpiresAt.Before(wantExpiry.Add(-time.Minute)) || session.ExpiresAt.After(wantExpiry.Add(time.Minute)) {
		t.Errorf("expires_at = %v, want about %v", session.ExpiresAt, wantExpiry)
	}
}

func TestCreateSessionRejectsInvalidInput(t *testing.T) {
	store := newFakeStore()
	provider := newFakeProvider()
	svc := newTestSessionService(store, provider, newFakeDocs())

	cases := []CreateSessionRequest{
		{UserID: 1, GradeBand: model.GradeBand35, Subject: "math"},                          // no name
		{UserID: 1, StudentName: "Maya", GradeBand: model.GradeBand35},                      // no subject
		{UserID: 1, StudentName: "Maya", GradeBand: model.GradeBand("7th"), Subject: "art"}, // bad band
	}
	for _, req := range cases {
		if _, err := svc.CreateSession(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("CreateSession(%+v) error = %v, want ErrInvalidRequest", req, err)
		}
	}
	if provider.createCalls != 0 {
		t.Errorf("provider was called %d times for invalid input", provider.createCalls)
	}
}

func TestCreateSessionMissingTemplateMakesNoRemoteCalls(t *testing.T) {
	store := newFakeStore()
	provider := newFakeProvider()
	svc := NewSessionService(store, provider, newFakeDocs(), SessionConfig{
		Templates: AgentTemplates{model.GradeBandK2: "base-k2"},
	})

	_, err := svc.CreateSession(context.Background(), CreateSessionRequest{
		UserID:      1,
		StudentName: "Maya",
		GradeBand:   model.GradeBand912,
		Subject:     "chemistry",
	})
	if !errors.Is(err, ErrNoAgentTemplate) {
		t.Fatalf("error = %v, want ErrNoAgentTemplate", err)
	}
	if provider.createCalls != 0 || len(provider.uploads) != 0 {
		t.Error("provider must not be called when no template is configured")
	}
	if len(store.sessions) != 0 {
		t.Error("no session row may be written when no template is configured")
	}
}

func TestCreateSessionUnknownStudent(t *testing.T) {
	store := newFakeStore()
	store.students[7] = &model.Student{ID: 7, UserID: 99, Name: "Other kid"}
	svc := newTestSessionService(store, newFakeProvider(), newFakeDocs())

	studentID := uint(7)
	_, err := svc.CreateSession(context.Background(), CreateSessionRequest{
		UserID:      1,
		StudentID:   &studentID,
		StudentName: "Maya",
		GradeBand:   model.GradeBand35,
		Subject:     "math",
	})
	if !errors.Is(err, ErrStudentNotFound) {
		t.Fatalf("error = %v, want ErrStudentNotFound", err)
	}
}

func TestCreateSessionProviderFailureLeavesReclaimableRow(t *testing.T) {
	store := newFakeStore()
	provider := newFakeProvider()
	provider.createErr = errors.New("upstream 500")
	docs := newFakeDocs()
	docs.add(1, 1, "notes.pdf", []byte("%PDF-1.4 a"))
	svc := newTestSessionService(store, provider, docs)

	_, err := svc.CreateSession(context.Background(), CreateSessionRequest{
		UserID:      1,
		StudentName: "Maya",
		GradeBand:   model.GradeBandK2,
		Subject:     "reading",
		DocumentIDs: []uint{1},
	})
	if err == nil {
		t.Fatal("expected error when provider agent creation fails")
	}

	// The aborted saga must leave an agentless row recording the upload,
	// which the orphan sweep then reclaims.
	if len(store.sessions) != 1 {
		t.Fatalf("got %d session rows, want 1 agentless row", len(store.sessions))
	}
	var session *model.AgentSession
	for _, s := range store.sessions {
		session = s
	}
	if session.AgentID != "" {
		t.Errorf("agent id = %q, want empty on an aborted creation", session.AgentID)
	}
	if fileIDs := session.FileIDList(); len(fileIDs) != 1 || fileIDs[0] != "file-1" {
		t.Fatalf("recorded file ids = %v, want [file-1]", fileIDs)
	}

	session.CreatedAt = time.Now().Add(-2 * time.Hour)
	ended, err := svc.CleanupOrphanedSessions(context.Background())
	if err != nil {
		t.Fatalf("CleanupOrphanedSessions failed: %v", err)
	}
	if ended != 1 {
		t.Fatalf("orphan sweep ended %d sessions, want 1", ended)
	}
	if len(provider.deletedFiles) != 1 || provider.deletedFiles[0] != "file-1" {
		t.Errorf("sweep deleted files %v, want [file-1]", provider.deletedFiles)
	}
	if !session.Ended() {
		t.Error("aborted creation not finalized by the sweep")
	}
}

func TestCreateSessionUploadRecordFailureReclaimsUploads(t *testing.T) {
	store := newFakeStore()
	store.setFilesErr = errors.New("database down")
	provider := newFakeProvider()
	docs := newFakeDocs()
	docs.add(1, 1, "notes.pdf", []byte("%PDF-1.4 a"))
	svc := newTestSessionService(store, provider, docs)

	_, err := svc.CreateSession(context.Background(), CreateSessionRequest{
		UserID:      1,
		StudentName: "Maya",
		GradeBand:   model.GradeBand35,
		Subject:     "math",
		DocumentIDs: []uint{1},
	})
	if err == nil {
		t.Fatal("expected error when recording uploads fails")
	}
	// Uploads the registry never saw cannot be swept later, so they must
	// be deleted on the spot, and no agent may be created.
	if len(provider.deletedFiles) != 1 || provider.deletedFiles[0] != "file-1" {
		t.Errorf("deleted files = %v, want [file-1]", provider.deletedFiles)
	}
	if provider.createCalls != 0 {
		t.Errorf("agent created %d times after a failed upload record, want 0", provider.createCalls)
	}
}

func TestCreateSessionAgentRecordFailureDeletesAgent(t *testing.T) {
	store := newFakeStore()
	store.setAgentErr = errors.New("database down")
	provider := newFakeProvider()
	svc := newTestSessionService(store, provider, newFakeDocs())

	_, err := svc.CreateSession(context.Background(), CreateSessionRequest{
		UserID:      1,
		StudentName: "Maya",
		GradeBand:   model.GradeBand68,
		Subject:     "biology",
	})
	if err == nil {
		t.Fatal("expected error when recording the agent fails")
	}
	if len(provider.deletedAgents) != 1 || provider.deletedAgents[0] != "agent-1" {
		t.Errorf("deleted agents = %v, want [agent-1]", provider.deletedAgents)
	}
	for _, s := range store.sessions {
		if s.AgentID != "" {
			t.Errorf("row records agent id %q after a failed agent record", s.AgentID)
		}
	}
}

func TestCreateSessionUploadsSubsetOfDocuments(t *testing.T) {
	store := newFakeStore()
	provider := newFakeProvider()
	docs := newFakeDocs()
	docs.add(1, 1, "notes.pdf", []byte("%PDF-1.4 a"))
	docs.add(2, 99, "foreign.pdf", []byte("%PDF-1.4 b")) // owned by someone else
	svc := newTestSessionService(store, provider, docs)

	result, err := svc.CreateSession(context.Background(), CreateSessionRequest{
		UserID:      1,
		StudentName: "Maya",
		GradeBand:   model.GradeBand68,
		Subject:     "biology",
		DocumentIDs: []uint{1, 2, 3}, // 2 is foreign, 3 does not exist
	})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	session := store.sessions[result.SessionID]
	fileIDs := session.FileIDList()
	if len(fileIDs) != 1 {
		t.Fatalf("persisted %d file ids, want 1 (only the owned, existing document)", len(fileIDs))
	}
	if got := provider.kbBinds[result.AgentID]; len(got) != 1 || got[0] != fileIDs[0] {
		t.Errorf("knowledge base bound to %v, want %v", got, fileIDs)
	}
	if docIDs := session.DocumentIDList(); len(docIDs) != 3 {
		t.Errorf("requested document ids = %v, want all 3 recorded", docIDs)
	}
}

func TestCreateSessionKnowledgeBaseBindFailureIsNonFatal(t *testing.T) {
	store := newFakeStore()
	provider := newFakeProvider()
	provider.kbErr = errors.New("patch rejected")
	docs := newFakeDocs()
	docs.add(1, 1, "notes.pdf", []byte("%PDF-1.4 a"))
	svc := newTestSessionService(store, provider, docs)

	result, err := svc.CreateSession(context.Background(), CreateSessionRequest{
		UserID:      1,
		StudentName: "Maya",
		GradeBand:   model.GradeBand68,
		Subject:     "biology",
		DocumentIDs: []uint{1},
	})
	if err != nil {
		t.Fatalf("bind failure must not fail session creation: %v", err)
	}
	if store.sessions[result.SessionID] == nil {
		t.Fatal("session row missing after non-fatal bind failure")
	}
}

func TestCreateSessionWithoutDocumentSource(t *testing.T) {
	store := newFakeStore()
	provider := newFakeProvider()
	svc := NewSessionService(store, provider, nil, SessionConfig{Templates: testTemplates()})

	result, err := svc.CreateSession(context.Background(), CreateSessionRequest{
		UserID:      1,
		StudentName: "Maya",
		GradeBand:   model.GradeBandCollege,
		Subject:     "statistics",
		DocumentIDs: []uint{1, 2},
	})
	if err != nil {
		t.Fatalf("CreateSession failed without a document source: %v", err)
	}
	if len(store.sessions[result.SessionID].FileIDList()) != 0 {
		t.Error("no file ids may be recorded without a document source")
	}
}

func TestEndSessionTearsDownRemoteResources(t *testing.T) {
	store := newFakeStore()
	provider := newFakeProvider()
	docs := newFakeDocs()
	docs.add(1, 1, "notes.pdf", []byte("%PDF-1.4 a"))
	svc := newTestSessionService(store, provider, docs)

	result, err := svc.CreateSession(context.Background(), CreateSessionRequest{
		UserID:      1,
		StudentName: "Maya",
		GradeBand:   model.GradeBand912,
		Subject:     "physics",
		DocumentIDs: []uint{1},
	})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if err := svc.EndSession(context.Background(), result.SessionID); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	if !store.sessions[result.SessionID].Ended() {
		t.Error("session not marked ended")
	}
	if len(provider.deletedAgents) != 1 || provider.deletedAgents[0] != result.AgentID {
		t.Errorf("deleted agents = %v, want [%s]", provider.deletedAgents, result.AgentID)
	}
	if len(provider.deletedFiles) != 1 {
		t.Errorf("deleted files = %v, want one file", provider.deletedFiles)
	}
}

func TestEndSessionUnknownID(t *testing.T) {
	svc := newTestSessionService(newFakeStore(), newFakeProvider(), newFakeDocs())
	if err := svc.EndSession(context.Background(), "no-such-id"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("error = %v, want ErrSessionNotFound", err)
	}
}

func TestEndSessionAlreadyEndedIsNoOp(t *testing.T) {
	store := newFakeStore()
	provider := newFakeProvider()
	svc := newTestSessionService(store, provider, newFakeDocs())

	result, err := svc.CreateSession(context.Background(), CreateSessionRequest{
		UserID:      1,
		StudentName: "Maya",
		GradeBand:   model.GradeBandK2,
		Subject:     "reading",
	})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if err := svc.EndSession(context.Background(), result.SessionID); err != nil {
		t.Fatalf("first EndSession failed: %v", err)
	}
	firstEndedAt := *store.sessions[result.SessionID].EndedAt

	if err := svc.EndSession(context.Background(), result.SessionID); err != nil {
		t.Fatalf("second EndSession must be a no-op, got: %v", err)
	}
	if len(provider.deletedAgents) != 1 {
		t.Errorf("agent deleted %d times, want once", len(provider.deletedAgents))
	}
	if !store.sessions[result.SessionID].EndedAt.Equal(firstEndedAt) {
		t.Error("ended_at moved on repeated end")
	}
}

func TestEndSessionTeardownFailuresStillFinalize(t *testing.T) {
	store := newFakeStore()
	provider := newFakeProvider()
	provider.deleteAgentErr = errors.New("agent gone already")
	provider.deleteFileErr = errors.New("file gone already")
	docs := newFakeDocs()
	docs.add(1, 1, "notes.pdf", []byte("%PDF-1.4 a"))
	svc := newTestSessionService(store, provider, docs)

	result, err := svc.CreateSession(context.Background(), CreateSessionRequest{
		UserID:      1,
		StudentName: "Maya",
		GradeBand:   model.GradeBand35,
		Subject:     "math",
		DocumentIDs: []uint{1},
	})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if err := svc.EndSession(context.Background(), result.SessionID); err != nil {
		t.Fatalf("EndSession must succeed despite teardown failures: %v", err)
	}
	if !store.sessions[result.SessionID].Ended() {
		t.Error("session must reach its terminal state even when remote teardown fails")
	}
}

func TestCleanupExpiredSessions(t *testing.T) {
	store := newFakeStore()
	provider := newFakeProvider()
	svc := newTestSessionService(store, provider, newFakeDocs())

	// One expired-open, one open-and-current, one expired-but-ended.
	endedAt := time.Now().Add(-time.Hour)
	store.sessions["expired"] = &model.AgentSession{ID: "expired", AgentID: "agent-x", ExpiresAt: time.Now().Add(-time.Minute)}
	store.sessions["current"] = &model.AgentSession{ID: "current", AgentID: "agent-y", ExpiresAt: time.Now().Add(time.Hour)}
	store.sessions["done"] = &model.AgentSession{ID: "done", AgentID: "agent-z", ExpiresAt: time.Now().Add(-time.Hour), EndedAt: &endedAt}

	ended, err := svc.CleanupExpiredSessions(context.Background())
	if err != nil {
		t.Fatalf("CleanupExpiredSessions failed: %v", err)
	}
	if ended != 1 {
		t.Fatalf("ended = %d, want 1", ended)
	}
	if !store.sessions["expired"].Ended() {
		t.Error("expired session not finalized")
	}
	if store.sessions["current"].Ended() {
		t.Error("current session must stay open")
	}

	// Second run finds nothing.
	ended, err = svc.CleanupExpiredSessions(context.Background())
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if ended != 0 {
		t.Errorf("second sweep ended %d sessions, want 0", ended)
	}
}

func TestCleanupOrphanedSessions(t *testing.T) {
	store := newFakeStore()
	provider := newFakeProvider()
	svc := newTestSessionService(store, provider, newFakeDocs())

	old := time.Now().Add(-2 * time.Hour)
	fresh := time.Now().Add(-10 * time.Minute)
	store.sessions["orphan"] = &model.AgentSession{ID: "orphan", CreatedAt: old, ExpiresAt: time.Now().Add(20 * time.Hour)}
	store.sessions["in-flight"] = &model.AgentSession{ID: "in-flight", CreatedAt: fresh, ExpiresAt: time.Now().Add(23 * time.Hour)}
	store.sessions["healthy"] = &model.AgentSession{ID: "healthy", AgentID: "agent-1", CreatedAt: old, ExpiresAt: time.Now().Add(20 * time.Hour)}

	ended, err := svc.CleanupOrphanedSessions(context.Background())
	if err != nil {
		t.Fatalf("CleanupOrphanedSessions failed: %v", err)
	}
	if ended != 1 {
		t.Fatalf("ended = %d, want 1 (only the old agentless row)", ended)
	}
	if !store.sessions["orphan"].Ended() {
		t.Error("orphan not finalized")
	}
	if store.sessions["in-flight"].Ended() {
		t.Error("a row inside the abandonment window must not be swept")
	}
	if store.sessions["healthy"].Ended() {
		t.Error("a row with an agent id is not an orphan")
	}
	if len(provider.deletedAgents) != 0 {
		t.Errorf("orphan sweep deleted agents %v, want none", provider.deletedAgents)
	}
}

func TestGetSession(t *testing.T) {
	store := newFakeStore()
	store.sessions["s1"] = &model.AgentSession{ID: "s1", UserID: 4}
	svc := newTestSessionService(store, newFakeProvider(), newFakeDocs())

	session, err := svc.GetSession(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if session.UserID != 4 {
		t.Errorf("UserID = %d, want 4", session.UserID)
	}

	if _, err := svc.GetSession(context.Background(), "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("error = %v, want ErrSessionNotFound", err)
	}
}
