package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/voicetutor/api/model"
)

// fakeStore is an in-memory Store for exercising the services without a
// database.
type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]*model.AgentSession
	users    map[uint]*model.User
	students map[uint]*model.Student
	usage    []model.VoiceUsageLog

	createErr   error
	setFilesErr error
	setAgentErr error
	endErr      error
	endCalls    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[string]*model.AgentSession),
		users:    make(map[uint]*model.User),
		students: make(map[uint]*model.Student),
	}
}

func (f *fakeStore) CreateAgentSession(ctx context.Context, session *model.AgentSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	copied := *session
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now()
	}
	f.sessions[session.ID] = &copied
	return nil
}

func (f *fakeStore) SetAgentSessionFiles(ctx context.Context, id string, fileIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setFilesErr != nil {
		return f.setFilesErr
	}
	if session, ok := f.sessions[id]; ok {
		session.SetFileIDs(fileIDs)
	}
	return nil
}

func (f *fakeStore) SetAgentSessionAgent(ctx context.Context, id string, agentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setAgentErr != nil {
		return f.setAgentErr
	}
	if session, ok := f.sessions[id]; ok {
		session.AgentID = agentID
	}
	return nil
}

func (f *fakeStore) GetAgentSession(ctx context.Context, id string) (*model.AgentSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (f *fakeStore) EndAgentSession(ctx context.Context, id string, endedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endCalls++
	if f.endErr != nil {
		return f.endErr
	}
	session, ok := f.sessions[id]
	if !ok {
		return nil
	}
	if session.EndedAt == nil {
		t := endedAt
		session.EndedAt = &t
	}
	return nil
}

func (f *fakeStore) GetExpiredAgentSessions(ctx context.Context, now time.Time) ([]model.AgentSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.AgentSession
	for _, s := range f.sessions {
		if s.EndedAt == nil && s.ExpiresAt.Before(now) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeStore) GetOrphanedAgentSessions(ctx context.Context, abandonedBefore time.Time) ([]model.AgentSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.AgentSession
	for _, s := range f.sessions {
		if s.EndedAt == nil && s.AgentID == "" && s.CreatedAt.Before(abandonedBefore) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeStore) GetUser(ctx context.Context, id uint) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (f *fakeStore) GetStudent(ctx context.Context, id uint, userID uint) (*model.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	student, ok := f.students[id]
	if !ok || student.UserID != userID {
		return nil, nil
	}
	copied := *student
	return &copied, nil
}

func (f *fakeStore) AddUsage(ctx context.Context, entry *model.VoiceUsageLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.usage = append(f.usage, *entry)
	if user, ok := f.users[entry.UserID]; ok {
		user.MonthlyVoiceMinutesUsed += entry.MinutesUsed
	}
	return nil
}

// fakeProvider is an in-memory AgentProvider recording every call.
type fakeProvider struct {
	mu sync.Mutex

	createCalls    int
	agents         []string
	agentNames     []string
	deletedAgents  []string
	uploads        []string
	deletedFiles   []string
	kbBinds        map[string][]string
	createErr      error
	uploadErr      error
	deleteAgentErr error
	deleteFileErr  error
	kbErr          error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{kbBinds: make(map[string][]string)}
}

func (f *fakeProvider) CreateAgent(ctx context.Context, name, prompt, firstMessage string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return "", f.createErr
	}
	agentID := fmt.Sprintf("agent-%d", f.createCalls)
	f.agents = append(f.agents, agentID)
	f.agentNames = append(f.agentNames, name)
	return agentID, nil
}

func (f *fakeProvider) DeleteAgent(ctx context.Context, agentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteAgentErr != nil {
		return f.deleteAgentErr
	}
	f.deletedAgents = append(f.deletedAgents, agentID)
	return nil
}

func (f *fakeProvider) UploadDocument(ctx context.Context, name string, content []byte, mimeType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	fileID := fmt.Sprintf("file-%d", len(f.uploads)+1)
	f.uploads = append(f.uploads, fileID)
	return fileID, nil
}

func (f *fakeProvider) DeleteDocument(ctx context.Context, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteFileErr != nil {
		return f.deleteFileErr
	}
	f.deletedFiles = append(f.deletedFiles, fileID)
	return nil
}

func (f *fakeProvider) UpdateAgentKnowledgeBase(ctx context.Context, agentID string, fileIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.kbErr != nil {
		return f.kbErr
	}
	f.kbBinds[agentID] = append([]string(nil), fileIDs...)
	return nil
}

// fakeDocs is an in-memory DocumentSource.
type fakeDocs struct {
	docs    map[uint]*model.StudyDocument
	content map[uint][]byte
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{
		docs:    make(map[uint]*model.StudyDocument),
		content: make(map[uint][]byte),
	}
}

func (f *fakeDocs) add(id uint, userID uint, name string, content []byte) {
	f.docs[id] = &model.StudyDocument{ID: id, UserID: userID, OriginalName: name, FileType: "application/pdf"}
	f.content[id] = content
}

func (f *fakeDocs) GetDocument(ctx context.Context, docID uint, userID uint) (*model.StudyDocument, error) {
	doc, ok := f.docs[docID]
	if !ok || doc.UserID != userID {
		return nil, nil
	}
	return doc, nil
}

func (f *fakeDocs) GetDocumentContent(ctx context.Context, docID uint) ([]byte, error) {
	content, ok := f.content[docID]
	if !ok {
		return nil, nil
	}
	return content, nil
}

func testTemplates() AgentTemplates {
	return AgentTemplates{
		model.GradeBandK2:      "base-k2",
		model.GradeBand35:      "base-35",
		model.GradeBand68:      "base-68",
		model.GradeBand912:     "base-912",
		model.GradeBandCollege: "base-college",
	}
}
