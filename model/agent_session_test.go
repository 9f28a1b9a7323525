package model

import (
	"testing"
	"time"
)

func TestGradeBandValid(t *testing.T) {
	for _, band := range GradeBands {
		if !band.Valid() {
			t.Errorf("configured band %q reported invalid", band)
		}
	}
	for _, bad := range []GradeBand{"", "K2", "k-2", "7th grade", "Adult"} {
		if bad.Valid() {
			t.Errorf("band %q should be invalid", bad)
		}
	}
}

func TestAgentSessionEnded(t *testing.T) {
	var s AgentSession
	if s.Ended() {
		t.Error("fresh session must be open")
	}
	now := time.Now()
	s.EndedAt = &now
	if !s.Ended() {
		t.Error("session with ended_at must report ended")
	}
}

func TestAgentSessionIDListRoundTrip(t *testing.T) {
	var s AgentSession

	s.SetDocumentIDs([]uint{3, 1, 4})
	if got := s.DocumentIDList(); len(got) != 3 || got[0] != 3 || got[2] != 4 {
		t.Errorf("DocumentIDList() = %v", got)
	}

	s.SetFileIDs(nil)
	if got := s.FileIDList(); len(got) != 0 {
		t.Errorf("FileIDList() after nil set = %v, want empty", got)
	}
}
