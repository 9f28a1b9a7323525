package services

import (
	"context"
	"errors"
	"testing"

	"github.com/voicetutor/api/model"
)

func activeUser(id uint, monthly, used, bonus int) *model.User {
	return &model.User{
		ID:                      id,
		SubscriptionStatus:      model.SubscriptionActive,
		MonthlyVoiceMinutes:     monthly,
		MonthlyVoiceMinutesUsed: used,
		BonusMinutes:            bonus,
	}
}

func TestGetAvailableMinutes(t *testing.T) {
	store := newFakeStore()
	store.users[1] = activeUser(1, 60, 5, 0)
	svc := NewQuotaService(store)

	balance, err := svc.GetAvailableMinutes(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetAvailableMinutes failed: %v", err)
	}
	if balance.Total != 60 || balance.Used != 5 || balance.Remaining != 55 {
		t.Errorf("balance = %+v, want total 60 used 5 remaining 55", balance)
	}
}

func TestGetAvailableMinutesIncludesBonus(t *testing.T) {
	store := newFakeStore()
	store.users[1] = activeUser(1, 60, 50, 30)
	svc := NewQuotaService(store)

	balance, err := svc.GetAvailableMinutes(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetAvailableMinutes failed: %v", err)
	}
	if balance.Total != 90 || balance.Remaining != 40 {
		t.Errorf("balance = %+v, want total 90 remaining 40", balance)
	}
}

func TestGetAvailableMinutesClampsOverdraft(t *testing.T) {
	store := newFakeStore()
	store.users[1] = activeUser(1, 60, 75, 0)
	svc := NewQuotaService(store)

	balance, err := svc.GetAvailableMinutes(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetAvailableMinutes failed: %v", err)
	}
	if balance.Remaining != 0 {
		t.Errorf("remaining = %d, want 0 when used exceeds total", balance.Remaining)
	}
}

func TestGetAvailableMinutesUnknownUser(t *testing.T) {
	svc := NewQuotaService(newFakeStore())
	if _, err := svc.GetAvailableMinutes(context.Background(), 42); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("error = %v, want ErrUserNotFound", err)
	}
}

func TestCheckAvailabilityRuleOrder(t *testing.T) {
	store := newFakeStore()
	store.users[2] = &model.User{ID: 2, SubscriptionStatus: model.SubscriptionNone, MonthlyVoiceMinutes: 60}
	store.users[3] = activeUser(3, 60, 60, 0)
	store.users[4] = activeUser(4, 60, 5, 0)
	// User 5 fails both checks; the subscription reason must win.
	store.users[5] = &model.User{ID: 5, SubscriptionStatus: model.SubscriptionCancelled, MonthlyVoiceMinutes: 10, MonthlyVoiceMinutesUsed: 10}
	svc := NewQuotaService(store)

	cases := []struct {
		userID  uint
		allowed bool
		reason  string
	}{
		{1, false, ReasonUserNotFound},
		{2, false, ReasonNoSubscription},
		{3, false, ReasonNoMinutes},
		{4, true, ""},
		{5, false, ReasonNoSubscription},
	}
	for _, tc := range cases {
		got, err := svc.CheckAvailability(context.Background(), tc.userID)
		if err != nil {
			t.Fatalf("CheckAvailability(%d) failed: %v", tc.userID, err)
		}
		if got.Allowed != tc.allowed || got.Reason != tc.reason {
			t.Errorf("CheckAvailability(%d) = allowed %v reason %q, want allowed %v reason %q",
				tc.userID, got.Allowed, got.Reason, tc.allowed, tc.reason)
		}
	}
}

func TestCheckAvailabilityWarningThreshold(t *testing.T) {
	store := newFakeStore()
	store.users[1] = activeUser(1, 60, 51, 0) // 9 remaining
	store.users[2] = activeUser(2, 60, 50, 0) // 10 remaining
	svc := NewQuotaService(store)

	low, err := svc.CheckAvailability(context.Background(), 1)
	if err != nil {
		t.Fatalf("CheckAvailability failed: %v", err)
	}
	if !low.Allowed || !low.WarningThreshold {
		t.Errorf("9 remaining: allowed %v warning %v, want allowed with warning", low.Allowed, low.WarningThreshold)
	}

	ok, err := svc.CheckAvailability(context.Background(), 2)
	if err != nil {
		t.Fatalf("CheckAvailability failed: %v", err)
	}
	if ok.WarningThreshold {
		t.Error("exactly 10 remaining must not trip the warning")
	}
}

func TestLogUsage(t *testing.T) {
	store := newFakeStore()
	store.users[1] = activeUser(1, 60, 0, 0)
	svc := NewQuotaService(store)

	sessionID := "abc"
	if err := svc.LogUsage(context.Background(), 1, &sessionID, 3, ""); err != nil {
		t.Fatalf("LogUsage failed: %v", err)
	}
	if len(store.usage) != 1 {
		t.Fatalf("usage entries = %d, want 1", len(store.usage))
	}
	entry := store.usage[0]
	if entry.MinutesUsed != 3 || entry.SessionType != model.SessionTypeVoiceTutoring {
		t.Errorf("entry = %+v, want 3 minutes of voice_tutoring", entry)
	}
	if store.users[1].MonthlyVoiceMinutesUsed != 3 {
		t.Errorf("used minutes = %d, want 3", store.users[1].MonthlyVoiceMinutesUsed)
	}
}

func TestLogUsageSkipsNonPositiveMinutes(t *testing.T) {
	store := newFakeStore()
	store.users[1] = activeUser(1, 60, 0, 0)
	svc := NewQuotaService(store)

	if err := svc.LogUsage(context.Background(), 1, nil, 0, ""); err != nil {
		t.Fatalf("LogUsage(0) failed: %v", err)
	}
	if err := svc.LogUsage(context.Background(), 1, nil, -5, ""); err != nil {
		t.Fatalf("LogUsage(-5) failed: %v", err)
	}
	if len(store.usage) != 0 {
		t.Errorf("usage entries = %d, want none for non-positive minutes", len(store.usage))
	}
}

func TestMinutesFromElapsed(t *testing.T) {
	cases := []struct {
		elapsedMS int64
		want      int
	}{
		{0, 0},
		{-100, 0},
		{1, 1},
		{59999, 1},
		{60000, 1},
		{60001, 2},
		{125000, 3},
	}
	for _, tc := range cases {
		if got := MinutesFromElapsed(tc.elapsedMS); got != tc.want {
			t.Errorf("MinutesFromElapsed(%d) = %d, want %d", tc.elapsedMS, got, tc.want)
		}
	}
}
