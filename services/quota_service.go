package services

import (
	"context"
	"fmt"

	"github.com/voicetutor/api/model"
)

// Denial reasons returned by CheckAvailability
const (
	ReasonUserNotFound   = "user_not_found"
	ReasonNoSubscription = "no_subscription"
	ReasonNoMinutes      = "no_minutes"
)

// LowMinutesWarning is the remaining-minutes threshold below which clients
// should warn the user.
const LowMinutesWarning = 10

// QuotaService is the accounting layer over a user's monthly voice-minute
// allowance, bonus minutes and used minutes. It never resets counters or
// touches the monthly reset date; that belongs to the billing scheduler.
type QuotaService struct {
	store Store
}

// NewQuotaService creates a new quota service
func NewQuotaService(store Store) *QuotaService {
	return &QuotaService{store: store}
}

// AvailableMinutes is a snapshot of a user's voice-minute balance
type AvailableMinutes struct {
	Total     int `json:"total"`
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
}

// Availability is the pre-flight gate result for starting a voice session.
// It is a read-only snapshot, not a reservation: no minute is held here.
type Availability struct {
	Allowed          bool   `json:"allowed"`
	Reason           string `json:"reason,omitempty"`
	RemainingMinutes int    `json:"remaining_minutes"`
	TotalMinutes     int    `json:"total_minutes"`
	UsedMinutes      int    `json:"used_minutes"`
	WarningThreshold bool   `json:"warning_threshold"`
}

// GetAvailableMinutes returns the user's current balance with
// remaining = max(0, allowance + bonus - used).
func (s *QuotaService) GetAvailableMinutes(ctx context.Context, userID uint) (*AvailableMinutes, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", userID, err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return minutesOf(user), nil
}

// CheckAvailability evaluates, in order: user exists, subscription active,
// minutes remaining. Two concurrent calls for a near-exhausted account may
// both pass; the quota is a soft limit reconciled via usage logging.
func (s *QuotaService) CheckAvailability(ctx context.Context, userID uint) (*Availability, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", userID, err)
	}
	if user == nil {
		return &Availability{Allowed: false, Reason: ReasonUserNotFound}, nil
	}

	balance := minutesOf(user)
	result := &Availability{
		RemainingMinutes: balance.Remaining,
		TotalMinutes:     balance.Total,
		UsedMinutes:      balance.Used,
		WarningThreshold: balance.Remaining < LowMinutesWarning,
	}

	if user.SubscriptionStatus != model.SubscriptionActive {
		result.Reason = ReasonNoSubscription
		return result, nil
	}
	if balance.Remaining <= 0 {
		result.Reason = ReasonNoMinutes
		return result, nil
	}

	result.Allowed = true
	return result, nil
}

// LogUsage appends a usage log entry and increments the user's used minutes.
// Non-positive minutes are skipped: the usage log only ever records positive
// consumption.
func (s *QuotaService) LogUsage(ctx context.Context, userID uint, sessionID *string, minutes int, sessionType string) error {
	if minutes <= 0 {
		return nil
	}
	if sessionType == "" {
		sessionType = model.SessionTypeVoiceTutoring
	}

	entry := &model.VoiceUsageLog{
		UserID:      userID,
		SessionID:   sessionID,
		MinutesUsed: minutes,
		SessionType: sessionType,
	}
	if err := s.store.AddUsage(ctx, entry); err != nil {
		return fmt.Errorf("failed to log usage for user %d: %w", userID, err)
	}
	return nil
}

// MinutesFromElapsed converts elapsed milliseconds to billable minutes,
// rounding any nonzero duration up to at least one minute.
func MinutesFromElapsed(elapsedMS int64) int {
	if elapsedMS <= 0 {
		return 0
	}
	return int((elapsedMS + 59999) / 60000)
}

func minutesOf(user *model.User) *AvailableMinutes {
	total := user.MonthlyVoiceMinutes + user.BonusMinutes
	remaining := total - user.MonthlyVoiceMinutesUsed
	if remaining < 0 {
		remaining = 0
	}
	return &AvailableMinutes{
		Total:     total,
		Used:      user.MonthlyVoiceMinutesUsed,
		Remaining: remaining,
	}
}
