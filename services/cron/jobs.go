package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/voicetutor/api/utils/auth"
)

// CleanupExpiredSessions ends sessions whose TTL has elapsed without the
// client reporting an end. Runs every 30 minutes.
func (m *CronManager) CleanupExpiredSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	jobName := "cleanup_expired_sessions"

	ended, err := m.sessions.CleanupExpiredSessions(ctx)
	if err != nil {
		m.logJobError(jobName, fmt.Errorf("expired session sweep: %w", err))
		return
	}

	if ended == 0 {
		m.logJobComplete(jobName, "No expired sessions")
		return
	}
	m.logJobComplete(jobName, fmt.Sprintf("Ended %d expired sessions", ended))
}

// CleanupOrphanedSessions ends registry rows whose agent provisioning never
// completed and that have sat untouched past the abandonment window. Runs
// hourly.
func (m *CronManager) CleanupOrphanedSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	jobName := "cleanup_orphaned_sessions"

	ended, err := m.sessions.CleanupOrphanedSessions(ctx)
	if err != nil {
		m.logJobError(jobName, fmt.Errorf("orphaned session sweep: %w", err))
		return
	}

	if ended == 0 {
		m.logJobComplete(jobName, "No orphaned sessions")
		return
	}
	m.logJobComplete(jobName, fmt.Sprintf("Ended %d orphaned sessions", ended))
}

// CleanupExpiredTokens purges blacklist rows whose tokens have expired
// anyway. Runs daily.
func (m *CronManager) CleanupExpiredTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	jobName := "cleanup_expired_tokens"

	blacklist := auth.NewBlacklistService(m.db)
	if err := blacklist.CleanupExpiredTokens(ctx); err != nil {
		m.logJobError(jobName, fmt.Errorf("token blacklist cleanup: %w", err))
		return
	}

	m.logJobComplete(jobName, "Expired blacklist tokens purged")
}
