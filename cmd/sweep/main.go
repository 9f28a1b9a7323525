package main

import (
	"context"
	"log"
	"time"

	"github.com/voicetutor/api/config"
	"github.com/voicetutor/api/database"
	"github.com/voicetutor/api/services"
	"github.com/voicetutor/api/services/elevenlabs"
)

// One-shot sweep runner for operators: ends expired and orphaned sessions
// once and exits. The same sweeps run on a schedule inside the API server.
func main() {
	if err := config.LoadENV(); err != nil {
		log.Printf("Warning: could not load .env: %v", err)
	}

	getEnv, err := config.Get()
	if err != nil {
		log.Fatalf("Failed to load environment: %v", err)
	}

	store, err := database.StartGORM()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	client := elevenlabs.NewClient(elevenlabs.Config{
		APIKey: getEnv.ELEVENLABS_API_KEY,
	})
	provider := services.NewElevenLabsProvider(client)
	sessionService := services.NewSessionService(store, provider, nil, services.SessionConfig{
		Templates:  getEnv.AGENT_TEMPLATES,
		SessionTTL: time.Duration(getEnv.SESSION_TTL_HOURS) * time.Hour,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// An unreachable API makes every teardown fail, so check up front. The
	// sweeps still run: rows past their window are finalized regardless.
	if err := client.HealthCheck(ctx); err != nil {
		log.Printf("Warning: ElevenLabs API unreachable, remote teardown will fail: %v", err)
	}

	expired, err := sessionService.CleanupExpiredSessions(ctx)
	if err != nil {
		log.Printf("Expired session sweep finished with error: %v", err)
	}
	orphaned, err := sessionService.CleanupOrphanedSessions(ctx)
	if err != nil {
		log.Printf("Orphaned session sweep finished with error: %v", err)
	}

	log.Printf("Sweep complete: ended %d expired and %d orphaned sessions", expired, orphaned)
}
