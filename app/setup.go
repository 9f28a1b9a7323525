package app

import (
	"fmt"
	"os"
	"time"

	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/voicetutor/api/api"
	"github.com/voicetutor/api/config"
	"github.com/voicetutor/api/database"
	"github.com/voicetutor/api/router"
	"github.com/voicetutor/api/services"
	cronsvc "github.com/voicetutor/api/services/cron"
	"github.com/voicetutor/api/services/elevenlabs"
)

func SetupAndRunServer() error {

	// Load ENV
	if err := config.LoadENV(); err != nil {
		return err

	}

	getEnv, err := config.Get()
	if err != nil {
		return err
	}

	// Initialize GORM database connection
	store, err := database.StartGORM()
	if err != nil {
		print("Check whether the Postgres is running or not\n")
		print("If not running, run the following command:\n")
		print("  make docker-up   (for Docker setup)\n")
		print("  make db-up       (for local PostgreSQL)\n")
		return err
	}

	if err := store.Init(); err != nil {
		print("Failed to initialize database tables\n")
		print("Error running migrations:\n")
		return err
	}

	// Initialize Cron Manager (only if enabled via environment variable)
	var cronManager *cronsvc.CronManager
	if os.Getenv("CRON_ENABLED") != "false" { // Default to enabled
		provider := services.NewElevenLabsProvider(elevenlabs.NewClient(elevenlabs.Config{
			APIKey: getEnv.ELEVENLABS_API_KEY,
		}))
		sweepService := services.NewSessionService(store, provider, nil, services.SessionConfig{
			Templates:  getEnv.AGENT_TEMPLATES,
			SessionTTL: time.Duration(getEnv.SESSION_TTL_HOURS) * time.Hour,
		})

		cronManager = cronsvc.NewCronManager(store.DB(), sweepService)
		if err := cronManager.Start(); err != nil {
			print("Warning: Failed to start cron jobs\n")
			print("Error: ", err.Error(), "\n")
			// Don't fail the app, just log the warning
		}
	}

	// Defer Closing DB and stopping cron jobs
	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
		store.Close()
	}()

	// Init API
	var server *api.APIServer = api.NewAPIServer(fmt.Sprintf(":%d", getEnv.PORT))
	app := server.GetEngine()

	// Attach Middleware
	// Custom Logger
	app.Use(logger.New())

	app.Use(recover.New())

	// Setup Routes
	router.SetupRoutes(app, store)

	// Get the PORT & Start the Server
	return server.Run()

}
