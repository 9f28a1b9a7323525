package router

import (
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/voicetutor/api/config"
	"github.com/voicetutor/api/database"
	"github.com/voicetutor/api/handlers"
	auth_handlers "github.com/voicetutor/api/handlers/auth"
	voice_handlers "github.com/voicetutor/api/handlers/voice"
	"github.com/voicetutor/api/services"
	"github.com/voicetutor/api/services/elevenlabs"
	"github.com/voicetutor/api/services/spaces"
	"github.com/voicetutor/api/utils/auth"
	"github.com/voicetutor/api/utils/cache"
	"github.com/voicetutor/api/utils/middleware"
)

func SetupRoutes(app *fiber.App, store database.Storage) {
	getEnv, err := config.Get()
	if err != nil {
		log.Fatalf("Failed to load environment: %v", err)
	}

	if getEnv.JWT_SECRET == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	jwtIssuer := getEnv.JWT_ISSUER
	if jwtIssuer == "" {
		jwtIssuer = "voicetutor-api"
	}

	// Initialize JWT manager with config
	jwtConfig := auth.JWTConfig{
		Secret:        getEnv.JWT_SECRET,
		Expiry:        24 * time.Hour,     // Access token expires in 24 hours
		RefreshExpiry: 7 * 24 * time.Hour, // Refresh token expires in 7 days
		Issuer:        jwtIssuer,
	}
	jwtManager := auth.NewJWTManager(jwtConfig)

	db := store.DB()

	// Initialize Redis cache for brute force protection
	redisURL := getEnv.REDIS_URL
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}

	redisCache, err := cache.NewRedisCache(redisURL)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v. Brute force protection will be disabled.", err)
	}

	var bruteForceProtection *middleware.BruteForceProtection
	if redisCache != nil {
		bruteForceProtection = middleware.NewBruteForceProtection(redisCache)
	}

	// Initialize auth middleware with DB for blacklist checking
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, db)

	// Initialize auth handler with brute force protection
	authHandler := auth_handlers.NewAuthHandler(db, jwtManager, bruteForceProtection)

	// Initialize the agent provider client
	elevenLabsClient := elevenlabs.NewClient(elevenlabs.Config{
		APIKey: getEnv.ELEVENLABS_API_KEY,
	})
	provider := services.NewElevenLabsProvider(elevenLabsClient)

	// Initialize the document source backed by Spaces. A missing Spaces
	// configuration disables study material attachment but not sessions.
	var docs services.DocumentSource
	if getEnv.DO_SPACES_ACCESS_KEY != "" {
		spacesClient, err := spaces.NewClient(spaces.Config{
			AccessKey: getEnv.DO_SPACES_ACCESS_KEY,
			SecretKey: getEnv.DO_SPACES_SECRET_KEY,
			Bucket:    getEnv.DO_SPACES_BUCKET,
			Region:    getEnv.DO_SPACES_REGION,
			Endpoint:  getEnv.DO_SPACES_ENDPOINT,
		})
		if err != nil {
			log.Printf("Warning: Failed to initialize Spaces client: %v. Document attachment will be disabled.", err)
		} else {
			docs = services.NewDocumentSourceService(db, spacesClient)
		}
	} else {
		log.Println("Warning: DO_SPACES_ACCESS_KEY not set. Document attachment will be disabled.")
	}

	// Initialize voice session services
	gormStore, ok := store.(services.Store)
	if !ok {
		log.Fatal("Storage does not implement the session persistence contract")
	}
	sessionService := services.NewSessionService(gormStore, provider, docs, services.SessionConfig{
		Templates:  getEnv.AGENT_TEMPLATES,
		SessionTTL: time.Duration(getEnv.SESSION_TTL_HOURS) * time.Hour,
	})
	quotaService := services.NewQuotaService(gormStore)
	voiceHandler := voice_handlers.NewVoiceHandler(sessionService, quotaService)

	// Apply security middleware
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:3001"
	}

	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    allowedOrigins,
		RateLimitRequests: 100,             // 100 requests
		RateLimitWindow:   1 * time.Minute, // per minute
	})

	// Health check endpoint (public)
	app.Get("/ping", func(c *fiber.Ctx) error {
		return handlers.HandleCheckHealth(c, store)
	})

	// API v1 group
	api := app.Group("/api/v1")

	// Auth routes (public)
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)

	// Login with brute force protection
	if bruteForceProtection != nil {
		authGroup.Post("/login", bruteForceProtection.CheckAndRecordAttempt(), authHandler.Login)
	} else {
		authGroup.Post("/login", authHandler.Login)
	}

	authGroup.Post("/refresh", authHandler.Refresh)

	// Protected auth routes
	authGroup.Post("/logout", authMiddleware.Required(), authHandler.Logout)
	authGroup.Get("/profile", authMiddleware.Required(), authHandler.GetProfile)

	// Voice tutoring session routes (all protected)
	voiceGroup := api.Group("/voice", authMiddleware.Required())
	voiceGroup.Get("/availability", voiceHandler.CheckAvailability)
	voiceGroup.Post("/sessions", voiceHandler.CreateSession)
	voiceGroup.Post("/sessions/:id/end", voiceHandler.EndSession)
	voiceGroup.Post("/sessions/:id/usage", voiceHandler.LogUsage)

	// Manual sweep trigger (admin only)
	voiceGroup.Post("/cleanup", authMiddleware.RequireAdmin(), voiceHandler.Cleanup)
}
