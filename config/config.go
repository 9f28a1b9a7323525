package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/voicetutor/api/model"
)

// LoadENV loads environment variables from .env unless GO_ENV says otherwise
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		err := godotenv.Load()
		if err != nil {
			return err
		}
	}

	return nil
}

type EnviornmentVariable struct {
	// All variables
	GO_ENV       string
	DB_USER_NAME string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	DB_SSL_MODE  string
	PORT         int
	// JWT Configuration
	JWT_SECRET string
	JWT_ISSUER string
	// Redis Configuration
	REDIS_URL      string
	REDIS_PASSWORD string
	// ElevenLabs Configuration
	ELEVENLABS_API_KEY string
	// DigitalOcean Spaces (study material storage)
	DO_SPACES_ACCESS_KEY string
	DO_SPACES_SECRET_KEY string
	DO_SPACES_BUCKET     string
	DO_SPACES_REGION     string
	DO_SPACES_ENDPOINT   string
	// Voice session lifecycle
	SESSION_TTL_HOURS int
	// Grade-band base agent templates
	AGENT_TEMPLATES map[model.GradeBand]string
}

func Get() (*EnviornmentVariable, error) {

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 8080
	}

	ttlHours, err := strconv.Atoi(os.Getenv("SESSION_TTL_HOURS"))
	if err != nil || ttlHours <= 0 {
		ttlHours = 24
	}

	// Database defaults
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}

	dbPort := os.Getenv("DB_PORT")
	if dbPort == "" {
		dbPort = "5432"
	}

	envVariables := &EnviornmentVariable{
		GO_ENV:       os.Getenv("GO_ENV"),
		DB_USER_NAME: os.Getenv("DB_USER_NAME"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		DB_NAME:      os.Getenv("DB_NAME"),
		DB_HOST:      dbHost,
		DB_PORT:      dbPort,
		DB_SSL_MODE:  os.Getenv("DB_SSL_MODE"),
		PORT:         port,
		// JWT
		JWT_SECRET: os.Getenv("JWT_SECRET"),
		JWT_ISSUER: os.Getenv("JWT_ISSUER"),
		// Redis
		REDIS_URL:      os.Getenv("REDIS_URL"),
		REDIS_PASSWORD: os.Getenv("REDIS_PASSWORD"),
		// ElevenLabs
		ELEVENLABS_API_KEY: os.Getenv("ELEVENLABS_API_KEY"),
		// Spaces
		DO_SPACES_ACCESS_KEY: os.Getenv("DO_SPACES_ACCESS_KEY"),
		DO_SPACES_SECRET_KEY: os.Getenv("DO_SPACES_SECRET_KEY"),
		DO_SPACES_BUCKET:     os.Getenv("DO_SPACES_BUCKET"),
		DO_SPACES_REGION:     os.Getenv("DO_SPACES_REGION"),
		DO_SPACES_ENDPOINT:   os.Getenv("DO_SPACES_ENDPOINT"),
		// Sessions
		SESSION_TTL_HOURS: ttlHours,
		AGENT_TEMPLATES:   loadAgentTemplates(),
	}

	return envVariables, nil
}

// loadAgentTemplates reads the per-grade-band base agent ids. Bands without
// a configured template are simply absent from the map; session creation
// for them fails with a configuration error before any remote call.
func loadAgentTemplates() map[model.GradeBand]string {
	templates := map[model.GradeBand]string{}
	envKeys := map[model.GradeBand]string{
		model.GradeBandK2:      "ELEVENLABS_AGENT_K2",
		model.GradeBand35:      "ELEVENLABS_AGENT_G35",
		model.GradeBand68:      "ELEVENLABS_AGENT_G68",
		model.GradeBand912:     "ELEVENLABS_AGENT_G912",
		model.GradeBandCollege: "ELEVENLABS_AGENT_COLLEGE",
	}
	for band, key := range envKeys {
		if id := os.Getenv(key); id != "" {
			templates[band] = id
		}
	}
	return templates
}
