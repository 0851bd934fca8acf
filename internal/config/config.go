package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	JWTSecret   string
	MongoURI    string
	DBName      string
	SkipAuth    bool
	Environment string
	AppId       string

	// Escalation monitor policy. The schedule is a robfig/cron spec;
	// RemindAfter is how long an already-flagged task waits before it is
	// reminded again.
	EscalationSchedule    string
	EscalationRemindAfter time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	} else {
		log.Println("Loaded .env file successfully")
	}

	remindAfter := 24 * time.Hour
	if raw := getEnv("ESCALATION_REMIND_AFTER", ""); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			remindAfter = d
		} else {
			log.Printf("Invalid ESCALATION_REMIND_AFTER %q, using default: %v", raw, err)
		}
	}

	return &Config{
		Port:                  getEnv("PORT", "8080"),
		JWTSecret:             getEnv("JWT_SECRET", "secret"),
		MongoURI:              getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:                getEnv("DB_NAME", "decor-crm"),
		SkipAuth:              getEnv("SKIP_AUTH", "false") == "true",
		Environment:           getEnv("ENVIRONMENT", "development"),
		AppId:                 getEnv("APP_ID", "decor-crm"),
		EscalationSchedule:    getEnv("ESCALATION_SCHEDULE", "@every 2h"),
		EscalationRemindAfter: remindAfter,
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
