package config

import (
	"log"
	"os"
	"strconv"

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

	// QuickBooks provider settings
	QBOBaseURL       string
	QBORealmID       string
	QBOAccessToken   string
	QBOWebhookSecret string

	// Business-hours window for gated schedules (weekdays only)
	BusinessHoursStart int // hour of day, inclusive
	BusinessHoursEnd   int // hour of day, exclusive
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	} else {
		log.Println("Loaded .env file successfully")
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		JWTSecret:   getEnv("JWT_SECRET", "secret"),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:      getEnv("DB_NAME", "go-qbsync"),
		SkipAuth:    getEnv("SKIP_AUTH", "false") == "true",
		Environment: getEnv("ENVIRONMENT", "development"),
		AppId:       getEnv("APP_ID", "go-qbsync"),

		QBOBaseURL:       getEnv("QBO_BASE_URL", "https://sandbox-quickbooks.api.intuit.com"),
		QBORealmID:       getEnv("QBO_REALM_ID", ""),
		QBOAccessToken:   getEnv("QBO_ACCESS_TOKEN", ""),
		QBOWebhookSecret: getEnv("QBO_WEBHOOK_SECRET", ""),

		BusinessHoursStart: getEnvInt("BUSINESS_HOURS_START", 7),
		BusinessHoursEnd:   getEnvInt("BUSINESS_HOURS_END", 19),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
