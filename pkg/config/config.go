package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const devJWTSecret = "supersecretjwtkey"

type Config struct {
	Port     string
	Env      string
	LogLevel string

	// StoreDriver selects the document store: "firestore" or "mongo".
	StoreDriver             string
	FirebaseCredentialsPath string
	FirebaseProjectID       string
	PostgresConnStr         string
	MongoURI                string
	MongoDatabase           string

	JWTSecret    string
	TokenTTL     time.Duration
	ToastTimeout time.Duration

	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitBurst    int

	ShutdownTimeout time.Duration
}

// Load reads the environment after loading envFiles (".env" when none are given).
func Load(envFiles ...string) *Config {
	if err := godotenv.Load(envFiles...); err != nil {
		log.Println("No .env file found, assuming environment variables are set.")
	}

	return &Config{
		Port:                    getString("PORT", "8080"),
		Env:                     getString("ENV", "development"),
		LogLevel:                getString("LOG_LEVEL", "info"),
		StoreDriver:             strings.ToLower(getString("STORE_DRIVER", "firestore")),
		FirebaseCredentialsPath: getString("FIREBASE_CREDENTIALS_PATH", ""),
		FirebaseProjectID:       getString("FIREBASE_PROJECT_ID", ""),
		PostgresConnStr:         getString("POSTGRES_CONN_STR", ""),
		MongoURI:                getString("MONGO_URI", ""),
		MongoDatabase:           getString("MONGO_DATABASE", "skillshare"),
		JWTSecret:               getString("JWT_SECRET", devJWTSecret),
		TokenTTL:                getDuration("TOKEN_TTL", 72*time.Hour),
		ToastTimeout:            getDuration("TOAST_TIMEOUT", 4*time.Second),
		RateLimitRequests:       getInt("RATE_LIMIT_REQUESTS", 30),
		RateLimitWindow:         getDuration("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitBurst:          getInt("RATE_LIMIT_BURST", 10),
		ShutdownTimeout:         getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.PostgresConnStr == "" {
		errs = append(errs, errors.New("POSTGRES_CONN_STR environment variable not set"))
	}
	switch c.StoreDriver {
	case "firestore":
		if c.FirebaseCredentialsPath == "" {
			errs = append(errs, errors.New("FIREBASE_CREDENTIALS_PATH is required for the firestore store"))
		}
	case "mongo":
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo store"))
		}
	default:
		errs = append(errs, errors.New("STORE_DRIVER must be firestore or mongo, got "+strconv.Quote(c.StoreDriver)))
	}
	if c.IsProduction() && c.JWTSecret == devJWTSecret {
		errs = append(errs, errors.New("JWT_SECRET must be set in production"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getString(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("invalid integer for %s: %q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("invalid duration for %s: %q, using default %s", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
