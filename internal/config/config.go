package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr string
	DBPath     string
	ImagePath  string
	LogLevel   string
	LogFile    string

	// Remote stores. Empty values mean the collection runs local-only.
	DatabaseURL   string
	APIBaseURL    string
	RemoteTimeout time.Duration

	FXURL string
	FXTTL time.Duration

	NATSURL string

	JWTSecret     string
	JWTExpiration time.Duration
	AdminPassword string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	// CORSOrigins are the browser origins allowed to call the API. Empty
	// means same-origin only.
	CORSOrigins []string

	ClaudeAPIKey string
	ClaudeModel  string

	WhatsAppNumber string
	ContactEmail   string

	PropertyPollInterval time.Duration
	InquiryPollInterval  time.Duration
	ChatPollInterval     time.Duration
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using process environment")
	}

	return &Config{
		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),
		DBPath:     getEnv("DB_PATH", "/data/krugerr.db"),
		ImagePath:  getEnv("IMAGE_PATH", "/data/images"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFile:    getEnv("LOG_FILE", ""),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		APIBaseURL:    getEnv("API_BASE_URL", ""),
		RemoteTimeout: getDurationEnv("REMOTE_TIMEOUT", 5*time.Second),

		FXURL: getEnv("FX_URL", "https://api.exchangerate-api.com/v4/latest/USD"),
		FXTTL: getDurationEnv("FX_TTL", time.Hour),

		NATSURL: getEnv("NATS_URL", ""),

		JWTSecret:     getEnv("JWT_SECRET", ""),
		JWTExpiration: getDurationEnv("JWT_EXPIRATION", 12*time.Hour),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 20),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		CORSOrigins: getListEnv("CORS_ALLOWED_ORIGINS"),

		ClaudeAPIKey: getEnv("CLAUDE_API_KEY", ""),
		ClaudeModel:  getEnv("CLAUDE_MODEL", "claude-3-5-haiku-latest"),

		WhatsAppNumber: getEnv("WHATSAPP_NUMBER", "254700000000"),
		ContactEmail:   getEnv("CONTACT_EMAIL", "info@krugerrbrendt.com"),

		PropertyPollInterval: getDurationEnv("PROPERTY_POLL_INTERVAL", 30*time.Second),
		InquiryPollInterval:  getDurationEnv("INQUIRY_POLL_INTERVAL", 15*time.Second),
		ChatPollInterval:     getDurationEnv("CHAT_POLL_INTERVAL", 10*time.Second),
	}
}

// minJWTSecretLength is the shortest accepted HS256 signing secret.
const minJWTSecretLength = 32

var (
	ErrMissingJWTSecret = errors.New("JWT_SECRET must be set when ADMIN_PASSWORD is set")
	ErrWeakJWTSecret    = errors.New("JWT_SECRET must be at least 32 characters")
)

// Validate rejects admin login without a private JWT secret of at least
// minJWTSecretLength characters.
func (c *Config) Validate() error {
	if c.AdminPassword == "" {
		return nil
	}
	if c.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	if len(c.JWTSecret) < minJWTSecretLength {
		return ErrWeakJWTSecret
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getListEnv(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
