package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

type Instagram struct {
	GraphURL     string
	RefreshURL   string
	PollInterval time.Duration
	PollAttempts int
	HTTPTimeout  time.Duration
}

// maxMediaPerPost mirrors the carousel limit; a carousel run makes one child
// request per item plus the parent container and the publish call.
const maxMediaPerPost = 10

// claimGrace is the slack kept between the longest possible run and the age
// at which a claim is considered abandoned.
const claimGrace = 5 * time.Minute

// RunTimeout is the longest a single publish run may take: every status poll
// with its request, plus one request per container and the publish call.
func (i Instagram) RunTimeout() time.Duration {
	polls := time.Duration(i.PollAttempts) * (i.PollInterval + i.HTTPTimeout)
	requests := time.Duration(maxMediaPerPost+2) * i.HTTPTimeout
	return polls + requests
}

type Email struct {
	ResendAPIKey string
	FromEmail    string
	AdminEmail   string
	DashboardURL string
}

type Config struct {
	Port            string
	PostgresURI     string
	RedisURI        string
	FrontendURL     string
	SecretKey       string
	CookieName      string
	SchedulerSecret string
	SchedulerCron   string
	ClaimTimeout    time.Duration
	RunTimeout      time.Duration
	LedgerTTL       time.Duration
	Instagram       Instagram
	Email           Email
}

func LoadConfig() *Config {
	cfg := &Config{
		Port:            getEnv("PORT", "4000"),
		PostgresURI:     getEnv("POSTGRES_URI", ""),
		RedisURI:        getEnv("REDIS_URI", "localhost:6379"),
		FrontendURL:     getEnv("FRONTEND_URL", "http://localhost:3000"),
		SecretKey:       getEnv("SECRET_KEY", ""),
		CookieName:      getEnv("COOKIE_NAME", "admin_token"),
		SchedulerSecret: getEnv("SCHEDULER_SECRET", ""),
		SchedulerCron:   getEnv("SCHEDULER_CRON", ""),
		ClaimTimeout:    getEnvDuration("CLAIM_TIMEOUT", 45*time.Minute),
		LedgerTTL:       getEnvDuration("PUBLISH_LEDGER_TTL", 30*24*time.Hour),
		Instagram: Instagram{
			GraphURL:     getEnv("INSTAGRAM_GRAPH_URL", "https://graph.facebook.com/v21.0"),
			RefreshURL:   getEnv("INSTAGRAM_REFRESH_URL", "https://graph.instagram.com"),
			PollInterval: getEnvDuration("VIDEO_POLL_INTERVAL", 10*time.Second),
			PollAttempts: getEnvInt("VIDEO_POLL_ATTEMPTS", 30),
			HTTPTimeout:  getEnvDuration("INSTAGRAM_HTTP_TIMEOUT", 30*time.Second),
		},
		Email: Email{
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			FromEmail:    getEnv("FROM_EMAIL", "noreply@yourdomain.com"),
			AdminEmail:   getEnv("ADMIN_EMAIL", "admin@yourdomain.com"),
			DashboardURL: getEnv("DASHBOARD_URL", "http://localhost:3000/admin/dashboard"),
		},
	}

	// A claim must outlive any run still holding it, otherwise the reconciler
	// settles posts that are still being published.
	cfg.RunTimeout = cfg.Instagram.RunTimeout()
	if cfg.ClaimTimeout <= cfg.RunTimeout {
		raised := cfg.RunTimeout + claimGrace
		slog.Warn("CLAIM_TIMEOUT shorter than a publish run, raising it",
			"claim_timeout", cfg.ClaimTimeout, "run_timeout", cfg.RunTimeout, "raised_to", raised)
		cfg.ClaimTimeout = raised
	}
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(value)
	if err != nil || i <= 0 {
		return defaultValue
	}
	return i
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}
