package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all tweakable executor parameters. Values are loaded from
// environment variables or set to sensible defaults.
type Config struct {
	LogLevel      string // Environment: EXECUTOR_LOG_LEVEL
	MaxLogSizeMB  int64  // Environment: EXECUTOR_MAX_LOG_SIZE_MB
	MaxLogBackups int    // Environment: EXECUTOR_MAX_LOG_BACKUPS

	DemoHost string // Environment: EXECUTOR_DEMO_HOST
	ProdHost string // Environment: EXECUTOR_PROD_HOST

	RecvWindowMS       int64 // Environment: EXECUTOR_RECV_WINDOW_MS
	RateLimitSpacing   time.Duration
	InterTierPause     time.Duration
	DetectorPollPeriod time.Duration
	MonitorPollPeriod  time.Duration
	ControllerTick     time.Duration

	TimeAnchorServers []string // Environment: EXECUTOR_TIME_SERVERS (comma-separated)

	TelegramBotToken string // Environment: TELEGRAM_BOT_TOKEN
	TelegramChatID   string // Environment: TELEGRAM_CHAT_ID

	ArchiveDir string // Environment: EXECUTOR_ARCHIVE_DIR
}

// Load initializes the configuration. It reads .env, checks required
// secrets, and populates the Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: No .env file found, using system environment variables")
	}

	requiredSecretVars := map[string]bool{
		"TELEGRAM_BOT_TOKEN": true,
		"TELEGRAM_CHAT_ID":   true,
	}

	var missing []string
	for key := range requiredSecretVars {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		log.Fatalf("CRITICAL: Missing required environment variables: %v", missing)
	}

	envMap, err := godotenv.Read()
	if err == nil {
		log.Println("--- .env File Variables ---")
		for key, val := range envMap {
			if requiredSecretVars[key] {
				masked := "***"
				if len(val) > 4 {
					masked = "***" + val[len(val)-4:]
				}
				log.Printf("%s=%s", key, masked)
			} else {
				log.Printf("%s=%s", key, val)
			}
		}
		log.Println("---------------------------")
	}

	cfg := &Config{
		LogLevel:      getEnv("EXECUTOR_LOG_LEVEL", "INFO"),
		MaxLogSizeMB:  getEnvAsInt64("EXECUTOR_MAX_LOG_SIZE_MB", 5),
		MaxLogBackups: getEnvAsInt("EXECUTOR_MAX_LOG_BACKUPS", 3),

		DemoHost: getEnv("EXECUTOR_DEMO_HOST", "https://api-demo.bybit.com"),
		ProdHost: getEnv("EXECUTOR_PROD_HOST", "https://api.bybit.com"),

		RecvWindowMS:       getEnvAsInt64("EXECUTOR_RECV_WINDOW_MS", 600000),
		RateLimitSpacing:   time.Duration(getEnvAsInt("EXECUTOR_RATE_LIMIT_MS", 1000)) * time.Millisecond,
		InterTierPause:     time.Duration(getEnvAsInt("EXECUTOR_INTER_TIER_PAUSE_MS", 1000)) * time.Millisecond,
		DetectorPollPeriod: time.Duration(getEnvAsInt("EXECUTOR_DETECTOR_POLL_MS", 1000)) * time.Millisecond,
		MonitorPollPeriod:  time.Duration(getEnvAsInt("EXECUTOR_MONITOR_POLL_MS", 1000)) * time.Millisecond,
		ControllerTick:     time.Duration(getEnvAsInt("EXECUTOR_CONTROLLER_TICK_MS", 1000)) * time.Millisecond,

		TimeAnchorServers: getEnvAsList("EXECUTOR_TIME_SERVERS", []string{
			"https://time.google.com",
			"https://time.cloudflare.com",
		}),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   os.Getenv("TELEGRAM_CHAT_ID"),

		ArchiveDir: getEnv("EXECUTOR_ARCHIVE_DIR", "./run-archive"),
	}

	log.Printf("Configuration Loaded: LogLevel=%s, DemoHost=%s, ProdHost=%s, RecvWindowMS=%d",
		cfg.LogLevel, cfg.DemoHost, cfg.ProdHost, cfg.RecvWindowMS)

	return cfg
}

// Helper to get string env with default
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// Helper to get int env with default
func getEnvAsInt(key string, fallback int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	return parseInt(valueStr, fallback)
}

func getEnvAsInt64(key string, fallback int64) int64 {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	return parseInt64(valueStr, fallback)
}

func getEnvAsList(key string, fallback []string) []string {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func parseInt(s string, fallback int) int {
	val, err := strconv.Atoi(s)
	if err != nil {
		log.Printf("Warning: Invalid int for config %s, using default %d", s, fallback)
		return fallback
	}
	return val
}

func parseInt64(s string, fallback int64) int64 {
	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		log.Printf("Warning: Invalid int64 for config %s, using default %d", s, fallback)
		return fallback
	}
	return val
}
