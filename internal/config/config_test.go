package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	required := map[string]string{
		"TELEGRAM_BOT_TOKEN": "test_token",
		"TELEGRAM_CHAT_ID":   "123456",
	}

	for k, v := range required {
		os.Setenv(k, v)
		defer os.Unsetenv(k)
	}

	optionals := []string{
		"EXECUTOR_LOG_LEVEL",
		"EXECUTOR_RECV_WINDOW_MS",
		"EXECUTOR_RATE_LIMIT_MS",
		"EXECUTOR_TIME_SERVERS",
	}
	for _, k := range optionals {
		os.Unsetenv(k)
	}

	cfg := Load()

	if cfg.LogLevel != "INFO" {
		t.Errorf("Expected LogLevel 'INFO', got '%s'", cfg.LogLevel)
	}
	if cfg.RecvWindowMS != 600000 {
		t.Errorf("Expected RecvWindowMS 600000, got %d", cfg.RecvWindowMS)
	}
	if cfg.RateLimitSpacing != 1*time.Second {
		t.Errorf("Expected RateLimitSpacing 1s, got %v", cfg.RateLimitSpacing)
	}
	if cfg.DemoHost != "https://api-demo.bybit.com" {
		t.Errorf("Expected demo host default, got '%s'", cfg.DemoHost)
	}
	if len(cfg.TimeAnchorServers) == 0 {
		t.Errorf("Expected default time anchor servers, got none")
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	os.Setenv("TELEGRAM_BOT_TOKEN", "test_token")
	os.Setenv("TELEGRAM_CHAT_ID", "123456")
	os.Setenv("EXECUTOR_RECV_WINDOW_MS", "5000")
	os.Setenv("EXECUTOR_TIME_SERVERS", "https://a.example, https://b.example")
	defer func() {
		os.Unsetenv("TELEGRAM_BOT_TOKEN")
		os.Unsetenv("TELEGRAM_CHAT_ID")
		os.Unsetenv("EXECUTOR_RECV_WINDOW_MS")
		os.Unsetenv("EXECUTOR_TIME_SERVERS")
	}()

	cfg := Load()

	if cfg.RecvWindowMS != 5000 {
		t.Errorf("Expected RecvWindowMS 5000, got %d", cfg.RecvWindowMS)
	}
	if len(cfg.TimeAnchorServers) != 2 || cfg.TimeAnchorServers[0] != "https://a.example" {
		t.Errorf("Expected two trimmed time servers, got %v", cfg.TimeAnchorServers)
	}
}
