package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration. It is built once at startup
// and passed by reference into each component.
type Config struct {
	// Tunables, read from the YAML settings file.
	Query            string   `yaml:"query"`
	FetchCount       int      `yaml:"fetch_count"`
	GeminiModel      string   `yaml:"gemini_model"`
	Denylist         []string `yaml:"denylist"`
	DBPath           string   `yaml:"db_path"`
	LegacyParser     bool     `yaml:"legacy_parser"`
	EnrichContent    bool     `yaml:"enrich_content"`
	Schedule         string   `yaml:"schedule"`
	Timezone         string   `yaml:"timezone"`
	FetchTimeoutSecs int      `yaml:"fetch_timeout_secs"`
	LogLevel         string   `yaml:"log_level"`

	// Credentials, read from the environment only.
	GeminiAPIKey      string `yaml:"-"`
	NaverClientID     string `yaml:"-"`
	NaverClientSecret string `yaml:"-"`
	TelegramToken     string `yaml:"-"`
	TelegramChatID    int64  `yaml:"-"`
}

// DefaultDenylist rejects mechanical rating and target-price commentary
// before it ever reaches the classifier.
var DefaultDenylist = []string{
	"목표주가",
	"목표가",
	"투자의견",
	"매수의견",
	"매도의견",
	"커버리지",
}

var scheduleRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// Load reads tunables from the YAML file at path (a missing file is fine,
// defaults apply) and credentials from the environment, then validates.
// A missing credential is an error; callers treat it as fatal.
func Load(path string) (*Config, error) {
	// Local runs keep credentials in a .env file; absence is not an error.
	_ = godotenv.Load()

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	applyDefaults(cfg)

	if err := loadCredentials(cfg); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// GetConfigPath returns the config file path from environment or default.
func GetConfigPath() string {
	if path := os.Getenv("NEWSRADAR_CONFIG"); path != "" {
		return path
	}
	return "./config.yaml"
}

func applyDefaults(cfg *Config) {
	if cfg.Query == "" {
		cfg.Query = "한국투자증권"
	}
	if cfg.FetchCount == 0 {
		cfg.FetchCount = 10
	}
	if cfg.GeminiModel == "" {
		cfg.GeminiModel = "gemini-2.0-flash"
	}
	if cfg.Denylist == nil {
		cfg.Denylist = DefaultDenylist
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./news.db"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Asia/Seoul"
	}
	if cfg.FetchTimeoutSecs == 0 {
		cfg.FetchTimeoutSecs = 10
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// loadCredentials reads the five required credentials, preferring a single
// ENV_JSON blob (CI secret style) over individual variables.
func loadCredentials(cfg *Config) error {
	vars := map[string]string{
		"GEMINI_API_KEY":      os.Getenv("GEMINI_API_KEY"),
		"NAVER_CLIENT_ID":     os.Getenv("NAVER_CLIENT_ID"),
		"NAVER_CLIENT_SECRET": os.Getenv("NAVER_CLIENT_SECRET"),
		"TELEGRAM_TOKEN":      os.Getenv("TELEGRAM_TOKEN"),
		"TELEGRAM_CHAT_ID":    os.Getenv("TELEGRAM_CHAT_ID"),
	}

	if blob := os.Getenv("ENV_JSON"); blob != "" {
		parsed := map[string]string{}
		if err := json.Unmarshal([]byte(blob), &parsed); err != nil {
			return fmt.Errorf("parse ENV_JSON: %w", err)
		}
		for key, value := range parsed {
			if _, ok := vars[key]; ok && value != "" {
				vars[key] = value
			}
		}
	}

	cfg.GeminiAPIKey = vars["GEMINI_API_KEY"]
	cfg.NaverClientID = vars["NAVER_CLIENT_ID"]
	cfg.NaverClientSecret = vars["NAVER_CLIENT_SECRET"]
	cfg.TelegramToken = vars["TELEGRAM_TOKEN"]

	if chatID := vars["TELEGRAM_CHAT_ID"]; chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_CHAT_ID must be numeric, got %q", chatID)
		}
		cfg.TelegramChatID = id
	}

	return nil
}

func validate(cfg *Config) error {
	if cfg.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if cfg.NaverClientID == "" {
		return fmt.Errorf("NAVER_CLIENT_ID is required")
	}
	if cfg.NaverClientSecret == "" {
		return fmt.Errorf("NAVER_CLIENT_SECRET is required")
	}
	if cfg.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	if cfg.TelegramChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required")
	}
	if cfg.FetchCount != 10 && cfg.FetchCount != 20 {
		return fmt.Errorf("fetch_count must be 10 or 20, got %d", cfg.FetchCount)
	}
	if cfg.Schedule != "" && !scheduleRegex.MatchString(cfg.Schedule) {
		return fmt.Errorf("schedule must be in HH:MM format (00:00-23:59), got %q", cfg.Schedule)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	return nil
}
