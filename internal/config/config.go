package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr             string
	DatabaseURL          string
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	JWTSecret string
	// CronSecret guards the scheduled trigger paths. Empty is allowed at
	// startup; the scheduled path then rejects every call.
	CronSecret string

	LogLevel  string
	LogPretty bool

	Classifier ClassifierConfig
	Analysis   AnalysisConfig
	Cron       CronConfig
}

type ClassifierConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	RPS     float64
}

type AnalysisConfig struct {
	WindowStart     int
	WindowEnd       int
	DigestHour      int
	WeeklyDigestDay int // 0 = Sunday
}

type CronConfig struct {
	Enabled          bool
	AnalysisSchedule string
	DrainSchedule    string
	DrainBatchSize   int
}

var errMissing = errors.New("missing env")

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:             getenv("HTTP_ADDR", ":8080"),
		DatabaseURL:          getenv("DATABASE_URL", ""),
		CORSAllowCredentials: getenv("CORS_ALLOW_CREDENTIALS", "false") == "true",
		JWTSecret:            getenv("JWT_SECRET", ""),
		CronSecret:           getenv("CRON_SECRET", ""),
		LogLevel:             strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:            getenv("LOG_PRETTY", "false") == "true",
		Classifier: ClassifierConfig{
			APIKey:  getenv("CLASSIFIER_API_KEY", ""),
			BaseURL: getenv("CLASSIFIER_BASE_URL", "https://api.openai.com/v1"),
			Model:   getenv("CLASSIFIER_MODEL", "gpt-4o-mini"),
		},
		Cron: CronConfig{
			Enabled:          getenv("CRON_ENABLED", "false") == "true",
			AnalysisSchedule: getenv("ANALYSIS_SCHEDULE", "@hourly"),
			DrainSchedule:    getenv("DRAIN_SCHEDULE", "*/10 * * * *"),
		},
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("%w: DATABASE_URL", errMissing)
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("%w: JWT_SECRET", errMissing)
	}

	origins := strings.Split(getenv("CORS_ALLOWED_ORIGINS", ""), ",")
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	var err error
	if cfg.Classifier.RPS, err = getFloat("CLASSIFIER_RPS", 2); err != nil {
		return Config{}, err
	}
	if cfg.Analysis.WindowStart, err = getHour("ANALYSIS_WINDOW_START", 2); err != nil {
		return Config{}, err
	}
	if cfg.Analysis.WindowEnd, err = getHour("ANALYSIS_WINDOW_END", 5); err != nil {
		return Config{}, err
	}
	if cfg.Analysis.WindowStart > cfg.Analysis.WindowEnd {
		return Config{}, fmt.Errorf("ANALYSIS_WINDOW_START (%d) after ANALYSIS_WINDOW_END (%d)",
			cfg.Analysis.WindowStart, cfg.Analysis.WindowEnd)
	}
	if cfg.Analysis.DigestHour, err = getHour("DIGEST_HOUR", 18); err != nil {
		return Config{}, err
	}
	if cfg.Analysis.WeeklyDigestDay, err = getInt("WEEKLY_DIGEST_DAY", 0); err != nil {
		return Config{}, err
	}
	if cfg.Analysis.WeeklyDigestDay < 0 || cfg.Analysis.WeeklyDigestDay > 6 {
		return Config{}, fmt.Errorf("WEEKLY_DIGEST_DAY must be 0-6, got %d", cfg.Analysis.WeeklyDigestDay)
	}
	if cfg.Cron.DrainBatchSize, err = getInt("DRAIN_BATCH_SIZE", 10); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func getInt(key string, def int) (int, error) {
	v := getenv(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getHour(key string, def int) (int, error) {
	n, err := getInt(key, def)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > 23 {
		return 0, fmt.Errorf("%s must be 0-23, got %d", key, n)
	}
	return n, nil
}

func getFloat(key string, def float64) (float64, error) {
	v := getenv(key, "")
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
