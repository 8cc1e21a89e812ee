package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	ErrMissingToken = errors.New("missing_token")
	ErrInvalidDate  = errors.New("invalid_date")
)

const localEnvFile = ".env.local"

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	LocalMode   bool

	Guru GuruConfig

	StartDate string
	EndDate   string
	Timezone  string

	OutDir       string
	DashboardDir string
	PDFEnabled   bool

	HTTPAddr string

	S3 S3Config

	OTELEnabled  bool
	OTLPEndpoint string
}

// GuruConfig configures the billing API client.
type GuruConfig struct {
	BaseURL        string
	Token          string
	PageSize       int
	MaxRangeDays   int
	RequestTimeout time.Duration
	RetryMax       int
	PagesPerSecond float64
}

// S3Config configures publication of the run outputs. An empty bucket
// disables publishing.
type S3Config struct {
	Bucket  string
	Region  string
	Prefix  string
	Profile string
}

func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// Load loads configuration from environment variables, the .env file and
// an optional .env.local file whose values take precedence.
func Load() (Config, error) {
	_ = godotenv.Load()
	localMode := false
	if _, err := os.Stat(localEnvFile); err == nil {
		if err := godotenv.Overload(localEnvFile); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", localEnvFile, err)
		}
		localMode = true
	}

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "kpireport"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		LocalMode:   localMode,
		Guru: GuruConfig{
			BaseURL:        strings.TrimRight(getenv("DMG_BASE_URL", "https://digitalmanager.guru/api/v2"), "/"),
			Token:          strings.TrimSpace(getenv("DMG_USER_TOKEN", "")),
			PageSize:       getenvInt("DMG_PAGE_SIZE", 200),
			MaxRangeDays:   getenvInt("DMG_MAX_RANGE_DAYS", 180),
			RequestTimeout: getenvDuration("DMG_REQUEST_TIMEOUT", 60*time.Second),
			RetryMax:       getenvInt("DMG_RETRY_MAX", 6),
			PagesPerSecond: getenvFloat("DMG_PAGES_PER_SECOND", 20),
		},
		StartDate:    strings.TrimSpace(getenv("START_DATE", "")),
		EndDate:      strings.TrimSpace(getenv("END_DATE", "")),
		Timezone:     getenv("TIMEZONE", "America/Sao_Paulo"),
		OutDir:       getenv("OUT_DIR", "out"),
		DashboardDir: getenv("DASHBOARD_DIR", "dashboard"),
		PDFEnabled:   getenvBool("PDF_ENABLED", true),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		S3: S3Config{
			Bucket:  strings.TrimSpace(getenv("S3_BUCKET", "")),
			Region:  getenv("AWS_REGION", "sa-east-1"),
			Prefix:  strings.Trim(getenv("S3_PREFIX", "kpireport"), "/"),
			Profile: strings.TrimSpace(getenv("AWS_PROFILE", "")),
		},
		OTELEnabled:  getenvBool("OTEL_ENABLED", false),
		OTLPEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
	}

	for key, value := range map[string]string{"START_DATE": cfg.StartDate, "END_DATE": cfg.EndDate} {
		if value == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", value); err != nil {
			return Config{}, fmt.Errorf("%w: %s=%q", ErrInvalidDate, key, value)
		}
	}
	if cfg.Guru.PageSize <= 0 || cfg.Guru.MaxRangeDays <= 0 {
		return Config{}, fmt.Errorf("page size and max range days must be positive")
	}

	return cfg, nil
}

// RequireToken returns the API token or ErrMissingToken.
func (c GuruConfig) RequireToken() (string, error) {
	if c.Token == "" {
		return "", fmt.Errorf("%w: set DMG_USER_TOKEN in the environment or .env", ErrMissingToken)
	}
	return c.Token, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
