package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/saviobatista/bike-logger/internal/nextbike"
)

const redacted = "***"

// Config holds the application configuration. It is not modified after Load.
type Config struct {
	ServiceName string
	Env         string
	Version     string
	Commit      string

	Domain       string
	CityID       *int64
	GBFSSystemID string
	Endpoints    nextbike.Endpoints
	HTTPTimeout  time.Duration

	PollInterval      time.Duration
	FetchZones        bool
	FetchGBFS         bool
	StoreRawJSON      bool
	RefreshMVInterval time.Duration
	RunOnce           bool

	DatabaseURL string

	MetricsEnabled bool
	MetricsPort    int

	LogFormat string
	LogLevel  string

	RedisAddr  string
	ArchiveDir string

	// Source is "env+dotenv" when a .env file was read, "env" otherwise
	Source string
}

// Load loads the configuration from environment variables and .env file
func Load() (*Config, error) {
	source := "env"
	// Try to load .env file, but don't fail if it doesn't exist
	if err := godotenv.Load(); err == nil {
		source = "env+dotenv"
	}

	upstream := nextbike.DefaultEndpoints()
	cfg := &Config{
		ServiceName: getenv("SERVICE_NAME", "bike-logger"),
		Env:         getenv("APP_ENV", "dev"),
		Version:     getenv("APP_VERSION", "0.1.0"),
		Commit:      getenv("APP_COMMIT", "unknown"),
		Domain:      getenv("NEXTBIKE_DOMAIN", "fg"),
		Endpoints: nextbike.Endpoints{
			Live:     getenv("NEXTBIKE_LIVE_URL", upstream.Live),
			Zone:     getenv("NEXTBIKE_ZONE_URL", upstream.Zone),
			Flexzone: getenv("NEXTBIKE_FLEXZONE_URL", upstream.Flexzone),
			GBFS:     getenv("NEXTBIKE_GBFS_URL", upstream.GBFS),
		},
		LogFormat:  strings.ToLower(getenv("LOG_FORMAT", "json")),
		LogLevel:   strings.ToLower(getenv("LOG_LEVEL", "info")),
		RedisAddr:  os.Getenv("REDIS_ADDR"),
		ArchiveDir: os.Getenv("ARCHIVE_DIR"),
		Source:     source,
	}
	cfg.GBFSSystemID = getenv("GBFS_SYSTEM_ID", "nextbike_"+cfg.Domain)

	if v := os.Getenv("NEXTBIKE_CITY_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid NEXTBIKE_CITY_ID %q: %w", v, err)
		}
		cfg.CityID = &id
	}

	poll, err := intEnv("POLL_INTERVAL_SECONDS", 60)
	if err != nil {
		return nil, err
	}
	if poll <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL_SECONDS must be positive, got %d", poll)
	}
	cfg.PollInterval = time.Duration(poll) * time.Second

	refresh, err := intEnv("REFRESH_MV_INTERVAL_SECONDS", 0)
	if err != nil {
		return nil, err
	}
	cfg.RefreshMVInterval = time.Duration(refresh) * time.Second

	if cfg.MetricsPort, err = intEnv("METRICS_PORT", 8000); err != nil {
		return nil, err
	}

	cfg.HTTPTimeout = 30 * time.Second
	if v := os.Getenv("HTTP_TIMEOUT"); v != "" {
		if cfg.HTTPTimeout, err = time.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("invalid HTTP_TIMEOUT %q: %w", v, err)
		}
	}

	cfg.FetchZones = boolEnv("FETCH_ZONES", true)
	cfg.FetchGBFS = boolEnv("FETCH_GBFS", true)
	cfg.StoreRawJSON = boolEnv("STORE_RAW_JSON", true)
	cfg.MetricsEnabled = boolEnv("METRICS_ENABLED", false)
	cfg.RunOnce = boolEnv("RUN_ONCE", false)

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = buildDSN()
	}

	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("LOG_FORMAT must be json or text, got %q", cfg.LogFormat)
	}

	return cfg, nil
}

// ExpectedIntervalSeconds is the poll interval used for gap detection
func (c *Config) ExpectedIntervalSeconds() int64 {
	return int64(c.PollInterval / time.Second)
}

// Redacted returns the settings as strings with secrets masked
func (c *Config) Redacted() map[string]string {
	city := ""
	if c.CityID != nil {
		city = strconv.FormatInt(*c.CityID, 10)
	}
	return map[string]string{
		"SERVICE_NAME":                c.ServiceName,
		"APP_ENV":                     c.Env,
		"APP_VERSION":                 c.Version,
		"APP_COMMIT":                  c.Commit,
		"NEXTBIKE_DOMAIN":             c.Domain,
		"NEXTBIKE_CITY_ID":            city,
		"GBFS_SYSTEM_ID":              c.GBFSSystemID,
		"NEXTBIKE_LIVE_URL":           c.Endpoints.Live,
		"NEXTBIKE_ZONE_URL":           c.Endpoints.Zone,
		"NEXTBIKE_FLEXZONE_URL":       c.Endpoints.Flexzone,
		"NEXTBIKE_GBFS_URL":           c.Endpoints.GBFS,
		"HTTP_TIMEOUT":                c.HTTPTimeout.String(),
		"POLL_INTERVAL_SECONDS":       strconv.FormatInt(c.ExpectedIntervalSeconds(), 10),
		"FETCH_ZONES":                 strconv.FormatBool(c.FetchZones),
		"FETCH_GBFS":                  strconv.FormatBool(c.FetchGBFS),
		"STORE_RAW_JSON":              strconv.FormatBool(c.StoreRawJSON),
		"REFRESH_MV_INTERVAL_SECONDS": strconv.FormatInt(int64(c.RefreshMVInterval/time.Second), 10),
		"RUN_ONCE":                    strconv.FormatBool(c.RunOnce),
		"DATABASE_URL":                redactDSN(c.DatabaseURL),
		"METRICS_ENABLED":             strconv.FormatBool(c.MetricsEnabled),
		"METRICS_PORT":                strconv.Itoa(c.MetricsPort),
		"LOG_FORMAT":                  c.LogFormat,
		"LOG_LEVEL":                   c.LogLevel,
		"REDIS_ADDR":                  c.RedisAddr,
		"ARCHIVE_DIR":                 c.ArchiveDir,
	}
}

// Hash fingerprints the redacted settings so deployments can be compared in logs
func (c *Config) Hash() string {
	settings := c.Redacted()
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%s\n", k, settings[k])
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

func buildDSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(getenv("PGUSER", "postgres"), os.Getenv("PGPASSWORD")),
		Host:   getenv("PGHOST", "localhost") + ":" + getenv("PGPORT", "5432"),
		Path:   "/" + getenv("PGDATABASE", "bike_logger"),
	}
	q := url.Values{}
	q.Set("sslmode", getenv("PGSSLMODE", "disable"))
	u.RawQuery = q.Encode()
	return u.String()
}

// redactDSN masks the whole DSN. Only presence is worth logging.
func redactDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	return redacted
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func boolEnv(key string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return fallback
	}
	switch v {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
