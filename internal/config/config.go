package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/riskibarqy/cricket-match-service/internal/platform/logging"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config stores runtime configuration for the service.
type Config struct {
	AppEnv             string
	ServiceName        string
	ServiceVersion     string
	HTTPAddr           string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	LogLevel           logging.Level
	CORSAllowedOrigins []string
	InternalJobToken   string

	SnapshotStore           string
	DBURL                   string
	DBDisablePreparedBinary bool
	RedisAddr               string
	RedisPassword           string
	RedisDB                 int
	RedisKeyPrefix          string
	SnapshotStreamEnabled   bool
	SnapshotStreamKey       string
	SnapshotStreamMaxLen    int64

	CricbuzzEnabled               bool
	CricbuzzBaseURL               string
	CricbuzzAPIKey                string
	CricbuzzAPIHost               string
	CricbuzzTimeout               time.Duration
	CricbuzzMaxRetries            int
	CricbuzzRateLimitRPS          float64
	CricbuzzRateLimitBurst        int
	CricbuzzCircuitEnabled        bool
	CricbuzzCircuitFailureCount   int
	CricbuzzCircuitOpenTimeout    time.Duration
	CricbuzzCircuitHalfOpenMaxReq int
	CricbuzzListCacheTTL          time.Duration

	FreshnessLive           time.Duration
	FreshnessUpcoming       time.Duration
	FreshnessTerminal       time.Duration
	LiveInferenceWindow     time.Duration
	LiveInferenceWindowTest time.Duration
	CommitMaxRetries        int
	CommitBackoff           time.Duration
	SyncMaxWorkers          int

	MetricsEnabled             bool
	PprofEnabled               bool
	PprofAddr                  string
	UptraceEnabled             bool
	UptraceDSN                 string
	UptraceLogsEnabled         bool
	PyroscopeEnabled           bool
	PyroscopeServerAddress     string
	PyroscopeAppName           string
	PyroscopeAuthToken         string
	PyroscopeBasicAuthUser     string
	PyroscopeBasicAuthPassword string
	PyroscopeUploadRate        time.Duration
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:             appEnv,
		ServiceName:        getEnv("APP_SERVICE_NAME", "cricket-match-service"),
		ServiceVersion:     getEnv("APP_SERVICE_VERSION", "dev"),
		HTTPAddr:           getEnv("APP_HTTP_ADDR", ":8080"),
		LogLevel:           parseLogLevel(getEnv("APP_LOG_LEVEL", "info")),
		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		InternalJobToken:   strings.TrimSpace(getEnv("INTERNAL_JOB_TOKEN", "")),
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		return Config{}, fmt.Errorf("CORS_ALLOWED_ORIGINS cannot be empty")
	}
	if cfg.ReadTimeout, err = getEnvAsDuration("APP_READ_TIMEOUT", "10s"); err != nil {
		return Config{}, err
	}
	if cfg.WriteTimeout, err = getEnvAsDuration("APP_WRITE_TIMEOUT", "30s"); err != nil {
		return Config{}, err
	}

	if err := loadStore(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadCricbuzz(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadReconcile(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadObservability(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadStore(cfg *Config) error {
	store := strings.ToLower(strings.TrimSpace(getEnv("SNAPSHOT_STORE", StoreMemory)))
	switch store {
	case StoreMemory, StorePostgres, StoreRedis:
	default:
		return fmt.Errorf("invalid SNAPSHOT_STORE %q: valid values are %s, %s, %s", store, StoreMemory, StorePostgres, StoreRedis)
	}
	cfg.SnapshotStore = store

	cfg.DBURL = strings.TrimSpace(getEnv("DB_URL", ""))
	if store == StorePostgres && cfg.DBURL == "" {
		return fmt.Errorf("DB_URL is required when SNAPSHOT_STORE=postgres")
	}
	disablePrepared, err := strconv.ParseBool(getEnv("DB_DISABLE_PREPARED_BINARY_RESULT", "true"))
	if err != nil {
		return fmt.Errorf("parse DB_DISABLE_PREPARED_BINARY_RESULT: %w", err)
	}
	cfg.DBDisablePreparedBinary = disablePrepared

	cfg.RedisAddr = strings.TrimSpace(getEnv("REDIS_ADDR", ""))
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisKeyPrefix = getEnv("REDIS_KEY_PREFIX", "cricket:")
	if cfg.RedisDB, err = getEnvAsInt("REDIS_DB", 0); err != nil {
		return fmt.Errorf("parse REDIS_DB: %w", err)
	}
	if cfg.RedisDB < 0 {
		return fmt.Errorf("REDIS_DB must be >= 0")
	}

	streamEnabled, err := strconv.ParseBool(getEnv("SNAPSHOT_STREAM_ENABLED", "false"))
	if err != nil {
		return fmt.Errorf("parse SNAPSHOT_STREAM_ENABLED: %w", err)
	}
	cfg.SnapshotStreamEnabled = streamEnabled
	cfg.SnapshotStreamKey = strings.TrimSpace(getEnv("SNAPSHOT_STREAM_KEY", "matches.updates"))
	maxLen, err := getEnvAsInt("SNAPSHOT_STREAM_MAX_LEN", 10000)
	if err != nil {
		return fmt.Errorf("parse SNAPSHOT_STREAM_MAX_LEN: %w", err)
	}
	if maxLen <= 0 {
		return fmt.Errorf("SNAPSHOT_STREAM_MAX_LEN must be > 0")
	}
	cfg.SnapshotStreamMaxLen = int64(maxLen)

	if (store == StoreRedis || streamEnabled) && cfg.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required when SNAPSHOT_STORE=redis or SNAPSHOT_STREAM_ENABLED=true")
	}
	return nil
}

func loadCricbuzz(cfg *Config) error {
	enabled, err := strconv.ParseBool(getEnv("CRICBUZZ_ENABLED", "true"))
	if err != nil {
		return fmt.Errorf("parse CRICBUZZ_ENABLED: %w", err)
	}
	cfg.CricbuzzEnabled = enabled
	cfg.CricbuzzBaseURL = strings.TrimSpace(getEnv("CRICBUZZ_BASE_URL", "https://cricbuzz-cricket.p.rapidapi.com"))
	cfg.CricbuzzAPIKey = strings.TrimSpace(getEnv("CRICBUZZ_API_KEY", ""))
	cfg.CricbuzzAPIHost = strings.TrimSpace(getEnv("CRICBUZZ_API_HOST", "cricbuzz-cricket.p.rapidapi.com"))
	if enabled && cfg.CricbuzzAPIKey == "" {
		return fmt.Errorf("CRICBUZZ_API_KEY is required when CRICBUZZ_ENABLED=true")
	}

	if cfg.CricbuzzTimeout, err = getEnvAsDuration("CRICBUZZ_TIMEOUT", "15s"); err != nil {
		return err
	}
	if cfg.CricbuzzMaxRetries, err = getEnvAsInt("CRICBUZZ_MAX_RETRIES", 2); err != nil {
		return fmt.Errorf("parse CRICBUZZ_MAX_RETRIES: %w", err)
	}
	if cfg.CricbuzzMaxRetries < 0 {
		return fmt.Errorf("CRICBUZZ_MAX_RETRIES must be >= 0")
	}
	rps, err := strconv.ParseFloat(getEnv("CRICBUZZ_RATE_LIMIT_RPS", "5"), 64)
	if err != nil {
		return fmt.Errorf("parse CRICBUZZ_RATE_LIMIT_RPS: %w", err)
	}
	if rps < 0 {
		return fmt.Errorf("CRICBUZZ_RATE_LIMIT_RPS must be >= 0")
	}
	cfg.CricbuzzRateLimitRPS = rps
	if cfg.CricbuzzRateLimitBurst, err = getEnvAsInt("CRICBUZZ_RATE_LIMIT_BURST", 5); err != nil {
		return fmt.Errorf("parse CRICBUZZ_RATE_LIMIT_BURST: %w", err)
	}

	circuitEnabled, err := strconv.ParseBool(getEnv("CRICBUZZ_CIRCUIT_ENABLED", "true"))
	if err != nil {
		return fmt.Errorf("parse CRICBUZZ_CIRCUIT_ENABLED: %w", err)
	}
	cfg.CricbuzzCircuitEnabled = circuitEnabled
	if cfg.CricbuzzCircuitFailureCount, err = getEnvAsInt("CRICBUZZ_CIRCUIT_FAILURE_COUNT", 5); err != nil {
		return fmt.Errorf("parse CRICBUZZ_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	if cfg.CricbuzzCircuitFailureCount < 1 {
		return fmt.Errorf("CRICBUZZ_CIRCUIT_FAILURE_COUNT must be >= 1")
	}
	if cfg.CricbuzzCircuitOpenTimeout, err = getEnvAsDuration("CRICBUZZ_CIRCUIT_OPEN_TIMEOUT", "15s"); err != nil {
		return err
	}
	if cfg.CricbuzzCircuitHalfOpenMaxReq, err = getEnvAsInt("CRICBUZZ_CIRCUIT_HALF_OPEN_MAX_REQ", 2); err != nil {
		return fmt.Errorf("parse CRICBUZZ_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}
	if cfg.CricbuzzCircuitHalfOpenMaxReq < 1 {
		return fmt.Errorf("CRICBUZZ_CIRCUIT_HALF_OPEN_MAX_REQ must be >= 1")
	}
	if cfg.CricbuzzListCacheTTL, err = getEnvAsDuration("CRICBUZZ_LIST_CACHE_TTL", "15s"); err != nil {
		return err
	}
	return nil
}

func loadReconcile(cfg *Config) error {
	var err error
	if cfg.FreshnessLive, err = getEnvAsDuration("FRESHNESS_LIVE", "30s"); err != nil {
		return err
	}
	if cfg.FreshnessUpcoming, err = getEnvAsDuration("FRESHNESS_UPCOMING", "5m"); err != nil {
		return err
	}
	if cfg.FreshnessTerminal, err = getEnvAsDuration("FRESHNESS_TERMINAL", "1h"); err != nil {
		return err
	}
	if cfg.LiveInferenceWindow, err = getEnvAsDuration("LIVE_INFERENCE_WINDOW", "8h"); err != nil {
		return err
	}
	if cfg.LiveInferenceWindowTest, err = getEnvAsDuration("LIVE_INFERENCE_WINDOW_TEST", cfg.LiveInferenceWindow.String()); err != nil {
		return err
	}
	if cfg.CommitBackoff, err = getEnvAsDuration("COMMIT_BACKOFF", "100ms"); err != nil {
		return err
	}
	if cfg.CommitMaxRetries, err = getEnvAsInt("COMMIT_MAX_RETRIES", 3); err != nil {
		return fmt.Errorf("parse COMMIT_MAX_RETRIES: %w", err)
	}
	if cfg.CommitMaxRetries < 0 {
		return fmt.Errorf("COMMIT_MAX_RETRIES must be >= 0")
	}
	if cfg.SyncMaxWorkers, err = getEnvAsInt("SYNC_MAX_WORKERS", 4); err != nil {
		return fmt.Errorf("parse SYNC_MAX_WORKERS: %w", err)
	}
	if cfg.SyncMaxWorkers < 1 {
		return fmt.Errorf("SYNC_MAX_WORKERS must be >= 1")
	}
	return nil
}

func loadObservability(cfg *Config) error {
	var err error
	if cfg.MetricsEnabled, err = strconv.ParseBool(getEnv("METRICS_ENABLED", "true")); err != nil {
		return fmt.Errorf("parse METRICS_ENABLED: %w", err)
	}

	if cfg.PprofEnabled, err = strconv.ParseBool(getEnv("PPROF_ENABLED", "false")); err != nil {
		return fmt.Errorf("parse PPROF_ENABLED: %w", err)
	}
	cfg.PprofAddr = strings.TrimSpace(getEnv("PPROF_ADDR", ":6060"))
	if cfg.PprofEnabled && cfg.PprofAddr == "" {
		return fmt.Errorf("PPROF_ADDR is required when PPROF_ENABLED=true")
	}

	if cfg.UptraceEnabled, err = strconv.ParseBool(getEnv("UPTRACE_ENABLED", "false")); err != nil {
		return fmt.Errorf("parse UPTRACE_ENABLED: %w", err)
	}
	cfg.UptraceDSN = strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if cfg.UptraceDSN == "" {
		cfg.UptraceDSN = parseUptraceDSNFromOTLPHeaders(getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""))
	}
	if cfg.UptraceEnabled && cfg.UptraceDSN == "" {
		return fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}
	if cfg.UptraceLogsEnabled, err = strconv.ParseBool(getEnv("UPTRACE_LOGS_ENABLED", "false")); err != nil {
		return fmt.Errorf("parse UPTRACE_LOGS_ENABLED: %w", err)
	}

	if cfg.PyroscopeEnabled, err = strconv.ParseBool(getEnv("PYROSCOPE_ENABLED", "false")); err != nil {
		return fmt.Errorf("parse PYROSCOPE_ENABLED: %w", err)
	}
	cfg.PyroscopeServerAddress = strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if cfg.PyroscopeEnabled && cfg.PyroscopeServerAddress == "" {
		return fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))
	cfg.PyroscopeAuthToken = strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", ""))
	cfg.PyroscopeBasicAuthUser = strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", ""))
	cfg.PyroscopeBasicAuthPassword = strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", ""))
	if cfg.PyroscopeUploadRate, err = getEnvAsDuration("PYROSCOPE_UPLOAD_RATE", "15s"); err != nil {
		return err
	}
	return nil
}

func parseLogLevel(v string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

// getEnvAsDuration parses key and rejects non-positive values.
func getEnvAsDuration(key, fallback string) (time.Duration, error) {
	out, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if out <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return out, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}

func parseUptraceDSNFromOTLPHeaders(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	items := strings.Split(raw, ",")
	for _, item := range items {
		parts := strings.SplitN(strings.TrimSpace(item), "=", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), "uptrace-dsn") {
			value := strings.TrimSpace(parts[1])
			return strings.Trim(value, "\"'")
		}
	}

	return ""
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}
