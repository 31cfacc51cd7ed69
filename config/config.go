package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided
// via config/config.json or the environment.
type AppConfig struct {
	AppPort            string
	JWTSecret          string
	GinMode            string
	GinLogPath         string
	AllowedOrigins     []string
	RateLimitPerMinute int

	// Submissions and uploads
	MinSubmissionChars int
	UploadDir          string
	UploadTTLHours     int

	// Database
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string

	// Redis for caching and verification
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string

	// SMTP for verification codes and grade notifications
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	SMTPTLS      bool

	// AI oracle (OpenAI-compatible chat completions endpoint)
	OracleBaseURL    string
	OracleAPIKey     string
	OracleModel      string
	OracleTimeoutSec int
	OracleCacheTTLm  int

	// OAuth sign-in
	GoogleClientID     string
	GoogleClientSecret string
	GitHubClientID     string
	GitHubClientSecret string
	OAuthRedirectBase  string

	// Logging
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration once during boot.
// Precedence: config/config.json -> defaults -> environment overrides.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	_ = loadJSONConfig(filepath.Join("config", "config.json"), &cfg)
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in environment variables")
	}

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// loadJSONConfig reads grouped JSON config into cfg if present.
// Returns error only for invalid JSON; a missing file is ignored.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var raw map[string]any
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	if app, ok := raw["app"].(map[string]any); ok {
		setString(app, "AppPort", &out.AppPort)
		setString(app, "JWTSecret", &out.JWTSecret)
		setString(app, "GinMode", &out.GinMode)
		setString(app, "GinLogPath", &out.GinLogPath)
		setInt(app, "RateLimitPerMinute", &out.RateLimitPerMinute)
		setInt(app, "MinSubmissionChars", &out.MinSubmissionChars)
		setString(app, "UploadDir", &out.UploadDir)
		setInt(app, "UploadTTLHours", &out.UploadTTLHours)
		setStringSlice(app, "AllowedOrigins", &out.AllowedOrigins)
	}
	if dbs, ok := raw["database"].(map[string]any); ok {
		setString(dbs, "DatabaseURI", &out.DatabaseURI)
		setString(dbs, "DBHost", &out.DBHost)
		setString(dbs, "DBPort", &out.DBPort)
		setString(dbs, "DBUser", &out.DBUser)
		setString(dbs, "DBPassword", &out.DBPassword)
		setString(dbs, "DBName", &out.DBName)
	}
	if rds, ok := raw["redis"].(map[string]any); ok {
		setString(rds, "RedisHost", &out.RedisHost)
		setInt(rds, "RedisPort", &out.RedisPort)
		setInt(rds, "RedisDB", &out.RedisDB)
		setString(rds, "RedisPassword", &out.RedisPassword)
	}
	if sm, ok := raw["smtp"].(map[string]any); ok {
		setString(sm, "SMTPHost", &out.SMTPHost)
		setInt(sm, "SMTPPort", &out.SMTPPort)
		setString(sm, "SMTPUsername", &out.SMTPUsername)
		setString(sm, "SMTPPassword", &out.SMTPPassword)
		setString(sm, "SMTPFrom", &out.SMTPFrom)
		setString(sm, "SMTPFromName", &out.SMTPFromName)
		setBool(sm, "SMTPTLS", &out.SMTPTLS)
	}
	if oc, ok := raw["oracle"].(map[string]any); ok {
		setString(oc, "BaseURL", &out.OracleBaseURL)
		setString(oc, "APIKey", &out.OracleAPIKey)
		setString(oc, "Model", &out.OracleModel)
		setInt(oc, "TimeoutSec", &out.OracleTimeoutSec)
		setInt(oc, "CacheTTLMinutes", &out.OracleCacheTTLm)
	}
	if oa, ok := raw["oauth"].(map[string]any); ok {
		setString(oa, "GoogleClientID", &out.GoogleClientID)
		setString(oa, "GoogleClientSecret", &out.GoogleClientSecret)
		setString(oa, "GitHubClientID", &out.GitHubClientID)
		setString(oa, "GitHubClientSecret", &out.GitHubClientSecret)
		setString(oa, "RedirectBase", &out.OAuthRedirectBase)
	}
	if lg, ok := raw["log"].(map[string]any); ok {
		setString(lg, "Level", &out.LogLevel)
		setString(lg, "Path", &out.LogPath)
		setInt(lg, "MaxSizeMB", &out.LogMaxSizeMB)
		setInt(lg, "MaxBackups", &out.LogMaxBackups)
		setInt(lg, "MaxAgeDays", &out.LogMaxAgeDays)
		setBool(lg, "Compress", &out.LogCompress)
	}
	return nil
}

func setString(m map[string]any, key string, dst *string) {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			*dst = s
		}
	}
}

func setInt(m map[string]any, key string, dst *int) {
	if v, ok := m[key]; ok {
		switch t := v.(type) {
		case float64:
			if t != 0 {
				*dst = int(t)
			}
		case int:
			if t != 0 {
				*dst = t
			}
		case json.Number:
			i, _ := t.Int64()
			if i != 0 {
				*dst = int(i)
			}
		}
	}
}

func setBool(m map[string]any, key string, dst *bool) {
	if v, ok := m[key]; ok {
		if b, ok := v.(bool); ok {
			*dst = b
		}
	}
}

func setStringSlice(m map[string]any, key string, dst *[]string) {
	if v, ok := m[key]; ok {
		if arr, ok := v.([]any); ok {
			res := make([]string, 0, len(arr))
			for _, it := range arr {
				if s, ok := it.(string); ok {
					res = append(res, s)
				}
			}
			if len(res) > 0 {
				*dst = res
			}
		}
	}
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinLogPath == "" {
		c.GinLogPath = "logs/gin.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if c.MinSubmissionChars == 0 {
		c.MinSubmissionChars = 20
	}
	if c.UploadDir == "" {
		c.UploadDir = "uploads"
	}
	if c.UploadTTLHours == 0 {
		c.UploadTTLHours = 24 * 30
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "studypath"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.SMTPPort == 0 {
		c.SMTPPort = 587
	}
	if c.OracleBaseURL == "" {
		c.OracleBaseURL = "https://api.openai.com"
	}
	if c.OracleModel == "" {
		c.OracleModel = "gpt-4o-mini"
	}
	if c.OracleTimeoutSec == 0 {
		c.OracleTimeoutSec = 8
	}
	if c.OracleCacheTTLm == 0 {
		c.OracleCacheTTLm = 60
	}
	if c.OAuthRedirectBase == "" {
		c.OAuthRedirectBase = "http://localhost:8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) {
	setEnv("APP_PORT", &c.AppPort)
	setEnv("JWT_SECRET", &c.JWTSecret)
	setEnv("GIN_MODE", &c.GinMode)
	setEnv("GIN_LOG_PATH", &c.GinLogPath)
	setEnvInt("RATE_LIMIT_PER_MINUTE", &c.RateLimitPerMinute)
	setEnvInt("MIN_SUBMISSION_CHARS", &c.MinSubmissionChars)
	setEnv("UPLOAD_DIR", &c.UploadDir)
	setEnvInt("UPLOAD_TTL_HOURS", &c.UploadTTLHours)
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitAndTrim(v)
	}

	setEnv("DATABASE_URI", &c.DatabaseURI)
	setEnv("DB_HOST", &c.DBHost)
	setEnv("DB_PORT", &c.DBPort)
	setEnv("DB_USER", &c.DBUser)
	setEnv("DB_PASSWORD", &c.DBPassword)
	setEnv("DB_NAME", &c.DBName)

	setEnv("REDIS_HOST", &c.RedisHost)
	setEnvInt("REDIS_PORT", &c.RedisPort)
	setEnvInt("REDIS_DB", &c.RedisDB)
	setEnv("REDIS_PASSWORD", &c.RedisPassword)

	setEnv("SMTP_HOST", &c.SMTPHost)
	setEnvInt("SMTP_PORT", &c.SMTPPort)
	setEnv("SMTP_USERNAME", &c.SMTPUsername)
	setEnv("SMTP_PASSWORD", &c.SMTPPassword)
	setEnv("SMTP_FROM", &c.SMTPFrom)
	setEnv("SMTP_FROM_NAME", &c.SMTPFromName)
	if v := os.Getenv("SMTP_TLS"); v != "" {
		c.SMTPTLS = v == "true"
	}

	setEnv("ORACLE_BASE_URL", &c.OracleBaseURL)
	setEnv("ORACLE_API_KEY", &c.OracleAPIKey)
	setEnv("ORACLE_MODEL", &c.OracleModel)
	setEnvInt("ORACLE_TIMEOUT_SECONDS", &c.OracleTimeoutSec)
	setEnvInt("ORACLE_CACHE_TTL_MINUTES", &c.OracleCacheTTLm)

	setEnv("GOOGLE_CLIENT_ID", &c.GoogleClientID)
	setEnv("GOOGLE_CLIENT_SECRET", &c.GoogleClientSecret)
	setEnv("GITHUB_CLIENT_ID", &c.GitHubClientID)
	setEnv("GITHUB_CLIENT_SECRET", &c.GitHubClientSecret)
	setEnv("OAUTH_REDIRECT_BASE_URL", &c.OAuthRedirectBase)

	setEnv("LOG_LEVEL", &c.LogLevel)
	setEnv("LOG_PATH", &c.LogPath)
	setEnvInt("LOG_MAX_SIZE_MB", &c.LogMaxSizeMB)
	setEnvInt("LOG_MAX_BACKUPS", &c.LogMaxBackups)
	setEnvInt("LOG_MAX_AGE_DAYS", &c.LogMaxAgeDays)
	if v := os.Getenv("LOG_COMPRESS"); v != "" {
		c.LogCompress = v == "true"
	}
}

func setEnv(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setEnvInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			log.Fatalf("invalid integer value %s for %s: %v", v, key, err)
		}
		*dst = i
	}
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
