package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Port               string        `yaml:"port"`
	DBConn             string        `yaml:"db_conn"`
	LogLevel           string        `yaml:"log_level"`
	JWTSecret          string        `yaml:"jwt_secret"`
	InferenceURL       string        `yaml:"inference_url"`
	InferenceTimeout   time.Duration `yaml:"inference_timeout"`
	CORSOrigins        []string      `yaml:"cors_origins"`
	StaticDir          string        `yaml:"static_dir"`
	AutoMigrate        bool          `yaml:"auto_migrate"`
	PredictRequireAuth bool          `yaml:"predict_require_auth"`
	AuthRateLimit      float64       `yaml:"auth_rate_limit"`
	AuthRateBurst      int           `yaml:"auth_rate_burst"`

	// Prediction digest mail
	DigestCron       string   `yaml:"digest_cron"`
	DigestRecipients []string `yaml:"digest_recipients"`
	SMTPHost         string   `yaml:"smtp_host"`
	SMTPPort         string   `yaml:"smtp_port"`
	SMTPUsername     string   `yaml:"smtp_username"`
	SMTPPassword     string   `yaml:"smtp_password"`
	SenderEmail      string   `yaml:"sender_email"`
}

// Defaults returns the development configuration used before any overlay.
func Defaults() *Config {
	return &Config{
		Port:             "8080",
		DBConn:           "host=localhost port=5432 user=test password=test dbname=winprob sslmode=disable",
		LogLevel:         "info",
		JWTSecret:        "secret",
		InferenceURL:     "http://localhost:5000/predict",
		InferenceTimeout: 10 * time.Second,
		CORSOrigins:      []string{"*"},
		AutoMigrate:      true,
		AuthRateBurst:    5,
		SMTPPort:         "587",
	}
}

// NewConfig loads configuration from an optional YAML file (CONFIG_FILE),
// a .env file and environment variables, in increasing precedence.
func NewConfig() (*Config, error) {
	_ = godotenv.Load() // .env is optional

	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadYAML(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings.
func (c *Config) Validate() error {
	if c.DBConn == "" {
		return fmt.Errorf("DB_CONN is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.InferenceURL == "" {
		return fmt.Errorf("INFERENCE_URL is required")
	}
	if c.InferenceTimeout <= 0 {
		return fmt.Errorf("INFERENCE_TIMEOUT must be positive")
	}
	if c.AuthRateLimit < 0 || c.AuthRateBurst < 0 {
		return fmt.Errorf("AUTH_RATE_LIMIT and AUTH_RATE_BURST must not be negative")
	}
	return nil
}

// DigestEnabled reports whether the prediction digest job has enough settings to run.
func (c *Config) DigestEnabled() bool {
	return c.DigestCron != "" && c.SMTPHost != "" && len(c.DigestRecipients) > 0
}

func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DBConn = getEnv("DB_CONN", cfg.DBConn)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.InferenceURL = getEnv("INFERENCE_URL", cfg.InferenceURL)
	cfg.StaticDir = getEnv("STATIC_DIR", cfg.StaticDir)
	cfg.DigestCron = getEnv("DIGEST_CRON", cfg.DigestCron)
	cfg.SMTPHost = getEnv("SMTP_HOST", cfg.SMTPHost)
	cfg.SMTPPort = getEnv("SMTP_PORT", cfg.SMTPPort)
	cfg.SMTPUsername = getEnv("SMTP_USERNAME", cfg.SMTPUsername)
	cfg.SMTPPassword = getEnv("SMTP_PASSWORD", cfg.SMTPPassword)
	cfg.SenderEmail = getEnv("SENDER_EMAIL", cfg.SenderEmail)

	if v, ok := os.LookupEnv("CORS_ORIGINS"); ok {
		cfg.CORSOrigins = parseCSV(v)
	}
	if v, ok := os.LookupEnv("DIGEST_RECIPIENTS"); ok {
		cfg.DigestRecipients = parseCSV(v)
	}

	var err error
	if v, ok := os.LookupEnv("INFERENCE_TIMEOUT"); ok {
		if cfg.InferenceTimeout, err = time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid INFERENCE_TIMEOUT %q: %w", v, err)
		}
	}
	if v, ok := os.LookupEnv("AUTO_MIGRATE"); ok {
		if cfg.AutoMigrate, err = strconv.ParseBool(v); err != nil {
			return fmt.Errorf("invalid AUTO_MIGRATE %q: %w", v, err)
		}
	}
	if v, ok := os.LookupEnv("PREDICT_REQUIRE_AUTH"); ok {
		if cfg.PredictRequireAuth, err = strconv.ParseBool(v); err != nil {
			return fmt.Errorf("invalid PREDICT_REQUIRE_AUTH %q: %w", v, err)
		}
	}
	if v, ok := os.LookupEnv("AUTH_RATE_LIMIT"); ok {
		if cfg.AuthRateLimit, err = strconv.ParseFloat(v, 64); err != nil {
			return fmt.Errorf("invalid AUTH_RATE_LIMIT %q: %w", v, err)
		}
	}
	if v, ok := os.LookupEnv("AUTH_RATE_BURST"); ok {
		if cfg.AuthRateBurst, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("invalid AUTH_RATE_BURST %q: %w", v, err)
		}
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

// parseCSV splits a comma-separated list, skipping empty entries.
func parseCSV(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}
