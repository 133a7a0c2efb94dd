// Package config loads the toolkit configuration from defaults, an optional
// YAML file, a .env file and BUGX_* environment variables, in that order.
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

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `json:"server" yaml:"server"`
	Database     DatabaseConfig     `json:"database" yaml:"database"`
	Redis        RedisConfig        `json:"redis" yaml:"redis"`
	Workflow     WorkflowConfig     `json:"workflow" yaml:"workflow"`
	Patterns     PatternsConfig     `json:"patterns" yaml:"patterns"`
	Notification NotificationConfig `json:"notification" yaml:"notification"`
	Logging      LoggingConfig      `json:"logging" yaml:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port         int    `json:"port" yaml:"port"`
	Host         string `json:"host" yaml:"host"`
	ReadTimeout  int    `json:"read_timeout_seconds" yaml:"read_timeout_seconds"`
	WriteTimeout int    `json:"write_timeout_seconds" yaml:"write_timeout_seconds"`
	Environment  string `json:"environment" yaml:"environment"`
}

// DatabaseConfig describes the application datastore the setup endpoint
// bootstraps. Driver is "sqlite3" or "postgres".
type DatabaseConfig struct {
	Driver            string `json:"driver" yaml:"driver"`
	DSN               string `json:"-" yaml:"dsn"`
	MaxOpenConns      int    `json:"max_open_conns" yaml:"max_open_conns"`
	InitRetryBackoff  int    `json:"init_retry_backoff_seconds" yaml:"init_retry_backoff_seconds"`
	SeedDemoUser      bool   `json:"seed_demo_user" yaml:"seed_demo_user"`
	DemoUserEmail     string `json:"demo_user_email" yaml:"demo_user_email"`
	DemoUserPassword  string `json:"-" yaml:"demo_user_password"`
	InitializeOnStart bool   `json:"initialize_on_start" yaml:"initialize_on_start"`
}

// RedisConfig configures the pub/sub channel team notifications go to
type RedisConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"-" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	Channel  string `json:"channel" yaml:"channel"`
}

// WorkflowConfig toggles the orchestrator phases. It is also the shape
// accepted by runtime reconfiguration, hence the mapstructure tags.
type WorkflowConfig struct {
	AIAssisted            bool    `json:"ai_assisted" yaml:"ai_assisted" mapstructure:"ai_assisted"`
	PatternRecognition    bool    `json:"pattern_recognition" yaml:"pattern_recognition" mapstructure:"pattern_recognition"`
	ContextAnalysis       bool    `json:"context_analysis" yaml:"context_analysis" mapstructure:"context_analysis"`
	TemplateMatching      bool    `json:"template_matching" yaml:"template_matching" mapstructure:"template_matching"`
	QualityValidation     bool    `json:"quality_validation" yaml:"quality_validation" mapstructure:"quality_validation"`
	DocumentationRequired bool    `json:"documentation_required" yaml:"documentation_required" mapstructure:"documentation_required"`
	PreventionRequired    bool    `json:"prevention_required" yaml:"prevention_required" mapstructure:"prevention_required"`
	TeamNotification      bool    `json:"team_notification" yaml:"team_notification" mapstructure:"team_notification"`
	MinQualityScore       float64 `json:"min_quality_score" yaml:"min_quality_score" mapstructure:"min_quality_score"`
}

// PatternsConfig configures the pattern library
type PatternsConfig struct {
	LibraryFile   string  `json:"library_file,omitempty" yaml:"library_file"`
	MinConfidence float64 `json:"min_confidence" yaml:"min_confidence"`
}

// NotificationConfig selects the team notification sinks
type NotificationConfig struct {
	LogEnabled       bool `json:"log_enabled" yaml:"log_enabled"`
	WebSocketEnabled bool `json:"websocket_enabled" yaml:"websocket_enabled"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// DefaultWorkflowConfig enables every phase
func DefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		AIAssisted:            true,
		PatternRecognition:    true,
		ContextAnalysis:       true,
		TemplateMatching:      true,
		QualityValidation:     true,
		DocumentationRequired: true,
		PreventionRequired:    true,
		TeamNotification:      true,
		MinQualityScore:       70,
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "localhost",
			ReadTimeout:  30,
			WriteTimeout: 30,
			Environment:  "development",
		},
		Database: DatabaseConfig{
			Driver:           "sqlite3",
			DSN:              "file:bugx.db?_foreign_keys=on",
			MaxOpenConns:     10,
			InitRetryBackoff: 5,
			SeedDemoUser:     true,
			DemoUserEmail:    "admin@scholarships.local",
			DemoUserPassword: "change-me",
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			Channel: "bugx:team-notifications",
		},
		Workflow: DefaultWorkflowConfig(),
		Patterns: PatternsConfig{
			MinConfidence: 10,
		},
		Notification: NotificationConfig{
			LogEnabled:       true,
			WebSocketEnabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig loads configuration from environment variables and defaults
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// Don't fail if .env doesn't exist
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := DefaultConfig()

	if path := os.Getenv("BUGX_CONFIG_FILE"); path != "" {
		if err := loadFromFile(config, path); err != nil {
			return nil, err
		}
	}

	loadFromEnv(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile overlays a YAML file onto config. Keys absent from the file
// keep their current values.
func loadFromFile(config *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func loadFromEnv(config *Config) {
	loadServerConfig(config)
	loadDatabaseConfig(config)
	loadRedisConfig(config)
	loadWorkflowConfig(config)
	loadPatternsConfig(config)
	loadLoggingConfig(config)
}

func loadServerConfig(config *Config) {
	setInt("BUGX_PORT", &config.Server.Port)
	setString("BUGX_HOST", &config.Server.Host)
	setInt("BUGX_READ_TIMEOUT_SECONDS", &config.Server.ReadTimeout)
	setInt("BUGX_WRITE_TIMEOUT_SECONDS", &config.Server.WriteTimeout)
	setString("BUGX_ENVIRONMENT", &config.Server.Environment)
}

func loadDatabaseConfig(config *Config) {
	setString("BUGX_DB_DRIVER", &config.Database.Driver)
	if dsn := os.Getenv("BUGX_DB_DSN"); dsn != "" {
		config.Database.DSN = dsn
	} else if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		config.Database.DSN = dsn
	}
	setInt("BUGX_DB_MAX_OPEN_CONNS", &config.Database.MaxOpenConns)
	setInt("BUGX_DB_INIT_RETRY_BACKOFF_SECONDS", &config.Database.InitRetryBackoff)
	setBool("BUGX_DB_SEED_DEMO_USER", &config.Database.SeedDemoUser)
	setString("BUGX_DB_DEMO_USER_EMAIL", &config.Database.DemoUserEmail)
	setString("BUGX_DB_DEMO_USER_PASSWORD", &config.Database.DemoUserPassword)
	setBool("BUGX_DB_INITIALIZE_ON_START", &config.Database.InitializeOnStart)
}

func loadRedisConfig(config *Config) {
	setBool("BUGX_REDIS_ENABLED", &config.Redis.Enabled)
	if addr := os.Getenv("BUGX_REDIS_ADDR"); addr != "" {
		config.Redis.Addr = addr
	} else if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		config.Redis.Addr = addr
	}
	setString("BUGX_REDIS_PASSWORD", &config.Redis.Password)
	setInt("BUGX_REDIS_DB", &config.Redis.DB)
	setString("BUGX_REDIS_CHANNEL", &config.Redis.Channel)
}

func loadWorkflowConfig(config *Config) {
	w := &config.Workflow
	setBool("BUGX_WORKFLOW_AI_ASSISTED", &w.AIAssisted)
	setBool("BUGX_WORKFLOW_PATTERN_RECOGNITION", &w.PatternRecognition)
	setBool("BUGX_WORKFLOW_CONTEXT_ANALYSIS", &w.ContextAnalysis)
	setBool("BUGX_WORKFLOW_TEMPLATE_MATCHING", &w.TemplateMatching)
	setBool("BUGX_WORKFLOW_QUALITY_VALIDATION", &w.QualityValidation)
	setBool("BUGX_WORKFLOW_DOCUMENTATION_REQUIRED", &w.DocumentationRequired)
	setBool("BUGX_WORKFLOW_PREVENTION_REQUIRED", &w.PreventionRequired)
	setBool("BUGX_WORKFLOW_TEAM_NOTIFICATION", &w.TeamNotification)
	setFloat("BUGX_WORKFLOW_MIN_QUALITY_SCORE", &w.MinQualityScore)
}

func loadPatternsConfig(config *Config) {
	setString("BUGX_PATTERN_LIBRARY_FILE", &config.Patterns.LibraryFile)
	setFloat("BUGX_PATTERN_MIN_CONFIDENCE", &config.Patterns.MinConfidence)
	setBool("BUGX_NOTIFY_LOG", &config.Notification.LogEnabled)
	setBool("BUGX_NOTIFY_WEBSOCKET", &config.Notification.WebSocketEnabled)
}

func loadLoggingConfig(config *Config) {
	setString("BUGX_LOG_LEVEL", &config.Logging.Level)
	setString("BUGX_LOG_FORMAT", &config.Logging.Format)
}

func setString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func setInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*target = i
		}
	}
}

func setBool(key string, target *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*target = b
		}
	}
}

func setFloat(key string, target *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*target = f
		}
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %q (want sqlite3 or postgres)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}
	if c.Database.InitRetryBackoff < 0 {
		return fmt.Errorf("database init retry backoff cannot be negative")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required when redis is enabled")
	}

	if err := c.Workflow.Validate(); err != nil {
		return err
	}

	if c.Patterns.MinConfidence < 0 || c.Patterns.MinConfidence > 100 {
		return fmt.Errorf("pattern min confidence must be between 0 and 100, got %v", c.Patterns.MinConfidence)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "text", "console":
	default:
		return fmt.Errorf("unsupported log format: %q", c.Logging.Format)
	}

	return nil
}

// Validate checks workflow thresholds
func (w WorkflowConfig) Validate() error {
	if w.MinQualityScore < 0 || w.MinQualityScore > 100 {
		return fmt.Errorf("min quality score must be between 0 and 100, got %v", w.MinQualityScore)
	}
	return nil
}

// InitRetryBackoffDuration returns the database init retry backoff
func (d DatabaseConfig) InitRetryBackoffDuration() time.Duration {
	return time.Duration(d.InitRetryBackoff) * time.Second
}

// Address returns the HTTP listen address
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IsDevelopment reports whether the server runs in a development environment
func (s ServerConfig) IsDevelopment() bool {
	env := strings.ToLower(s.Environment)
	return env == "" || env == "development" || env == "dev" || env == "local"
}
