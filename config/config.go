/*
Package config loads server and CLI settings.

PRECEDENCE (lowest first):
  1. Built-in defaults (setDefaults)
  2. YAML file passed with --config
  3. Environment: PAYROLL_ prefix, dots become underscores
     (PAYROLL_SERVER_PORT, PAYROLL_DATABASE_PATH, ...)
  4. Command-line flags bound by cmd/server

EXAMPLE FILE:
  server:
    port: 8080
    cors_origins: ["https://hr.example.com"]
  database:
    path: ./data/payroll.db
  uploads:
    dir: ./data/uploads
  payroll:
    auto_recalculate_interval: 1h
  productivity:
    enforce_month_lock: true
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Uploads      UploadsConfig      `mapstructure:"uploads"`
	Payroll      PayrollConfig      `mapstructure:"payroll"`
	Productivity ProductivityConfig `mapstructure:"productivity"`
	Seed         SeedConfig         `mapstructure:"seed"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`

	// Mount /api/scenarios. Loading a scenario wipes the database.
	DemoScenarios bool `mapstructure:"demo_scenarios"`
}

type DatabaseConfig struct {
	// Path of the SQLite file. ":memory:" for a throwaway database.
	Path string `mapstructure:"path"`
}

type UploadsConfig struct {
	Dir              string `mapstructure:"dir"`
	URLPrefix        string `mapstructure:"url_prefix"`
	MaxDocumentBytes int64  `mapstructure:"max_document_bytes"`
}

type PayrollConfig struct {
	// Recorded as calculated_by when a request names no user.
	CalculatedBy string `mapstructure:"calculated_by"`

	// How often the current month is recalculated in the background.
	// Zero disables the scheduler.
	AutoRecalculateInterval time.Duration `mapstructure:"auto_recalculate_interval"`
}

type ProductivityConfig struct {
	EnforceMonthLock bool `mapstructure:"enforce_month_lock"`
}

type SeedConfig struct {
	// Insert the default trade categories on startup.
	TradeCategories bool `mapstructure:"trade_categories"`

	// Optional YAML rule table replacing the built-in defaults.
	TradeTable string `mapstructure:"trade_table"`
}

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "PAYROLL"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.demo_scenarios", false)
	v.SetDefault("database.path", "payroll.db")
	v.SetDefault("uploads.dir", "uploads")
	v.SetDefault("uploads.url_prefix", "/uploads")
	v.SetDefault("uploads.max_document_bytes", int64(10<<20))
	v.SetDefault("payroll.calculated_by", "system")
	v.SetDefault("payroll.auto_recalculate_interval", time.Duration(0))
	v.SetDefault("productivity.enforce_month_lock", false)
	v.SetDefault("seed.trade_categories", true)
	v.SetDefault("seed.trade_table", "")
}

// NewViper returns a viper instance with defaults and environment
// overrides wired. Callers may bind flags onto it before Load.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional YAML file at path into v and decodes the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.Uploads.Dir) == "" {
		return fmt.Errorf("uploads.dir is required")
	}
	if c.Payroll.AutoRecalculateInterval < 0 {
		return fmt.Errorf("payroll.auto_recalculate_interval must not be negative")
	}
	if c.Uploads.MaxDocumentBytes <= 0 {
		return fmt.Errorf("uploads.max_document_bytes must be positive")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
