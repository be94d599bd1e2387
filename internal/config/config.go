// Package config provides configuration management for the audit service.
// Values come from a YAML config file with environment variable overrides;
// a .env file is loaded first when present.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jonesrussell/seo-audit/internal/database"
	"github.com/jonesrussell/seo-audit/internal/logger"
	"github.com/jonesrussell/seo-audit/internal/redis"
	"github.com/jonesrussell/seo-audit/internal/scheduler"
)

// Server defaults
const (
	defaultServerAddress = ":8080"
	defaultWaitingWeeks  = 4
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("server address must not be empty")
	}
	return nil
}

// ScopeConfig selects which site content the audit covers.
type ScopeConfig struct {
	PagesEnabled       bool     `yaml:"pages_enabled"`
	SelectedPageIDs    []int64  `yaml:"selected_page_ids"`
	PostsEnabled       bool     `yaml:"posts_enabled"`
	SelectedCategories []string `yaml:"selected_categories"`
}

// AuditConfig holds the audit engine settings.
type AuditConfig struct {
	// WaitingWeeks is the grace period before newly published content is
	// judged on its metrics.
	WaitingWeeks int `yaml:"waiting_weeks"`
	// AnalyticsEnabled gates the traffic-median exclusion rule.
	AnalyticsEnabled bool `yaml:"analytics_enabled"`
	// CronSpec triggers the periodic scheduled audit.
	CronSpec string      `yaml:"cron_spec"`
	Scope    ScopeConfig `yaml:"scope"`
}

// Validate validates the audit configuration.
func (c *AuditConfig) Validate() error {
	if c.WaitingWeeks < 0 {
		return fmt.Errorf("waiting_weeks must not be negative")
	}
	if c.CronSpec == "" {
		return fmt.Errorf("cron_spec must not be empty")
	}
	if !c.Scope.PagesEnabled && !c.Scope.PostsEnabled {
		return fmt.Errorf("at least one of pages or posts must be in scope")
	}
	return nil
}

// ServiceConfig holds the endpoint and credentials of one external SEO
// service.
type ServiceConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
}

// SEOAPIConfig holds the external service endpoints.
type SEOAPIConfig struct {
	Backlinks ServiceConfig `yaml:"backlinks"`
	Analytics ServiceConfig `yaml:"analytics"`
	Position  ServiceConfig `yaml:"position"`
	Keywords  ServiceConfig `yaml:"keywords"`
	// NoindexUserAgent overrides the User-Agent for the on-page noindex
	// check.
	NoindexUserAgent string `yaml:"noindex_user_agent"`
}

// Validate validates the external service configuration.
func (c *SEOAPIConfig) Validate() error {
	for name, svc := range map[string]ServiceConfig{
		"backlinks": c.Backlinks,
		"analytics": c.Analytics,
		"position":  c.Position,
		"keywords":  c.Keywords,
	} {
		if svc.BaseURL == "" {
			return fmt.Errorf("seoapi.%s.base_url must not be empty", name)
		}
	}
	return nil
}

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Database database.Config `yaml:"database"`
	Redis    redis.Config    `yaml:"redis"`
	Logger   logger.Config   `yaml:"logger"`
	Audit    AuditConfig     `yaml:"audit"`
	SEOAPI   SEOAPIConfig    `yaml:"seoapi"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Audit.Validate(); err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	if err := c.SEOAPI.Validate(); err != nil {
		return fmt.Errorf("seoapi: %w", err)
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("database: dbname must not be empty")
	}
	return nil
}

// Load reads configuration from config.yaml (working directory or ./config)
// with environment variable overrides. A missing config file is not an
// error; defaults and environment variables still apply.
func Load() (*Config, error) {
	// Ignores error if .env does not exist.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	// Ignores error if config file does not exist.
	_ = v.ReadInConfig()

	return fromViper(v), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", defaultServerAddress)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "seo_audit")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("logger.level", string(logger.InfoLevel))
	v.SetDefault("logger.development", false)
	v.SetDefault("logger.encoding", logger.DefaultEncoding)

	v.SetDefault("audit.waiting_weeks", defaultWaitingWeeks)
	v.SetDefault("audit.analytics_enabled", true)
	v.SetDefault("audit.cron_spec", scheduler.DefaultCronSpec)
	v.SetDefault("audit.scope.pages_enabled", false)
	v.SetDefault("audit.scope.posts_enabled", true)
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Address: v.GetString("server.address"),
		},
		Database: database.Config{
			Host:     v.GetString("database.host"),
			Port:     v.GetString("database.port"),
			User:     v.GetString("database.user"),
			Password: v.GetString("database.password"),
			DBName:   v.GetString("database.dbname"),
			SSLMode:  v.GetString("database.sslmode"),
		},
		Redis: redis.Config{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Logger: logger.Config{
			Level:       logger.Level(v.GetString("logger.level")),
			Development: v.GetBool("logger.development"),
			Encoding:    v.GetString("logger.encoding"),
			OutputPaths: logger.DefaultOutputPaths,
		},
		Audit: AuditConfig{
			WaitingWeeks:     v.GetInt("audit.waiting_weeks"),
			AnalyticsEnabled: v.GetBool("audit.analytics_enabled"),
			CronSpec:         v.GetString("audit.cron_spec"),
			Scope: ScopeConfig{
				PagesEnabled:       v.GetBool("audit.scope.pages_enabled"),
				SelectedPageIDs:    toInt64s(v.GetIntSlice("audit.scope.selected_page_ids")),
				PostsEnabled:       v.GetBool("audit.scope.posts_enabled"),
				SelectedCategories: v.GetStringSlice("audit.scope.selected_categories"),
			},
		},
		SEOAPI: SEOAPIConfig{
			Backlinks: ServiceConfig{
				BaseURL: v.GetString("seoapi.backlinks.base_url"),
				Token:   v.GetString("seoapi.backlinks.token"),
			},
			Analytics: ServiceConfig{
				BaseURL: v.GetString("seoapi.analytics.base_url"),
				Token:   v.GetString("seoapi.analytics.token"),
			},
			Position: ServiceConfig{
				BaseURL: v.GetString("seoapi.position.base_url"),
				Token:   v.GetString("seoapi.position.token"),
			},
			Keywords: ServiceConfig{
				BaseURL: v.GetString("seoapi.keywords.base_url"),
			},
			NoindexUserAgent: v.GetString("seoapi.noindex_user_agent"),
		},
	}
}

func toInt64s(values []int) []int64 {
	if len(values) == 0 {
		return nil
	}
	out := make([]int64, len(values))
	for i, value := range values {
		out[i] = int64(value)
	}
	return out
}
