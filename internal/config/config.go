// Package config loads the outreach configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Sender   SenderConfig   `yaml:"sender"`
	Email    EmailConfig    `yaml:"email"`
	AI       AIConfig       `yaml:"ai"`
	Resume   ResumeConfig   `yaml:"resume"`
	Batch    BatchConfig    `yaml:"batch"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig contains HTTP API settings
type ServerConfig struct {
	ListenAddr   string        `yaml:"listen_addr"`
	APIKey       string        `yaml:"api_key"`       // empty = no auth
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 30s
	IdleTimeout  time.Duration `yaml:"idle_timeout"`  // default: 60s
}

// SenderConfig identifies the person sending the applications
type SenderConfig struct {
	Name         string `yaml:"name"`
	Signature    string `yaml:"signature"`
	PortfolioURL string `yaml:"portfolio_url"`
}

// EmailConfig contains the outbound mail account settings
type EmailConfig struct {
	Provider    string        `yaml:"provider"` // gmail, outlook, protonmail
	Address     string        `yaml:"address"`
	AppPassword string        `yaml:"app_password"`
	Host        string        `yaml:"host"` // override provider host
	Port        int           `yaml:"port"` // override provider port
	Timeout     time.Duration `yaml:"timeout"`
	DraftsDir   string        `yaml:"drafts_dir"` // where staged .eml drafts land
}

// AIConfig contains variation-crafting provider settings
type AIConfig struct {
	Provider    string        `yaml:"provider"` // claude, openai, gemini
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"` // "auto" picks a provider default
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// ResumeConfig locates resume attachments
type ResumeConfig struct {
	Dir             string `yaml:"dir"`
	SoftwareFile    string `yaml:"software_file"`
	DataScienceFile string `yaml:"datascience_file"`
	DefaultType     string `yaml:"default_type"` // software or datascience
}

// BatchConfig bounds recipient batches and pacing
type BatchConfig struct {
	MaxRecipients  int           `yaml:"max_recipients"`
	RateLimitDelay time.Duration `yaml:"rate_limit_delay"` // min gap between sends
}

// ScheduleConfig tunes the bulk send-all window
type ScheduleConfig struct {
	Window time.Duration `yaml:"window"` // default: 12h
	Jitter time.Duration `yaml:"jitter"` // default: 10m
}

// StorageConfig contains storage settings
type StorageConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// MetricsConfig contains Prometheus metrics settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // default: /metrics
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values for configuration
func (c *Config) setDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}

	if c.Email.Provider == "" {
		c.Email.Provider = "gmail"
	}
	if c.Email.Timeout == 0 {
		c.Email.Timeout = 30 * time.Second
	}
	if c.Email.DraftsDir == "" {
		c.Email.DraftsDir = "drafts"
	}

	if c.AI.Provider == "" {
		c.AI.Provider = "claude"
	}
	if c.AI.Model == "" {
		c.AI.Model = "auto"
	}
	if c.AI.MaxTokens == 0 {
		c.AI.MaxTokens = 1000
	}
	if c.AI.Temperature == 0 {
		c.AI.Temperature = 0.7
	}
	if c.AI.Timeout == 0 {
		c.AI.Timeout = 60 * time.Second
	}

	if c.Resume.Dir == "" {
		c.Resume.Dir = "resumes"
	}
	if c.Resume.SoftwareFile == "" {
		c.Resume.SoftwareFile = "resume_software.pdf"
	}
	if c.Resume.DataScienceFile == "" {
		c.Resume.DataScienceFile = "resume_datascience.pdf"
	}
	if c.Resume.DefaultType == "" {
		c.Resume.DefaultType = "software"
	}

	if c.Batch.MaxRecipients == 0 {
		c.Batch.MaxRecipients = 1000
	}
	if c.Batch.RateLimitDelay == 0 {
		c.Batch.RateLimitDelay = time.Second
	}

	if c.Schedule.Window == 0 {
		c.Schedule.Window = 12 * time.Hour
	}
	if c.Schedule.Jitter == 0 {
		c.Schedule.Jitter = 10 * time.Minute
	}

	if c.Storage.Path == "" {
		c.Storage.Path = "data/outreach.db"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	validEmailProviders := map[string]bool{"gmail": true, "outlook": true, "protonmail": true}
	if !validEmailProviders[c.Email.Provider] {
		return fmt.Errorf("invalid email.provider: %s (must be gmail, outlook, or protonmail)", c.Email.Provider)
	}

	validAIProviders := map[string]bool{"claude": true, "openai": true, "gemini": true}
	if !validAIProviders[c.AI.Provider] {
		return fmt.Errorf("invalid ai.provider: %s (must be claude, openai, or gemini)", c.AI.Provider)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid logging.format: %s (must be json or text)", c.Logging.Format)
	}

	validResumeTypes := map[string]bool{"software": true, "datascience": true}
	if !validResumeTypes[c.Resume.DefaultType] {
		return fmt.Errorf("invalid resume.default_type: %s (must be software or datascience)", c.Resume.DefaultType)
	}

	if c.Batch.MaxRecipients < 1 {
		return fmt.Errorf("batch.max_recipients must be positive")
	}

	return nil
}

// HasAIKey reports whether a variation-crafting provider key is configured
func (c *Config) HasAIKey() bool {
	return c.AI.APIKey != ""
}

// HasEmailConfig reports whether the mail account is fully configured
func (c *Config) HasEmailConfig() bool {
	return c.Email.Address != "" && c.Email.AppPassword != ""
}
