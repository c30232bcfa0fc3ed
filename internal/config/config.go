package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/slipstream/gamearr/internal/candidate"
	"github.com/slipstream/gamearr/internal/decisioning"
	"github.com/slipstream/gamearr/internal/downloader"
	"github.com/slipstream/gamearr/internal/indexer"
)

// Config holds all application configuration.
type Config struct {
	Server          ServerConfig              `mapstructure:"server"`
	Database        DatabaseConfig            `mapstructure:"database"`
	Logging         LoggingConfig             `mapstructure:"logging"`
	Decision        DecisionConfig            `mapstructure:"decision"`
	RSSSync         RSSSyncConfig             `mapstructure:"rsssync"`
	Tracking        TrackingConfig            `mapstructure:"tracking"`
	History         HistoryConfig             `mapstructure:"history"`
	Indexers        []indexer.Config          `mapstructure:"indexers"`
	DownloadClients []downloader.ClientConfig `mapstructure:"downloadClients"`
	CustomFormats   string                    `mapstructure:"customFormats"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"maxSizeMB"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAgeDays"`
	Compress   bool   `mapstructure:"compress"`
}

// DecisionConfig holds the settings the decision rules read.
type DecisionConfig struct {
	AvailabilityDelayDays int      `mapstructure:"availabilityDelayDays"`
	MinSizeGB             float64  `mapstructure:"minSizeGB"`
	MaxSizeGB             float64  `mapstructure:"maxSizeGB"`
	NegateSize            bool     `mapstructure:"negateSize"`
	Language              string   `mapstructure:"language"`
	NegateLanguage        bool     `mapstructure:"negateLanguage"`
	MinimumSeeders        int      `mapstructure:"minimumSeeders"`
	RetentionDays         int      `mapstructure:"retentionDays"`
	MinimumFormatScore    int      `mapstructure:"minimumFormatScore"`
	RequiredTerms         []string `mapstructure:"requiredTerms"`
	IgnoredTerms          []string `mapstructure:"ignoredTerms"`
}

// RSSSyncConfig holds feed polling configuration.
type RSSSyncConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	Concurrency int           `mapstructure:"concurrency"`
}

// TrackingConfig holds download client polling configuration.
type TrackingConfig struct {
	PollInterval         time.Duration `mapstructure:"pollInterval"`
	StallTimeout         time.Duration `mapstructure:"stallTimeout"`
	PendingCheckInterval time.Duration `mapstructure:"pendingCheckInterval"`
}

// HistoryConfig holds history retention configuration.
type HistoryConfig struct {
	RetentionDays int `mapstructure:"retentionDays"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8787,
		},
		Database: DatabaseConfig{
			Path: "./data/gamearr.db",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		RSSSync: RSSSyncConfig{
			Interval:    15 * time.Minute,
			Concurrency: 4,
		},
		Tracking: TrackingConfig{
			PollInterval:         time.Minute,
			StallTimeout:         6 * time.Hour,
			PendingCheckInterval: time.Minute,
		},
		History: HistoryConfig{
			RetentionDays: 365,
		},
	}
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.gamearr")
	}

	v.SetEnvPrefix("GAMEARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults mirrors Default so env vars can override keys absent from the file.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)

	v.SetDefault("database.path", d.Database.Path)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.path", d.Logging.Path)
	v.SetDefault("logging.maxSizeMB", d.Logging.MaxSizeMB)
	v.SetDefault("logging.maxBackups", d.Logging.MaxBackups)
	v.SetDefault("logging.maxAgeDays", d.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", d.Logging.Compress)

	v.SetDefault("decision.availabilityDelayDays", 0)
	v.SetDefault("decision.minSizeGB", 0)
	v.SetDefault("decision.maxSizeGB", 0)
	v.SetDefault("decision.minimumSeeders", 0)
	v.SetDefault("decision.retentionDays", 0)
	v.SetDefault("decision.minimumFormatScore", 0)

	v.SetDefault("rsssync.interval", d.RSSSync.Interval)
	v.SetDefault("rsssync.concurrency", d.RSSSync.Concurrency)

	v.SetDefault("tracking.pollInterval", d.Tracking.PollInterval)
	v.SetDefault("tracking.stallTimeout", d.Tracking.StallTimeout)
	v.SetDefault("tracking.pendingCheckInterval", d.Tracking.PendingCheckInterval)

	v.SetDefault("history.retentionDays", d.History.RetentionDays)

	v.SetDefault("customFormats", "")
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	if c.Decision.MaxSizeGB > 0 && c.Decision.MinSizeGB > c.Decision.MaxSizeGB {
		return fmt.Errorf("invalid decision size range: min %.2f GB exceeds max %.2f GB", c.Decision.MinSizeGB, c.Decision.MaxSizeGB)
	}
	if c.RSSSync.Interval <= 0 {
		return fmt.Errorf("invalid rsssync interval %s", c.RSSSync.Interval)
	}
	if c.Tracking.PollInterval <= 0 {
		return fmt.Errorf("invalid tracking poll interval %s", c.Tracking.PollInterval)
	}
	seen := make(map[int64]bool, len(c.Indexers))
	for i := range c.Indexers {
		if seen[c.Indexers[i].ID] {
			return fmt.Errorf("duplicate indexer id %d", c.Indexers[i].ID)
		}
		seen[c.Indexers[i].ID] = true
	}
	seen = make(map[int64]bool, len(c.DownloadClients))
	for i := range c.DownloadClients {
		if seen[c.DownloadClients[i].ID] {
			return fmt.Errorf("duplicate download client id %d", c.DownloadClients[i].ID)
		}
		seen[c.DownloadClients[i].ID] = true
	}
	return nil
}

// EvaluationConfig builds the rule settings for a cycle starting at now.
// A language of "original" targets each title's original language.
func (d *DecisionConfig) EvaluationConfig(now time.Time) decisioning.EvaluationConfig {
	cfg := decisioning.EvaluationConfig{
		Now:                   now,
		AvailabilityDelayDays: d.AvailabilityDelayDays,
		Size: decisioning.SizeLimits{
			MinGB:  d.MinSizeGB,
			MaxGB:  d.MaxSizeGB,
			Negate: d.NegateSize,
		},
		MinimumSeeders:     d.MinimumSeeders,
		RetentionDays:      d.RetentionDays,
		RequiredTerms:      d.RequiredTerms,
		IgnoredTerms:       d.IgnoredTerms,
		MinimumFormatScore: d.MinimumFormatScore,
	}
	switch lang := strings.ToLower(strings.TrimSpace(d.Language)); lang {
	case "":
	case "original":
		cfg.Language = &decisioning.LanguageTarget{Original: true, Negate: d.NegateLanguage}
	default:
		cfg.Language = &decisioning.LanguageTarget{Language: candidate.Language(lang), Negate: d.NegateLanguage}
	}
	return cfg
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
