// Package config loads the service configuration from a YAML or JSON file
// with optional environment overrides (AMBU_SECTION__KEY=value).
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	coremetrics "ambuplan/core/metrics"
	"ambuplan/core/scheduler"
	"ambuplan/infra/notify"
)

type Config struct {
	API       APIConfig          `json:"api"`
	LogLevel  string             `json:"log_level"`
	Scheduler SchedulerConfig    `json:"scheduler"`
	Maps      MapsConfig         `json:"maps"`
	Tasks     TasksConfig        `json:"tasks"`
	Metrics   coremetrics.Config `json:"metrics"`
	Notifier  NotifierConfig     `json:"notifier"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("AMBU_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "ambu_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.API.SetDefaults()
	c.Maps.SetDefaults()
	c.Tasks.SetDefaults()
	c.Metrics.SetDefaults()
	c.Notifier.MQTT.SetDefaults()
}

func (c *Config) Validate() error {
	if err := c.Maps.Validate(); err != nil {
		return err
	}
	if err := c.Tasks.Validate(); err != nil {
		return err
	}
	if err := c.Scheduler.ToRunConfig().Validate(); err != nil {
		return err
	}
	if c.Notifier.Enabled && c.Notifier.MQTT.Broker == "" {
		return fmt.Errorf("notifier is enabled but no mqtt broker is configured")
	}
	return nil
}

// APIConfig holds the HTTP listener settings.
type APIConfig struct {
	Addr string `json:"addr"`
}

func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

// SchedulerConfig mirrors the run configuration with file-friendly units.
// Zero values fall back to the scheduler's own defaults.
type SchedulerConfig struct {
	BeforePickupSeconds   int     `json:"before_pickup_seconds"`
	AfterPickupSeconds    int     `json:"after_pickup_seconds"`
	LoadingSeconds        int     `json:"loading_seconds"`
	UnloadingSeconds      int     `json:"unloading_seconds"`
	ChainBookings         *bool   `json:"chain_bookings"`
	MaxChainGapMinutes    int     `json:"max_chain_gap_minutes"`
	Objective             string  `json:"objective"`
	SolverDeadlineSeconds int     `json:"solver_deadline_seconds"`
	GapTolerance          float64 `json:"gap_tolerance"`
}

// ToRunConfig converts the file representation into run parameters.
func (c SchedulerConfig) ToRunConfig() scheduler.Config {
	cfg := scheduler.Config{
		WindowBefore:   time.Duration(c.BeforePickupSeconds) * time.Second,
		WindowAfter:    time.Duration(c.AfterPickupSeconds) * time.Second,
		DefaultLoad:    time.Duration(c.LoadingSeconds) * time.Second,
		DefaultUnload:  time.Duration(c.UnloadingSeconds) * time.Second,
		ChainBookings:  true,
		MaxChainGap:    time.Duration(c.MaxChainGapMinutes) * time.Minute,
		Objective:      scheduler.Objective(c.Objective),
		SolverDeadline: time.Duration(c.SolverDeadlineSeconds) * time.Second,
		GapTolerance:   c.GapTolerance,
	}
	if c.ChainBookings != nil {
		cfg.ChainBookings = *c.ChainBookings
	}
	cfg.SetDefaults()
	return cfg
}

// MapsConfig selects and tunes the travel provider.
type MapsConfig struct {
	// Provider is "google" or "haversine".
	Provider          string  `json:"provider"`
	APIKey            string  `json:"api_key"`
	BaseURL           string  `json:"base_url"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	TimeoutSeconds    int     `json:"timeout_seconds"`
	// Retries is the number of extra attempts per lookup before the fallback
	// estimator is consulted.
	Retries          int     `json:"retries"`
	FallbackSpeedKmh float64 `json:"fallback_speed_kmh"`
	// FallbackDisabled turns the straight-line estimator off, making provider
	// failures fatal to the run.
	FallbackDisabled bool `json:"fallback_disabled"`
}

func (c *MapsConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "haversine"
	}
	if c.Retries == 0 {
		c.Retries = 2
	}
}

func (c *MapsConfig) Validate() error {
	switch c.Provider {
	case "google":
		if c.APIKey == "" {
			return fmt.Errorf("maps provider %q requires an api key", c.Provider)
		}
	case "haversine":
	default:
		return fmt.Errorf("unknown maps provider %q", c.Provider)
	}
	return nil
}

// TasksConfig tunes the asynchronous run machinery.
type TasksConfig struct {
	Workers   int `json:"workers"`
	QueueSize int `json:"queue_size"`
	// Store is "memory" or "redis".
	Store          string `json:"store"`
	RedisURL       string `json:"redis_url"`
	RetentionHours int    `json:"retention_hours"`
}

func (c *TasksConfig) SetDefaults() {
	if c.Store == "" {
		c.Store = "memory"
	}
}

func (c *TasksConfig) Validate() error {
	switch c.Store {
	case "memory":
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("task store %q requires a redis url", c.Store)
		}
	default:
		return fmt.Errorf("unknown task store %q", c.Store)
	}
	return nil
}

// NotifierConfig wraps the MQTT notifier settings behind an enable switch.
type NotifierConfig struct {
	Enabled bool          `json:"enabled"`
	MQTT    notify.Config `json:"mqtt"`
}
