package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"server/internal/domain"
)

// Pipeline is the operator-tunable runtime configuration for the generation
// pipeline: default providers, timeouts and rate limits. Per-job creative
// settings live on the job row instead (domain.PipelineConfig).
type Pipeline struct {
	Defaults DefaultsConfig `yaml:"defaults"`
	Timeouts TimeoutsConfig `yaml:"timeouts"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Limits   LimitsConfig   `yaml:"limits"`
}

// DefaultsConfig names the vendor used per category when the caller does not
// pick one explicitly.
type DefaultsConfig struct {
	Script   string `yaml:"script"`
	Voice    string `yaml:"voice"`
	Media    string `yaml:"media"`
	VideoAI  string `yaml:"video_ai"`
	Assembly string `yaml:"assembly"`
	Locale   string `yaml:"locale"`
}

// Duration parses YAML values like "5m" or "90s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type TimeoutsConfig struct {
	Step       Duration `yaml:"step"`
	Generation Duration `yaml:"generation"`
}

type MonitorConfig struct {
	SweepInterval Duration `yaml:"sweep_interval"`
	StuckTimeout  Duration `yaml:"stuck_timeout"`
}

type LimitsConfig struct {
	MaxRetries           int `yaml:"max_retries"`
	MaxConcurrentPerUser int `yaml:"max_concurrent_per_user"`
	// ProviderRatesPerSec throttles outbound calls per vendor name.
	ProviderRatesPerSec map[string]float64 `yaml:"provider_rates_per_sec"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Pipeline {
	return &Pipeline{
		Defaults: DefaultsConfig{
			Script:   "openai",
			Voice:    "elevenlabs",
			Media:    "pexels",
			VideoAI:  "veo",
			Assembly: "shotstack",
			Locale:   "en",
		},
		Timeouts: TimeoutsConfig{
			Step:       Duration(5 * time.Minute),
			Generation: Duration(30 * time.Minute),
		},
		Monitor: MonitorConfig{
			SweepInterval: Duration(5 * time.Minute),
			StuckTimeout:  Duration(30 * time.Minute),
		},
		Limits: LimitsConfig{
			MaxRetries:           domain.DefaultMaxRetries,
			MaxConcurrentPerUser: 3,
			ProviderRatesPerSec:  map[string]float64{},
		},
	}
}

// Load reads the pipeline YAML at path, filling anything unset from
// Default(). An empty path returns Default() untouched.
func Load(path string) (*Pipeline, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse pipeline config: %w", err)
	}
	cfg.fillDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (p *Pipeline) fillDefaults() {
	def := Default()
	if p.Defaults.Script == "" {
		p.Defaults.Script = def.Defaults.Script
	}
	if p.Defaults.Voice == "" {
		p.Defaults.Voice = def.Defaults.Voice
	}
	if p.Defaults.Media == "" {
		p.Defaults.Media = def.Defaults.Media
	}
	if p.Defaults.VideoAI == "" {
		p.Defaults.VideoAI = def.Defaults.VideoAI
	}
	if p.Defaults.Assembly == "" {
		p.Defaults.Assembly = def.Defaults.Assembly
	}
	if p.Defaults.Locale == "" {
		p.Defaults.Locale = def.Defaults.Locale
	}
	if p.Timeouts.Step <= 0 {
		p.Timeouts.Step = def.Timeouts.Step
	}
	if p.Timeouts.Generation <= 0 {
		p.Timeouts.Generation = def.Timeouts.Generation
	}
	if p.Monitor.SweepInterval <= 0 {
		p.Monitor.SweepInterval = def.Monitor.SweepInterval
	}
	if p.Monitor.StuckTimeout <= 0 {
		p.Monitor.StuckTimeout = def.Monitor.StuckTimeout
	}
	if p.Limits.MaxRetries <= 0 {
		p.Limits.MaxRetries = def.Limits.MaxRetries
	}
	if p.Limits.MaxConcurrentPerUser <= 0 {
		p.Limits.MaxConcurrentPerUser = def.Limits.MaxConcurrentPerUser
	}
	if p.Limits.ProviderRatesPerSec == nil {
		p.Limits.ProviderRatesPerSec = map[string]float64{}
	}
}

func (p *Pipeline) validate() error {
	if p.Timeouts.Step >= p.Timeouts.Generation {
		return fmt.Errorf("step timeout %s must be below generation timeout %s", p.Timeouts.Step.Std(), p.Timeouts.Generation.Std())
	}
	if p.Monitor.SweepInterval >= p.Monitor.StuckTimeout {
		return fmt.Errorf("sweep interval %s must be below stuck timeout %s", p.Monitor.SweepInterval.Std(), p.Monitor.StuckTimeout.Std())
	}
	for provider, rate := range p.Limits.ProviderRatesPerSec {
		if rate <= 0 {
			return fmt.Errorf("provider rate for %q must be positive", provider)
		}
	}
	return nil
}

// DefaultProviders maps the configured defaults into a job-level selection.
func (p *Pipeline) DefaultProviders() domain.ProviderSelection {
	return domain.ProviderSelection{
		Script:   p.Defaults.Script,
		Voice:    p.Defaults.Voice,
		Media:    p.Defaults.Media,
		VideoAI:  p.Defaults.VideoAI,
		Assembly: p.Defaults.Assembly,
	}
}
