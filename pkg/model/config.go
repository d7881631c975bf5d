package model

// This is the pkg/model/config.go file, which contains the configuration model for CyberBRIEF.
// The reason for the existence of this file is to define the configuration model, which is used to load the configuration from the YAML file.
// The placement pkg/model/ is a common pattern for Go projects, which defines the model for the application.

// Config represents the top-level configuration structure for CyberBRIEF.
type Config struct {
	Network   NetworkConfig   `yaml:"network"`
	Database  DatabaseConfig  `yaml:"database"`
	Providers ProvidersConfig `yaml:"providers"`
	Limits    LimitsConfig    `yaml:"limits"`
	Defaults  DefaultsConfig  `yaml:"defaults"`
}

// NetworkConfig defines network-related configuration settings.
type NetworkConfig struct {
	Port         int      `yaml:"port,omitempty"`
	ReadTimeout  int      `yaml:"read_timeout,omitempty"`
	WriteTimeout int      `yaml:"write_timeout,omitempty"`
	CORSOrigins  []string `yaml:"cors_origins,omitempty"`
}

// DatabaseConfig points at the sqlite report history store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ProvidersConfig holds the server-side API keys. Keys passed per request by a
// BYOK client take precedence over these.
type ProvidersConfig struct {
	PerplexityKey string `yaml:"perplexity_key,omitempty"`
	BraveKey      string `yaml:"brave_key,omitempty"`
	GeminiKey     string `yaml:"gemini_key,omitempty"`
}

// LimitsConfig tunes the per-client rate limiter and the free-tier daily quota.
type LimitsConfig struct {
	PerHour       int `yaml:"per_hour,omitempty"`
	PerDay        int `yaml:"per_day,omitempty"`
	FreeTierDaily int `yaml:"free_tier_daily,omitempty"`
}

// DefaultsConfig holds the defaults applied when a request omits them.
type DefaultsConfig struct {
	Tier Tier     `yaml:"tier,omitempty"`
	TLP  TLPLevel `yaml:"tlp,omitempty"`
}
