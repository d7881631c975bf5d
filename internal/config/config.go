package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/cyberbrief/cyberbrief/internal/util"
	"github.com/cyberbrief/cyberbrief/pkg/model"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the config file or environment leaves a field unset.
const (
	DefaultPort          = 8000
	DefaultReadTimeout   = 30
	DefaultWriteTimeout  = 330 // deep research responses can take minutes to write out
	DefaultDatabasePath  = "cyberbrief.db"
	DefaultPerHour       = 10
	DefaultPerDay        = 50
	DefaultFreeTierDaily = 50
)

// Cfg wraps the configuration model with a lock so the fswatcher can swap
// provider keys under a running server.
type Cfg struct {
	mu sync.RWMutex
	c  model.Config
}

// LoadConfig loads the configuration from the given path, then overlays
// environment variables and fills defaults. A missing file is not fatal; the
// server can run entirely from environment variables.
func LoadConfig(path string) (*Cfg, error) {
	var c model.Config

	buf, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			util.PrintErrorf("Failed to load configuration file: %s", path)
			return nil, err
		}
		util.PrintWarningf("No configuration file at %s, using environment and defaults", path)
	} else {
		if err := yaml.Unmarshal(buf, &c); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		util.PrintSuccess(fmt.Sprintf("Loaded configuration file: %s", path))
	}

	applyEnv(&c)
	applyDefaults(&c)

	return &Cfg{c: c}, nil
}

// Reload re-reads the file and swaps the provider keys and limits in place.
// Network and database settings require a restart and are left untouched.
func (cfg *Cfg) Reload(path string) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fresh model.Config
	if err := yaml.Unmarshal(buf, &fresh); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	applyEnv(&fresh)
	applyDefaults(&fresh)

	cfg.mu.Lock()
	cfg.c.Providers = fresh.Providers
	cfg.c.Limits = fresh.Limits
	cfg.c.Defaults = fresh.Defaults
	cfg.mu.Unlock()

	util.PrintInfo("Configuration reloaded: provider keys and limits updated")
	return nil
}

// Snapshot returns a copy of the current configuration.
func (cfg *Cfg) Snapshot() model.Config {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()
	return cfg.c
}

// WriteConfig serializes the current configuration back to a YAML file.
func (cfg *Cfg) WriteConfig(path string) error {
	cfg.mu.RLock()
	buf, err := yaml.Marshal(&cfg.c)
	cfg.mu.RUnlock()
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o600)
}

func applyEnv(c *model.Config) {
	if v := os.Getenv("PERPLEXITY_API_KEY"); v != "" && c.Providers.PerplexityKey == "" {
		c.Providers.PerplexityKey = v
	}
	if v := os.Getenv("BRAVE_API_KEY"); v != "" && c.Providers.BraveKey == "" {
		c.Providers.BraveKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && c.Providers.GeminiKey == "" {
		c.Providers.GeminiKey = v
	}
	if v := os.Getenv("RATE_LIMIT_PER_HOUR"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Limits.PerHour = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_PER_DAY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Limits.PerDay = n
		}
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		c.Network.CORSOrigins = c.Network.CORSOrigins[:0]
		for _, o := range origins {
			if o = strings.TrimSpace(o); o != "" {
				c.Network.CORSOrigins = append(c.Network.CORSOrigins, o)
			}
		}
	}
}

func applyDefaults(c *model.Config) {
	if c.Network.Port == 0 {
		c.Network.Port = DefaultPort
	}
	if c.Network.ReadTimeout == 0 {
		c.Network.ReadTimeout = DefaultReadTimeout
	}
	if c.Network.WriteTimeout == 0 {
		c.Network.WriteTimeout = DefaultWriteTimeout
	}
	if len(c.Network.CORSOrigins) == 0 {
		c.Network.CORSOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	if c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath
	}
	if c.Limits.PerHour == 0 {
		c.Limits.PerHour = DefaultPerHour
	}
	if c.Limits.PerDay == 0 {
		c.Limits.PerDay = DefaultPerDay
	}
	if c.Limits.FreeTierDaily == 0 {
		c.Limits.FreeTierDaily = DefaultFreeTierDaily
	}
	if c.Defaults.Tier == "" {
		c.Defaults.Tier = model.TierFree
	}
	if c.Defaults.TLP == "" {
		c.Defaults.TLP = model.TLPGreen
	}
}
