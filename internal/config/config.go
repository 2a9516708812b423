package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/otiai10/firesession/internal/bootstrap"
	"github.com/otiai10/firesession/internal/security"
	"github.com/otiai10/firesession/internal/session"
)

// Journal backends
const (
	JournalMemory    = "memory"
	JournalFirestore = "firestore"
)

// DefaultAPIAddr is where the local session API listens by default
const DefaultAPIAddr = "127.0.0.1:8787"

// Config represents the application configuration
type Config struct {
	Firebase  FirebaseConfig              `yaml:"firebase"`
	Emulators *bootstrap.EmulatorOptions  `yaml:"emulators,omitempty"`
	AppCheck  *bootstrap.AppCheckOptions  `yaml:"appCheck,omitempty"`
	Analytics *bootstrap.AnalyticsOptions `yaml:"analytics,omitempty"`
	Session   SessionConfig               `yaml:"session"`
	Journal   JournalConfig               `yaml:"journal"`
	API       APIConfig                   `yaml:"api"`
	Log       LogConfig                   `yaml:"log"`
}

// FirebaseConfig represents the Firebase project settings
type FirebaseConfig struct {
	bootstrap.Config `yaml:",inline"`
	DatabaseID       string `yaml:"databaseId,omitempty"`
	TenantID         string `yaml:"tenantId,omitempty"`
}

// SessionConfig represents session tracker settings
type SessionConfig struct {
	WaitTimeout  string `yaml:"waitTimeout,omitempty"`  // e.g. "8s"
	VerifyClaims bool   `yaml:"verifyClaims"`           // verify ID tokens with the admin SDK
	CheckRevoked bool   `yaml:"checkRevoked,omitempty"` // also reject revoked tokens
}

// JournalConfig represents session journal settings
type JournalConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Backend          string `yaml:"backend,omitempty" validate:"omitempty,oneof=memory firestore"`
	CollectionPrefix string `yaml:"collectionPrefix,omitempty" validate:"excludesall=/"` // e.g. "staging_"
}

// APIConfig represents the local HTTP API settings
type APIConfig struct {
	Addr           string   `yaml:"addr,omitempty" validate:"omitempty,hostname_port"`
	AllowRemote    bool     `yaml:"allowRemote,omitempty"` // listen beyond loopback
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty" validate:"dive,url"`
}

// LogConfig represents logger settings
type LogConfig struct {
	Level       string `yaml:"level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	Development bool   `yaml:"development,omitempty"`
}

// Load reads configuration from the specified YAML file
// Environment variables override file values:
// - FIRESESSION_API_KEY overrides firebase.apiKey
// - FIRESESSION_PROJECT_ID overrides firebase.projectId
// - FIRESESSION_EMULATOR_HOST overrides emulators.host (and enables the auth emulator)
// - FIRESESSION_API_ADDR overrides api.addr
//
// An empty path delegates to LoadFromEnv.
func Load(path string) (*Config, error) {
	if path == "" {
		return LoadFromEnv()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv builds a configuration from environment variables only
func LoadFromEnv() (*Config, error) {
	var cfg Config
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("FIRESESSION_API_KEY"); v != "" {
		c.Firebase.APIKey = v
	}
	if v := os.Getenv("FIRESESSION_PROJECT_ID"); v != "" {
		c.Firebase.ProjectID = v
	}
	if v := os.Getenv("FIRESESSION_EMULATOR_HOST"); v != "" {
		if c.Emulators == nil {
			c.Emulators = &bootstrap.EmulatorOptions{}
		}
		c.Emulators.Host = v
		if c.Emulators.Auth == nil {
			c.Emulators.Auth = &bootstrap.PortOptions{}
		}
	}
	if v := os.Getenv("FIRESESSION_API_ADDR"); v != "" {
		c.API.Addr = v
	}
}

func (c *Config) applyDefaults() {
	if c.API.Addr == "" {
		c.API.Addr = DefaultAPIAddr
	}
	if c.Journal.Enabled && c.Journal.Backend == "" {
		c.Journal.Backend = JournalMemory
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%s failed on %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return err
	}

	if c.API.Addr != "" {
		if err := security.ValidateListenAddr(c.API.Addr, c.API.AllowRemote); err != nil {
			return fmt.Errorf("api.addr: %w", err)
		}
	}
	for _, origin := range c.API.AllowedOrigins {
		if err := security.ValidateOrigin(origin); err != nil {
			return fmt.Errorf("api.allowedOrigins: %w", err)
		}
	}

	if c.AppCheck != nil && c.AppCheck.RecaptchaSiteKey == "" {
		return fmt.Errorf("appCheck.recaptchaSiteKey is required when appCheck is set")
	}

	if c.Session.WaitTimeout != "" {
		d, err := time.ParseDuration(c.Session.WaitTimeout)
		if err != nil {
			return fmt.Errorf("session.waitTimeout: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("session.waitTimeout must be positive")
		}
	}

	if c.Session.VerifyClaims && c.Firebase.ProjectID == "" {
		return fmt.Errorf("session.verifyClaims requires firebase.projectId")
	}

	if c.Journal.Enabled && c.Journal.Backend == JournalFirestore && c.Firebase.ProjectID == "" {
		return fmt.Errorf("journal.backend firestore requires firebase.projectId")
	}

	return nil
}

// WaitTimeout returns the configured wait timeout, or the tracker default
func (c *Config) WaitTimeout() time.Duration {
	d, err := time.ParseDuration(c.Session.WaitTimeout)
	if err != nil || d <= 0 {
		return session.DefaultWaitTimeout
	}
	return d
}

// BootstrapOptions converts the configuration into bootstrap.Options
func (c *Config) BootstrapOptions() bootstrap.Options {
	opts := bootstrap.Options{
		Config:    c.Firebase.Config,
		Emulators: c.Emulators,
		AppCheck:  c.AppCheck,
		Analytics: c.Analytics,
	}
	opts.DatabaseID = c.Firebase.DatabaseID
	opts.CollectionPrefix = c.Journal.CollectionPrefix
	if c.Journal.Enabled && c.Journal.Backend == JournalFirestore && opts.DatabaseID == "" {
		opts.DatabaseID = "(default)"
	}
	return opts
}
