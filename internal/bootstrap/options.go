package bootstrap

import (
	"net/http"

	"go.uber.org/zap"
)

// Default emulator ports of the Firebase Local Emulator Suite
const (
	DefaultEmulatorHost  = "127.0.0.1"
	DefaultAuthPort      = 9099
	DefaultFunctionsPort = 5001
	DefaultFirestorePort = 8080
)

// Config holds the Firebase project credentials
type Config struct {
	APIKey          string `yaml:"apiKey" validate:"required"`
	AuthDomain      string `yaml:"authDomain"`
	ProjectID       string `yaml:"projectId"`
	AppID           string `yaml:"appId"`
	CredentialsFile string `yaml:"credentialsFile"` // service account JSON for the admin app
}

// PortOptions selects an emulator port, 0 for the default
type PortOptions struct {
	Port int `yaml:"port" validate:"gte=0,lte=65535"`
}

// EmulatorOptions connects subsystems to the Local Emulator Suite.
// A nil subsystem is not emulated.
type EmulatorOptions struct {
	Host      string       `yaml:"host"`
	Auth      *PortOptions `yaml:"auth"`
	Functions *PortOptions `yaml:"functions"`
	Firestore *PortOptions `yaml:"firestore"`
}

// AppCheckOptions enables App Check
type AppCheckOptions struct {
	RecaptchaSiteKey          string `yaml:"recaptchaSiteKey"`
	IsTokenAutoRefreshEnabled *bool  `yaml:"isTokenAutoRefreshEnabled"` // defaults to true
	DebugToken                string `yaml:"debugToken"`                // exchanged for an App Check token
	Endpoint                  string `yaml:"-"`                         // defaults to the production API
}

// AnalyticsOptions stamps the app version on outgoing requests
type AnalyticsOptions struct {
	Version string `yaml:"version"`
}

// Options configures Init
type Options struct {
	Config     Config
	DatabaseID string // named Firestore database, "" for none
	// CollectionPrefix namespaces the Firestore collections
	CollectionPrefix string
	Emulators  *EmulatorOptions
	AppCheck   *AppCheckOptions
	Analytics  *AnalyticsOptions

	Logger     *zap.Logger
	HTTPClient *http.Client
}

func (o *EmulatorOptions) host() string {
	if o.Host == "" {
		return DefaultEmulatorHost
	}
	return o.Host
}

func port(p *PortOptions, fallback int) int {
	if p.Port == 0 {
		return fallback
	}
	return p.Port
}

func (o *AppCheckOptions) autoRefresh() bool {
	if o.IsTokenAutoRefreshEnabled == nil {
		return true
	}
	return *o.IsTokenAutoRefreshEnabled
}
