package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/meshwatch/meshwatch/pkg/types"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultPollInterval    = 5 * time.Second
	DefaultRequestTimeout  = 10 * time.Second
	DefaultActivityLimit   = 5
	DefaultHTTPPort        = 8080
	DefaultHealthPath      = "/health"
	DefaultLateProbePolicy = LateProbeDiscard

	MinActivityLimit = 4
	MaxActivityLimit = 6
)

// Late-probe policies.
const (
	// LateProbeDiscard abandons a probe at its deadline.
	LateProbeDiscard = "discard"
	// LateProbeAccept lets an abandoned probe finish and amend the snapshot
	// of the cycle that issued it.
	LateProbeAccept = "accept"
)

// Config is the top-level configuration. Fields map 1:1 to config.example.yaml.
type Config struct {
	Dashboard DashboardConfig `yaml:"dashboard"`
	Services  []Service       `yaml:"services"`
}

// DashboardConfig holds the polling and serving settings.
type DashboardConfig struct {
	// PollInterval controls how often an active view runs a poll cycle.
	PollInterval time.Duration `yaml:"poll_interval"`

	// ProbeTimeout bounds each liveness probe. Defaults to PollInterval.
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	// RequestTimeout is the hard ceiling on any single upstream request,
	// including probes left running under the accept policy.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// ActivityLimit is the maximum number of activity feed entries.
	ActivityLimit int `yaml:"activity_limit"`

	// LateProbePolicy is one of: discard | accept.
	LateProbePolicy string `yaml:"late_probe_policy"`

	// AlwaysActive keeps the view polling with no websocket clients attached.
	AlwaysActive bool `yaml:"always_active"`

	// HTTPPort is the port the REST API, websocket stream and /metrics listen on.
	HTTPPort int `yaml:"http_port"`
}

// Service describes one upstream service.
type Service struct {
	// Key is one of: agent | workflow | monitoring | communication.
	Key string `yaml:"key"`

	// Name is the display label. Defaults to the key.
	Name string `yaml:"name"`

	// BaseURL is the service root, e.g. http://localhost:8001.
	BaseURL string `yaml:"base_url"`

	// BaseURLEnv names an environment variable that overrides BaseURL when set.
	BaseURLEnv string `yaml:"base_url_env"`

	// HealthPath is the liveness path. Defaults to /health.
	HealthPath string `yaml:"health_path"`

	Auth AuthConfig `yaml:"auth"`
	TLS  TLSConfig  `yaml:"tls"`
}

// AuthConfig specifies how requests to a service are authenticated.
type AuthConfig struct {
	// Mode is one of: apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// Header is the HTTP header the API key is sent in. Defaults to X-API-Key.
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv is the name of the environment variable that holds the bearer token.
	TokenEnv string `yaml:"token_env"`

	Username string `yaml:"username"`
	// PasswordEnv is the name of the environment variable that holds the password.
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
func (a AuthConfig) Key() string {
	return lookupEnv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	return lookupEnv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	return lookupEnv(a.PasswordEnv)
}

// EffectiveHeader returns the API key header name.
func (a AuthConfig) EffectiveHeader() string {
	if a.Header == "" {
		return "X-API-Key"
	}
	return a.Header
}

// TLSConfig holds per-service TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// EffectiveBaseURL returns the BaseURLEnv override if it is set and non-empty,
// otherwise BaseURL.
func (s Service) EffectiveBaseURL() string {
	if v := lookupEnv(s.BaseURLEnv); v != "" {
		return v
	}
	return s.BaseURL
}

// Descriptor converts s into an immutable ServiceDescriptor.
// s must have passed validation.
func (s Service) Descriptor() types.ServiceDescriptor {
	name := s.Name
	if name == "" {
		name = s.Key
	}
	hp := s.HealthPath
	if hp == "" {
		hp = DefaultHealthPath
	}
	return types.ServiceDescriptor{
		Name:       name,
		BaseURL:    s.EffectiveBaseURL(),
		Key:        types.ServiceKey(s.Key),
		HealthPath: hp,
	}
}

// Descriptors returns one descriptor per configured service, in file order.
func (c *Config) Descriptors() []types.ServiceDescriptor {
	out := make([]types.ServiceDescriptor, 0, len(c.Services))
	for _, s := range c.Services {
		out = append(out, s.Descriptor())
	}
	return out
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if cfg.Dashboard.ProbeTimeout == 0 {
		cfg.Dashboard.ProbeTimeout = cfg.Dashboard.PollInterval
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Dashboard: DashboardConfig{
			PollInterval:    DefaultPollInterval,
			RequestTimeout:  DefaultRequestTimeout,
			ActivityLimit:   DefaultActivityLimit,
			LateProbePolicy: DefaultLateProbePolicy,
			HTTPPort:        DefaultHTTPPort,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	d := cfg.Dashboard
	if d.PollInterval <= 0 {
		return fmt.Errorf("dashboard.poll_interval must be positive")
	}
	if d.ProbeTimeout <= 0 {
		return fmt.Errorf("dashboard.probe_timeout must be positive")
	}
	if d.ProbeTimeout > d.PollInterval {
		return fmt.Errorf("dashboard.probe_timeout %s exceeds poll_interval %s",
			d.ProbeTimeout, d.PollInterval)
	}
	if d.RequestTimeout <= 0 {
		return fmt.Errorf("dashboard.request_timeout must be positive")
	}
	if d.ActivityLimit < MinActivityLimit || d.ActivityLimit > MaxActivityLimit {
		return fmt.Errorf("dashboard.activity_limit must be between %d and %d, got %d",
			MinActivityLimit, MaxActivityLimit, d.ActivityLimit)
	}
	switch d.LateProbePolicy {
	case LateProbeDiscard, LateProbeAccept:
	default:
		return fmt.Errorf("dashboard.late_probe_policy: unknown policy %q", d.LateProbePolicy)
	}
	if d.HTTPPort <= 0 || d.HTTPPort > 65535 {
		return fmt.Errorf("dashboard.http_port: invalid port %d", d.HTTPPort)
	}

	if len(cfg.Services) == 0 {
		return fmt.Errorf("services: at least one service is required")
	}
	seen := make(map[string]bool, len(cfg.Services))
	for i, svc := range cfg.Services {
		if _, err := types.ParseServiceKey(svc.Key); err != nil {
			return fmt.Errorf("services[%d]: %w", i, err)
		}
		if seen[svc.Key] {
			return fmt.Errorf("services[%d]: duplicate key %q", i, svc.Key)
		}
		seen[svc.Key] = true

		if err := validateBaseURL(svc.EffectiveBaseURL()); err != nil {
			return fmt.Errorf("services[%d] %q: %w", i, svc.Key, err)
		}
		switch svc.Auth.Mode {
		case "apikey", "bearer", "basic", "none", "":
		default:
			return fmt.Errorf("services[%d] %q: unknown auth mode %q", i, svc.Key, svc.Auth.Mode)
		}
	}
	return nil
}

func validateBaseURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("base_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("base_url %q: host is required", raw)
	}
	return nil
}

func lookupEnv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
