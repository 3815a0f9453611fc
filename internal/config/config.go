package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultListenPort          = 17123
	DefaultCheckInterval       = 60 * time.Second
	DefaultProcessPollInterval = 1 * time.Second
	DefaultFlushInterval       = 5 * time.Second
	DefaultSendTimeout         = 10 * time.Second
	DefaultCheckTimeout        = 50 * time.Second
	DefaultAPIKeyHeader        = "X-API-Key"
	DefaultLogLevel            = "info"
)

// Config is the top-level configuration shared by the forwarder service and
// the check processes it spawns.
type Config struct {
	Forwarder ForwarderConfig `yaml:"forwarder"`
	Checks    ChecksConfig    `yaml:"checks"`
	Log       LogConfig       `yaml:"log"`
}

// ForwarderConfig holds the queue, delivery, and scheduling settings.
type ForwarderConfig struct {
	// ListenPort is the loopback intake port. Check processes post here.
	ListenPort int `yaml:"listen_port"`

	// Endpoint is the base URL of the remote collector; /intake/ is appended.
	Endpoint string `yaml:"endpoint"`

	// CheckInterval controls how often a check process is spawned.
	CheckInterval time.Duration `yaml:"check_interval"`

	// ProcessPollInterval controls how often the running check process is
	// inspected for exit.
	ProcessPollInterval time.Duration `yaml:"process_poll_interval"`

	// FlushInterval controls how often due transactions are flushed.
	FlushInterval time.Duration `yaml:"flush_interval"`

	// SendTimeout bounds a single delivery request.
	SendTimeout time.Duration `yaml:"send_timeout"`

	// Compress deflates request bodies sent to the collector.
	Compress *bool `yaml:"compress"`

	// Auth configures credentials presented to the remote collector.
	Auth AuthConfig `yaml:"auth"`
}

// CompressEnabled reports whether outgoing bodies are deflated. Defaults to true.
func (f ForwarderConfig) CompressEnabled() bool {
	return f.Compress == nil || *f.Compress
}

// IntakeURL returns the collector URL transactions are posted to.
func (f ForwarderConfig) IntakeURL() string {
	return strings.TrimRight(f.Endpoint, "/") + "/intake/"
}

// ListenAddr returns the loopback address the intake listener binds.
func (f ForwarderConfig) ListenAddr() string {
	return fmt.Sprintf("127.0.0.1:%d", f.ListenPort)
}

// LocalURL returns the loopback base URL of this forwarder's intake.
func (f ForwarderConfig) LocalURL() string {
	return "http://" + f.ListenAddr()
}

// AuthConfig specifies how the forwarder authenticates to the collector.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// Header is the HTTP header name to send the key in.
	Header string `yaml:"header"`

	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// ChecksConfig lists what a check process measures.
type ChecksConfig struct {
	// Timeout bounds one whole check run inside the child process.
	Timeout time.Duration `yaml:"timeout"`

	// Prometheus lists exposition endpoints to scrape.
	Prometheus []PrometheusCheck `yaml:"prometheus"`

	// TLS lists HTTPS endpoints whose leaf certificate expiry is reported.
	TLS []TLSCheck `yaml:"tls"`
}

// PrometheusCheck describes one scraped metrics endpoint.
type PrometheusCheck struct {
	ID       string `yaml:"id"`
	Endpoint string `yaml:"endpoint"`

	// Metrics restricts the report to these family names. Empty means all.
	Metrics []string `yaml:"metrics"`

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// TLSCheck describes one certificate expiry probe.
type TLSCheck struct {
	ID                 string `yaml:"id"`
	Endpoint           string `yaml:"endpoint"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`

	// File appends logs to this path instead of stdout when set.
	File string `yaml:"file"`
}

// SlogLevel converts Level to a slog.Level. Unknown values map to info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config data, applies defaults, and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if cfg.Forwarder.Auth.Mode == "apikey" && cfg.Forwarder.Auth.Header == "" {
		cfg.Forwarder.Auth.Header = DefaultAPIKeyHeader
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Forwarder: ForwarderConfig{
			ListenPort:          DefaultListenPort,
			CheckInterval:       DefaultCheckInterval,
			ProcessPollInterval: DefaultProcessPollInterval,
			FlushInterval:       DefaultFlushInterval,
			SendTimeout:         DefaultSendTimeout,
		},
		Checks: ChecksConfig{
			Timeout: DefaultCheckTimeout,
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	f := cfg.Forwarder
	if f.Endpoint == "" {
		return fmt.Errorf("forwarder.endpoint is required")
	}
	u, err := url.Parse(f.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("forwarder.endpoint %q must be an http(s) URL", f.Endpoint)
	}
	if f.ListenPort <= 0 || f.ListenPort > 65535 {
		return fmt.Errorf("forwarder.listen_port %d out of range", f.ListenPort)
	}
	if f.CheckInterval <= 0 {
		return fmt.Errorf("forwarder.check_interval must be positive")
	}
	if f.ProcessPollInterval <= 0 {
		return fmt.Errorf("forwarder.process_poll_interval must be positive")
	}
	if f.FlushInterval <= 0 {
		return fmt.Errorf("forwarder.flush_interval must be positive")
	}
	if f.SendTimeout <= 0 {
		return fmt.Errorf("forwarder.send_timeout must be positive")
	}
	switch f.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("forwarder.auth: unknown mode %q", f.Auth.Mode)
	}
	if cfg.Checks.Timeout <= 0 {
		return fmt.Errorf("checks.timeout must be positive")
	}

	seen := make(map[string]bool)
	for i, c := range cfg.Checks.Prometheus {
		if c.ID == "" {
			return fmt.Errorf("checks.prometheus[%d]: id is required", i)
		}
		if c.Endpoint == "" {
			return fmt.Errorf("checks.prometheus[%d] %q: endpoint is required", i, c.ID)
		}
		if seen[c.ID] {
			return fmt.Errorf("checks: duplicate id %q", c.ID)
		}
		seen[c.ID] = true
	}
	for i, c := range cfg.Checks.TLS {
		if c.ID == "" {
			return fmt.Errorf("checks.tls[%d]: id is required", i)
		}
		if !strings.HasPrefix(c.Endpoint, "https://") {
			return fmt.Errorf("checks.tls[%d] %q: endpoint must be https", i, c.ID)
		}
		if seen[c.ID] {
			return fmt.Errorf("checks: duplicate id %q", c.ID)
		}
		seen[c.ID] = true
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", cfg.Log.Level)
	}
	return nil
}
