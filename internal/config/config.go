// Package config loads the notary's on-disk YAML configuration, the same
// way cmd/pulse-sensor-proxy/config.go loads its proxy config: a struct of
// yaml-tagged fields with defaults set before unmarshal, then a handful of
// environment variable overrides applied on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the notary's full runtime configuration.
type Config struct {
	// Identity. Name is logged at startup; the bundle subcommand prompts for
	// its own name/contact and does not read these fields.
	Name    string `yaml:"name"`
	Contact string `yaml:"contact"`

	// Listener addresses. Ports are load-bearing: the CONNECT tunnel
	// hard-codes 4242 as the upstream notary port regardless of what this
	// notary listens on locally.
	ProxyAddr       string `yaml:"proxy_addr"`       // plain HTTP, CONNECT only
	TLSAddr         string `yaml:"tls_addr"`         // TLS-wrapped HTTP
	ProxiedTLSAddr  string `yaml:"proxied_tls_addr"` // plaintext HTTP behind a reverse proxy
	DisableProxyTLS bool   `yaml:"no_https"`         // disables ProxiedTLSAddr entirely

	TLSCertFile string `yaml:"tls_cert"`
	TLSKeyFile  string `yaml:"tls_key"`

	// SigningKeyFile is a PEM file holding the private key; it may also hold
	// the certificate, per spec.md §9 ("the same file may contain both cert
	// and key").
	SigningKeyFile string `yaml:"signing_key"`

	DatabasePath string `yaml:"database_path"`

	// VerifierBackend selects one of "network", "dns", "always-true",
	// "always-false". VerifierOptions is the raw options string parsed by
	// the selected backend's constructor (spec.md §4.2).
	VerifierBackend string `yaml:"verifier_backend"`
	VerifierOptions string `yaml:"verifier_options"`

	LogLevel string `yaml:"log_level"`

	ProxyIdleTimeout  time.Duration `yaml:"proxy_idle_timeout"`
	VerifyTimeout     time.Duration `yaml:"verify_timeout"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
}

func defaults() Config {
	return Config{
		ProxyAddr:         ":80",
		TLSAddr:           ":443",
		ProxiedTLSAddr:    ":4242",
		DatabasePath:      "/var/lib/notary/notary.db",
		VerifierBackend:   "network",
		LogLevel:          "info",
		ProxyIdleTimeout:  10 * time.Second,
		VerifyTimeout:     20 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Load reads path (if non-empty) as YAML over the built-in defaults, then
// applies an optional ".env" file from the working directory and a handful of NOTARY_*
// environment overrides, mirroring loadConfig in
// cmd/pulse-sensor-proxy/config.go.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	// .env is optional; godotenv.Load silently no-ops if the file is absent
	// in production deployments that set real environment variables instead.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NOTARY_PROXY_ADDR"); v != "" {
		cfg.ProxyAddr = v
	}
	if v := os.Getenv("NOTARY_TLS_ADDR"); v != "" {
		cfg.TLSAddr = v
	}
	if v := os.Getenv("NOTARY_PROXIED_TLS_ADDR"); v != "" {
		cfg.ProxiedTLSAddr = v
	}
	if v := os.Getenv("NOTARY_NO_HTTPS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.DisableProxyTLS = b
		}
	}
	if v := os.Getenv("NOTARY_DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("NOTARY_SIGNING_KEY"); v != "" {
		cfg.SigningKeyFile = v
	}
	if v := os.Getenv("NOTARY_VERIFIER_BACKEND"); v != "" {
		cfg.VerifierBackend = v
	}
	if v := os.Getenv("NOTARY_VERIFIER_OPTIONS"); v != "" {
		cfg.VerifierOptions = v
	}
	if v := os.Getenv("NOTARY_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
}

func (c *Config) validate() error {
	if c.SigningKeyFile == "" {
		return fmt.Errorf("config: signing_key is required")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("config: database_path is required")
	}
	switch c.VerifierBackend {
	case "network", "dns", "always-true", "always-false":
	default:
		return fmt.Errorf("config: unknown verifier_backend %q", c.VerifierBackend)
	}
	return nil
}
