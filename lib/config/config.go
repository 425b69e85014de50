// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Environment is the container environment requests are addressed to.
type Environment string

const (
	// Development is the schema-mutable environment used while building
	// an application.
	Development Environment = "development"
	// Production is the deployed environment.
	Production Environment = "production"
)

// Database selects the database scope within a container.
type Database string

const (
	Public  Database = "public"
	Private Database = "private"
	Shared  Database = "shared"
)

// AuthMode selects how requests are authenticated.
type AuthMode string

const (
	// ServerKey signs every request with an elliptic-curve key.
	ServerKey AuthMode = "server_key"
	// APIToken appends an API token (and optionally a web-auth token)
	// to every request URL.
	APIToken AuthMode = "api_token"
)

// DefaultBaseURL is the public endpoint of the record service.
const DefaultBaseURL = "https://api.apple-cloudkit.com"

// Config describes one container and how to reach it.
type Config struct {
	// Environment selects development or production.
	Environment Environment `yaml:"environment" json:"environment"`

	// Container is the container identifier, e.g. iCloud.com.example.notes.
	Container string `yaml:"container" json:"container"`

	// Database is the database scope: public, private or shared.
	Database Database `yaml:"database" json:"database"`

	// BaseURL is the service origin. Tests point it at an httptest server.
	BaseURL string `yaml:"base_url" json:"base_url"`

	// Auth configures request authentication.
	Auth AuthConfig `yaml:"auth" json:"auth"`

	// HTTP configures the transport.
	HTTP HTTPConfig `yaml:"http" json:"http"`

	// Per-environment overrides, applied after the base config is loaded.
	Development *Overrides `yaml:"development,omitempty" json:"development,omitempty"`
	Production  *Overrides `yaml:"production,omitempty" json:"production,omitempty"`
}

// AuthConfig configures request authentication. Secrets are never stored
// inline; every credential is a path to a file.
type AuthConfig struct {
	Mode AuthMode `yaml:"mode" json:"mode"`

	// KeyID identifies the server-to-server key registered for the
	// container. Required in server_key mode.
	KeyID string `yaml:"key_id" json:"key_id"`

	// PrivateKeyFile is a PEM file holding the P-256 signing key.
	PrivateKeyFile string `yaml:"private_key_file" json:"private_key_file"`

	// AgeIdentityFile, when set, means PrivateKeyFile is age-encrypted
	// and should be decrypted with the identities in this file.
	AgeIdentityFile string `yaml:"age_identity_file" json:"age_identity_file"`

	// APITokenFile holds the container API token. Required in api_token mode.
	APITokenFile string `yaml:"api_token_file" json:"api_token_file"`

	// WebAuthTokenFile optionally holds a user's web-auth token.
	WebAuthTokenFile string `yaml:"web_auth_token_file" json:"web_auth_token_file"`
}

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	// Timeout bounds each request, as a Go duration string. Default: 30s.
	Timeout string `yaml:"timeout" json:"timeout"`

	// AcceptGzip asks the server for gzip-compressed responses.
	// Default: true.
	AcceptGzip bool `yaml:"accept_gzip" json:"accept_gzip"`
}

// Overrides contains the fields that may differ per environment.
type Overrides struct {
	BaseURL string         `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	Auth    *AuthConfig    `yaml:"auth,omitempty" json:"auth,omitempty"`
	HTTP    *HTTPOverrides `yaml:"http,omitempty" json:"http,omitempty"`
}

// HTTPOverrides mirrors HTTPConfig with optional fields, so an override
// section can leave AcceptGzip alone.
type HTTPOverrides struct {
	Timeout    string `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	AcceptGzip *bool  `yaml:"accept_gzip,omitempty" json:"accept_gzip,omitempty"`
}

// Default returns the configuration every loaded file is merged into.
// The file is still required; defaults only fill fields it leaves out.
func Default() *Config {
	return &Config{
		Environment: Development,
		Database:    Public,
		BaseURL:     DefaultBaseURL,
		Auth: AuthConfig{
			Mode: APIToken,
		},
		HTTP: HTTPConfig{
			Timeout:    "30s",
			AcceptGzip: true,
		},
	}
}

// Load loads configuration from the file named by RECORDWIRE_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv("RECORDWIRE_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("RECORDWIRE_CONFIG environment variable not set; " +
			"set it to the path of your container config file, or use --config")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, applies the
// matching environment section, and expands variables in path fields.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), c); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	return nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if overrides.BaseURL != "" {
		c.BaseURL = overrides.BaseURL
	}

	if overrides.Auth != nil {
		if overrides.Auth.Mode != "" {
			c.Auth.Mode = overrides.Auth.Mode
		}
		if overrides.Auth.KeyID != "" {
			c.Auth.KeyID = overrides.Auth.KeyID
		}
		if overrides.Auth.PrivateKeyFile != "" {
			c.Auth.PrivateKeyFile = overrides.Auth.PrivateKeyFile
		}
		if overrides.Auth.AgeIdentityFile != "" {
			c.Auth.AgeIdentityFile = overrides.Auth.AgeIdentityFile
		}
		if overrides.Auth.APITokenFile != "" {
			c.Auth.APITokenFile = overrides.Auth.APITokenFile
		}
		if overrides.Auth.WebAuthTokenFile != "" {
			c.Auth.WebAuthTokenFile = overrides.Auth.WebAuthTokenFile
		}
	}

	if overrides.HTTP != nil {
		if overrides.HTTP.Timeout != "" {
			c.HTTP.Timeout = overrides.HTTP.Timeout
		}
		if overrides.HTTP.AcceptGzip != nil {
			c.HTTP.AcceptGzip = *overrides.HTTP.AcceptGzip
		}
	}
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Auth.PrivateKeyFile = expandVars(c.Auth.PrivateKeyFile, vars)
	c.Auth.AgeIdentityFile = expandVars(c.Auth.AgeIdentityFile, vars)
	c.Auth.APITokenFile = expandVars(c.Auth.APITokenFile, vars)
	c.Auth.WebAuthTokenFile = expandVars(c.Auth.WebAuthTokenFile, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns. Provided vars
// win over the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Timeout returns the parsed request timeout.
func (c *Config) Timeout() (time.Duration, error) {
	if c.HTTP.Timeout == "" {
		return 0, nil
	}
	timeout, err := time.ParseDuration(c.HTTP.Timeout)
	if err != nil {
		return 0, fmt.Errorf("http.timeout: %w", err)
	}
	return timeout, nil
}

// Validate checks the configuration, reporting every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %q", c.Environment))
	}
	if c.Container == "" {
		errs = append(errs, errors.New("container is required"))
	} else if strings.ContainsAny(c.Container, "/?#") {
		errs = append(errs, fmt.Errorf("container %q contains URL delimiters", c.Container))
	}
	if !slices.Contains([]Database{Public, Private, Shared}, c.Database) {
		errs = append(errs, fmt.Errorf("database must be one of public, private, shared: got %q", c.Database))
	}
	if parsed, err := url.Parse(c.BaseURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		errs = append(errs, fmt.Errorf("base_url %q is not an absolute URL", c.BaseURL))
	}

	switch c.Auth.Mode {
	case ServerKey:
		if c.Auth.KeyID == "" {
			errs = append(errs, errors.New("auth.key_id is required in server_key mode"))
		}
		if c.Auth.PrivateKeyFile == "" {
			errs = append(errs, errors.New("auth.private_key_file is required in server_key mode"))
		}
	case APIToken:
		if c.Auth.APITokenFile == "" {
			errs = append(errs, errors.New("auth.api_token_file is required in api_token mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.mode must be server_key or api_token: got %q", c.Auth.Mode))
	}

	if _, err := c.Timeout(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
