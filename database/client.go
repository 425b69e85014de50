// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package database

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/bureau-foundation/recordwire/auth"
	"github.com/bureau-foundation/recordwire/lib/clock"
	"github.com/bureau-foundation/recordwire/lib/config"
)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// BaseURL is the service origin (e.g., "https://api.apple-cloudkit.com").
	BaseURL string
	// Container is the container identifier.
	Container string
	// Environment is "development" or "production".
	Environment config.Environment
	// Database is "public", "private", or "shared".
	Database config.Database
	// Authenticator adds credentials to every request. Required.
	Authenticator auth.Authenticator
	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	// AcceptGzip asks the server for gzip-compressed responses.
	AcceptGzip bool
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client talks to one database. It is safe for concurrent use.
type Client struct {
	baseURL       string
	container     string
	environment   config.Environment
	database      config.Database
	authenticator auth.Authenticator
	httpClient    *http.Client
	acceptGzip    bool
	logger        *slog.Logger
}

// NewClient creates a Client from config.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("database: BaseURL is required")
	}
	// Request URLs are built by concatenation, so the base must parse and
	// the trailing slash is stripped.
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("database: invalid BaseURL %q: %w", cfg.BaseURL, err)
	}
	if cfg.Container == "" {
		return nil, errors.New("database: Container is required")
	}
	if cfg.Authenticator == nil {
		return nil, errors.New("database: Authenticator is required")
	}
	environment := cfg.Environment
	if environment == "" {
		environment = config.Development
	}
	database := cfg.Database
	if database == "" {
		database = config.Public
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		container:     cfg.Container,
		environment:   environment,
		database:      database,
		authenticator: cfg.Authenticator,
		httpClient:    httpClient,
		acceptGzip:    cfg.AcceptGzip,
		logger:        logger.With("container", cfg.Container, "environment", string(environment), "database", string(database)),
	}, nil
}

// NewClientFromConfig builds the authenticator and HTTP client that cfg
// describes and returns a Client using them.
func NewClientFromConfig(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout, err := cfg.Timeout()
	if err != nil {
		return nil, err
	}
	authenticator, err := auth.FromConfig(cfg.Auth, clock.Real())
	if err != nil {
		return nil, err
	}
	return NewClient(ClientConfig{
		BaseURL:       cfg.BaseURL,
		Container:     cfg.Container,
		Environment:   cfg.Environment,
		Database:      cfg.Database,
		Authenticator: authenticator,
		HTTPClient:    &http.Client{Timeout: timeout},
		AcceptGzip:    cfg.HTTP.AcceptGzip,
		Logger:        logger,
	})
}

// Close releases the authenticator's secrets and idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	if closer, ok := c.authenticator.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Container returns the container identifier.
func (c *Client) Container() string { return c.container }

// Environment returns the environment the client addresses.
func (c *Client) Environment() config.Environment { return c.environment }

// Database returns the database scope the client addresses.
func (c *Client) Database() config.Database { return c.database }
