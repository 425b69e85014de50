// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"fmt"

	"github.com/bureau-foundation/recordwire/lib/clock"
	"github.com/bureau-foundation/recordwire/lib/config"
	"github.com/bureau-foundation/recordwire/lib/secret"
)

// FromConfig builds the authenticator described by cfg. Token
// authenticators own secret buffers; callers release them by closing
// the result when it implements io.Closer.
func FromConfig(cfg config.AuthConfig, clk clock.Clock) (Authenticator, error) {
	switch cfg.Mode {
	case config.ServerKey:
		key, err := LoadPrivateKeyFile(cfg.PrivateKeyFile, cfg.AgeIdentityFile)
		if err != nil {
			return nil, err
		}
		return NewKeySigner(cfg.KeyID, key, clk)

	case config.APIToken:
		apiToken, err := secret.ReadFromPath(cfg.APITokenFile)
		if err != nil {
			return nil, fmt.Errorf("auth: reading API token: %w", err)
		}
		var webAuthToken *secret.Buffer
		if cfg.WebAuthTokenFile != "" {
			webAuthToken, err = secret.ReadFromPath(cfg.WebAuthTokenFile)
			if err != nil {
				apiToken.Close()
				return nil, fmt.Errorf("auth: reading web-auth token: %w", err)
			}
		}
		return NewTokenAuthenticator(apiToken, webAuthToken)

	default:
		return nil, fmt.Errorf("auth: unknown mode %q", cfg.Mode)
	}
}
