// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package auth authenticates requests to the record service.
//
// Two schemes exist. A [KeySigner] signs each request with a
// server-to-server elliptic-curve key, adding key ID, date, and
// signature headers. A [TokenAuthenticator] appends an API token and
// optionally a user's web-auth token to the request URL. Both
// implement [Authenticator], which the database client calls once per
// request after the body is final.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bureau-foundation/recordwire/lib/secret"
)

// Authenticator adds credentials to an outgoing request. Body is the
// exact request body and subpath the URL path beginning at
// "/database/"; signers cover both.
type Authenticator interface {
	Authenticate(request *http.Request, body []byte, subpath string) error
}

// Query parameter names for token authentication.
const (
	APITokenParam     = "ckAPIToken"
	WebAuthTokenParam = "ckWebAuthToken"
)

// TokenAuthenticator authenticates with an API token and an optional
// web-auth token passed as query parameters. It owns both secrets;
// Close releases them.
type TokenAuthenticator struct {
	apiToken     *secret.Buffer
	webAuthToken *secret.Buffer
}

// NewTokenAuthenticator takes ownership of apiToken and webAuthToken.
// webAuthToken may be nil for requests that act without a user.
func NewTokenAuthenticator(apiToken, webAuthToken *secret.Buffer) (*TokenAuthenticator, error) {
	if apiToken == nil {
		return nil, errors.New("auth: API token is required")
	}
	return &TokenAuthenticator{apiToken: apiToken, webAuthToken: webAuthToken}, nil
}

// Authenticate sets the token query parameters. Tokens are
// percent-encoded; web-auth tokens routinely contain '+', '/' and '='.
func (a *TokenAuthenticator) Authenticate(request *http.Request, _ []byte, _ string) error {
	query, err := url.ParseQuery(request.URL.RawQuery)
	if err != nil {
		return fmt.Errorf("auth: parsing request query: %w", err)
	}
	query.Set(APITokenParam, a.apiToken.String())
	if a.webAuthToken != nil {
		query.Set(WebAuthTokenParam, a.webAuthToken.String())
	}
	request.URL.RawQuery = query.Encode()
	return nil
}

// Close releases the token buffers.
func (a *TokenAuthenticator) Close() error {
	var errs []error
	errs = append(errs, a.apiToken.Close())
	if a.webAuthToken != nil {
		errs = append(errs, a.webAuthToken.Close())
	}
	return errors.Join(errs...)
}
