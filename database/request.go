// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package database

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/bureau-foundation/recordwire/apierror"
	"github.com/bureau-foundation/recordwire/lib/netutil"
	"github.com/bureau-foundation/recordwire/lib/version"
)

// apiVersion is the path version segment.
const apiVersion = "1"

// Subpath returns the signed path for resource and action, e.g.
// "/database/1/iCloud.com.example/development/public/records/modify".
func (c *Client) Subpath(resource, action string) string {
	return "/database/" + apiVersion + "/" + c.container + "/" + string(c.environment) + "/" +
		string(c.database) + "/" + resource + "/" + action
}

// call sends requestBody to resource/action and decodes the success
// body into responseBody. A nil requestBody sends a GET.
func (c *Client) call(ctx context.Context, resource, action string, requestBody, responseBody any) error {
	op := resource + "/" + action
	body, err := c.do(ctx, resource, action, requestBody)
	if err != nil {
		return err
	}
	if responseBody == nil {
		return nil
	}
	if err := json.Unmarshal(body, responseBody); err != nil {
		return apierror.Decode(op, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, resource, action string, requestBody any) ([]byte, error) {
	op := resource + "/" + action
	if err := ctx.Err(); err != nil {
		return nil, apierror.Cancelled(op, err)
	}

	method := http.MethodGet
	var encoded []byte
	if requestBody != nil {
		method = http.MethodPost
		var err error
		encoded, err = json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("database: encoding %s request: %w", op, err)
		}
	}

	subpath := c.Subpath(resource, action)
	var bodyReader io.Reader
	if encoded != nil {
		bodyReader = bytes.NewReader(encoded)
	}
	// A request already on the wire runs to completion; cancellation is
	// observed once the response is in.
	request, err := http.NewRequestWithContext(context.WithoutCancel(ctx), method, c.baseURL+subpath, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("database: creating %s request: %w", op, err)
	}
	if encoded != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	request.Header.Set("Accept", "application/json")
	request.Header.Set("User-Agent", version.UserAgent())
	if c.acceptGzip {
		request.Header.Set("Accept-Encoding", "gzip")
	}
	if err := c.authenticator.Authenticate(request, encoded, subpath); err != nil {
		return nil, fmt.Errorf("database: authenticating %s request: %w", op, err)
	}

	c.logger.Debug("sending request", "op", op, "method", method, "bytes", len(encoded))
	response, err := c.httpClient.Do(request)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, apierror.Cancelled(op, ctxErr)
		}
		return nil, apierror.Transport(op, err)
	}
	defer response.Body.Close()

	if response.StatusCode >= 400 {
		errorBody := netutil.ErrorBody(response)
		if err := ctx.Err(); err != nil {
			return nil, apierror.Cancelled(op, err)
		}
		c.logger.Debug("received error response", "op", op, "status", response.StatusCode, "bytes", len(errorBody))
		return nil, apierror.FromResponse(op, response.StatusCode, response.Header, errorBody)
	}

	responseBody, err := netutil.ReadBody(response)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, apierror.Cancelled(op, ctxErr)
		}
		return nil, apierror.Transport(op, err)
	}
	if err := ctx.Err(); err != nil {
		c.logger.Debug("discarding response to cancelled request", "op", op, "status", response.StatusCode)
		return nil, apierror.Cancelled(op, err)
	}
	c.logger.Debug("received response", "op", op, "status", response.StatusCode, "bytes", len(responseBody))
	return responseBody, nil
}
