// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package apierror classifies every failure the record adapter can
// surface.
//
// Call-level failures are returned as [*Error], whose [Kind] places them
// in a fixed taxonomy: cancellation, three flavors of network failure,
// JSON decode failures, malformed response shapes, bare HTTP status
// failures, structured server errors, missing required keys, and assets
// that are not backed by a local file. Callers use errors.As or the
// [IsKind] and [IsServerCode] helpers:
//
//	var apiErr *apierror.Error
//	if errors.As(err, &apiErr) && apiErr.Kind == apierror.KindServer {
//	    if apiErr.Server.Code == apierror.CodeThrottled { ... }
//	}
//
// Failures of a single item inside a batch never abort the batch. They are
// returned as [*ItemError] in that item's result slot, carrying the same
// structured server fields plus the item scope (record, zone, or
// subscription) and identity.
//
// Nothing in this module retries. When the server supplies a retry-after
// hint it is exposed through [RetryAfter] for the caller's own policy.
package apierror
