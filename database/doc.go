// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package database is the client for one database of a record service
// container: record modify, lookup, and query; asset upload; zone and
// subscription management.
//
// Every request is a JSON POST (or GET for list endpoints) to
//
//	{base}/database/1/{container}/{environment}/{database}/{resource}/{action}
//
// authenticated by an [auth.Authenticator] over the final body bytes
// and the path beginning at "/database/".
//
// Batch endpoints return one result per submitted item. Each result is
// either an entity, a deletion confirmation, or a server error for that
// item alone; results are matched to requests by position and returned
// keyed by identity as [Result] values. A result that fits none of those
// shapes fails the whole call, since positional matching can no longer
// be trusted.
//
// Saving records that hold pending [field.Asset] values first uploads
// the asset files: one token request for the whole batch, then one
// multipart upload per record field slot holding the asset. Each slot
// is sent with the receipt issued for it.
//
// All blocking methods take a context. Cancellation is checked before
// and after every network call and surfaces as
// [apierror.KindCancelled]. A request already sent runs to completion
// and its result is discarded. Nothing here retries.
package database
