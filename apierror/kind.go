// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package apierror

// Kind is the category of a call-level failure.
type Kind int

const (
	// KindCancelled means the caller's context was cancelled or the
	// operation was cancelled between network calls.
	KindCancelled Kind = iota + 1

	// KindNetworkUnavailable means the host has no usable network
	// (ENETUNREACH, ENETDOWN).
	KindNetworkUnavailable

	// KindHostUnreachable means the service host could not be resolved
	// or connected to (DNS failure, refused or unreachable connection).
	KindHostUnreachable

	// KindNetwork is any other transport failure: timeouts, resets,
	// TLS errors, truncated responses.
	KindNetwork

	// KindJSONDecode means a response body was not the JSON the
	// endpoint promises.
	KindJSONDecode

	// KindMalformedResponse means the JSON decoded but its shape is
	// unusable: an unrecognized batch item, a result count that does
	// not match the request, a missing upload token.
	KindMalformedResponse

	// KindHTTPStatus is an HTTP status >= 400 whose body carries no
	// structured server error.
	KindHTTPStatus

	// KindServer is an HTTP status >= 400 with a structured server
	// error body.
	KindServer

	// KindMissingKey means a required key was absent from a request
	// the caller built or a response the server sent.
	KindMissingKey

	// KindAssetNotLocal means an asset awaiting upload has no local
	// file behind it.
	KindAssetNotLocal
)

var kindNames = map[Kind]string{
	KindCancelled:          "cancelled",
	KindNetworkUnavailable: "network unavailable",
	KindHostUnreachable:    "host unreachable",
	KindNetwork:            "network error",
	KindJSONDecode:         "json decode failure",
	KindMalformedResponse:  "malformed response",
	KindHTTPStatus:         "http status",
	KindServer:             "server error",
	KindMissingKey:         "missing required key",
	KindAssetNotLocal:      "asset not local",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Server error codes returned in the serverErrorCode field.
const (
	CodeAccessDenied             = "ACCESS_DENIED"
	CodeAtomicError              = "ATOMIC_ERROR"
	CodeAuthenticationFailed     = "AUTHENTICATION_FAILED"
	CodeAuthenticationRequired   = "AUTHENTICATION_REQUIRED"
	CodeBadRequest               = "BAD_REQUEST"
	CodeConflict                 = "CONFLICT"
	CodeExists                   = "EXISTS"
	CodeInternalError            = "INTERNAL_ERROR"
	CodeNotFound                 = "NOT_FOUND"
	CodeQuotaExceeded            = "QUOTA_EXCEEDED"
	CodeThrottled                = "THROTTLED"
	CodeTryAgainLater            = "TRY_AGAIN_LATER"
	CodeValidatingReferenceError = "VALIDATING_REFERENCE_ERROR"
	CodeZoneNotFound             = "ZONE_NOT_FOUND"
)
