// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes the symbolic error code constants mapped to HTTP
// responses via the `fail()` helper. The codes give the till UI a stable,
// machine-readable taxonomy to branch on: "backend_unavailable" means retry
// or queue, "store_unavailable" means the terminal cannot take offline
// orders, "rejected" means a human has to look at the entry.
//
// Conventions:
//   - Codes are lowercase snake_case.
//   - Generic codes mirror common HTTP status semantics.
//   - Domain-specific codes are reserved for outcomes a status alone cannot
//     convey.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeCommitFailed       = "commit_failed"
	ErrCodeSyncFailed         = "sync_failed"
	ErrCodeBackendUnavailable = "backend_unavailable"
	ErrCodeStoreUnavailable   = "store_unavailable"
)
