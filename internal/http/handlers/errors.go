// Package handlers defines the error codes carried in API error envelopes.
//
// Every error response pairs an HTTP status with one of these codes so
// clients can branch on a stable string instead of parsing messages. The
// status-mirroring codes say no more than the status does; the *_failed
// codes mark persistence failures where a bare 500 says too little.
//
// A burst-limited click looks like:
//
//	{
//	  "request_id": "7c0a2f6e-8d31-4b52-9f0d-2a83c41e9b17",
//	  "code": "too_many_requests",
//	  "message": "Too many clicks! Slow down."
//	}
package handlers

const (
	// Status-mirroring codes.
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"

	// Persistence failures surfaced as 500s.
	ErrCodeCreateFailed = "create_failed"
	ErrCodeListFailed   = "list_failed"
	ErrCodeRecordFailed = "record_failed"
)
