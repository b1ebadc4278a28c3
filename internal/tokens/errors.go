package tokens

import "storefront/internal/apperr"

var (
	ErrTokenMalformed     = apperr.Unauthorized("malformed refresh token").WithReason("TOKEN_MALFORMED")
	ErrTokenInvalid       = apperr.Unauthorized("invalid refresh token").WithReason("TOKEN_INVALID")
	ErrTokenExpired       = apperr.Unauthorized("refresh token expired").WithReason("TOKEN_EXPIRED")
	ErrTokenReuseDetected = apperr.Unauthorized("refresh token reuse detected, all sessions were signed out").WithReason("TOKEN_REUSE_DETECTED")

	// ErrNotFound is returned by a Store when no record has the requested id.
	ErrNotFound = apperr.NotFound("refresh token not found")
)
