// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a transaction lost a race or a store-side guard rejected the write.
	ErrConflict = errors.New("conflict")

	// ErrAlreadyDone indicates the attribution, claim or payout has already happened.
	ErrAlreadyDone = errors.New("already done")

	// ErrSelfReferral indicates a user tried to refer themselves.
	ErrSelfReferral = errors.New("self referral")

	// ErrUnauthorized indicates failed authentication (bad or expired ID token).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidLink indicates a URL that carries no usable referral signal.
	ErrInvalidLink = errors.New("invalid referral link")
)
