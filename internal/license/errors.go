package license

import "errors"

var (
	ErrDuplicateEvent      = errors.New("webhook event already recorded")
	ErrDuplicateKey        = errors.New("license key already exists")
	ErrNotFound            = errors.New("license not found")
	ErrSessionNotFound     = errors.New("session not found")
	ErrKeyGeneration       = errors.New("failed to allocate a unique license key")
	ErrLicenseNotActive    = errors.New("license is not active")
	ErrLicenseExpired      = errors.New("license has expired")
	ErrHardwareMismatch    = errors.New("hardware fingerprint mismatch")
	ErrNotAuthorized       = errors.New("EA not authorized for this license")
	ErrTooManySessions     = errors.New("maximum concurrent sessions exceeded")
	ErrRateLimited         = errors.New("validation rate limit exceeded")
	ErrMissingUserMetadata = errors.New("event metadata missing user or plan id")
)
