package domain

import "errors"

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrModelNotFound       = errors.New("model not found")
	ErrNoModelSelected     = errors.New("no model selected")
	ErrUnsupportedProvider = errors.New("unsupported provider")
	ErrCredentialMissing   = errors.New("api key not found")
	ErrInvalidIndex        = errors.New("message index out of range")
)
