package domain

import "errors"

var (
	ErrPlayerNotReady = errors.New("player not ready")
	ErrInvalidEvent   = errors.New("invalid event")
)
