package domain

import "errors"

var (
	ErrPermissionDenied  = errors.New("location permission denied")
	ErrNetworkFailure    = errors.New("remote station source unavailable")
	ErrEmptyResult       = errors.New("no stations found within radius")
	ErrSpeechSynthesis   = errors.New("speech synthesis failed")
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	ErrInvalidRadius     = errors.New("radius must be greater than zero")
	ErrNoFix             = errors.New("no location fix available")
)
