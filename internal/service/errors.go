package service

import "errors"

// Service errors. Handlers match them with errors.Is; anything else is a dependency failure.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrDuplicateUser      = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrPredictionFailed   = errors.New("prediction failed")
)
