// Package services contains business logic layers.
// Services are called by handlers and interact with the database.
package services

import "errors"

// Sentinel errors crossing the service boundary. Handlers map these to
// HTTP status codes; anything else is a generic server error.
var (
	ErrNotFound           = errors.New("record not found")
	ErrInvalidStatus      = errors.New("invalid status value")
	ErrEmptyText          = errors.New("text must not be empty")
	ErrInvalidCategory    = errors.New("invalid manifestation type")
	ErrIdentityRequired   = errors.New("name and cpf are required for identified submissions")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
