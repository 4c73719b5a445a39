// Package chatpod - errors.go
// Defines session and trimming specific errors.

package chatpod

import "errors"

var (
	ErrSessionClosed   = errors.New("session has been closed")
	ErrSessionNotFound = errors.New("session not found")
	ErrMissingAPIKey   = errors.New("api key is not set")
	ErrBudgetTooSmall  = errors.New("trim budget is smaller than the leading system message")
)
