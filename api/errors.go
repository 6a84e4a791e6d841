package api

import (
	"errors"
	"fmt"
)

// ErrUnauthorized indicates the API rejected the key (HTTP 401/403).
type ErrUnauthorized struct {
	Err error
}

func (e ErrUnauthorized) Error() string {
	return fmt.Errorf("unauthorized: %w", e.Err).Error()
}

func (e ErrUnauthorized) Unwrap() error {
	return e.Err
}

// ErrRateLimited indicates the API throttled the request (HTTP 429).
type ErrRateLimited struct {
	Err error
}

func (e ErrRateLimited) Error() string {
	return fmt.Errorf("rate_limited: %w", e.Err).Error()
}

func (e ErrRateLimited) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrMalformedResponse indicates a payload that could not be parsed into the
// expected member-list shape.
type ErrMalformedResponse struct {
	Err error
}

func (e ErrMalformedResponse) Error() string {
	return fmt.Errorf("malformed_response: %w", e.Err).Error()
}

func (e ErrMalformedResponse) Unwrap() error {
	return e.Err
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var unauthorized ErrUnauthorized
	if errors.As(err, &unauthorized) {
		return "unauthorized"
	}
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return "rate_limited"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var malformed ErrMalformedResponse
	if errors.As(err, &malformed) {
		return "malformed_response"
	}
	return "other"
}
