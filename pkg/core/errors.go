package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCode is the default callback failure reason.
	ErrNoCode = errors.New("no code received")
	// ErrStateMismatch is returned when the callback state does not match the session.
	ErrStateMismatch = errors.New("state mismatch")
)

// CallbackError is a missing code or a provider-reported error on the redirect.
type CallbackError struct {
	Reason string
}

func (e *CallbackError) Error() string {
	return "callback failed: " + e.Reason
}

// HTTPStatusError is a token endpoint response outside the success range.
type HTTPStatusError struct {
	Status int
	Body   string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Body)
}

// NetworkError is a token request that never received a response.
type NetworkError struct {
	Message string
	Err     error
}

func (e *NetworkError) Error() string {
	return "request failed: " + e.Message
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ConfigError is a configuration fault, such as an unusable proxy URL.
type ConfigError struct {
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config: %s: %v", e.Message, e.Err)
	}
	return "config: " + e.Message
}

func (e *ConfigError) Unwrap() error { return e.Err }

// StoreReadError is a recoverable failure to read the credential store.
type StoreReadError struct {
	Path string
	Err  error
}

func (e *StoreReadError) Error() string {
	return fmt.Sprintf("read credential store %s: %v", e.Path, e.Err)
}

func (e *StoreReadError) Unwrap() error { return e.Err }

// StoreWriteError is a terminal failure to persist the credential store.
type StoreWriteError struct {
	Path string
	Err  error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("write credential store %s: %v", e.Path, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }

// IsTokenExchangeError reports whether err is one of the token exchange error classes.
func IsTokenExchangeError(err error) bool {
	var (
		statusErr  *HTTPStatusError
		networkErr *NetworkError
		configErr  *ConfigError
	)
	return errors.As(err, &statusErr) || errors.As(err, &networkErr) || errors.As(err, &configErr)
}
