package errors

import (
	"fmt"
	"strings"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a missing or conflicting option combination.
// Every credential-resolution failure is a ConfigError: raised
// synchronously, never retried, aborts the run.
type ConfigError struct {
	Option     string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Option != "" {
		msg += fmt.Sprintf(" for option '%s'", e.Option)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// APIError represents a non-success response from the Barbican or
// Keystone HTTP API.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e APIError) Error() string {
	msg := fmt.Sprintf("%s %s returned status %d", e.Method, e.URL, e.StatusCode)
	if e.Body != "" {
		msg += ": " + strings.TrimSpace(e.Body)
	}
	return msg
}

// AuthError wraps authentication failures against the identity service
// with context-specific suggestions.
func AuthError(operation string, err error) error {
	return UserError{
		Message:    fmt.Sprintf("Authentication failed during %s", operation),
		Suggestion: getAuthSuggestion(err),
		Err:        err,
	}
}

// getAuthSuggestion returns helpful suggestions based on the underlying error
func getAuthSuggestion(err error) string {
	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "401") || strings.Contains(errStr, "unauthorized"):
		return "Check your username/password or token. Tokens expire; re-issue one or supply --os-password"
	case strings.Contains(errStr, "404"):
		return "Check that --os-auth-url points at the Keystone root (e.g. https://keystone.example.com:5000/v3)"
	case strings.Contains(errStr, "certificate") || strings.Contains(errStr, "x509"):
		return "The identity endpoint presented an untrusted certificate. Fix the CA bundle or pass --insecure for testing"
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host"):
		return "Unable to reach the identity endpoint. Check your network and --os-auth-url"
	case strings.Contains(errStr, "timeout"):
		return "The identity endpoint timed out. Check your network connection and try again"
	}

	return "Run 'barbican doctor' to diagnose your credential configuration"
}

// IsRetryable checks if an error is retryable. ConfigErrors never are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := err.(ConfigError); ok {
		return false
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"timeout",
		"temporary failure",
		"connection reset",
		"broken pipe",
		"rate limit",
		"too many requests",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
