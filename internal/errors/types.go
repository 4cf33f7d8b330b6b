package errors

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ErrorType represents the classification of errors for retry logic
type ErrorType int

const (
	// ErrorTypeTransient - retry-able errors
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent - non-retry-able errors
	ErrorTypePermanent
)

// ConfigError marks a malformed or inconsistent configuration: unknown
// feature builder name, unparseable manifest, wrong-length key material.
// It is fatal at initialization time and never retried.
type ConfigError struct {
	Err     error
	Message string
}

func (e *ConfigError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("config error: %s", e.Message)
	}
	return fmt.Sprintf("config error: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a ConfigError with a description of the bad input.
func NewConfigError(message string, err error) *ConfigError {
	return &ConfigError{Err: err, Message: message}
}

// IsConfig reports whether err is configuration-shaped.
func IsConfig(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}

// NotFoundError marks a lookup miss on a skill id or trigger phrase. It is
// recoverable and surfaced to the caller as a typed failure.
type NotFoundError struct {
	Kind string // "skill" or "trigger"
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

// NewSkillNotFound creates a NotFoundError for an unknown skill id.
func NewSkillNotFound(id string) *NotFoundError {
	return &NotFoundError{Kind: "skill", Key: id}
}

// NewTriggerNotFound creates a NotFoundError for an unknown trigger phrase.
func NewTriggerNotFound(phrase string) *NotFoundError {
	return &NotFoundError{Kind: "trigger", Key: phrase}
}

// IsNotFound reports whether err is a lookup miss.
func IsNotFound(err error) bool {
	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr)
}

// InferenceError marks a failure raised inside the inference backend or the
// feature build stage. It is caught at the router boundary and must never
// propagate past it.
type InferenceError struct {
	SkillID string
	Stage   string // "features" or "inference"
	Err     error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("skill %s failed during %s: %v", e.SkillID, e.Stage, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// NewInferenceError wraps a backend or feature-build failure for a skill.
func NewInferenceError(skillID, stage string, err error) *InferenceError {
	return &InferenceError{SkillID: skillID, Stage: stage, Err: err}
}

// IsInference reports whether err originated inside a skill execution.
func IsInference(err error) bool {
	var inferenceErr *InferenceError
	return errors.As(err, &inferenceErr)
}

// TransientError represents an error that can be retried
type TransientError struct {
	Err     error
	Message string
}

func (e *TransientError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("transient error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// PermanentError represents an error that should not be retried
type PermanentError struct {
	Err     error
	Message string
}

func (e *PermanentError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("permanent error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// NewTransientError creates a new transient error
func NewTransientError(err error, message string) *TransientError {
	return &TransientError{Err: err, Message: message}
}

// NewPermanentError creates a new permanent error
func NewPermanentError(err error, message string) *PermanentError {
	return &PermanentError{Err: err, Message: message}
}

// IsTransient checks if an error is retry-able
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	// Check if explicitly marked as transient
	var transientErr *TransientError
	if errors.As(err, &transientErr) {
		return true
	}

	// Explicit permanent / config markers win
	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) {
		return false
	}
	if IsConfig(err) {
		return false
	}

	// Network errors (connection refused, timeout, etc.)
	if isNetworkError(err) {
		return true
	}

	// Syscall errors
	if isSyscallError(err) {
		return true
	}

	// Default: not transient
	return false
}

// GetErrorType classifies an error
func GetErrorType(err error) ErrorType {
	if IsTransient(err) {
		return ErrorTypeTransient
	}
	// Default to permanent to avoid infinite retries
	return ErrorTypePermanent
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary()
	}

	errStr := strings.ToLower(err.Error())
	networkPatterns := []string{
		"connection refused",
		"timeout",
		"deadline exceeded",
		"network",
		"dns",
		"connection reset",
		"broken pipe",
	}

	for _, pattern := range networkPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

func isSyscallError(err error) bool {
	var syscallErr syscall.Errno
	if errors.As(err, &syscallErr) {
		switch syscallErr {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.EPIPE,
			syscall.ETIMEDOUT, syscall.ENETUNREACH, syscall.EHOSTUNREACH:
			return true
		}
	}
	return false
}
