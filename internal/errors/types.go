package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeStorage    ErrorType = "storage"
	ErrorTypePlugin     ErrorType = "plugin"
	ErrorTypeStartup    ErrorType = "startup"
	ErrorTypeInternal   ErrorType = "internal"
)

// LodeError is a structured error type with context.
type LodeError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Component   string
	FilePath    string
	Recoverable bool
}

// Error implements the error interface.
func (e *LodeError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}

	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *LodeError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *LodeError) Is(target error) bool {
	var t *LodeError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *LodeError) WithContext(key string, value interface{}) *LodeError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithFile adds the file path the error refers to.
func (e *LodeError) WithFile(path string) *LodeError {
	e.FilePath = path

	return e
}

// WithComponent adds component context.
func (e *LodeError) WithComponent(component string) *LodeError {
	e.Component = component

	return e
}

// Error creation functions

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *LodeError {
	return &LodeError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *LodeError {
	return &LodeError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *LodeError {
	return &LodeError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewStorageError creates a storage error.
func NewStorageError(code, message string, cause error) *LodeError {
	return &LodeError{
		Type:        ErrorTypeStorage,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewPluginError creates a plugin error.
func NewPluginError(code, message string, cause error) *LodeError {
	return &LodeError{
		Type:        ErrorTypePlugin,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewStartupError creates a startup error.
func NewStartupError(code, message string, cause error) *LodeError {
	return &LodeError{
		Type:        ErrorTypeStartup,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *LodeError {
	return &LodeError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// Wrap converts an arbitrary error into a LodeError, preserving the cause.
// A nil err returns nil; an existing LodeError is returned unchanged.
func Wrap(err error, errType ErrorType, code, message string) *LodeError {
	if err == nil {
		return nil
	}

	var le *LodeError
	if errors.As(err, &le) {
		return le
	}

	return &LodeError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// As finds the first error in err's chain that matches target.
// Re-exported so callers don't juggle this package with the standard
// library one.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Error recovery and handling utilities

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var le *LodeError
	if errors.As(err, &le) {
		return le.Recoverable
	}

	return false
}

// IsStorageError checks if an error is storage-related.
func IsStorageError(err error) bool {
	var le *LodeError
	if errors.As(err, &le) {
		return le.Type == ErrorTypeStorage
	}

	return false
}

// IsConfigError checks if an error is configuration-related.
func IsConfigError(err error) bool {
	var le *LodeError
	if errors.As(err, &le) {
		return le.Type == ErrorTypeConfig
	}

	return false
}

// Common error codes for consistent error handling.
const (
	ErrCodeInvalidYAML       = "ERR_INVALID_YAML"
	ErrCodeUnsupportedType   = "ERR_UNSUPPORTED_TYPE"
	ErrCodeInvalidKey        = "ERR_INVALID_KEY"
	ErrCodeInvalidPath       = "ERR_INVALID_PATH"
	ErrCodeConfigInvalid     = "ERR_CONFIG_INVALID"
	ErrCodeFileNotFound      = "ERR_FILE_NOT_FOUND"
	ErrCodeDirUnreadable     = "ERR_DIR_UNREADABLE"
	ErrCodeProviderInvalid   = "ERR_PROVIDER_INVALID"
	ErrCodeProviderDuplicate = "ERR_PROVIDER_DUPLICATE"
	ErrCodePluginInit        = "ERR_PLUGIN_INIT"
	ErrCodePluginShutdown    = "ERR_PLUGIN_SHUTDOWN"
	ErrCodePluginInvalid     = "ERR_PLUGIN_INVALID"
	ErrCodePluginDuplicate   = "ERR_PLUGIN_DUPLICATE"
	ErrCodeSlotUnknown       = "ERR_SLOT_UNKNOWN"
	ErrCodeSlotInvalid       = "ERR_SLOT_INVALID"
	ErrCodePhaseOrder        = "ERR_PHASE_ORDER"
	ErrCodePhaseFailed       = "ERR_PHASE_FAILED"
	ErrCodeStateStore        = "ERR_STATE_STORE"
	ErrCodeDataStore         = "ERR_DATA_STORE"
	ErrCodeCacheProvider     = "ERR_CACHE_PROVIDER"
	ErrCodeTaskDuplicate     = "ERR_TASK_DUPLICATE"
	ErrCodeTaskUnknown       = "ERR_TASK_UNKNOWN"
	ErrCodeTaskPayload       = "ERR_TASK_PAYLOAD"
	ErrCodeFetchFailed       = "ERR_FETCH_FAILED"
	ErrCodeExtractFailed     = "ERR_EXTRACT_FAILED"
	ErrCodeInternalError     = "ERR_INTERNAL"
)
