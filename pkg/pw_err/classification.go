// pkg/pw_err/classification.go
//
// Error classification with exit codes. Every fatal condition of an
// installer run is funnelled through one of these categories so that
// cmd.Execute is the only place that decides the process status.

package pw_err

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorCategory classifies errors for appropriate handling
type ErrorCategory int

const (
	// CategorySystem - OS/filesystem issues (exit 1)
	CategorySystem ErrorCategory = iota
	// CategoryValidation - invalid user supplied value that could not be reprompted (exit 1)
	CategoryValidation
	// CategoryConfiguration - programming or config errors: bad validator args, unknown kinds (exit 1)
	CategoryConfiguration
	// CategoryResource - package missing upstream, insufficient storage (exit 1)
	CategoryResource
	// CategoryExternal - package manager or other tool failed (exit 1)
	CategoryExternal
	// CategoryDependency - required tool missing (exit 1)
	CategoryDependency
	// CategoryUser - user declined to continue (exit 0)
	CategoryUser
	// CategoryInterrupted - SIGINT/SIGTERM (exit 130)
	CategoryInterrupted
)

func (c ErrorCategory) String() string {
	switch c {
	case CategoryValidation:
		return "validation"
	case CategoryConfiguration:
		return "configuration"
	case CategoryResource:
		return "resource"
	case CategoryExternal:
		return "external"
	case CategoryDependency:
		return "dependency"
	case CategoryUser:
		return "user"
	case CategoryInterrupted:
		return "interrupted"
	default:
		return "system"
	}
}

// ClassifiedError wraps an error with category and remediation info
type ClassifiedError struct {
	Category    ErrorCategory
	Message     string
	Cause       error
	Remediation []string
}

// Error implements the error interface
func (e *ClassifiedError) Error() string {
	var sb strings.Builder

	sb.WriteString(e.Message)

	if e.Cause != nil && e.Cause.Error() != e.Message {
		sb.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Remediation) > 0 {
		sb.WriteString("\n\nHow to fix:")
		for i, step := range e.Remediation {
			sb.WriteString(fmt.Sprintf("\n  %d. %s", i+1, step))
		}
	}

	return sb.String()
}

// Unwrap returns the underlying error
func (e *ClassifiedError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the appropriate exit code for this error category
func (e *ClassifiedError) ExitCode() int {
	switch e.Category {
	case CategoryUser:
		return 0
	case CategoryInterrupted:
		return 130
	default:
		return 1
	}
}

// GetExitCode extracts exit code from any error.
// Returns 0 for nil, the category code for classified errors, 130 for a
// cancelled context and 1 for everything else.
func GetExitCode(err error) int {
	if err == nil {
		return 0
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.ExitCode()
	}

	if errors.Is(err, context.Canceled) {
		return 130
	}

	if IsExpectedUserError(err) {
		return 0
	}

	return 1
}

// CategoryOf returns the category of err, CategorySystem when unclassified.
func CategoryOf(err error) ErrorCategory {
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.Category
	}
	var notFound *PackageNotFoundError
	var space *InsufficientSpaceError
	if errors.As(err, &notFound) || errors.As(err, &space) {
		return CategoryResource
	}
	if errors.Is(err, context.Canceled) {
		return CategoryInterrupted
	}
	return CategorySystem
}

// NewConfigurationError is raised for mistakes in calling code or config files.
// It is never retried.
func NewConfigurationError(message string, cause error) error {
	return &ClassifiedError{
		Category: CategoryConfiguration,
		Message:  message,
		Cause:    cause,
	}
}

// NewConfigurationErrorf is NewConfigurationError with formatting.
func NewConfigurationErrorf(format string, args ...any) error {
	return NewConfigurationError(fmt.Sprintf(format, args...), nil)
}

// IsConfigurationError reports whether err is a ConfigurationError.
func IsConfigurationError(err error) bool {
	return CategoryOf(err) == CategoryConfiguration
}

// NewValidationError creates an error for input validation failures
func NewValidationError(message string, remediation ...string) error {
	return &ClassifiedError{
		Category:    CategoryValidation,
		Message:     message,
		Remediation: remediation,
	}
}

// NewDependencyError creates an error for missing dependencies
func NewDependencyError(cause error, remediation ...string) error {
	return &ClassifiedError{
		Category:    CategoryDependency,
		Message:     "required tools are missing",
		Cause:       cause,
		Remediation: remediation,
	}
}

// NewExternalToolError wraps a failed external command. The output summary
// is carried in the message so the user sees why the tool failed.
func NewExternalToolError(command, output string, cause error) error {
	return &ClassifiedError{
		Category: CategoryExternal,
		Message:  fmt.Sprintf("%s failed (%s)", command, ExtractSummary(output, 2)),
		Cause:    cause,
	}
}

// NewFilesystemError creates an error for filesystem issues
func NewFilesystemError(message string, cause error, remediation ...string) error {
	return &ClassifiedError{
		Category:    CategorySystem,
		Message:     message,
		Cause:       cause,
		Remediation: remediation,
	}
}

// NewUserCancelledError creates an error for a declined confirmation
func NewUserCancelledError(operation string) error {
	return &ClassifiedError{
		Category:    CategoryUser,
		Message:     fmt.Sprintf("Operation cancelled by user: %s", operation),
		Remediation: []string{"Run the installer again to retry"},
	}
}

// NewInterruptedError marks a run stopped by a signal.
func NewInterruptedError(cause error) error {
	return &ClassifiedError{
		Category: CategoryInterrupted,
		Message:  "interrupted",
		Cause:    cause,
	}
}
