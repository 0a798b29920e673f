// Package exitcodes provides centralized exit code definitions and error
// handling for the imgmatch tool. Exit codes are organized in ranges to
// categorize different types of failures:
//
//	0:     Success
//	1-9:   Input/Configuration Errors (e.g., missing flags, unreadable input)
//	10-19: Matching Errors (e.g., no matches above the confidence floor)
//	20-29: Runtime Errors (e.g., I/O errors, system failures)
package exitcodes

import (
	"errors"
	"fmt"
)

// Exit code constants organized by category
const (
	// Success (0)
	ExitSuccess = 0

	// Input/Configuration Errors (1-9)
	ExitMissingRequiredFlag     = 1 // Required command flag not provided
	ExitInputConfigurationError = 2 // General configuration error
	ExitInputFileNotFound       = 3 // Input image list not found or unreadable
	ExitInvalidConfidence       = 4 // Confidence threshold outside [0,1]

	// Matching Errors (10-19)
	ExitNoImagesParsed  = 10 // Input contained no usable image references
	ExitAllMatchesNone  = 11 // Every image resolved to the "none" outcome
	ExitThresholdFailed = 12 // Matches found but all below the confidence floor

	// Runtime Errors (20-29)
	ExitGeneralRuntimeError = 20 // General runtime/system error
	ExitIOError             = 21 // IO operation error

	// Internal Errors (30-39)
	ExitInternalError = 30 // Internal error in command execution
)

// ExitCodeError wraps an error with an exit code for consistent error handling.
// This type is used throughout the codebase to propagate both error details
// and the appropriate exit code up the call stack.
type ExitCodeError struct {
	Code int   // Exit code to return
	Err  error // Underlying error
}

func (e *ExitCodeError) Error() string {
	return fmt.Sprintf("exit code %d: %v", e.Code, e.Err)
}

func (e *ExitCodeError) Unwrap() error {
	return e.Err
}

// IsExitCodeError checks if an error is an ExitCodeError and returns its code.
// Returns false and 0 if the error is not an ExitCodeError.
func IsExitCodeError(err error) (int, bool) {
	var exitErr *ExitCodeError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}

// CodeDescriptions maps exit codes to their human-readable descriptions
var CodeDescriptions = map[int]string{
	ExitSuccess:                 "Success",
	ExitMissingRequiredFlag:     "Required command flag not provided",
	ExitInputConfigurationError: "General configuration error",
	ExitInputFileNotFound:       "Input image list not found or unreadable",
	ExitInvalidConfidence:       "Confidence threshold outside [0,1]",
	ExitNoImagesParsed:          "Input contained no usable image references",
	ExitAllMatchesNone:          "Every image resolved to the \"none\" outcome",
	ExitThresholdFailed:         "Matches found but all below the confidence floor",
	ExitGeneralRuntimeError:     "General runtime/system error",
	ExitIOError:                 "IO operation error",
	ExitInternalError:           "Internal error in command execution",
}
