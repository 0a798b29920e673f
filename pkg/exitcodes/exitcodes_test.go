package exitcodes

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCodeError(t *testing.T) {
	underlying := errors.New("input file missing")
	err := &ExitCodeError{Code: ExitInputFileNotFound, Err: underlying}

	assert.Equal(t, "exit code 3: input file missing", err.Error())
	assert.ErrorIs(t, err, underlying)
}

func TestIsExitCodeError(t *testing.T) {
	err := &ExitCodeError{Code: ExitIOError, Err: errors.New("write failed")}

	code, ok := IsExitCodeError(err)
	assert.True(t, ok)
	assert.Equal(t, ExitIOError, code)

	// Wrapped errors still resolve to their exit code.
	wrapped := fmt.Errorf("while writing report: %w", err)
	code, ok = IsExitCodeError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, ExitIOError, code)

	code, ok = IsExitCodeError(errors.New("plain error"))
	assert.False(t, ok)
	assert.Equal(t, 0, code)
}

func TestCodeDescriptionsCoverAllCodes(t *testing.T) {
	codes := []int{
		ExitSuccess,
		ExitMissingRequiredFlag,
		ExitInputConfigurationError,
		ExitInputFileNotFound,
		ExitInvalidConfidence,
		ExitNoImagesParsed,
		ExitAllMatchesNone,
		ExitThresholdFailed,
		ExitGeneralRuntimeError,
		ExitIOError,
		ExitInternalError,
	}
	for _, code := range codes {
		assert.NotEmpty(t, CodeDescriptions[code], "missing description for code %d", code)
	}
}
