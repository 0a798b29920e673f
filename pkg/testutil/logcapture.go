// Package testutil provides shared helpers for capturing log output in
// tests.
package testutil

import (
	"bytes"
	"fmt"

	log "github.com/guardrail-dev/imgmatch/pkg/log"
)

// CaptureLogOutput redirects log output to a buffer while testFunc runs and
// returns the captured content. The original output and log level are
// restored afterwards.
//
// Example:
//
//	output, err := testutil.CaptureLogOutput(log.LevelDebug, func() {
//	    log.Info("this will be captured")
//	})
func CaptureLogOutput(level log.Level, testFunc func()) (string, error) {
	originalLevel := log.CurrentLevel()

	var buf bytes.Buffer
	restore := log.SetOutput(&buf)
	defer restore()

	log.SetLevel(level)
	defer log.SetLevel(originalLevel)

	var panicErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicErr = fmt.Errorf("panic during log capture: %v", r)
			}
		}()
		testFunc()
	}()

	return buf.String(), panicErr
}
