package main

import (
	"os"

	"github.com/guardrail-dev/imgmatch/pkg/exitcodes"
	log "github.com/guardrail-dev/imgmatch/pkg/log"
)

func main() {
	if err := Execute(); err != nil {
		log.Error(err.Error())

		code := exitcodes.ExitInternalError
		if c, ok := exitcodes.IsExitCodeError(err); ok {
			code = c
		}
		os.Exit(code)
	}
}
