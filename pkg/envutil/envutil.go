// Package envutil reads and validates numeric settings from environment variables.
package envutil

import (
	"fmt"
	"os"
	"strconv"

	"github.com/grammatic/grammatic/pkg/console"
	"github.com/grammatic/grammatic/pkg/logger"
)

// GetIntFromEnv reads an integer from envVar and checks it against the
// inclusive [minValue, maxValue] range.
//
// defaultValue is returned when the variable is unset, is not a number, or
// is out of range. The last two cases print a warning to stderr so a typo in
// GRAMMATIC_OUTPUT_CAP does not go unnoticed.
func GetIntFromEnv(envVar string, defaultValue, minValue, maxValue int, log *logger.Logger) int {
	envValue, ok := LookupInt(envVar, minValue, maxValue)
	if !ok {
		return defaultValue
	}
	if log != nil {
		log.Printf("Using %s=%d", envVar, envValue)
	}
	return envValue
}

// LookupInt is GetIntFromEnv without a default: ok is false when the
// variable is unset or invalid.
func LookupInt(envVar string, minValue, maxValue int) (int, bool) {
	raw := os.Getenv(envVar)
	if raw == "" {
		return 0, false
	}

	val, err := strconv.Atoi(raw)
	if err != nil {
		fmt.Fprintln(os.Stderr, console.FormatWarningMessage(
			fmt.Sprintf("Invalid %s value '%s' (must be a number), ignoring it", envVar, raw),
		))
		return 0, false
	}

	if val < minValue || val > maxValue {
		fmt.Fprintln(os.Stderr, console.FormatWarningMessage(
			fmt.Sprintf("%s value %d is out of bounds (must be %d-%d), ignoring it", envVar, val, minValue, maxValue),
		))
		return 0, false
	}
	return val, true
}
