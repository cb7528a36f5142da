// Package logger provides process-wide logging for claimminer.
// Messages go through zerolog: a console writer by default and JSON lines
// when JSON output is enabled. Debug and info messages are only emitted in
// verbose mode; warnings and errors are always emitted.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu         sync.RWMutex
	verbose    bool
	jsonOutput bool
	output     io.Writer = os.Stderr
	log                  = build()
)

// build creates the logger from the current settings. Callers hold mu.
func build() zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	var w io.Writer = output
	if !jsonOutput {
		w = zerolog.ConsoleWriter{
			Out:          output,
			NoColor:      true,
			PartsExclude: []string{zerolog.TimestampFieldName},
		}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	log = build()
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetJSON switches between console and JSON output.
func SetJSON(v bool) {
	mu.Lock()
	defer mu.Unlock()
	jsonOutput = v
	log = build()
}

// SetOutput sets the output writer.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	log = build()
}

// With returns a child logger carrying the given fields.
func With(fields map[string]any) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log.With().Fields(fields).Logger()
}

// Debug logs a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	log.Debug().Msgf(format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if !verbose {
		return
	}
	if jsonOutput {
		log.Debug().Str("section", name).Send()
		return
	}
	fmt.Fprintf(output, "\n=== %s ===\n", name)
}

// Info logs an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	log.Info().Msgf(format, args...)
}

// Warn logs a warning.
func Warn(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	log.Warn().Msgf(format, args...)
}

// Error logs an error with its cause.
func Error(err error, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	log.Error().Err(err).Msgf(format, args...)
}
