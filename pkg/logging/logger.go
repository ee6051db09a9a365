package logging

import (
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
)

const (
	// LogLevelEnv selects the level used when no --log-level flag is given.
	LogLevelEnv = "GP2040CE_LOG_LEVEL"
	// JSONLogEnv switches every logger to JSON lines when set to "1".
	JSONLogEnv = "GP2040CE_JSON_LOG"

	linePrefix = "🎮 "
)

// NewLogger creates a new hclog logger with standard settings
func NewLogger(name string, level string, output io.Writer) hclog.Logger {
	logger, _ := newLogger(name, level, output)
	return logger
}

// NewCommandLogger is NewLogger for a command run. The returned flush
// writes out a log line still waiting for its newline when the command
// ends.
func NewCommandLogger(name string, level string, output io.Writer) (hclog.Logger, func() error) {
	logger, pw := newLogger(name, level, output)
	if pw == nil {
		return logger, func() error { return nil }
	}
	return logger, pw.Flush
}

func newLogger(name string, level string, output io.Writer) (hclog.Logger, *PrefixWriter) {
	if output == nil {
		output = os.Stderr
	}

	var pw *PrefixWriter
	jsonFormat := os.Getenv(JSONLogEnv) == "1"
	if !jsonFormat {
		pw = NewPrefixWriter(linePrefix, output)
		output = pw
	}

	opts := &hclog.LoggerOptions{
		Name:       name,
		Level:      hclog.LevelFromString(level),
		JSONFormat: jsonFormat,
		Output:     output,
		TimeFormat: "2006-01-02T15:04:05Z",
		TimeFn: func() time.Time {
			return time.Now().UTC()
		},
	}

	return hclog.New(opts), pw
}

// Component returns a logger for a library package, honouring the level
// from the environment.
func Component(name string) hclog.Logger {
	return NewLogger(name, GetLogLevel(), nil)
}

// OrNull returns l, or a logger that discards everything when l is nil.
func OrNull(l hclog.Logger) hclog.Logger {
	if l == nil {
		return hclog.NewNullLogger()
	}
	return l
}

// GetLogLevel returns the configured log level from environment
func GetLogLevel() string {
	level := os.Getenv(LogLevelEnv)
	if level == "" {
		level = "warn"
	}
	return level
}
