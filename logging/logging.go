package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	logger zerolog.Logger
	once   sync.Once
)

// Get returns the process wide logger. The level is debug unless NO_DEBUG
// is set, and RECONF_LOG_JSON switches the console writer for plain JSON.
func Get() zerolog.Logger {
	once.Do(func() {
		logLevel := zerolog.DebugLevel
		if os.Getenv("NO_DEBUG") != "" {
			logLevel = zerolog.InfoLevel
		}

		var out io.Writer = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}
		if os.Getenv("RECONF_LOG_JSON") != "" {
			out = os.Stderr
		}

		logger = zerolog.New(out).Level(logLevel).With().Timestamp().Caller().Logger()
	})

	return logger
}

// Component returns the process logger tagged with a component name.
func Component(name string) zerolog.Logger {
	l := Get()
	return l.With().Str("component", name).Logger()
}
