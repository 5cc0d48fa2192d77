package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	globalLogger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	mu sync.RWMutex
)

// Init configures the global logger. Format "json" writes structured lines,
// anything else writes human readable console output.
func Init(level, format string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if !strings.EqualFold(format, "json") {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	SetOutput(out, lvl)
}

// SetOutput replaces the global logger writer, mainly for tests.
func SetOutput(w io.Writer, lvl zerolog.Level) {
	l := zerolog.New(w).Level(lvl).With().Timestamp().Logger()

	mu.Lock()
	defer mu.Unlock()
	globalLogger = l
}

// Logger returns the configured global logger.
func Logger() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()

	l := globalLogger
	return &l
}

// WithModule returns a child logger annotated with the module name.
func WithModule(module string) zerolog.Logger {
	return Logger().With().Str("module", module).Logger()
}

func Info() *zerolog.Event  { return Logger().Info() }
func Warn() *zerolog.Event  { return Logger().Warn() }
func Error() *zerolog.Event { return Logger().Error() }
func Debug() *zerolog.Event { return Logger().Debug() }

// Fatal logs at fatal level; zerolog exits the process after Msg.
func Fatal() *zerolog.Event { return Logger().Fatal() }

func Infof(format string, v ...interface{}) {
	Logger().Info().Msgf(format, v...)
}

func Errorf(format string, v ...interface{}) {
	Logger().Error().Msgf(format, v...)
}

func Debugf(format string, v ...interface{}) {
	Logger().Debug().Msgf(format, v...)
}
