package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dvcrn/modelgate-admin-client/internal/env"
)

const (
	colorRed     = 31
	colorGreen   = 32
	colorYellow  = 33
	colorMagenta = 35

	colorBold = 1
)

var (
	mu     sync.Mutex
	logger *zerolog.Logger
)

// Get returns the process logger, building it from MODELGATE_ENV and LOG_LEVEL on first use.
func Get() *zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = newLogger()
	}
	return logger
}

// SetLevel changes the global level without rebuilding the writer.
func SetLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

func colorize(s interface{}, c int) string {
	return fmt.Sprintf("\x1b[%dm%v\x1b[0m", c, s)
}

func newLogger() *zerolog.Logger {
	logLevel := zerolog.InfoLevel
	if levelStr, ok := env.Get("LOG_LEVEL"); ok {
		if parsedLevel, err := zerolog.ParseLevel(strings.ToLower(levelStr)); err == nil {
			logLevel = parsedLevel
		} else {
			fmt.Fprintf(os.Stderr, "Invalid LOG_LEVEL \"%s\"; defaulting to 'info'\n", levelStr)
		}
	}
	zerolog.SetGlobalLevel(logLevel)

	switch env.GetOrDefault("MODELGATE_ENV", "development") {
	case "development", "dev":
		return newDevelopment()
	default:
		return newProduction()
	}
}

// newDevelopment writes colored, human readable lines to stderr.
func newDevelopment() *zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "2006-01-02 15:04:05",
		FormatLevel: func(i interface{}) string {
			ll, ok := i.(string)
			if !ok || ll == "" {
				return "???"
			}
			switch ll {
			case "trace":
				return colorize("TRC", colorMagenta)
			case "debug":
				return colorize("DBG", colorYellow)
			case "info":
				return colorize("INF", colorGreen)
			case "warn":
				return colorize("WRN", colorRed)
			case "error", "fatal", "panic":
				return colorize(strings.ToUpper(ll)[0:3], colorRed)
			default:
				return colorize(strings.ToUpper(ll), colorBold)
			}
		},
	}

	zl := zerolog.New(output).With().Timestamp().Logger()
	return &zl
}

// newProduction writes JSON lines with UNIX timestamps.
func newProduction() *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zl := zerolog.New(os.Stderr).With().Timestamp().Logger()
	return &zl
}
