package backend

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the package-level structured logger.
// All backend code should use this instead of fmt.Printf.
var Logger = slog.Default()

// InitLogger initialises the slog default logger.
// logLevel should be one of: "debug", "info", "warn", "error".
// format is "text" or "json". LOG_LEVEL and LOG_FORMAT override both.
func InitLogger(logLevel, format string) {
	initLogger(os.Stdout, logLevel, format)
}

func initLogger(w io.Writer, logLevel, format string) {
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		logLevel = env
	}
	if env := os.Getenv("LOG_FORMAT"); env != "" {
		format = env
	}

	opts := &slog.HandlerOptions{Level: parseLevel(logLevel)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	Logger = logger
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
