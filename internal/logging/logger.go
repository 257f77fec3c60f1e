package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	levelEnv = "WILDLIFE_LOG_LEVEL"
	fileEnv  = "WILDLIFE_LOG_FILE"
)

// Init initializes the global logger with configuration from environment variables.
// WILDLIFE_LOG_LEVEL controls the log level: debug, info, warn, error (default: info).
// WILDLIFE_LOG_FILE, when set, additionally appends JSON lines to that file.
// The returned function closes the log file.
func Init() func() {
	zerolog.SetGlobalLevel(parseLevel(os.Getenv(levelEnv)))

	console := zerolog.ConsoleWriter{Out: os.Stderr}
	path := os.Getenv(fileEnv)
	if path == "" {
		log.Logger = log.Output(console)
		return func() {}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Logger = log.Output(console)
		log.Warn().Err(err).Str("file", path).Msg("Cannot open log file, logging to stderr only")
		return func() {}
	}

	log.Logger = zerolog.New(teeWriter(console, f)).With().Timestamp().Logger()
	return func() { f.Close() }
}

func teeWriter(console io.Writer, file io.Writer) io.Writer {
	return zerolog.MultiLevelWriter(console, file)
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
