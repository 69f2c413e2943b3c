package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Init initializes the logger. When file is set, output is also written to
// a rotating log file.
func Init(level, format, file string) {
	// Set log level
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Logger = zerolog.New(Writer(format, file, os.Stdout)).With().Timestamp().Logger()
}

// Writer returns the log destination for format, teeing to file when set
func Writer(format, file string, stdout io.Writer) io.Writer {
	var out io.Writer = stdout
	if format == "console" {
		out = zerolog.ConsoleWriter{Out: stdout}
	}
	if file == "" {
		return out
	}
	return zerolog.MultiLevelWriter(out, &lumberjack.Logger{
		Filename:   file,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
	})
}
