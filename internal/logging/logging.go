// Package logging configures the global zerolog logger.
//
// Output always goes to stderr. When a file is configured, the same JSON
// lines are also written to a lumberjack-rotated file.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits for the log file.
const (
	maxSizeMB  = 10
	maxBackups = 3
	maxAgeDays = 28
)

// Setup installs the global logger at level and returns a closer for the
// log file (a no-op when file is empty).
func Setup(level zerolog.Level, file string) (io.Closer, error) {
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	out, closer, err := writer(os.Stderr, file)
	if err != nil {
		return nil, err
	}
	log.Logger = zerolog.New(out).With().Timestamp().Str("service", "guessnumber").Logger()
	return closer, nil
}

// writer combines base with a rotating file when file is set.
func writer(base io.Writer, file string) (io.Writer, io.Closer, error) {
	if file == "" {
		return base, nopCloser{}, nil
	}
	if dir := filepath.Dir(file); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, err
		}
	}
	rotating := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}
	return io.MultiWriter(base, rotating), rotating, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
