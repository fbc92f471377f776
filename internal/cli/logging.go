package cli

import (
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Log file rotation limits.
const (
	logMaxSizeMB  = 20
	logMaxBackups = 5
	logMaxAgeDays = 14
)

// newLogger builds the text logger on stderr, teed to a rotating file when
// logFile is set. The returned close func releases the file.
func newLogger(stderr io.Writer, verbose bool, logFile string) (*slog.Logger, func() error, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	w := stderr
	closeLog := func() error { return nil }
	if logFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    logMaxSizeMB,
			MaxBackups: logMaxBackups,
			MaxAge:     logMaxAgeDays,
		}
		// Open eagerly so a bad path fails the command, not the first log line.
		if _, err := rotator.Write(nil); err != nil {
			return nil, nil, err
		}
		w = io.MultiWriter(stderr, rotator)
		closeLog = rotator.Close
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler), closeLog, nil
}
