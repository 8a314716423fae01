package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/speak/internal/config"
)

// logFile is the open log file, nil when logging to a file failed
var logFile *os.File

// setupLog sends the default logger to speak.log next to the cache.
// Without a log file only warnings reach stderr.
func setupLog() (func() error, error) {
	log.SetOutput(os.Stderr)
	log.SetLevel(log.WarnLevel)
	log.SetReportTimestamp(false)

	path, err := config.LogPath()
	if err != nil {
		return func() error { return nil }, nil //nolint:nilerr
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) //nolint:gosec
	if err != nil {
		return nil, err
	}
	logFile = f

	log.SetOutput(f)
	log.SetLevel(log.InfoLevel)
	log.SetReportTimestamp(true)
	return f.Close, nil
}

// enableDebugLog mirrors the log to stderr at debug level.
func enableDebugLog() {
	var w io.Writer = os.Stderr
	if logFile != nil {
		w = io.MultiWriter(logFile, os.Stderr)
	}
	log.SetOutput(w)
	log.SetLevel(log.DebugLevel)
}
