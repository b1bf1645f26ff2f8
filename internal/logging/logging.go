// Package logging builds the application logger. The terminal belongs to the UI, so logs go
// to a file next to the settings.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	FieldChatID      = "chat_id"
	FieldMessageID   = "message_id"
	FieldRoundTripID = "round_trip_id"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
)

// EnvDebug enables debug level logging when set to any value.
const EnvDebug = "SELFHOSTGPT_DEBUG"

const FileName = "selfhostgpt.log"

func New(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Open appends to <dir>/selfhostgpt.log. The returned closer releases the file.
func Open(dir string) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, nil, errors.Wrap(err, "create log directory")
	}
	f, err := os.OpenFile(filepath.Join(dir, FileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open log file")
	}
	return New(f, os.Getenv(EnvDebug) != ""), f, nil
}

// NewRoundTripID tags the log lines of one completion round-trip.
func NewRoundTripID() string {
	return uuid.New().String()
}
