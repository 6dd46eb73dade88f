package database

import (
	"context"
	"log/slog"
	"time"

	"github.com/shrixloki/lokiai-biometrics/internal/biometric"
)

// AttemptWriter adapts the repository to the scoring engine's attempt sink.
// Writes run with their own timeout so a slow disk cannot hold a verification
// response hostage.
type AttemptWriter struct {
	repo    *Repository
	timeout time.Duration
}

// NewAttemptWriter creates an attempt writer backed by the repository.
func NewAttemptWriter(repo *Repository) *AttemptWriter {
	return &AttemptWriter{repo: repo, timeout: 5 * time.Second}
}

// RecordAttempt implements biometric.AttemptSink.
func (w *AttemptWriter) RecordAttempt(a biometric.Attempt) error {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	row := NewAttemptRow(a.Username, a.Method, a.Passed, a.Score, a.IP, a.UserAgent, a.Reason, a.Timestamp)
	if err := w.repo.InsertAttempt(ctx, row); err != nil {
		slog.Warn("attempt audit write failed", "username", a.Username, "error", err)
		return err
	}
	return nil
}
