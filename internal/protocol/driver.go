package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/codexrun/agentcore/internal/session"
)

// Pump wires a Session's Submit/NextEvent surface to a line-oriented
// stdin/stdout pair for the `proto` CLI mode (spec §6). It runs until r
// reaches EOF (each line decoded and forwarded to sess.Submit) and, once
// every in-flight event has drained, returns. Decode errors on one line are
// logged and skipped rather than aborting the whole stream, since a
// malformed Submission should not take down an otherwise healthy session.
func Pump(ctx context.Context, sess *session.Session, r io.Reader, w io.Writer, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	dec := NewDecoder(r)
	enc := NewEncoder(w)

	eventsDone := make(chan error, 1)
	go func() {
		eventsDone <- pumpEvents(ctx, sess, enc)
	}()

	for {
		sub, err := dec.ReadSubmission()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.Error("protocol: malformed submission, skipping", "error", err)
			continue
		}
		if _, err := sess.Submit(sub); err != nil {
			if errors.Is(err, session.ErrSessionClosed) {
				break
			}
			logger.Error("protocol: submit failed", "error", err)
		}
	}

	return <-eventsDone
}

func pumpEvents(ctx context.Context, sess *session.Session, enc *Encoder) error {
	for {
		ev, err := sess.NextEvent(ctx)
		if errors.Is(err, session.ErrSessionClosed) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("protocol: next event: %w", err)
		}
		if err := enc.WriteEvent(ev); err != nil {
			return err
		}
	}
}
