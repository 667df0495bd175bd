// Package protocol implements the JSONL Submission/EventMsg wire codec used
// by the `proto` CLI mode (spec §6): one JSON object per line over stdin
// (Submission) and stdout (Event), no interior newlines, append-only in
// spirit (the writer never rewrites a previously emitted line). Grounded on
// the teacher's line-oriented SSE scanner (internal/agent/providers,
// ParseSSEStream) adapted from event-type/data pairs to single-line JSON
// objects.
package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/codexrun/agentcore/pkg/codex"
)

// maxLineBytes bounds a single JSONL record; a ConversationHistory event can
// carry an entire transcript, so the limit is generous rather than tight.
const maxLineBytes = 16 * 1024 * 1024

// Decoder reads newline-delimited Submission records from an input stream.
type Decoder struct {
	scanner *bufio.Scanner
}

// NewDecoder wraps r in a line-oriented Submission reader.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	return &Decoder{scanner: scanner}
}

// ReadSubmission blocks for the next line and decodes it as a Submission.
// It returns io.EOF when the input stream is exhausted.
func (d *Decoder) ReadSubmission() (codex.Submission, error) {
	for {
		if !d.scanner.Scan() {
			if err := d.scanner.Err(); err != nil {
				return codex.Submission{}, fmt.Errorf("protocol: read submission: %w", err)
			}
			return codex.Submission{}, io.EOF
		}
		line := d.scanner.Bytes()
		if len(line) == 0 {
			continue // blank lines between records are tolerated, never emitted
		}
		var sub codex.Submission
		if err := json.Unmarshal(line, &sub); err != nil {
			return codex.Submission{}, fmt.Errorf("protocol: decode submission: %w", err)
		}
		return sub, nil
	}
}

// Encoder writes newline-delimited Event records to an output stream. One
// Encoder instance serializes all writes, so concurrent producers (the
// session's event loop and any out-of-band status writer) never interleave
// partial lines.
type Encoder struct {
	mu sync.Mutex
	w  io.Writer
}

// NewEncoder wraps w in a line-oriented Event writer.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// WriteEvent marshals ev as compact JSON and writes it as one line. A
// record must never contain an interior '\n' (spec §6); encoding/json never
// emits raw newlines inside a compact object, so no further escaping is
// needed here.
func (e *Encoder) WriteEvent(ev codex.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("protocol: encode event: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.w.Write(data); err != nil {
		return fmt.Errorf("protocol: write event: %w", err)
	}
	if _, err := e.w.Write([]byte("\n")); err != nil {
		return fmt.Errorf("protocol: write event: %w", err)
	}
	return nil
}
