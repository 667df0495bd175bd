// Package rollout implements RolloutRecorder, the append-only JSONL
// transcript writer, and the ghost-snapshot undo mechanism (spec §4.7).
// The JSONL framing and its summary/marshal shape are grounded on the
// teacher's internal/agent/tape package (Tape/Turn/ToolRun, Marshal/
// Unmarshal, Summary), adapted from one indented JSON document per
// conversation into one compact JSON object per line, session-meta-first,
// with a bounded async mailbox in place of tape's in-process slice.
// Listing/resume pagination is grounded on internal/sessions.ListOptions
// (Limit/Offset), generalized to (timestamp|uuid) cursors per spec.
package rollout

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codexrun/agentcore/pkg/codex"
)

// mailboxCapacity is the bounded async mailbox size (spec §4.7: "capacity
// ≥ 256").
const mailboxCapacity = 256

// recordKind tags the variant of a line written to the rollout file.
type recordKind string

const (
	recordSessionMeta recordKind = "session_meta"
	recordItem        recordKind = "response_item"
)

// SessionMeta is the file-leading record, augmented with git info collected
// before any transcript item is written.
type SessionMeta struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	GitBranch    string    `json:"git_branch,omitempty"`
	GitCommit    string    `json:"git_commit,omitempty"`
	Instructions string    `json:"instructions,omitempty"`
}

// line is the on-disk shape of one JSONL record.
type line struct {
	Type string               `json:"type"`
	Meta *SessionMeta         `json:"meta,omitempty"`
	Item *codex.ResponseItem  `json:"item,omitempty"`
}

type mailboxEntry struct {
	item     *codex.ResponseItem
	shutdown chan struct{}
}

// Recorder is the per-session append-only rollout writer. One Recorder
// lives for the lifetime of a Session.
type Recorder struct {
	path    string
	file    *os.File
	writer  *bufio.Writer
	mailbox chan mailboxEntry
	done    chan struct{}
	logger  *slog.Logger
}

// New creates the rollout file under
// <codexHome>/sessions/YYYY/MM/DD/rollout-<ts>-<id>.jsonl and starts the
// writer goroutine. The SessionMeta record (with best-effort git info) is
// written before New returns, satisfying "the first record is a SessionMeta
// ... collected asynchronously before any transcript item is written": the
// collection happens off the caller's path but is awaited here so the
// ordering guarantee holds without a separate readiness signal.
func New(codexHome string, id codex.ConversationID, instructions string, logger *slog.Logger) (*Recorder, error) {
	if logger == nil {
		logger = slog.Default()
	}

	now := time.Now().UTC()
	dir := filepath.Join(codexHome, "sessions", now.Format("2006"), now.Format("01"), now.Format("02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("rollout: create session dir: %w", err)
	}

	filename := fmt.Sprintf("rollout-%s-%s.jsonl", now.Format("20060102T150405Z"), id.String())
	path := filepath.Join(dir, filename)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("rollout: open %s: %w", path, err)
	}

	r := &Recorder{
		path:    path,
		file:    f,
		writer:  bufio.NewWriter(f),
		mailbox: make(chan mailboxEntry, mailboxCapacity),
		done:    make(chan struct{}),
		logger:  logger,
	}

	meta := collectSessionMeta(id, instructions)
	if err := r.writeLine(line{Type: string(recordSessionMeta), Meta: &meta}); err != nil {
		f.Close()
		return nil, fmt.Errorf("rollout: write session_meta: %w", err)
	}

	go r.loop()
	return r, nil
}

// Path returns the rollout file's path on disk.
func (r *Recorder) Path() string { return r.path }

// RecordItems enqueues items for persistence, filtering by
// ResponseItem.Persistable (spec §4.7). Blocks (yields) instead of
// dropping when the mailbox is full; never drops an item.
func (r *Recorder) RecordItems(items []codex.ResponseItem) {
	for i := range items {
		if !items[i].Persistable() {
			continue
		}
		item := items[i]
		r.mailbox <- mailboxEntry{item: &item}
	}
}

// Shutdown flushes and closes the recorder, blocking until the writer
// goroutine acknowledges on a one-shot channel so the caller can observe
// durable completion.
func (r *Recorder) Shutdown() error {
	ack := make(chan struct{})
	r.mailbox <- mailboxEntry{shutdown: ack}
	<-ack
	<-r.done
	return nil
}

func (r *Recorder) loop() {
	defer close(r.done)
	for entry := range r.mailbox {
		if entry.shutdown != nil {
			if err := r.writer.Flush(); err != nil {
				r.logger.Error("rollout: flush on shutdown", "path", r.path, "error", err)
			}
			if err := r.file.Close(); err != nil {
				r.logger.Error("rollout: close on shutdown", "path", r.path, "error", err)
			}
			close(entry.shutdown)
			return
		}
		if err := r.writeLine(line{Type: string(recordItem), Item: entry.item}); err != nil {
			r.logger.Error("rollout: write item", "path", r.path, "error", err)
		}
	}
}

func (r *Recorder) writeLine(l line) error {
	data, err := json.Marshal(l)
	if err != nil {
		return err
	}
	// Rollout consumers rely on one JSON object per line with no interior
	// newline (spec §6); json.Marshal never emits raw newlines.
	if _, err := r.writer.Write(data); err != nil {
		return err
	}
	if err := r.writer.WriteByte('\n'); err != nil {
		return err
	}
	return r.writer.Flush()
}

// collectSessionMeta gathers git branch/commit best-effort; failures are
// silent since git info is a convenience field, not a correctness
// requirement.
func collectSessionMeta(id codex.ConversationID, instructions string) SessionMeta {
	meta := SessionMeta{
		ID:           id.String(),
		Timestamp:    time.Now().UTC(),
		Instructions: instructions,
	}
	meta.GitBranch, meta.GitCommit = gitInfo()
	return meta
}

// Summary mirrors tape.TapeSummary: a brief overview of one rollout file's
// contents, computed by scanning the file rather than holding it in memory.
type Summary struct {
	Path        string
	ID          string
	Timestamp   time.Time
	ItemCount   int
}

// ReadSummary scans path and reports its SessionMeta plus item count. It
// does not hold the full transcript in memory.
func ReadSummary(path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, err
	}
	defer f.Close()

	var summary Summary
	summary.Path = path

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		var l line
		if err := json.Unmarshal(scanner.Bytes(), &l); err != nil {
			continue
		}
		switch recordKind(l.Type) {
		case recordSessionMeta:
			if l.Meta != nil {
				summary.ID = l.Meta.ID
				summary.Timestamp = l.Meta.Timestamp
			}
		case recordItem:
			summary.ItemCount++
		}
	}
	return summary, scanner.Err()
}

// Cursor pages through ListRollouts results.
type Cursor struct {
	Timestamp time.Time
	ID        string
}

func (c Cursor) less(other Cursor) bool {
	if !c.Timestamp.Equal(other.Timestamp) {
		return c.Timestamp.Before(other.Timestamp)
	}
	return c.ID < other.ID
}

// scanCap bounds worst-case IO per ListRollouts call (spec §4.7: "a hard
// scan cap per call").
const scanCap = 2000

// ListRollouts browses <codexHome>/sessions in reverse chronological order,
// returning up to limit entries strictly older than cursor (nil cursor
// starts from the newest), and the cursor to resume from on the next call
// (nil once exhausted).
func ListRollouts(codexHome string, cursor *Cursor, limit int) ([]Summary, *Cursor, error) {
	root := filepath.Join(codexHome, "sessions")
	var paths []string

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".jsonl") {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("rollout: walk %s: %w", root, err)
	}

	// Filenames embed an ISO-8601-ish timestamp before the id, so a
	// descending lexical sort is also reverse chronological.
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))

	var results []Summary
	var next *Cursor
	scanned := 0

	for _, p := range paths {
		if scanned >= scanCap {
			break
		}
		scanned++

		summary, err := ReadSummary(p)
		if err != nil {
			continue
		}

		entryCursor := Cursor{Timestamp: summary.Timestamp, ID: summary.ID}
		if cursor != nil && !entryCursor.less(*cursor) {
			continue
		}

		if len(results) >= limit {
			next = &entryCursor
			break
		}
		results = append(results, summary)
	}

	return results, next, nil
}
