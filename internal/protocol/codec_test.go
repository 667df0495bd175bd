package protocol

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/codexrun/agentcore/pkg/codex"
)

func TestEncoderWriteEventOneLinePerRecord(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	if err := enc.WriteEvent(codex.Event{ID: "1", Msg: codex.EventMsg{Type: codex.EventTaskStarted, Timestamp: time.Now()}}); err != nil {
		t.Fatalf("WriteEvent() error = %v", err)
	}
	if err := enc.WriteEvent(codex.Event{ID: "2", Msg: codex.EventMsg{Type: codex.EventTaskComplete, Timestamp: time.Now()}}); err != nil {
		t.Fatalf("WriteEvent() error = %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("len(lines) = %d, want 2", len(lines))
	}
	if !strings.Contains(lines[0], `"id":"1"`) || !strings.Contains(lines[1], `"id":"2"`) {
		t.Errorf("unexpected line contents: %v", lines)
	}
}

func TestDecoderReadSubmissionRoundTrip(t *testing.T) {
	input := `{"id":"sub-1","op":"user_input","items":[{"type":"message","role":"user","content":"hi"}]}` + "\n"
	dec := NewDecoder(strings.NewReader(input))

	sub, err := dec.ReadSubmission()
	if err != nil {
		t.Fatalf("ReadSubmission() error = %v", err)
	}
	if sub.ID != "sub-1" || sub.Op != codex.OpUserInput {
		t.Errorf("sub = %+v, want id=sub-1 op=user_input", sub)
	}
	if len(sub.Items) != 1 || sub.Items[0].Content != "hi" {
		t.Errorf("sub.Items = %+v", sub.Items)
	}

	if _, err := dec.ReadSubmission(); err != io.EOF {
		t.Errorf("second ReadSubmission() error = %v, want io.EOF", err)
	}
}

func TestDecoderSkipsBlankLines(t *testing.T) {
	input := "\n\n" + `{"id":"x","op":"interrupt"}` + "\n"
	dec := NewDecoder(strings.NewReader(input))
	sub, err := dec.ReadSubmission()
	if err != nil {
		t.Fatalf("ReadSubmission() error = %v", err)
	}
	if sub.Op != codex.OpInterrupt {
		t.Errorf("sub.Op = %v, want interrupt", sub.Op)
	}
}

func TestDecoderMalformedLineReturnsError(t *testing.T) {
	dec := NewDecoder(strings.NewReader("not json\n"))
	if _, err := dec.ReadSubmission(); err == nil {
		t.Error("expected a decode error for a malformed line")
	}
}
