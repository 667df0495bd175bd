package sandbox

import (
	"fmt"
	"strings"
	"sync"
)

// truncatingBuffer accumulates a stream's bytes, chunking them out to an
// OnChunk callback as they arrive, then truncates the accumulated text to
// budget bytes on String() using the middle-elision algorithm the spec
// requires. When budget <= 0 truncation is disabled.
type truncatingBuffer struct {
	mu      sync.Mutex
	stream  string
	budget  int
	onChunk func(OutputChunk)

	buf strings.Builder

	truncatedTokens int
}

func newTruncatingBuffer(budget int, stream string, onChunk func(OutputChunk)) *truncatingBuffer {
	return &truncatingBuffer{budget: budget, stream: stream, onChunk: onChunk}
}

// Write implements io.Writer. It both accumulates the full stream (for the
// final truncated String()) and forwards the chunk live to onChunk, if set.
func (b *truncatingBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	b.buf.Write(p)
	onChunk := b.onChunk
	stream := b.stream
	b.mu.Unlock()

	if onChunk != nil {
		chunk := make([]byte, len(p))
		copy(chunk, p)
		onChunk(OutputChunk{Stream: stream, Data: chunk})
	}
	return len(p), nil
}

// String returns the accumulated output, truncated to budget bytes if it
// exceeds the budget.
func (b *truncatingBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	full := b.buf.String()
	if b.budget <= 0 || len(full) <= b.budget {
		return full
	}
	truncated, tokens := TruncateMiddle(full, b.budget)
	b.truncatedTokens = tokens
	return truncated
}

// TruncateMiddle implements the spec's output truncation algorithm: when s
// exceeds budget bytes, the middle is replaced with a marker
// "...N tokens truncated...", sized so head+marker+tail fits budget, cutting
// at char boundaries and preferring the nearest newline. The reported token
// count is the number of truncated bytes divided by four, rounded up.
func TruncateMiddle(s string, budget int) (string, int) {
	if len(s) <= budget {
		return s, 0
	}

	elided := len(s) - budget
	tokens := (elided + 3) / 4
	marker := fmt.Sprintf("\n…%d tokens truncated…\n", tokens)

	available := budget - len(marker)
	if available < 0 {
		// Budget smaller than the marker itself: return just the marker,
		// trimmed to fit.
		return marker[:max(0, budget)], tokens
	}

	headLen := available / 2
	tailLen := available - headLen

	headEnd := charBoundary(s, headLen, false)
	headEnd = preferNewline(s[:headEnd], headEnd)

	tailStart := len(s) - tailLen
	tailStart = charBoundary(s, tailStart, true)
	tailStart = preferNewlineFromStart(s, tailStart)

	if headEnd > tailStart {
		headEnd = tailStart
	}

	return s[:headEnd] + marker + s[tailStart:], tokens
}

// charBoundary nudges n to the nearest valid UTF-8 rune boundary in s:
// backward if fromEnd is false (shrinking the head), forward if true
// (shrinking into the tail from the start).
func charBoundary(s string, n int, fromEnd bool) int {
	if n <= 0 {
		return 0
	}
	if n >= len(s) {
		return len(s)
	}
	if fromEnd {
		for n < len(s) && !isRuneStart(s[n]) {
			n++
		}
	} else {
		for n > 0 && !isRuneStart(s[n]) {
			n--
		}
	}
	return n
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// preferNewline looks backward from headEnd within head for the last
// newline, to avoid splitting a line, falling back to headEnd if none found
// within a reasonable window.
func preferNewline(head string, headEnd int) int {
	const window = 256
	start := 0
	if headEnd > window {
		start = headEnd - window
	}
	if idx := strings.LastIndexByte(head[start:headEnd], '\n'); idx >= 0 {
		return start + idx + 1
	}
	return headEnd
}

// preferNewlineFromStart looks forward from tailStart within s for the next
// newline, so the tail begins at a line boundary when one is nearby.
func preferNewlineFromStart(s string, tailStart int) int {
	const window = 256
	end := len(s)
	if tailStart+window < end {
		end = tailStart + window
	}
	if idx := strings.IndexByte(s[tailStart:end], '\n'); idx >= 0 {
		return tailStart + idx + 1
	}
	return tailStart
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
