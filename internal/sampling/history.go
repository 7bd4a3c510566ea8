package sampling

import (
	"slices"
	"strings"

	"tokenweir/internal/engine"
)

// History tracks the tokens a session has accepted: a fixed-capacity FIFO
// window of the most recent tokens plus the unbounded full transcript.
// The window always holds exactly its capacity; it starts filled with the
// zero sentinel token and evicts strictly oldest-first.
type History struct {
	prev       []int32
	prevAll    []int32
	preludeLen int
}

// NewHistory creates a history whose window holds capacity tokens.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{prev: make([]int32, capacity)}
}

// Append records an accepted token in both the window and the transcript.
func (h *History) Append(id int32) {
	copy(h.prev, h.prev[1:])
	h.prev[len(h.prev)-1] = id
	h.prevAll = append(h.prevAll, id)
}

// Last returns the most recent window entry.
func (h *History) Last() int32 {
	return h.prev[len(h.prev)-1]
}

// Window returns the recent-token window, oldest first. The slice is the
// live window; callers must not mutate it.
func (h *History) Window() []int32 {
	return h.prev
}

// Len reports the transcript length.
func (h *History) Len() int {
	return len(h.prevAll)
}

// SetPreludeLength marks how many leading transcript tokens are non-content
// prefix, excluded from content-only views.
func (h *History) SetPreludeLength(n int) {
	h.preludeLen = n
}

// PreludeLength returns the current leading-skip count.
func (h *History) PreludeLength() int {
	return h.preludeLen
}

// LastText decodes the text of up to n most recent window tokens.
func (h *History) LastText(codec engine.Codec, n int) string {
	if n > len(h.prev) {
		n = len(h.prev)
	}
	var b strings.Builder
	for _, id := range h.prev[len(h.prev)-n:] {
		b.WriteString(codec.TokenToPiece(id))
	}
	return b.String()
}

// RenderRange decodes the full transcript to text, omitting the first
// startSkip and last endSkip tokens.
func (h *History) RenderRange(codec engine.Codec, startSkip, endSkip int) string {
	var b strings.Builder
	for i := startSkip; i < len(h.prevAll)-endSkip; i++ {
		b.WriteString(codec.TokenToPiece(h.prevAll[i]))
	}
	return b.String()
}

// Render decodes the content-only transcript, applying the prelude skip.
func (h *History) Render(codec engine.Codec) string {
	return h.RenderRange(codec, h.preludeLen, 0)
}

// Reset zeroes the window and clears the transcript and prelude offset.
func (h *History) Reset() {
	for i := range h.prev {
		h.prev[i] = 0
	}
	h.prevAll = h.prevAll[:0]
	h.preludeLen = 0
}

// Clone returns an independent copy.
func (h *History) Clone() *History {
	return &History{
		prev:       slices.Clone(h.prev),
		prevAll:    slices.Clone(h.prevAll),
		preludeLen: h.preludeLen,
	}
}
