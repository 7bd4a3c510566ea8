package sampling

import (
	"fmt"
	"testing"
)

// pieceCodec maps token ids to text as "t<id>" unless an explicit piece is
// registered. Tests that care about exact transcript text register pieces.
type pieceCodec map[int32]string

func (c pieceCodec) TokenToPiece(id int32) string {
	if piece, ok := c[id]; ok {
		return piece
	}
	return fmt.Sprintf("t%d", id)
}

func TestHistoryWindowStartsZeroed(t *testing.T) {
	h := NewHistory(4)
	for i, id := range h.Window() {
		if id != 0 {
			t.Errorf("Window()[%d] = %d, want 0", i, id)
		}
	}
	if h.Len() != 0 {
		t.Errorf("Len() = %d, want 0", h.Len())
	}
}

func TestHistoryAppendEvictsOldestFirst(t *testing.T) {
	h := NewHistory(3)
	for _, id := range []int32{1, 2, 3, 4, 5} {
		h.Append(id)
	}

	want := []int32{3, 4, 5}
	got := h.Window()
	if len(got) != len(want) {
		t.Fatalf("len(Window()) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Window()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
	if h.Last() != 5 {
		t.Errorf("Last() = %d, want 5", h.Last())
	}
	if h.Len() != 5 {
		t.Errorf("Len() = %d, want 5", h.Len())
	}
}

func TestHistoryPartialFillKeepsSentinels(t *testing.T) {
	h := NewHistory(4)
	h.Append(7)

	want := []int32{0, 0, 0, 7}
	got := h.Window()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Window()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestHistoryRender(t *testing.T) {
	codec := pieceCodec{1: "hello", 2: " ", 3: "world", 4: "!"}
	h := NewHistory(8)
	for _, id := range []int32{1, 2, 3, 4} {
		h.Append(id)
	}

	if got := h.Render(codec); got != "hello world!" {
		t.Errorf("Render() = %q, want %q", got, "hello world!")
	}

	t.Run("prelude skip", func(t *testing.T) {
		h.SetPreludeLength(2)
		if got := h.Render(codec); got != "world!" {
			t.Errorf("Render() = %q, want %q", got, "world!")
		}
	})

	t.Run("range excludes both ends", func(t *testing.T) {
		if got := h.RenderRange(codec, 1, 1); got != " world" {
			t.Errorf("RenderRange(1, 1) = %q, want %q", got, " world")
		}
	})

	t.Run("last text", func(t *testing.T) {
		if got := h.LastText(codec, 2); got != "world!" {
			t.Errorf("LastText(2) = %q, want %q", got, "world!")
		}
	})
}

func TestHistoryReset(t *testing.T) {
	h := NewHistory(3)
	h.Append(1)
	h.Append(2)
	h.SetPreludeLength(1)

	h.Reset()

	if h.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", h.Len())
	}
	if h.PreludeLength() != 0 {
		t.Errorf("PreludeLength() after Reset = %d, want 0", h.PreludeLength())
	}
	for i, id := range h.Window() {
		if id != 0 {
			t.Errorf("Window()[%d] after Reset = %d, want 0", i, id)
		}
	}
}

func TestHistoryCloneIsIndependent(t *testing.T) {
	h := NewHistory(3)
	h.Append(1)
	h.Append(2)

	dup := h.Clone()
	h.Append(3)
	h.Append(4)

	if dup.Len() != 2 {
		t.Errorf("clone Len() = %d, want 2", dup.Len())
	}
	if dup.Last() != 2 {
		t.Errorf("clone Last() = %d, want 2", dup.Last())
	}
	if h.Last() != 4 {
		t.Errorf("original Last() = %d, want 4", h.Last())
	}
}
