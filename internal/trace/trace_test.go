package trace

import (
	"path/filepath"
	"testing"
	"time"
)

func TestRecorderRoundTrip(t *testing.T) {
	rec, err := NewRecorder(filepath.Join(t.TempDir(), "trace.db"))
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}
	defer rec.Close()

	steps := []Step{
		{SessionID: "s1", Step: 0, Token: 42, Mode: "static", StackDepth: 1, Elapsed: 150 * time.Microsecond},
		{SessionID: "s1", Step: 1, Token: 7, Mode: "static", StackDepth: 2, Elapsed: 90 * time.Microsecond},
		{SessionID: "s2", Step: 0, Stop: "stop_marker", Mode: "dynamic", Degraded: true},
	}
	for _, s := range steps {
		if err := rec.Record(s); err != nil {
			t.Fatalf("Record(%+v) error = %v", s, err)
		}
	}

	t.Run("all sessions, newest first", func(t *testing.T) {
		got, err := rec.Steps("", 10)
		if err != nil {
			t.Fatalf("Steps() error = %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("len(Steps()) = %d, want 3", len(got))
		}
		if got[0].SessionID != "s2" {
			t.Errorf("Steps()[0].SessionID = %q, want %q", got[0].SessionID, "s2")
		}
		if got[0].Stop != "stop_marker" || !got[0].Degraded {
			t.Errorf("Steps()[0] = %+v, want stop_marker and degraded", got[0])
		}
		if got[2].Token != 42 {
			t.Errorf("Steps()[2].Token = %d, want 42", got[2].Token)
		}
		if got[2].Elapsed != 150*time.Microsecond {
			t.Errorf("Steps()[2].Elapsed = %v, want 150µs", got[2].Elapsed)
		}
	})

	t.Run("filtered by session", func(t *testing.T) {
		got, err := rec.Steps("s1", 10)
		if err != nil {
			t.Fatalf("Steps() error = %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("len(Steps()) = %d, want 2", len(got))
		}
		for _, s := range got {
			if s.SessionID != "s1" {
				t.Errorf("SessionID = %q, want %q", s.SessionID, "s1")
			}
		}
	})

	t.Run("limit applies", func(t *testing.T) {
		got, err := rec.Steps("", 1)
		if err != nil {
			t.Fatalf("Steps() error = %v", err)
		}
		if len(got) != 1 {
			t.Errorf("len(Steps()) = %d, want 1", len(got))
		}
	})
}

func TestRecorderClosedIsSafe(t *testing.T) {
	rec, err := NewRecorder(filepath.Join(t.TempDir(), "trace.db"))
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if err := rec.Record(Step{SessionID: "s"}); err == nil {
		t.Error("Record() after Close error = nil, want error")
	}
	if _, err := rec.Steps("", 1); err == nil {
		t.Error("Steps() after Close error = nil, want error")
	}
	if err := rec.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
}

func TestRecorderCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "trace.db")
	rec, err := NewRecorder(path)
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}
	defer rec.Close()

	if err := rec.Record(Step{SessionID: "s"}); err != nil {
		t.Errorf("Record() error = %v", err)
	}
}
