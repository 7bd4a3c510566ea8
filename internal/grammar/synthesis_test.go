package grammar

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestCommandSynthesizerNoCommand(t *testing.T) {
	s := &CommandSynthesizer{}
	_, err := s.Synthesize(context.Background(), Request{})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Synthesize() error = %v, want ErrUnavailable", err)
	}
}

func TestCommandSynthesizerForwardsRequest(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on echo")
	}

	s := &CommandSynthesizer{Command: "echo", Args: []string{"lead"}}
	out, err := s.Synthesize(context.Background(), Request{
		Target:      "stmt",
		PreludePath: "prelude.txt",
		Debug:       true,
		NewToken:    `he said "hi"`,
		Transcript:  "the transcript",
	})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}

	for _, part := range []string{
		"lead", "stmt", "--prelude prelude.txt", "--debug",
		`--new-token he said \"hi\"`, "the transcript",
	} {
		if !strings.Contains(out, part) {
			t.Errorf("output %q missing %q", out, part)
		}
	}
}

func TestCommandSynthesizerTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on sleep")
	}

	// The request fields become extra argv entries; sh -c absorbs them as
	// positional parameters.
	s := &CommandSynthesizer{Command: "sh", Args: []string{"-c", "sleep 5"}, Timeout: 50 * time.Millisecond}
	_, err := s.Synthesize(context.Background(), Request{})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Synthesize() error = %v, want ErrTimeout", err)
	}
}

func TestCommandSynthesizerFailedCommand(t *testing.T) {
	s := &CommandSynthesizer{Command: "false"}
	_, err := s.Synthesize(context.Background(), Request{})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Synthesize() error = %v, want ErrUnavailable", err)
	}
}
