package grammar

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"time"
)

// Typed synthesis failures. Callers distinguish a collaborator that cannot
// be reached at all from one that answered past its deadline; malformed
// output (missing marker, empty rule-set) is not an error — it degrades the
// constraint for one step instead.
var (
	// ErrUnavailable indicates the synthesis collaborator could not be
	// invoked at all.
	ErrUnavailable = errors.New("grammar: synthesizer unavailable")

	// ErrTimeout indicates the collaborator did not respond within the
	// configured deadline.
	ErrTimeout = errors.New("grammar: synthesizer timed out")

	// ErrMalformed classifies collaborator output that carried no usable
	// grammar. The constraint degrades for one step rather than failing the
	// sampling call, so this error is logged, never returned.
	ErrMalformed = errors.New("grammar: synthesizer output malformed")
)

// Request carries everything the synthesis collaborator needs to produce a
// grammar for the next decision: the synthesis target, the auxiliary context
// artifact, the most recently decoded token's text, and the content-only
// transcript with the in-progress token excluded.
type Request struct {
	Target      string
	PreludePath string
	Debug       bool
	NewToken    string
	Transcript  string
}

// Synthesizer produces grammar-bearing output for a request. The call is
// synchronous; implementations should honor ctx for cancellation.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (string, error)
}

// CommandSynthesizer invokes an external process for every request. This is
// the production collaborator: typically a language-server script driven by
// an interpreter.
type CommandSynthesizer struct {
	// Command is the interpreter or binary to run, e.g. "node".
	Command string

	// Args are leading arguments placed before the request fields,
	// e.g. ["../lsp.js", "COMPLETIONS"].
	Args []string

	// Timeout bounds a single invocation. Zero means no deadline.
	Timeout time.Duration
}

// Synthesize runs the configured command and returns its stdout. The
// request is encoded as: target, --prelude <path>, --debug, --new-token
// <escaped text>, <transcript>.
func (s *CommandSynthesizer) Synthesize(ctx context.Context, req Request) (string, error) {
	if s.Command == "" {
		return "", fmt.Errorf("%w: no command configured", ErrUnavailable)
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	args := slices.Clone(s.Args)
	args = append(args, req.Target)
	if req.PreludePath != "" {
		args = append(args, "--prelude", req.PreludePath)
	}
	if req.Debug {
		args = append(args, "--debug")
	}
	args = append(args, "--new-token", EscapeQuotes(req.NewToken), req.Transcript)

	out, err := exec.CommandContext(ctx, s.Command, args...).Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("%w: %s after %v", ErrTimeout, s.Command, s.Timeout)
		}
		return "", fmt.Errorf("%w: %s: %v", ErrUnavailable, s.Command, err)
	}

	return string(out), nil
}
