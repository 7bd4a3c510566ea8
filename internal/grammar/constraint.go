package grammar

import (
	"context"
	"fmt"
	"log"

	"tokenweir/internal/engine"
)

// DynamicConfig configures per-step grammar regeneration.
type DynamicConfig struct {
	// Target identifies what the collaborator should synthesize a grammar for.
	Target string

	// PreludePath is the auxiliary context artifact passed on every request.
	PreludePath string

	// Debug asks the collaborator for verbose output.
	Debug bool

	// LogPath, when non-empty, receives an append-only record of every
	// regeneration attempt for offline inspection.
	LogPath string
}

// RegenInput is the session state a regeneration request is built from.
type RegenInput struct {
	// Transcript is the content-only transcript with the in-progress token
	// excluded; it becomes the request body.
	Transcript string

	// FullTranscript is the content-only transcript including the last
	// token; it is written to the regeneration log, not the request.
	FullTranscript string

	// NewToken is the text of the most recently decoded token.
	NewToken string
}

// Constraint owns the optional grammar automaton applied to candidate
// scores. In static mode the automaton is compiled once from literal rule
// text; in dynamic mode it is regenerated from the synthesis collaborator
// before every sampling decision.
//
// A regeneration that yields no usable grammar degrades the constraint for
// that single step: the stale automaton is discarded rather than kept, and
// masking is skipped until the next successful compile.
type Constraint struct {
	compiler  Compiler
	synth     Synthesizer
	dyn       *DynamicConfig
	rules     RuleSet
	automaton Automaton
}

// NewStatic compiles literal grammar text once. A parse failure or an empty
// rule-set is fatal: a session configured with a broken grammar must not be
// constructed.
func NewStatic(compiler Compiler, text string) (*Constraint, error) {
	rules, err := compiler.Compile(text)
	if err != nil {
		return nil, fmt.Errorf("grammar: failed to parse grammar: %w", err)
	}
	if rules.Empty() {
		return nil, fmt.Errorf("grammar: grammar compiled to an empty rule-set")
	}

	automaton, err := rules.Automaton()
	if err != nil {
		return nil, fmt.Errorf("grammar: %w", err)
	}

	return &Constraint{compiler: compiler, rules: rules, automaton: automaton}, nil
}

// NewDynamic builds a constraint whose grammar is synthesized each step. No
// automaton exists until the first successful regeneration.
func NewDynamic(compiler Compiler, synth Synthesizer, cfg DynamicConfig) *Constraint {
	return &Constraint{compiler: compiler, synth: synth, dyn: &cfg}
}

// Dynamic reports whether the constraint regenerates its grammar per step.
func (c *Constraint) Dynamic() bool { return c.dyn != nil }

// Mode names the constraint mode for diagnostics.
func (c *Constraint) Mode() string {
	if c.dyn != nil {
		return "dynamic"
	}
	return "static"
}

// Active reports whether an automaton is currently available for masking.
func (c *Constraint) Active() bool { return c.automaton != nil }

// StackDepth reports the automaton's parse stack depth, or 0 when degraded.
func (c *Constraint) StackDepth() int {
	if c.automaton == nil {
		return 0
	}
	return c.automaton.StackDepth()
}

// Regenerate synthesizes, extracts, normalizes and compiles a fresh grammar,
// replacing the previous automaton atomically on success. Synthesizer
// invocation failures propagate as typed errors; unusable output degrades
// the constraint for this step and returns nil. Every attempt is appended to
// the regeneration log, best-effort.
func (c *Constraint) Regenerate(ctx context.Context, in RegenInput) error {
	if c.dyn == nil {
		return nil
	}

	output, err := c.synth.Synthesize(ctx, Request{
		Target:      c.dyn.Target,
		PreludePath: c.dyn.PreludePath,
		Debug:       c.dyn.Debug,
		NewToken:    in.NewToken,
		Transcript:  in.Transcript,
	})
	if err != nil {
		return err
	}

	appendRegenLog(c.dyn.LogPath, in.FullTranscript, output)

	text := Normalize(ExtractGrammar(output))

	rules, err := c.compiler.Compile(text)
	if err != nil || rules.Empty() {
		log.Printf("%v, constraint skipped for this step", ErrMalformed)
		c.rules = nil
		c.automaton = nil
		return nil
	}

	automaton, err := rules.Automaton()
	if err != nil {
		log.Printf("grammar: failed to instantiate automaton: %v", err)
		c.rules = nil
		c.automaton = nil
		return nil
	}

	c.rules = rules
	c.automaton = automaton
	return nil
}

// Mask disqualifies candidates the current automaton rejects. It is a no-op
// while the constraint is degraded or not yet compiled.
func (c *Constraint) Mask(cands []engine.TokenData) {
	if c.automaton != nil {
		c.automaton.Mask(cands)
	}
}

// Accept advances the automaton past an accepted token. Must be called in
// the same step that appends the token to history, or the constraint
// desynchronizes from the generated text permanently.
func (c *Constraint) Accept(id int32) {
	if c.automaton != nil {
		c.automaton.Accept(id)
	}
}

// Reset re-derives the automaton from the stored rule-set. A dynamic
// constraint simply drops its automaton; the next step regenerates it.
func (c *Constraint) Reset() error {
	if c.dyn != nil {
		c.rules = nil
		c.automaton = nil
		return nil
	}
	if c.rules == nil {
		return nil
	}
	automaton, err := c.rules.Automaton()
	if err != nil {
		return fmt.Errorf("grammar: %w", err)
	}
	c.automaton = automaton
	return nil
}

// Clone returns an independent constraint sharing the immutable compiler,
// synthesizer and rule-set but owning a copy of the automaton state.
func (c *Constraint) Clone() *Constraint {
	dup := &Constraint{compiler: c.compiler, synth: c.synth, rules: c.rules}
	if c.dyn != nil {
		cfg := *c.dyn
		dup.dyn = &cfg
	}
	if c.automaton != nil {
		dup.automaton = c.automaton.Clone()
	}
	return dup
}
