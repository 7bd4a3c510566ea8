// Package grammar implements the constraint stage of the sampling pipeline:
// masking candidate scores to the tokens a compiled grammar currently
// permits, and — in dynamic mode — regenerating that grammar from an
// external synthesis collaborator before every sampling decision.
//
// The grammar dialect, the rule compiler and the automaton transition math
// are external collaborators; this package owns only their contracts and the
// state machine that drives them.
package grammar

import (
	"tokenweir/internal/engine"
)

// Compiler turns grammar rule text into a compiled rule-set. Implementations
// must treat text without a usable "root" symbol as a compile failure.
type Compiler interface {
	Compile(text string) (RuleSet, error)
}

// RuleSet is a compiled grammar kept around so the automaton can be rebuilt
// on session reset without re-parsing.
type RuleSet interface {
	// Empty reports whether compilation produced no rules.
	Empty() bool

	// Automaton instantiates a fresh automaton positioned at the root symbol.
	Automaton() (Automaton, error)
}

// Automaton tracks which tokens the grammar currently permits. It is advanced
// by every accepted token and must stay in lockstep with the token history.
type Automaton interface {
	// Mask disqualifies candidates the grammar rejects by setting their
	// logit to negative infinity. Permitted candidates and their relative
	// ordering are left untouched.
	Mask(cands []engine.TokenData)

	// Accept advances the automaton past the given token.
	Accept(id int32)

	// Clone returns an independent copy with identical state.
	Clone() Automaton

	// StackDepth reports the current parse stack depth, for diagnostics.
	StackDepth() int
}
