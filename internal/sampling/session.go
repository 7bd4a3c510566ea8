package sampling

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"tokenweir/internal/engine"
	"tokenweir/internal/grammar"
	"tokenweir/internal/trace"
)

// Outcome is the result of one sampling decision. Stop is StopNone when a
// token was chosen; otherwise Token is meaningless and the caller's
// generation loop should halt this session.
type Outcome struct {
	Token int32
	Stop  StopReason
}

// SessionOptions attaches the optional collaborators of a session.
type SessionOptions struct {
	// Guidance supplies the secondary score vector blended into the primary
	// one (classifier-free guidance). Nil disables the blend.
	Guidance engine.Engine

	// Compiler compiles grammar rule text. Required when Grammar or Dynamic
	// is set.
	Compiler grammar.Compiler

	// Grammar is literal rule text compiled once at construction. A parse
	// failure fails session construction.
	Grammar string

	// Dynamic enables per-step grammar regeneration; it takes precedence
	// over Grammar and requires a Synthesizer.
	Dynamic     *grammar.DynamicConfig
	Synthesizer grammar.Synthesizer

	// Recorder receives per-step diagnostics. Nil disables tracing.
	Recorder *trace.Recorder
}

// Session aggregates the sampling pipeline for one generation stream. It is
// not safe for concurrent use: one Sample call completes before the
// corresponding Accept, before the next Sample. Branching decode strategies
// must operate on independent Clones.
type Session struct {
	id     string
	params Params

	eng      engine.Engine
	codec    engine.Codec
	guidance engine.Engine

	hist       *History
	cur        []engine.TokenData
	constraint *grammar.Constraint
	stop       stopChecker

	// mu is the mirostat controller's running surprisal cutoff. It persists
	// across calls and travels with Clone.
	mu  float32
	rng *rand.Rand

	rec   *trace.Recorder
	steps int
}

// NewSession builds a session from immutable parameters and its
// collaborators. Static grammar compilation happens here; a non-empty
// grammar that fails to parse prevents construction.
func NewSession(params Params, eng engine.Engine, codec engine.Codec, opts SessionOptions) (*Session, error) {
	if eng == nil || codec == nil {
		return nil, errors.New("sampling: engine and codec are required")
	}

	s := &Session{
		id:       uuid.NewString(),
		params:   params,
		eng:      eng,
		codec:    codec,
		guidance: opts.Guidance,
		hist:     NewHistory(params.NPrev),
		cur:      make([]engine.TokenData, 0, eng.VocabSize()),
		stop: stopChecker{
			marker:  params.StopMarker,
			maxLen:  params.MaxPatternLen,
			minReps: params.MinRepetitions,
		},
		mu:  2 * params.MirostatTau,
		rng: newRNG(params.Seed),
		rec: opts.Recorder,
	}

	switch {
	case opts.Dynamic != nil:
		if opts.Compiler == nil || opts.Synthesizer == nil {
			return nil, errors.New("sampling: dynamic grammar requires a compiler and a synthesizer")
		}
		s.constraint = grammar.NewDynamic(opts.Compiler, opts.Synthesizer, *opts.Dynamic)
	case opts.Grammar != "":
		if opts.Compiler == nil {
			return nil, errors.New("sampling: static grammar requires a compiler")
		}
		constraint, err := grammar.NewStatic(opts.Compiler, opts.Grammar)
		if err != nil {
			return nil, fmt.Errorf("sampling: %w", err)
		}
		s.constraint = constraint
	}

	return s, nil
}

// ID returns the session's trace identity.
func (s *Session) ID() string { return s.id }

// Params returns the session's immutable parameters.
func (s *Session) Params() Params { return s.params }

// History exposes the session's token history.
func (s *Session) History() *History { return s.hist }

// Last returns the most recently accepted token.
func (s *Session) Last() int32 { return s.hist.Last() }

// LastText decodes the text of up to n most recent window tokens.
func (s *Session) LastText(n int) string { return s.hist.LastText(s.codec, n) }

// Transcript renders the content-only transcript.
func (s *Session) Transcript() string { return s.hist.Render(s.codec) }

// SetPreludeLength marks the leading non-content prefix of the transcript.
func (s *Session) SetPreludeLength(n int) { s.hist.SetPreludeLength(n) }

// Sample runs the full pipeline for one decode position: logit bias,
// guidance blend, penalties, stop heuristics, grammar regeneration and
// masking, then selection. The candidate list it works on is transient and
// only valid within this call.
//
// The context bounds the dynamic-grammar synthesis; a stalled collaborator
// otherwise stalls generation for as long as the caller allows.
func (s *Session) Sample(ctx context.Context, idx int) (Outcome, error) {
	start := time.Now()

	logits, err := s.eng.Logits(idx)
	if err != nil {
		return Outcome{}, fmt.Errorf("sampling: logits: %w", err)
	}

	for id, bias := range s.params.LogitBias {
		if int(id) < len(logits) && id >= 0 {
			logits[id] += bias
		}
	}

	if s.guidance != nil {
		guidanceLogits, err := s.guidance.Logits(idx)
		if err != nil {
			return Outcome{}, fmt.Errorf("sampling: guidance logits: %w", err)
		}
		blendGuidance(logits, guidanceLogits, s.params.GuidanceScale)
	}

	s.cur = s.cur[:0]
	for i := range logits {
		s.cur = append(s.cur, engine.TokenData{ID: int32(i), Logit: logits[i]})
	}
	cands := s.cur

	window := s.hist.Window()
	if lastN := s.params.penaltyWindow(); lastN > 0 {
		penalize(cands, window[len(window)-lastN:],
			s.params.PenaltyRepeat, s.params.PenaltyFreq, s.params.PenaltyPresent,
			s.eng.NewlineToken(), s.params.PenalizeNewline)
	}

	transcript := s.hist.Render(s.codec)
	recent := ""
	if n := s.hist.Len(); n > 0 {
		skip := n - 3
		if skip < 0 {
			skip = 0
		}
		recent = s.hist.RenderRange(s.codec, skip, 0)
	}
	if reason := s.stop.check(transcript, recent); reason != StopNone {
		s.record(start, Outcome{Stop: reason}, false)
		return Outcome{Stop: reason}, nil
	}

	degraded := false
	if s.constraint != nil {
		if s.constraint.Dynamic() {
			newToken := ""
			if s.hist.Len() > 0 {
				newToken = s.codec.TokenToPiece(s.hist.prevAll[s.hist.Len()-1])
			}
			err := s.constraint.Regenerate(ctx, grammar.RegenInput{
				Transcript:     s.hist.RenderRange(s.codec, s.hist.PreludeLength(), 1),
				FullTranscript: transcript,
				NewToken:       newToken,
			})
			if err != nil {
				return Outcome{}, fmt.Errorf("sampling: %w", err)
			}
		}
		if s.constraint.Active() {
			s.constraint.Mask(cands)
		} else {
			degraded = true
		}
	}

	out := Outcome{Token: s.selectToken(cands)}
	s.record(start, out, degraded)
	s.steps++
	return out, nil
}

// Accept feeds a chosen token back into the session: the history window,
// the full transcript and (unless applyGrammar is false) the grammar
// automaton all advance in this one step, keeping the constraint in sync
// with the generated text.
func (s *Session) Accept(id int32, applyGrammar bool) {
	s.hist.Append(id)
	if s.constraint != nil && applyGrammar {
		s.constraint.Accept(id)
	}
}

// Reset returns the session to its initial state: the automaton is
// re-derived from the stored rule-set, the window is zeroed, the transcript
// and prelude offset are cleared and the mirostat cutoff restarts.
func (s *Session) Reset() error {
	if s.constraint != nil {
		if err := s.constraint.Reset(); err != nil {
			return fmt.Errorf("sampling: %w", err)
		}
	}
	s.hist.Reset()
	s.mu = 2 * s.params.MirostatTau
	s.steps = 0
	return nil
}

// Clone duplicates the session for branching continuations: history,
// automaton state and the mirostat cutoff are copied, never shared, so
// advancing one branch cannot mutate another. The clone gets its own trace
// identity.
func (s *Session) Clone() *Session {
	dup := &Session{
		id:       uuid.NewString(),
		params:   s.params,
		eng:      s.eng,
		codec:    s.codec,
		guidance: s.guidance,
		hist:     s.hist.Clone(),
		cur:      make([]engine.TokenData, 0, cap(s.cur)),
		stop:     s.stop,
		mu:       s.mu,
		rng:      newRNG(s.params.Seed),
		rec:      s.rec,
		steps:    s.steps,
	}
	if s.constraint != nil {
		dup.constraint = s.constraint.Clone()
	}
	return dup
}

// selectToken converts the final candidate list into one chosen token.
func (s *Session) selectToken(cands []engine.TokenData) int32 {
	temp := s.params.Temp

	switch {
	case temp < 0:
		// Max probability after normalization; probs are kept on the
		// candidates for downstream inspection.
		softmax(cands)
		return cands[0].ID
	case temp == 0:
		return greedyToken(cands)
	}

	switch s.params.Mirostat {
	case MirostatV1:
		applyTemperature(cands, temp)
		return mirostatV1(cands, s.params.MirostatTau, s.params.MirostatEta, &s.mu, s.rng)
	case MirostatV2:
		applyTemperature(cands, temp)
		return mirostatV2(cands, s.params.MirostatTau, s.params.MirostatEta, &s.mu, s.rng)
	}

	minKeep := s.params.NProbs
	if minKeep < 1 {
		minKeep = 1
	}
	for _, sel := range s.params.SamplerOrder {
		switch sel {
		case 'k':
			cands = applyTopK(cands, s.params.TopK, minKeep)
		case 'f':
			cands = applyTailFree(cands, s.params.TfsZ, minKeep)
		case 'y':
			cands = applyTypical(cands, s.params.TypicalP, minKeep)
		case 'p':
			cands = applyTopP(cands, s.params.TopP, minKeep)
		case 'm':
			cands = applyMinP(cands, s.params.MinP, minKeep)
		case 't':
			cands = applyTemperature(cands, temp)
		}
	}
	return drawToken(cands, s.rng)
}

func (s *Session) record(start time.Time, out Outcome, degraded bool) {
	if s.rec == nil {
		return
	}

	mode := ""
	depth := 0
	if s.constraint != nil {
		mode = s.constraint.Mode()
		depth = s.constraint.StackDepth()
	}

	err := s.rec.Record(trace.Step{
		SessionID:  s.id,
		Step:       s.steps,
		Token:      out.Token,
		Stop:       string(out.Stop),
		Mode:       mode,
		Degraded:   degraded,
		StackDepth: depth,
		Elapsed:    time.Since(start),
	})
	if err != nil {
		log.Printf("sampling: trace record failed: %v", err)
	}
}
