// Package sampling implements the per-token decision pipeline: penalties,
// optional guidance blending, grammar masking, adaptive stop heuristics and
// token selection, together with the token history each stage reads.
package sampling

import (
	"fmt"
	"strings"
)

// Mirostat controller modes.
const (
	MirostatOff = 0
	MirostatV1  = 1
	MirostatV2  = 2
)

// Params holds the immutable sampling parameters of a session.
type Params struct {
	// NPrev is the capacity of the recent-token window.
	NPrev int

	// NProbs is how many top candidates downstream callers want reported;
	// it doubles as the minimum-keep floor of the truncation queue.
	NProbs int

	// PenaltyLastN restricts the penalty pass to the most recent N window
	// tokens. Negative means the full NPrev window.
	PenaltyLastN   int
	PenaltyRepeat  float32
	PenaltyFreq    float32
	PenaltyPresent float32

	// PenalizeNewline controls whether the newline token keeps its
	// pre-penalty score.
	PenalizeNewline bool

	// Temp selects the strategy: negative picks the max-probability
	// candidate after softmax, zero picks the raw arg-max, positive runs
	// mirostat or the truncation queue.
	Temp float32

	TopK     int
	TopP     float32
	MinP     float32
	TfsZ     float32
	TypicalP float32

	// SamplerOrder sequences the truncation queue by single-character
	// selectors: k=top-k, f=tail-free, y=typical-p, p=top-p, m=min-p,
	// t=temperature.
	SamplerOrder string

	Mirostat    int
	MirostatTau float32
	MirostatEta float32

	// GuidanceScale weights the classifier-free-guidance blend when a
	// guidance engine is attached.
	GuidanceScale float32

	// LogitBias is added to the named tokens' scores before any other stage.
	LogitBias map[int32]float32

	// StopMarker ends generation when the last few decoded tokens' text
	// ends with it. Empty disables the check.
	StopMarker string

	// MaxPatternLen and MinRepetitions parameterize the repeated-substring
	// runaway heuristic.
	MaxPatternLen  int
	MinRepetitions int

	// Seed fixes the random draw; negative seeds from entropy.
	Seed int64
}

// DefaultParams returns the parameter set generation starts from.
func DefaultParams() Params {
	return Params{
		NPrev:           64,
		NProbs:          0,
		PenaltyLastN:    64,
		PenaltyRepeat:   1.10,
		PenaltyFreq:     0.0,
		PenaltyPresent:  0.0,
		PenalizeNewline: true,
		Temp:            0.80,
		TopK:            40,
		TopP:            0.95,
		MinP:            0.05,
		TfsZ:            1.0,
		TypicalP:        1.0,
		SamplerOrder:    "kfypmt",
		Mirostat:        MirostatOff,
		MirostatTau:     5.0,
		MirostatEta:     0.10,
		GuidanceScale:   1.0,
		StopMarker:      "in\n\n",
		MaxPatternLen:   30,
		MinRepetitions:  5,
		Seed:            -1,
	}
}

// String renders the parameters in a compact single-call form for logs.
func (p Params) String() string {
	return fmt.Sprintf(
		"\trepeat_last_n = %d, repeat_penalty = %.3f, frequency_penalty = %.3f, presence_penalty = %.3f\n"+
			"\ttop_k = %d, tfs_z = %.3f, top_p = %.3f, min_p = %.3f, typical_p = %.3f, temp = %.3f\n"+
			"\tmirostat = %d, mirostat_lr = %.3f, mirostat_ent = %.3f",
		p.PenaltyLastN, p.PenaltyRepeat, p.PenaltyFreq, p.PenaltyPresent,
		p.TopK, p.TfsZ, p.TopP, p.MinP, p.TypicalP, p.Temp,
		p.Mirostat, p.MirostatEta, p.MirostatTau)
}

// OrderString describes the effective stage order for logs.
func (p Params) OrderString() string {
	var b strings.Builder
	b.WriteString("CFG -> Penalties ")
	if p.Mirostat != MirostatOff {
		b.WriteString("-> mirostat ")
		return b.String()
	}
	for _, s := range p.SamplerOrder {
		switch s {
		case 'k':
			b.WriteString("-> top_k ")
		case 'f':
			b.WriteString("-> tfs_z ")
		case 'y':
			b.WriteString("-> typical_p ")
		case 'p':
			b.WriteString("-> top_p ")
		case 'm':
			b.WriteString("-> min_p ")
		case 't':
			b.WriteString("-> temp ")
		}
	}
	return b.String()
}

// penaltyWindow resolves PenaltyLastN against the window capacity.
func (p Params) penaltyWindow() int {
	if p.PenaltyLastN < 0 {
		return p.NPrev
	}
	if p.PenaltyLastN > p.NPrev {
		return p.NPrev
	}
	return p.PenaltyLastN
}
