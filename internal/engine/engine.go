// Package engine defines the contracts tokenweir consumes from an inference
// backend. The pipeline never touches model weights or tensor math; it only
// reads per-position score vectors and converts token ids to text through
// these interfaces.
package engine

// TokenData pairs a token id with its current score. Logit carries the raw
// (or transformed) model score; Prob is populated once a softmax pass has
// normalized the candidate list.
type TokenData struct {
	ID    int32
	Logit float32
	Prob  float32
}

// Engine exposes the per-position score vectors of an inference backend.
type Engine interface {
	// Logits returns the raw per-vocabulary scores for the given decode
	// position. The returned slice is owned by the caller of Logits and may
	// be mutated freely.
	Logits(idx int) ([]float32, error)

	// VocabSize reports the length of every score vector.
	VocabSize() int

	// NewlineToken returns the id of the designated newline token.
	NewlineToken() int32
}

// Codec converts token ids to their text pieces.
type Codec interface {
	TokenToPiece(id int32) string
}
