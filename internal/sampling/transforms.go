package sampling

import (
	"math"
	"math/rand/v2"
	"sort"

	"tokenweir/internal/engine"
)

// The numeric primitives below operate on a candidate list in descending
// logit order. Truncation transforms return a (possibly shorter) slice over
// the same backing array; every one honors the shared minKeep floor.

// sortByLogit orders candidates by descending logit.
func sortByLogit(cands []engine.TokenData) {
	sort.Slice(cands, func(i, j int) bool {
		return cands[i].Logit > cands[j].Logit
	})
}

// softmax sorts the candidates by descending logit and fills in normalized
// probabilities.
func softmax(cands []engine.TokenData) {
	if len(cands) == 0 {
		return
	}
	sortByLogit(cands)

	maxLogit := cands[0].Logit
	var sum float32
	for i := range cands {
		p := float32(math.Exp(float64(cands[i].Logit - maxLogit)))
		cands[i].Prob = p
		sum += p
	}
	for i := range cands {
		cands[i].Prob /= sum
	}
}

// applyTopK keeps the k highest-scoring candidates.
func applyTopK(cands []engine.TokenData, k, minKeep int) []engine.TokenData {
	if k <= 0 || k > len(cands) {
		k = len(cands)
	}
	if k < minKeep {
		k = minKeep
	}
	if k > len(cands) {
		k = len(cands)
	}
	sortByLogit(cands)
	return cands[:k]
}

// applyTopP keeps the smallest prefix of candidates whose cumulative
// probability reaches p (nucleus truncation).
func applyTopP(cands []engine.TokenData, p float32, minKeep int) []engine.TokenData {
	if p >= 1.0 || len(cands) == 0 {
		return cands
	}
	softmax(cands)

	var cum float32
	last := len(cands)
	for i := range cands {
		cum += cands[i].Prob
		if cum >= p && i+1 >= minKeep {
			last = i + 1
			break
		}
	}
	return cands[:last]
}

// applyMinP drops candidates whose probability falls below p times the top
// candidate's probability.
func applyMinP(cands []engine.TokenData, p float32, minKeep int) []engine.TokenData {
	if p <= 0 || len(cands) == 0 {
		return cands
	}
	softmax(cands)

	threshold := p * cands[0].Prob
	last := len(cands)
	for i := range cands {
		if cands[i].Prob < threshold && i >= minKeep {
			last = i
			break
		}
	}
	return cands[:last]
}

// applyTailFree truncates the distribution where the curvature of sorted
// probabilities flattens out (tail-free sampling, parameter z).
func applyTailFree(cands []engine.TokenData, z float32, minKeep int) []engine.TokenData {
	if z >= 1.0 || len(cands) <= 2 {
		return cands
	}
	softmax(cands)

	first := make([]float32, len(cands)-1)
	for i := range first {
		first[i] = cands[i].Prob - cands[i+1].Prob
	}
	second := make([]float32, len(first)-1)
	var sum float32
	for i := range second {
		second[i] = float32(math.Abs(float64(first[i] - first[i+1])))
		sum += second[i]
	}
	if sum > 0 {
		for i := range second {
			second[i] /= sum
		}
	}

	var cum float32
	last := len(cands)
	for i := range second {
		cum += second[i]
		if cum > z && i >= minKeep {
			last = i
			break
		}
	}
	return cands[:last]
}

// applyTypical keeps candidates whose surprisal is closest to the
// distribution's entropy (locally typical sampling, parameter p).
func applyTypical(cands []engine.TokenData, p float32, minKeep int) []engine.TokenData {
	if p >= 1.0 || len(cands) == 0 {
		return cands
	}
	softmax(cands)

	var entropy float64
	for i := range cands {
		if cands[i].Prob > 0 {
			entropy += -float64(cands[i].Prob) * math.Log(float64(cands[i].Prob))
		}
	}

	shifted := make([]float64, len(cands))
	for i := range cands {
		shifted[i] = math.Abs(-math.Log(float64(cands[i].Prob)) - entropy)
	}

	order := make([]int, len(cands))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return shifted[order[a]] < shifted[order[b]]
	})

	var cum float32
	last := len(order)
	for i, idx := range order {
		cum += cands[idx].Prob
		if cum > p && i >= minKeep-1 {
			last = i + 1
			break
		}
	}

	kept := make([]engine.TokenData, last)
	for i := 0; i < last; i++ {
		kept[i] = cands[order[i]]
	}
	copy(cands, kept)
	return cands[:last]
}

// applyTemperature divides every logit by t.
func applyTemperature(cands []engine.TokenData, t float32) []engine.TokenData {
	for i := range cands {
		cands[i].Logit /= t
	}
	return cands
}

// blendGuidance applies the classifier-free-guidance blend: each score is
// pulled away from the guidance score by the configured scale.
func blendGuidance(logits, guidance []float32, scale float32) {
	n := len(logits)
	if len(guidance) < n {
		n = len(guidance)
	}
	for i := 0; i < n; i++ {
		logits[i] = guidance[i] + scale*(logits[i]-guidance[i])
	}
}

// greedyToken returns the id of the maximum raw score without normalizing.
func greedyToken(cands []engine.TokenData) int32 {
	best := 0
	for i := 1; i < len(cands); i++ {
		if cands[i].Logit > cands[best].Logit {
			best = i
		}
	}
	return cands[best].ID
}

// drawToken normalizes the remaining candidates and takes one weighted
// random draw over the distribution.
func drawToken(cands []engine.TokenData, rng *rand.Rand) int32 {
	softmax(cands)

	r := rng.Float32()
	var cum float32
	for i := range cands {
		cum += cands[i].Prob
		if r < cum {
			return cands[i].ID
		}
	}
	return cands[len(cands)-1].ID
}

// newRNG builds the session's random source; a negative seed draws one from
// entropy. PCG needs a sequence and a stream, so the seed is reused with a
// golden-ratio hash for independence.
func newRNG(seed int64) *rand.Rand {
	if seed < 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	sequence := uint64(seed)
	return rand.New(rand.NewPCG(sequence, sequence^0x9E3779B9))
}
