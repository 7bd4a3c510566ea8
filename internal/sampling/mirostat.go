package sampling

import (
	"math"
	"math/rand/v2"

	"tokenweir/internal/engine"
)

// mirostatEstimateM is the fixed number of leading candidates the v1
// controller fits its Zipf exponent estimate over.
const mirostatEstimateM = 100

// mirostatV1 runs the original mirostat controller: estimate the
// distribution's decay exponent from the first m candidates, derive a
// candidate window k from the running cutoff mu, draw from that window, then
// move mu toward the target surprisal tau by learning rate eta.
func mirostatV1(cands []engine.TokenData, tau, eta float32, mu *float32, rng *rand.Rand) int32 {
	softmax(cands)

	n := float64(len(cands))
	var sumTB, sumTT float64
	for i := 0; i < len(cands)-1 && i < mirostatEstimateM-1; i++ {
		t := math.Log(float64(i+2) / float64(i+1))
		b := math.Log(float64(cands[i].Prob) / float64(cands[i+1].Prob))
		sumTB += t * b
		sumTT += t * t
	}
	sHat := sumTB / sumTT

	// Window size from the estimated exponent and the current cutoff.
	epsilonHat := sHat - 1
	k := math.Pow(epsilonHat*math.Pow(2, float64(*mu))/(1-math.Pow(n, -epsilonHat)), 1/sHat)
	if math.IsNaN(k) || k < 1 {
		k = 1
	}

	kept := applyTopK(cands, int(k), 1)
	id := drawToken(kept, rng)

	*mu -= eta * (observedSurprise(kept, id) - tau)
	return id
}

// mirostatV2 truncates directly at the running cutoff: candidates whose
// surprisal exceeds mu are dropped, one token is drawn from the rest, and mu
// is adjusted by the surprisal error.
func mirostatV2(cands []engine.TokenData, tau, eta float32, mu *float32, rng *rand.Rand) int32 {
	softmax(cands)

	last := len(cands)
	for i := range cands {
		if float32(-math.Log2(float64(cands[i].Prob))) > *mu && i > 0 {
			last = i
			break
		}
	}
	kept := cands[:last]

	id := drawToken(kept, rng)

	*mu -= eta * (observedSurprise(kept, id) - tau)
	return id
}

// observedSurprise is the negative log2-probability of the chosen token
// under the (normalized) candidate distribution it was drawn from.
func observedSurprise(cands []engine.TokenData, id int32) float32 {
	for i := range cands {
		if cands[i].ID == id {
			return float32(-math.Log2(float64(cands[i].Prob)))
		}
	}
	return 0
}
