package sampling

import (
	"tokenweir/internal/engine"
)

// penalize applies the combined repetition/frequency/presence pass to the
// candidates, restricted to tokens occurring in the window slice. When
// penalizeNewline is false the newline token's pre-penalty score is restored
// afterward so line breaks are not suppressed along with real repetition.
//
// Pure transform: same candidates, window and weights always produce the
// same scores.
func penalize(cands []engine.TokenData, window []int32, repeat, freq, present float32, newline int32, penalizeNewline bool) {
	if len(window) == 0 {
		return
	}

	counts := make(map[int32]int, len(window))
	for _, id := range window {
		counts[id]++
	}

	var newlineLogit float32
	var newlineSeen bool

	for i := range cands {
		count, ok := counts[cands[i].ID]
		if !ok {
			continue
		}

		if cands[i].ID == newline && !newlineSeen {
			newlineLogit = cands[i].Logit
			newlineSeen = true
		}

		// Repetition scales the score away from zero's favor; frequency and
		// presence subtract in proportion to, and by the fact of, occurrence.
		if cands[i].Logit <= 0 {
			cands[i].Logit *= repeat
		} else {
			cands[i].Logit /= repeat
		}
		cands[i].Logit -= float32(count)*freq + present
	}

	if !penalizeNewline && newlineSeen {
		for i := range cands {
			if cands[i].ID == newline {
				cands[i].Logit = newlineLogit
				break
			}
		}
	}
}
