package sampling

// StopReason indicates why generation should stop. The heuristics detect
// degenerate output from raw text patterns; the sampling call returns the
// reason instead of terminating, so the caller's generation loop decides
// what to do with a stopped session.
type StopReason string

const (
	// StopNone indicates no stop condition has been met.
	StopNone StopReason = ""
	// StopWhitespaceRun indicates the transcript trails off into a long run
	// of spaces and tabs.
	StopWhitespaceRun StopReason = "whitespace_run"
	// StopRepeatedPattern indicates the transcript ends in many consecutive
	// repetitions of a short substring.
	StopRepeatedPattern StopReason = "repeated_pattern"
	// StopMarker indicates the last decoded tokens ended with the configured
	// end-of-content marker.
	StopMarker StopReason = "stop_marker"
)

// whitespaceRunLen is how many trailing all-whitespace characters count as
// runaway output.
const whitespaceRunLen = 40

// stopChecker evaluates the adaptive stop heuristics once per sampling call.
type stopChecker struct {
	marker  string
	maxLen  int
	minReps int
}

// check inspects the content-only transcript and the last few decoded
// tokens' concatenated text. The marker check runs first: an explicit
// end-of-content signal beats the pattern heuristics.
func (c *stopChecker) check(transcript, recent string) StopReason {
	if c.marker != "" && endsWith(recent, c.marker) {
		return StopMarker
	}
	if len(transcript) >= whitespaceRunLen && allSpaceOrTab(transcript[len(transcript)-whitespaceRunLen:]) {
		return StopWhitespaceRun
	}
	if endsWithRepeatedSubstring(transcript, c.maxLen, c.minReps) {
		return StopRepeatedPattern
	}
	return StopNone
}

// endsWithRepeatedSubstring reports whether s ends with at least minReps
// consecutive exact repetitions of some substring of length 1..maxLen.
// Whitespace-only substrings are skipped here; the dedicated whitespace-run
// rule covers those.
func endsWithRepeatedSubstring(s string, maxLen, minReps int) bool {
	for length := 1; length <= maxLen; length++ {
		if len(s) < minReps*length {
			continue
		}

		last := s[len(s)-length:]
		if allSpaceOrTab(last) {
			continue
		}

		repeating := true
		for rep := 1; rep < minReps; rep++ {
			start := len(s) - (rep+1)*length
			if s[start:start+length] != last {
				repeating = false
				break
			}
		}
		if repeating {
			return true
		}
	}
	return false
}

func allSpaceOrTab(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != ' ' && s[i] != '\t' {
			return false
		}
	}
	return true
}

func endsWith(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}
