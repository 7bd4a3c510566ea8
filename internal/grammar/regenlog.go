package grammar

import (
	"fmt"
	"log"
	"os"
)

// appendRegenLog records one regeneration attempt: a delimiter line, the
// rendered content-only transcript, and the raw synthesizer output. The log
// exists for offline inspection only and is never replayed, so failures are
// diagnostics rather than errors.
func appendRegenLog(path, transcript, output string) {
	if path == "" {
		return
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("grammar: unable to open regeneration log: %v", err)
		return
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "\n================\n%s\n\n%s\n", transcript, output); err != nil {
		log.Printf("grammar: unable to append regeneration log: %v", err)
	}
}
