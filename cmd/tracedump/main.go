// tracedump prints recorded sampling steps from a trace database, newest
// first. Useful for inspecting grammar regeneration behavior and per-step
// latency after a generation run.
package main

import (
	"flag"
	"fmt"
	"os"

	"tokenweir/internal/config"
	"tokenweir/internal/logging"
	"tokenweir/internal/trace"
)

func main() {
	dbPath := flag.String("db", "", "Path to the trace database (default: from config)")
	session := flag.String("session", "", "Restrict output to one session id (empty = all)")
	limit := flag.Int("limit", 50, "Maximum number of steps to print")
	flag.Parse()

	// Keep library diagnostics out of the table output.
	logging.Discard()

	path := *dbPath
	if path == "" {
		cfg, err := config.Resolve()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to resolve config: %v\n", err)
			os.Exit(1)
		}
		path = cfg.Trace.Path
	}

	rec, err := trace.NewRecorder(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open trace database: %v\n", err)
		os.Exit(1)
	}
	defer rec.Close()

	steps, err := rec.Steps(*session, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read steps: %v\n", err)
		os.Exit(1)
	}

	if len(steps) == 0 {
		fmt.Println("no recorded steps")
		return
	}

	fmt.Printf("%-36s %6s %8s %-16s %-8s %-8s %6s %10s\n",
		"SESSION", "STEP", "TOKEN", "STOP", "MODE", "DEGRADED", "DEPTH", "ELAPSED")
	for _, s := range steps {
		fmt.Printf("%-36s %6d %8d %-16s %-8s %-8v %6d %10s\n",
			s.SessionID, s.Step, s.Token, s.Stop, s.Mode, s.Degraded, s.StackDepth, s.Elapsed)
	}
}
