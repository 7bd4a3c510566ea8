// samplebench benchmarks the sampling pipeline against a synthetic score
// source. No model weights are involved: the engine produces a rotating peak
// so the run measures pipeline overhead, not backend latency.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"

	"tokenweir/internal/logging"
	"tokenweir/internal/samplebench"
)

// syntheticEngine produces a deterministic score vector per position: one
// rotating peak over a decaying tail, enough shape to keep every truncation
// stage busy.
type syntheticEngine struct {
	vocab int
}

func (e *syntheticEngine) Logits(idx int) ([]float32, error) {
	logits := make([]float32, e.vocab)
	peak := (idx * 7919) % e.vocab
	for i := range logits {
		dist := i - peak
		if dist < 0 {
			dist = -dist
		}
		logits[i] = 8.0 * float32(math.Exp(-float64(dist)/16.0))
	}
	return logits, nil
}

func (e *syntheticEngine) VocabSize() int      { return e.vocab }
func (e *syntheticEngine) NewlineToken() int32 { return -1 }

type syntheticCodec struct{}

func (syntheticCodec) TokenToPiece(id int32) string { return fmt.Sprintf("<%d>", id) }

func main() {
	iterations := flag.Int("iterations", 5, "Recorded iterations per scenario")
	steps := flag.Int("steps", 256, "Sampling decisions per iteration")
	vocab := flag.Int("vocab", 32000, "Synthetic vocabulary size")
	warmup := flag.Int("warmup", 1, "Warmup iterations per scenario")
	output := flag.String("out", "", "Optional JSON report path")
	verbose := flag.Bool("v", false, "Per-iteration logging")
	flag.Parse()

	if *verbose {
		if err := logging.Init(false); err != nil {
			fmt.Fprintf(os.Stderr, "logging init failed: %v\n", err)
		}
	} else {
		logging.Discard()
	}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("SAMPLING PIPELINE BENCHMARK")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("vocab=%d  steps=%d  iterations=%d\n", *vocab, *steps, *iterations)

	cfg := samplebench.DefaultConfig()
	cfg.Iterations = *iterations
	cfg.Steps = *steps
	cfg.WarmupIterations = *warmup
	cfg.OutputPath = *output
	cfg.Verbose = *verbose

	runner := samplebench.NewRunner(&syntheticEngine{vocab: *vocab}, syntheticCodec{}, cfg)
	report, err := runner.Run(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "benchmark failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Completed %d scenarios\n", len(report.Summaries))
	fmt.Println(strings.Repeat("=", 80))
}
