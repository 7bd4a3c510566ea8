// Package samplebench provides a benchmark runner for the per-token sampling
// pipeline. It works through the engine.Engine interface, so the same
// scenarios run against a real backend or a synthetic score source.
package samplebench

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"tokenweir/internal/engine"
	"tokenweir/internal/sampling"
)

// Config controls the benchmark parameters.
type Config struct {
	// Iterations is how many times each scenario is run.
	Iterations int

	// Steps is how many sampling decisions each iteration makes.
	Steps int

	// Scenarios to benchmark. If empty, StandardScenarios() is used.
	Scenarios []Scenario

	// OutputPath is the optional JSON file to write results to.
	OutputPath string

	// Warmup runs N throw-away iterations before recording.
	WarmupIterations int

	// Verbose enables per-iteration logging.
	Verbose bool
}

// DefaultConfig returns reasonable defaults for pipeline benchmarking.
func DefaultConfig() Config {
	return Config{
		Iterations:       5,
		Steps:            256,
		WarmupIterations: 1,
		Verbose:          false,
	}
}

// Scenario is a single benchmark configuration: one parameter set driving the
// full pipeline.
type Scenario struct {
	Name   string
	Params sampling.Params
}

// StandardScenarios returns parameter sets that exercise the distinct
// selection strategies and the penalty pass.
func StandardScenarios() []Scenario {
	greedy := sampling.DefaultParams()
	greedy.Temp = 0
	greedy.Seed = 1

	queue := sampling.DefaultParams()
	queue.Seed = 1

	mirostat := sampling.DefaultParams()
	mirostat.Mirostat = sampling.MirostatV2
	mirostat.Seed = 1

	penalties := sampling.DefaultParams()
	penalties.PenaltyRepeat = 1.3
	penalties.PenaltyFreq = 0.2
	penalties.PenaltyPresent = 0.2
	penalties.PenaltyLastN = -1
	penalties.Seed = 1

	return []Scenario{
		{Name: "greedy", Params: greedy},
		{Name: "queue", Params: queue},
		{Name: "mirostat-v2", Params: mirostat},
		{Name: "penalty-heavy", Params: penalties},
	}
}

// IterationResult captures metrics from a single benchmark iteration.
type IterationResult struct {
	ScenarioName string        `json:"scenario_name"`
	Iteration    int           `json:"iteration"`
	Duration     time.Duration `json:"duration_ns"`
	StepsRun     int           `json:"steps_run"`
	StepsPerSec  float64       `json:"steps_per_sec"`
	Stopped      bool          `json:"stopped"`
	Error        string        `json:"error,omitempty"`
}

// ScenarioSummary aggregates results across iterations for one scenario.
type ScenarioSummary struct {
	Name        string        `json:"name"`
	Iterations  int           `json:"iterations"`
	Duration    DurationStats `json:"duration"`
	StepsPerSec FloatStats    `json:"steps_per_sec"`
	AvgSteps    float64       `json:"avg_steps"`
	Stops       int           `json:"stops"`
	Errors      int           `json:"errors"`
}

// DurationStats summarises a collection of time.Duration values.
type DurationStats struct {
	Min    time.Duration `json:"min_ns"`
	Max    time.Duration `json:"max_ns"`
	Mean   time.Duration `json:"mean_ns"`
	Median time.Duration `json:"median_ns"`
	P95    time.Duration `json:"p95_ns"`
}

// FloatStats summarises a collection of float64 values.
type FloatStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P95    float64 `json:"p95"`
}

// BenchmarkReport is the top-level result container.
type BenchmarkReport struct {
	Timestamp time.Time         `json:"timestamp"`
	Config    Config            `json:"config"`
	VocabSize int               `json:"vocab_size"`
	Summaries []ScenarioSummary `json:"summaries"`
	Raw       []IterationResult `json:"raw_results,omitempty"`
}

// Runner executes pipeline benchmarks against an engine and codec pair.
type Runner struct {
	eng   engine.Engine
	codec engine.Codec
	cfg   Config
}

// NewRunner creates a benchmark runner.
func NewRunner(eng engine.Engine, codec engine.Codec, cfg Config) *Runner {
	if len(cfg.Scenarios) == 0 {
		cfg.Scenarios = StandardScenarios()
	}
	return &Runner{eng: eng, codec: codec, cfg: cfg}
}

// Run executes the full benchmark suite and returns a report.
func (r *Runner) Run(ctx context.Context) (*BenchmarkReport, error) {
	report := &BenchmarkReport{
		Timestamp: time.Now(),
		Config:    r.cfg,
		VocabSize: r.eng.VocabSize(),
	}

	var allResults []IterationResult

	for _, scenario := range r.cfg.Scenarios {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		fmt.Printf("\n--- Benchmark: %s ---\n", scenario.Name)

		results, err := r.benchmarkScenario(ctx, scenario)
		if err != nil {
			return report, fmt.Errorf("scenario %q: %w", scenario.Name, err)
		}

		allResults = append(allResults, results...)
		summary := summarize(scenario, results)
		report.Summaries = append(report.Summaries, summary)

		printSummary(summary)
	}

	report.Raw = allResults

	if r.cfg.OutputPath != "" {
		if err := saveReport(report, r.cfg.OutputPath); err != nil {
			fmt.Printf("Warning: failed to save report: %v\n", err)
		} else {
			fmt.Printf("\nResults saved to %s\n", r.cfg.OutputPath)
		}
	}

	return report, nil
}

// benchmarkScenario runs all iterations for one scenario.
func (r *Runner) benchmarkScenario(ctx context.Context, scenario Scenario) ([]IterationResult, error) {
	for i := 0; i < r.cfg.WarmupIterations; i++ {
		if r.cfg.Verbose {
			fmt.Printf("  warmup %d/%d...\n", i+1, r.cfg.WarmupIterations)
		}
		_, _ = r.runOnce(ctx, scenario, -1)
	}

	var results []IterationResult
	for i := 0; i < r.cfg.Iterations; i++ {
		if r.cfg.Verbose {
			fmt.Printf("  iteration %d/%d...\n", i+1, r.cfg.Iterations)
		}

		res, err := r.runOnce(ctx, scenario, i)
		if err != nil {
			res.Error = err.Error()
		}
		results = append(results, res)
	}

	return results, nil
}

// runOnce builds a fresh session and drives it for the configured number of
// sampling decisions.
func (r *Runner) runOnce(ctx context.Context, scenario Scenario, iteration int) (IterationResult, error) {
	result := IterationResult{
		ScenarioName: scenario.Name,
		Iteration:    iteration,
	}

	session, err := sampling.NewSession(scenario.Params, r.eng, r.codec, sampling.SessionOptions{})
	if err != nil {
		return result, err
	}

	start := time.Now()
	for step := 0; step < r.cfg.Steps; step++ {
		out, err := session.Sample(ctx, step)
		if err != nil {
			return result, err
		}
		if out.Stop != sampling.StopNone {
			result.Stopped = true
			break
		}
		session.Accept(out.Token, true)
		result.StepsRun++
	}
	result.Duration = time.Since(start)

	if result.Duration > 0 && result.StepsRun > 0 {
		result.StepsPerSec = float64(result.StepsRun) / result.Duration.Seconds()
	}

	if r.cfg.Verbose {
		fmt.Printf("    %d steps in %v (%.0f steps/s)\n",
			result.StepsRun, result.Duration.Round(time.Millisecond), result.StepsPerSec)
	}

	return result, nil
}

// summarize computes aggregate statistics for a scenario's results.
func summarize(scenario Scenario, results []IterationResult) ScenarioSummary {
	summary := ScenarioSummary{Name: scenario.Name}

	valid := filterValid(results)
	summary.Iterations = len(valid)
	summary.Errors = len(results) - len(valid)

	if len(valid) == 0 {
		return summary
	}

	summary.Duration = computeDurationStats(extractDurations(valid, func(r IterationResult) time.Duration { return r.Duration }))
	summary.StepsPerSec = computeFloatStats(extractFloats(valid, func(r IterationResult) float64 { return r.StepsPerSec }))

	var stepSum float64
	for _, r := range valid {
		stepSum += float64(r.StepsRun)
		if r.Stopped {
			summary.Stops++
		}
	}
	summary.AvgSteps = stepSum / float64(len(valid))

	return summary
}

// ---------------------------------------------------------------------------
// Statistics helpers
// ---------------------------------------------------------------------------

func filterValid(results []IterationResult) []IterationResult {
	var out []IterationResult
	for _, r := range results {
		if r.Error == "" {
			out = append(out, r)
		}
	}
	return out
}

func extractDurations(results []IterationResult, fn func(IterationResult) time.Duration) []time.Duration {
	out := make([]time.Duration, len(results))
	for i, r := range results {
		out[i] = fn(r)
	}
	return out
}

func extractFloats(results []IterationResult, fn func(IterationResult) float64) []float64 {
	out := make([]float64, len(results))
	for i, r := range results {
		out[i] = fn(r)
	}
	return out
}

func computeDurationStats(vals []time.Duration) DurationStats {
	if len(vals) == 0 {
		return DurationStats{}
	}
	sorted := make([]time.Duration, len(vals))
	copy(sorted, vals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, v := range sorted {
		sum += v
	}

	n := len(sorted)
	var median time.Duration
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	} else {
		median = sorted[n/2]
	}

	return DurationStats{
		Min:    sorted[0],
		Max:    sorted[n-1],
		Mean:   sum / time.Duration(n),
		Median: median,
		P95:    sorted[percentileIndex(n, 95)],
	}
}

func computeFloatStats(vals []float64) FloatStats {
	if len(vals) == 0 {
		return FloatStats{}
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	n := len(sorted)
	var median float64
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	} else {
		median = sorted[n/2]
	}

	return FloatStats{
		Min:    sorted[0],
		Max:    sorted[n-1],
		Mean:   sum / float64(n),
		Median: median,
		P95:    sorted[percentileIndex(n, 95)],
	}
}

// percentileIndex returns the index for the pct-th percentile using the
// nearest-rank method: index = ceil(n * pct / 100) - 1, clamped to [0, n-1].
func percentileIndex(n, pct int) int {
	if n <= 0 {
		return 0
	}
	idx := (n*pct+99)/100 - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return idx
}

// ---------------------------------------------------------------------------
// Output
// ---------------------------------------------------------------------------

func printSummary(s ScenarioSummary) {
	fmt.Printf("  Duration:  min=%v  avg=%v  p95=%v\n",
		s.Duration.Min.Round(time.Microsecond),
		s.Duration.Mean.Round(time.Microsecond),
		s.Duration.P95.Round(time.Microsecond))
	fmt.Printf("  Steps/s:   min=%.0f  avg=%.0f  p95=%.0f\n",
		s.StepsPerSec.Min, s.StepsPerSec.Mean, s.StepsPerSec.P95)
	fmt.Printf("  Steps:     avg=%.0f\n", s.AvgSteps)
	if s.Stops > 0 {
		fmt.Printf("  Stops:     %d/%d iterations hit a stop heuristic\n", s.Stops, s.Iterations)
	}
	if s.Errors > 0 {
		fmt.Printf("  Errors:    %d/%d\n", s.Errors, s.Iterations+s.Errors)
	}
}

func saveReport(report *BenchmarkReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}

	if idx := strings.LastIndex(path, "/"); idx > 0 {
		if err := os.MkdirAll(path[:idx], 0755); err != nil {
			return err
		}
	}

	return os.WriteFile(path, data, 0644)
}
