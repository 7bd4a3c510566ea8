package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"tokenweir/internal/grammar"
	"tokenweir/internal/sampling"
)

// Config captures sampling, grammar-constraint and trace settings for tokenweir.
type Config struct {
	Sampling SamplingConfig `yaml:"sampling"`
	Grammar  GrammarConfig  `yaml:"grammar"`
	Trace    TraceConfig    `yaml:"trace"`
}

// SamplingConfig maps the tunable parameters of the per-token pipeline.
type SamplingConfig struct {
	NPrev           int     `yaml:"n_prev"`
	NProbs          int     `yaml:"n_probs"`
	PenaltyLastN    int     `yaml:"penalty_last_n"`
	PenaltyRepeat   float64 `yaml:"penalty_repeat"`
	PenaltyFreq     float64 `yaml:"penalty_freq"`
	PenaltyPresent  float64 `yaml:"penalty_present"`
	PenalizeNewline *bool   `yaml:"penalize_newline"`
	Temperature     float64 `yaml:"temperature"`
	TopK            int     `yaml:"top_k"`
	TopP            float64 `yaml:"top_p"`
	MinP            float64 `yaml:"min_p"`
	TfsZ            float64 `yaml:"tfs_z"`
	TypicalP        float64 `yaml:"typical_p"`
	SamplerOrder    string  `yaml:"sampler_order"`
	Mirostat        int     `yaml:"mirostat"`
	MirostatTau     float64 `yaml:"mirostat_tau"`
	MirostatEta     float64 `yaml:"mirostat_eta"`
	GuidanceScale   float64 `yaml:"guidance_scale"`
	StopMarker      string  `yaml:"stop_marker"`
	MaxPatternLen   int     `yaml:"max_pattern_len"`
	MinRepetitions  int     `yaml:"min_repetitions"`
	Seed            int64   `yaml:"seed"`
}

// GrammarConfig selects between a literal grammar and dynamic synthesis.
type GrammarConfig struct {
	// Text is literal grammar rule text; Path loads it from a file instead.
	Text string `yaml:"text"`
	Path string `yaml:"path"`

	// DynamicTarget switches the session to per-step grammar regeneration.
	DynamicTarget string `yaml:"dynamic_target"`

	// Command and Args invoke the synthesis collaborator.
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`

	PreludePath string `yaml:"prelude_path"`
	Debug       bool   `yaml:"debug"`

	// Timeout bounds one synthesis invocation, e.g. "30s".
	Timeout string `yaml:"timeout"`

	// LogPath receives the append-only regeneration log.
	LogPath string `yaml:"log_path"`
}

// TraceConfig configures the per-step diagnostics recorder.
type TraceConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

const defaultConfigFile = "tokenweir.yaml"

// Default returns a Config pre-populated with the pipeline defaults.
func Default() Config {
	p := sampling.DefaultParams()
	return Config{
		Sampling: SamplingConfig{
			NPrev:          p.NPrev,
			NProbs:         p.NProbs,
			PenaltyLastN:   p.PenaltyLastN,
			PenaltyRepeat:  float64(p.PenaltyRepeat),
			PenaltyFreq:    float64(p.PenaltyFreq),
			PenaltyPresent: float64(p.PenaltyPresent),
			Temperature:    float64(p.Temp),
			TopK:           p.TopK,
			TopP:           float64(p.TopP),
			MinP:           float64(p.MinP),
			TfsZ:           float64(p.TfsZ),
			TypicalP:       float64(p.TypicalP),
			SamplerOrder:   p.SamplerOrder,
			Mirostat:       p.Mirostat,
			MirostatTau:    float64(p.MirostatTau),
			MirostatEta:    float64(p.MirostatEta),
			GuidanceScale:  float64(p.GuidanceScale),
			StopMarker:     p.StopMarker,
			MaxPatternLen:  p.MaxPatternLen,
			MinRepetitions: p.MinRepetitions,
			Seed:           p.Seed,
		},
		Grammar: GrammarConfig{
			Command:     "node",
			Args:        []string{"../lsp.js", "COMPLETIONS"},
			PreludePath: "../autoregressive.prelude",
			Debug:       true,
			Timeout:     "60s",
			LogPath:     "log.txt",
		},
		Trace: TraceConfig{
			Enabled: false,
			Path:    "tokenweir_trace.db",
		},
	}
}

// Resolve loads configuration from file and environment variables.
func Resolve() (Config, error) {
	cfg := Default()

	path := strings.TrimSpace(os.Getenv("TOKENWEIR_CONFIG"))
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	} else if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("provided TOKENWEIR_CONFIG file %q not found", path)
	}

	if path != "" {
		loaded, err := loadFile(path)
		if err != nil {
			return cfg, err
		}
		cfg = merge(cfg, loaded)
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}

func loadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %q: %w", path, err)
	}

	return cfg, nil
}

func merge(base, override Config) Config {
	result := base

	s := override.Sampling
	if s.NPrev != 0 {
		result.Sampling.NPrev = s.NPrev
	}
	if s.NProbs != 0 {
		result.Sampling.NProbs = s.NProbs
	}
	if s.PenaltyLastN != 0 {
		result.Sampling.PenaltyLastN = s.PenaltyLastN
	}
	if s.PenaltyRepeat != 0 {
		result.Sampling.PenaltyRepeat = s.PenaltyRepeat
	}
	if s.PenaltyFreq != 0 {
		result.Sampling.PenaltyFreq = s.PenaltyFreq
	}
	if s.PenaltyPresent != 0 {
		result.Sampling.PenaltyPresent = s.PenaltyPresent
	}
	if s.PenalizeNewline != nil {
		result.Sampling.PenalizeNewline = s.PenalizeNewline
	}
	if s.Temperature != 0 {
		result.Sampling.Temperature = s.Temperature
	}
	if s.TopK != 0 {
		result.Sampling.TopK = s.TopK
	}
	if s.TopP != 0 {
		result.Sampling.TopP = s.TopP
	}
	if s.MinP != 0 {
		result.Sampling.MinP = s.MinP
	}
	if s.TfsZ != 0 {
		result.Sampling.TfsZ = s.TfsZ
	}
	if s.TypicalP != 0 {
		result.Sampling.TypicalP = s.TypicalP
	}
	if s.SamplerOrder != "" {
		result.Sampling.SamplerOrder = s.SamplerOrder
	}
	if s.Mirostat != 0 {
		result.Sampling.Mirostat = s.Mirostat
	}
	if s.MirostatTau != 0 {
		result.Sampling.MirostatTau = s.MirostatTau
	}
	if s.MirostatEta != 0 {
		result.Sampling.MirostatEta = s.MirostatEta
	}
	if s.GuidanceScale != 0 {
		result.Sampling.GuidanceScale = s.GuidanceScale
	}
	if s.StopMarker != "" {
		result.Sampling.StopMarker = s.StopMarker
	}
	if s.MaxPatternLen != 0 {
		result.Sampling.MaxPatternLen = s.MaxPatternLen
	}
	if s.MinRepetitions != 0 {
		result.Sampling.MinRepetitions = s.MinRepetitions
	}
	if s.Seed != 0 {
		result.Sampling.Seed = s.Seed
	}

	g := override.Grammar
	if g.Text != "" {
		result.Grammar.Text = g.Text
	}
	if g.Path != "" {
		result.Grammar.Path = g.Path
	}
	if g.DynamicTarget != "" {
		result.Grammar.DynamicTarget = g.DynamicTarget
	}
	if g.Command != "" {
		result.Grammar.Command = g.Command
	}
	if len(g.Args) != 0 {
		result.Grammar.Args = append([]string(nil), g.Args...)
	}
	if g.PreludePath != "" {
		result.Grammar.PreludePath = g.PreludePath
	}
	if g.Debug {
		result.Grammar.Debug = true
	}
	if g.Timeout != "" {
		result.Grammar.Timeout = g.Timeout
	}
	if g.LogPath != "" {
		result.Grammar.LogPath = g.LogPath
	}

	if override.Trace.Enabled {
		result.Trace.Enabled = true
	}
	if override.Trace.Path != "" {
		result.Trace.Path = override.Trace.Path
	}

	return result
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("TOKENWEIR_TEMPERATURE")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Sampling.Temperature = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("TOKENWEIR_SEED")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Sampling.Seed = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("TOKENWEIR_GRAMMAR_PATH")); v != "" {
		cfg.Grammar.Path = v
	}
	if v := strings.TrimSpace(os.Getenv("TOKENWEIR_GRAMMAR_TARGET")); v != "" {
		cfg.Grammar.DynamicTarget = v
	}
	if v := strings.TrimSpace(os.Getenv("TOKENWEIR_GRAMMAR_COMMAND")); v != "" {
		cfg.Grammar.Command = v
	}
	if v := strings.TrimSpace(os.Getenv("TOKENWEIR_GRAMMAR_TIMEOUT")); v != "" {
		cfg.Grammar.Timeout = v
	}
	if v := strings.TrimSpace(os.Getenv("TOKENWEIR_TRACE_ENABLED")); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Trace.Enabled = enabled
		}
	}
	if v := strings.TrimSpace(os.Getenv("TOKENWEIR_TRACE_PATH")); v != "" {
		cfg.Trace.Path = v
	}
}

// Params converts the sampling section into pipeline parameters.
func (c Config) Params() sampling.Params {
	p := sampling.Params{
		NPrev:           c.Sampling.NPrev,
		NProbs:          c.Sampling.NProbs,
		PenaltyLastN:    c.Sampling.PenaltyLastN,
		PenaltyRepeat:   float32(c.Sampling.PenaltyRepeat),
		PenaltyFreq:     float32(c.Sampling.PenaltyFreq),
		PenaltyPresent:  float32(c.Sampling.PenaltyPresent),
		PenalizeNewline: true,
		Temp:            float32(c.Sampling.Temperature),
		TopK:            c.Sampling.TopK,
		TopP:            float32(c.Sampling.TopP),
		MinP:            float32(c.Sampling.MinP),
		TfsZ:            float32(c.Sampling.TfsZ),
		TypicalP:        float32(c.Sampling.TypicalP),
		SamplerOrder:    c.Sampling.SamplerOrder,
		Mirostat:        c.Sampling.Mirostat,
		MirostatTau:     float32(c.Sampling.MirostatTau),
		MirostatEta:     float32(c.Sampling.MirostatEta),
		GuidanceScale:   float32(c.Sampling.GuidanceScale),
		StopMarker:      c.Sampling.StopMarker,
		MaxPatternLen:   c.Sampling.MaxPatternLen,
		MinRepetitions:  c.Sampling.MinRepetitions,
		Seed:            c.Sampling.Seed,
	}
	if c.Sampling.PenalizeNewline != nil {
		p.PenalizeNewline = *c.Sampling.PenalizeNewline
	}
	return p
}

// GrammarText resolves the literal grammar, loading from Path if set.
func (c Config) GrammarText() (string, error) {
	if c.Grammar.Path != "" {
		data, err := os.ReadFile(filepath.Clean(c.Grammar.Path))
		if err != nil {
			return "", fmt.Errorf("failed to read grammar %q: %w", c.Grammar.Path, err)
		}
		return string(data), nil
	}
	return c.Grammar.Text, nil
}

// Synthesizer builds the command-backed synthesis collaborator.
func (c Config) Synthesizer() (grammar.Synthesizer, error) {
	timeout, err := c.SynthesisTimeout()
	if err != nil {
		return nil, err
	}
	return &grammar.CommandSynthesizer{
		Command: c.Grammar.Command,
		Args:    append([]string(nil), c.Grammar.Args...),
		Timeout: timeout,
	}, nil
}

// DynamicGrammar returns the dynamic-mode configuration, or nil when the
// session should not regenerate its grammar.
func (c Config) DynamicGrammar() *grammar.DynamicConfig {
	if c.Grammar.DynamicTarget == "" {
		return nil
	}
	return &grammar.DynamicConfig{
		Target:      c.Grammar.DynamicTarget,
		PreludePath: c.Grammar.PreludePath,
		Debug:       c.Grammar.Debug,
		LogPath:     c.Grammar.LogPath,
	}
}

// SynthesisTimeout parses the grammar invocation timeout.
func (c Config) SynthesisTimeout() (time.Duration, error) {
	if c.Grammar.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Grammar.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid grammar timeout %q: %w", c.Grammar.Timeout, err)
	}
	return d, nil
}
