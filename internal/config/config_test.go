package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Sampling.Temperature != 0.80 {
		t.Errorf("Temperature = %v, want 0.80", cfg.Sampling.Temperature)
	}
	if cfg.Sampling.SamplerOrder != "kfypmt" {
		t.Errorf("SamplerOrder = %q, want %q", cfg.Sampling.SamplerOrder, "kfypmt")
	}
	if cfg.Sampling.StopMarker != "in\n\n" {
		t.Errorf("StopMarker = %q, want %q", cfg.Sampling.StopMarker, "in\n\n")
	}
	if cfg.Grammar.Command != "node" {
		t.Errorf("Grammar.Command = %q, want %q", cfg.Grammar.Command, "node")
	}
	if cfg.Trace.Enabled {
		t.Error("Trace.Enabled = true, want false")
	}
}

func TestMerge(t *testing.T) {
	base := Default()

	t.Run("override replaces set fields", func(t *testing.T) {
		override := Config{}
		override.Sampling.Temperature = 1.2
		override.Sampling.TopK = 100
		override.Grammar.DynamicTarget = "stmt"

		result := merge(base, override)
		if result.Sampling.Temperature != 1.2 {
			t.Errorf("Temperature = %v, want 1.2", result.Sampling.Temperature)
		}
		if result.Sampling.TopK != 100 {
			t.Errorf("TopK = %d, want 100", result.Sampling.TopK)
		}
		if result.Grammar.DynamicTarget != "stmt" {
			t.Errorf("DynamicTarget = %q, want %q", result.Grammar.DynamicTarget, "stmt")
		}
		// Base fields preserved.
		if result.Sampling.TopP != base.Sampling.TopP {
			t.Errorf("TopP = %v, want %v", result.Sampling.TopP, base.Sampling.TopP)
		}
	})

	t.Run("zero values do not override", func(t *testing.T) {
		result := merge(base, Config{})
		if result.Sampling.Temperature != base.Sampling.Temperature {
			t.Errorf("Temperature = %v, want %v", result.Sampling.Temperature, base.Sampling.Temperature)
		}
		if result.Grammar.Command != "node" {
			t.Errorf("Grammar.Command = %q, want %q", result.Grammar.Command, "node")
		}
	})

	t.Run("penalize_newline false survives the merge", func(t *testing.T) {
		off := false
		override := Config{}
		override.Sampling.PenalizeNewline = &off

		result := merge(base, override)
		if result.Sampling.PenalizeNewline == nil || *result.Sampling.PenalizeNewline {
			t.Error("PenalizeNewline not carried through merge")
		}
		if result.Params().PenalizeNewline {
			t.Error("Params().PenalizeNewline = true, want false")
		}
	})

	t.Run("args replaced wholesale", func(t *testing.T) {
		override := Config{}
		override.Grammar.Args = []string{"lsp.js", "GRAMMAR"}

		result := merge(base, override)
		if len(result.Grammar.Args) != 2 || result.Grammar.Args[1] != "GRAMMAR" {
			t.Errorf("Grammar.Args = %v, want [lsp.js GRAMMAR]", result.Grammar.Args)
		}
	})
}

func TestResolveFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokenweir.yaml")
	content := `
sampling:
  temperature: 0.3
  seed: 99
  mirostat: 2
grammar:
  dynamic_target: statement
  timeout: 30s
trace:
  enabled: true
  path: /tmp/steps.db
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv("TOKENWEIR_CONFIG", path)
	t.Setenv("TOKENWEIR_TEMPERATURE", "")
	t.Setenv("TOKENWEIR_SEED", "")

	cfg, err := Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if cfg.Sampling.Temperature != 0.3 {
		t.Errorf("Temperature = %v, want 0.3", cfg.Sampling.Temperature)
	}
	if cfg.Sampling.Seed != 99 {
		t.Errorf("Seed = %d, want 99", cfg.Sampling.Seed)
	}
	if cfg.Sampling.Mirostat != 2 {
		t.Errorf("Mirostat = %d, want 2", cfg.Sampling.Mirostat)
	}
	if cfg.Grammar.DynamicTarget != "statement" {
		t.Errorf("DynamicTarget = %q, want %q", cfg.Grammar.DynamicTarget, "statement")
	}
	if !cfg.Trace.Enabled || cfg.Trace.Path != "/tmp/steps.db" {
		t.Errorf("Trace = %+v, want enabled at /tmp/steps.db", cfg.Trace)
	}
	// Untouched defaults survive.
	if cfg.Sampling.TopK != 40 {
		t.Errorf("TopK = %d, want 40", cfg.Sampling.TopK)
	}

	t.Run("timeout parses", func(t *testing.T) {
		d, err := cfg.SynthesisTimeout()
		if err != nil {
			t.Fatalf("SynthesisTimeout() error = %v", err)
		}
		if d != 30*time.Second {
			t.Errorf("SynthesisTimeout() = %v, want 30s", d)
		}
	})
}

func TestResolveMissingExplicitConfig(t *testing.T) {
	t.Setenv("TOKENWEIR_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := Resolve(); err == nil {
		t.Error("Resolve() error = nil, want missing-file error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TOKENWEIR_CONFIG", "")
	t.Setenv("TOKENWEIR_TEMPERATURE", "1.5")
	t.Setenv("TOKENWEIR_SEED", "1234")
	t.Setenv("TOKENWEIR_GRAMMAR_TARGET", "expr")
	t.Setenv("TOKENWEIR_TRACE_ENABLED", "true")

	cfg := Default()
	applyEnvOverrides(&cfg)

	if cfg.Sampling.Temperature != 1.5 {
		t.Errorf("Temperature = %v, want 1.5", cfg.Sampling.Temperature)
	}
	if cfg.Sampling.Seed != 1234 {
		t.Errorf("Seed = %d, want 1234", cfg.Sampling.Seed)
	}
	if cfg.Grammar.DynamicTarget != "expr" {
		t.Errorf("DynamicTarget = %q, want %q", cfg.Grammar.DynamicTarget, "expr")
	}
	if !cfg.Trace.Enabled {
		t.Error("Trace.Enabled = false, want true")
	}

	t.Run("malformed values ignored", func(t *testing.T) {
		t.Setenv("TOKENWEIR_TEMPERATURE", "hot")
		cfg := Default()
		applyEnvOverrides(&cfg)
		if cfg.Sampling.Temperature != 0.80 {
			t.Errorf("Temperature = %v, want default 0.80", cfg.Sampling.Temperature)
		}
	})
}

func TestParamsConversion(t *testing.T) {
	cfg := Default()
	cfg.Sampling.Temperature = 0.25
	cfg.Sampling.TopK = 17

	p := cfg.Params()
	if p.Temp != 0.25 {
		t.Errorf("Temp = %v, want 0.25", p.Temp)
	}
	if p.TopK != 17 {
		t.Errorf("TopK = %d, want 17", p.TopK)
	}
	if !p.PenalizeNewline {
		t.Error("PenalizeNewline = false, want default true")
	}
	if p.StopMarker != "in\n\n" {
		t.Errorf("StopMarker = %q, want %q", p.StopMarker, "in\n\n")
	}
}

func TestGrammarText(t *testing.T) {
	t.Run("from literal", func(t *testing.T) {
		cfg := Default()
		cfg.Grammar.Text = "root ::= x"
		got, err := cfg.GrammarText()
		if err != nil {
			t.Fatalf("GrammarText() error = %v", err)
		}
		if got != "root ::= x" {
			t.Errorf("GrammarText() = %q, want %q", got, "root ::= x")
		}
	})

	t.Run("from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "g.gbnf")
		if err := os.WriteFile(path, []byte("root ::= y"), 0o644); err != nil {
			t.Fatalf("writing grammar: %v", err)
		}
		cfg := Default()
		cfg.Grammar.Path = path
		got, err := cfg.GrammarText()
		if err != nil {
			t.Fatalf("GrammarText() error = %v", err)
		}
		if got != "root ::= y" {
			t.Errorf("GrammarText() = %q, want %q", got, "root ::= y")
		}
	})

	t.Run("missing file errors", func(t *testing.T) {
		cfg := Default()
		cfg.Grammar.Path = filepath.Join(t.TempDir(), "absent.gbnf")
		if _, err := cfg.GrammarText(); err == nil {
			t.Error("GrammarText() error = nil, want read failure")
		}
	})
}

func TestDynamicGrammar(t *testing.T) {
	cfg := Default()
	if cfg.DynamicGrammar() != nil {
		t.Error("DynamicGrammar() != nil without a target")
	}

	cfg.Grammar.DynamicTarget = "stmt"
	cfg.Grammar.LogPath = "regen.txt"
	dyn := cfg.DynamicGrammar()
	if dyn == nil {
		t.Fatal("DynamicGrammar() = nil, want config")
	}
	if dyn.Target != "stmt" || dyn.LogPath != "regen.txt" {
		t.Errorf("DynamicGrammar() = %+v, want target and log path carried", dyn)
	}
}
