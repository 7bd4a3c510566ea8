package grammar

import (
	"strings"
	"testing"
)

func TestExtractGrammar(t *testing.T) {
	t.Run("returns text after marker", func(t *testing.T) {
		output := "some debug chatter\nLSP: Grammar:\nroot ::= \"x\"\n"
		got := ExtractGrammar(output)
		if got != "root ::= \"x\"\n" {
			t.Errorf("ExtractGrammar() = %q, want %q", got, "root ::= \"x\"\n")
		}
	})

	t.Run("missing marker yields empty", func(t *testing.T) {
		if got := ExtractGrammar("no grammar here"); got != "" {
			t.Errorf("ExtractGrammar() = %q, want empty", got)
		}
	})

	t.Run("leading whitespace trimmed", func(t *testing.T) {
		output := "LSP: Grammar: \n\t root ::= x"
		if got := ExtractGrammar(output); got != "root ::= x" {
			t.Errorf("ExtractGrammar() = %q, want %q", got, "root ::= x")
		}
	})

	t.Run("marker mid-output", func(t *testing.T) {
		output := "preamble LSP: Grammar:rule"
		if got := ExtractGrammar(output); got != "rule" {
			t.Errorf("ExtractGrammar() = %q, want %q", got, "rule")
		}
	})
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"whitespace rule relaxed",
			`whitespace ::= [ \n]+`,
			`whitespace ::= [ \n]*`,
		},
		{
			"quoted whitespace becomes reference",
			`stmt ::= "whitespace"`,
			`stmt ::= whitespace`,
		},
		{
			"underscored rule name hyphenated",
			`new_tokens ::= ident`,
			`new-tokens ::= ident`,
		},
		{
			"bare alternation grouped",
			`new-tokens ::= whitespace | ident more`,
			`new-tokens ::= whitespace (ident more)`,
		},
		{
			"underscore then alternation, both applied",
			`new_tokens ::= whitespace | ident`,
			`new-tokens ::= whitespace (ident)`,
		},
		{
			"clean grammar untouched",
			"root ::= new-tokens\nnew-tokens ::= ident",
			"root ::= new-tokens\nnew-tokens ::= ident",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEscapeQuotes(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`plain`, `plain`},
		{`say "hi"`, `say \"hi\"`},
		{`back\slash`, `back\\slash`},
		{`\"`, `\\\"`},
		{``, ``},
	}
	for _, tt := range tests {
		if got := EscapeQuotes(tt.in); got != tt.want {
			t.Errorf("EscapeQuotes(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeMultilineGrammar(t *testing.T) {
	in := strings.Join([]string{
		`root ::= new_tokens`,
		`new_tokens ::= whitespace | ident ident`,
		`whitespace ::= [ \n]+`,
		`ident ::= [a-z]+`,
	}, "\n")
	want := strings.Join([]string{
		`root ::= new-tokens`,
		`new-tokens ::= whitespace (ident ident)`,
		`whitespace ::= [ \n]*`,
		`ident ::= [a-z]+`,
	}, "\n")

	if got := Normalize(in); got != want {
		t.Errorf("Normalize() =\n%q\nwant\n%q", got, want)
	}
}
