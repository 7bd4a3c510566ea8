package grammar

import (
	"regexp"
	"strings"
)

// Marker is the literal line the synthesis collaborator prints immediately
// before the grammar segment of its output.
const Marker = "LSP: Grammar:"

// ExtractGrammar returns the substring of a synthesizer response following
// the grammar marker, trimmed of leading whitespace. It returns "" when the
// marker is absent, which callers treat as "no usable grammar".
func ExtractGrammar(output string) string {
	pos := strings.Index(output, Marker)
	if pos < 0 {
		return ""
	}
	return strings.TrimLeft(output[pos+len(Marker):], " \n\r\t\f\v")
}

// Synthesized grammars arrive with a handful of systematic quirks. Each
// fixup is applied in order; later rewrites depend on earlier ones (the
// alternation rewrite only matches the already-hyphenated rule name).
var fixups = []struct {
	re   *regexp.Regexp
	repl string
}{
	// The synthesized whitespace rule demands one-or-more newlines, which
	// over-constrains token boundaries. Relax it to zero-or-more.
	{regexp.MustCompile(`whitespace ::= \[ \\n\]\+`), `whitespace ::= [ \n]*`},
	// Rule bodies quoting the literal string "whitespace" should reference
	// the whitespace rule instead.
	{regexp.MustCompile(`::= "whitespace"`), `::= whitespace`},
	// The compiler dialect uses hyphenated nonterminal names.
	{regexp.MustCompile(`new_tokens`), `new-tokens`},
	// A bare two-branch alternation with whitespace never lets the second
	// branch repeat; rewrite it as whitespace followed by a grouped body.
	{regexp.MustCompile(`new-tokens ::= whitespace \| (.+)`), `new-tokens ::= whitespace (${1})`},
}

// Normalize applies the post-extraction fixups to synthesized grammar text.
func Normalize(text string) string {
	for _, f := range fixups {
		text = f.re.ReplaceAllString(text, f.repl)
	}
	return text
}

// EscapeQuotes backslash-escapes backslash and double-quote characters so a
// token's text can be embedded in a synthesis request argument.
func EscapeQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, c := range []byte(s) {
		switch c {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
