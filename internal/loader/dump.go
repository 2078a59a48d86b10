package loader

import (
	"encoding/json"

	"github.com/dekarrin/gramforge/internal/grammar"
)

// terminalToken renders a terminal's text back into peacock-format
// quoted-token form. The quotes only delimit the token -- the parser
// strips the outer pair and keeps everything between verbatim -- so no
// escaping is needed for the round trip, even for text containing a
// quote of its own.
func terminalToken(text string) string {
	return "'" + text + "'"
}

// Dump renders g back out as peacock-format JSON: a map from "<NAME>" to
// an array of alternatives, each alternative an array of "<NAME>" or
// 'text' tokens, in the same alternative order the grammar holds
// internally. This is useful for inspecting the grammar after any given
// normalization pass (or none at all, with grammar.Options{Raw: true})
// without needing a debugger.
func Dump(g *grammar.Grammar) ([]byte, error) {
	out := make(map[string][][]string)

	for _, name := range g.NonTerminals() {
		r, _ := g.Rule(name)
		alts := make([][]string, len(r.Alternatives))
		for ai, alt := range r.Alternatives {
			tokens := make([]string, len(alt))
			for si, s := range alt {
				if s.Terminal {
					tokens[si] = terminalToken(s.Text)
				} else {
					tokens[si] = "<" + s.Text + ">"
				}
			}
			alts[ai] = tokens
		}
		out["<"+name+">"] = alts
	}

	return json.MarshalIndent(out, "", "  ")
}
