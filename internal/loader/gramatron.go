package loader

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dekarrin/gramforge/internal/gferrors"
	"github.com/dekarrin/gramforge/internal/grammar"
)

func isGramatronWhitespace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	default:
		return false
	}
}

// parseUntil returns the prefix of buf up to (not including) the first
// byte for which delim returns true, or the whole of buf if delim never
// does.
func parseUntil(buf []byte, delim func(byte) bool) []byte {
	cursor := 0
	for cursor < len(buf) && !delim(buf[cursor]) {
		cursor++
	}
	return buf[:cursor]
}

// tokenizeGramatronRule splits one whitespace-tokenized rule string into
// its constituent quoted (terminal) and bare (non-terminal) tokens.
func tokenizeGramatronRule(rule string) (grammar.Production, error) {
	buf := []byte(rule)
	cursor := 0
	var prod grammar.Production

	for cursor < len(buf) {
		switch c := buf[cursor]; {
		case c == '\'' || c == '"':
			quote := c
			cursor++
			content := parseUntil(buf[cursor:], func(b byte) bool { return b == quote })
			cursor += len(content) + 1
			prod = append(prod, grammar.Term(string(content)))
		case isGramatronWhitespace(c):
			cursor++
		default:
			content := parseUntil(buf[cursor:], func(b byte) bool {
				return isGramatronWhitespace(b) || b == '\'' || b == '"'
			})
			cursor += len(content)
			prod = append(prod, grammar.NonTerm(string(content)))
		}
	}

	if len(prod) == 0 {
		return nil, fmt.Errorf("must not contain a string with no tokens")
	}
	return prod, nil
}

// ParseGramatron parses the gramatron grammar format: a JSON object
// mapping a bare non-terminal name to an array of whitespace-tokenized
// rule strings, where single- or double-quoted tokens are terminals and
// bare tokens are non-terminals.
func ParseGramatron(path string, data []byte) ([]parsedRule, error) {
	// Token-decoder walk for the same reason ParsePeacock uses one: rule
	// order in the source file must survive into the parsed rule list so
	// builds are reproducible.
	dec := json.NewDecoder(bytes.NewReader(data))
	open, err := dec.Token()
	if err != nil {
		return nil, gferrors.Parsing(path, "invalid JSON syntax")
	}
	if d, ok := open.(json.Delim); !ok || d != '{' {
		return nil, gferrors.Parsing(path, "top-level value must be a JSON object")
	}

	var rules []parsedRule

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, gferrors.Parsing(path, "invalid JSON syntax")
		}
		key := keyTok.(string)

		var alternatives []string
		if err := dec.Decode(&alternatives); err != nil {
			return nil, gferrors.Parsing(path, fmt.Sprintf("right-hand side of %q must be an array of strings", key))
		}
		if len(alternatives) == 0 {
			return nil, gferrors.Parsing(path, fmt.Sprintf("invalid production rule %q: must not be empty", key))
		}

		for _, rule := range alternatives {
			prod, err := tokenizeGramatronRule(rule)
			if err != nil {
				return nil, gferrors.Parsing(path, fmt.Sprintf("right-hand side of %q %s", key, err.Error()))
			}
			rules = append(rules, parsedRule{NonTerminal: key, Alternative: prod})
		}
	}

	if _, err := dec.Token(); err != nil {
		return nil, gferrors.Parsing(path, "invalid JSON syntax")
	}

	return rules, nil
}
