// Package loader reads grammar source files in either of the two
// supported formats ("peacock", a nested-array-of-tokens JSON object, and
// "gramatron", a whitespace-tokenized rule-string JSON object), merges
// multiple files into one grammar.Grammar, and can serialize a grammar
// back out to peacock-format JSON for inspection.
package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dekarrin/gramforge/internal/gferrors"
	"github.com/dekarrin/gramforge/internal/grammar"
)

// parsedRule is one (non-terminal, alternative) pair extracted from a
// source file, before it is merged into a grammar.Grammar. Keeping
// parsing and merging as separate steps is what lets MergeConflict be
// detected across files instead of within a single Decode call.
type parsedRule struct {
	NonTerminal string
	Alternative grammar.Production
}

func isNonTerminalToken(tok string) (string, bool) {
	if len(tok) > 2 && strings.HasPrefix(tok, "<") && strings.HasSuffix(tok, ">") {
		return tok[1 : len(tok)-1], true
	}
	return "", false
}

func unquoteTerminalToken(tok string) string {
	if len(tok) >= 2 && strings.HasPrefix(tok, "'") && strings.HasSuffix(tok, "'") {
		return tok[1 : len(tok)-1]
	}
	return tok
}

// ParsePeacock parses the peacock grammar format: a JSON object mapping
// "<NAME>" to an array of alternatives, each alternative an array of
// token strings ("<NAME>" for a non-terminal, "'text'" for a terminal).
// C-style comments are stripped from the source before it is parsed as
// JSON.
func ParsePeacock(path string, data []byte) ([]parsedRule, error) {
	stripped := stripJSONComments(data)

	// Walk the object with a token decoder instead of unmarshaling into a
	// map, so rules keep the order they were written in. That order leaks
	// into everything downstream (fresh-non-terminal insertion points,
	// lowered ids, emitted code), and a build must be reproducible from
	// the same source file.
	dec := json.NewDecoder(bytes.NewReader(stripped))
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

		lhs, ok := isNonTerminalToken(key)
		if !ok {
			return nil, gferrors.Parsing(path, fmt.Sprintf("%q is not a valid non-terminal", key))
		}

		var alternatives [][]string
		if err := dec.Decode(&alternatives); err != nil {
			return nil, gferrors.Parsing(path, fmt.Sprintf("right-hand side of %q must be an array of arrays of strings", key))
		}
		if len(alternatives) == 0 {
			return nil, gferrors.Parsing(path, fmt.Sprintf("invalid production rule %q: must not be empty", key))
		}

		for _, tokens := range alternatives {
			if len(tokens) == 0 {
				return nil, gferrors.Parsing(path, fmt.Sprintf("invalid production rule %q: one of its alternatives is empty", key))
			}

			var prod grammar.Production
			for _, tok := range tokens {
				if nonterm, ok := isNonTerminalToken(tok); ok {
					prod = append(prod, grammar.NonTerm(nonterm))
				} else {
					prod = append(prod, grammar.Term(unquoteTerminalToken(tok)))
				}
			}

			rules = append(rules, parsedRule{NonTerminal: lhs, Alternative: prod})
		}
	}

	if _, err := dec.Token(); err != nil {
		return nil, gferrors.Parsing(path, "invalid JSON syntax")
	}

	return rules, nil
}

// stripJSONComments removes C-style "// line" and "/* block */" comments
// that are not inside a JSON string literal, so the peacock format can
// carry human-authored comments the standard library's JSON decoder
// would otherwise reject.
func stripJSONComments(data []byte) []byte {
	var out bytes.Buffer
	inString := false
	escaped := false

	for i := 0; i < len(data); i++ {
		c := data[i]

		if inString {
			out.WriteByte(c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}

		if c == '"' {
			inString = true
			out.WriteByte(c)
			continue
		}

		if c == '/' && i+1 < len(data) && data[i+1] == '/' {
			for i < len(data) && data[i] != '\n' {
				i++
			}
			if i < len(data) {
				out.WriteByte('\n')
			}
			continue
		}

		if c == '/' && i+1 < len(data) && data[i+1] == '*' {
			i += 2
			for i+1 < len(data) && !(data[i] == '*' && data[i+1] == '/') {
				i++
			}
			i++ // lands on the '/'
			continue
		}

		out.WriteByte(c)
	}

	return out.Bytes()
}
