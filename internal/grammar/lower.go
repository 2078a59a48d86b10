package grammar

import (
	"encoding/binary"
	"fmt"
)

// LLSymbol is a lowered Symbol: either a terminal id or a non-terminal
// id, distinguished by Terminal. Grounded on the low-level symbol/rule
// representation this pipeline's code generator and interpreter both
// walk -- dense integers instead of names, so hot paths never compare
// strings.
type LLSymbol struct {
	Terminal bool
	ID       int
}

// LoweredGrammar is a Grammar after dense-integer renumbering: terminals
// and non-terminals are each assigned a small integer id, and rules are
// grouped by non-terminal id into an ordered list of alternatives. The
// order of Rules[n] matches the order of Grammar.Rule(name).Alternatives
// exactly -- that order is the alternative tag stored in a derivation
// sequence, so lowering must never reorder it.
type LoweredGrammar struct {
	// Terminals holds the raw bytes for terminal id i at Terminals[i].
	Terminals [][]byte

	// NonTerminalNames holds the source name for non-terminal id i, kept
	// only for diagnostics and grammar dumps; code generation and
	// interpretation never need it.
	NonTerminalNames []string

	// Rules maps a non-terminal id to its ordered list of alternatives,
	// each alternative an ordered list of LLSymbols.
	Rules map[int][][]LLSymbol

	// Entrypoint is the non-terminal id generation starts from.
	Entrypoint int
}

// Lower assigns dense ids to g's terminals and non-terminals and groups
// its rules accordingly. g must already be in canonical form (the
// output of Normalize with default Options); Lower does not itself
// re-check the leading-terminal or single-start invariants.
func Lower(g *Grammar) LoweredGrammar {
	lg := LoweredGrammar{
		Rules: map[int][][]LLSymbol{},
	}

	termID := map[string]int{}
	for _, t := range g.Terminals() {
		termID[t] = len(lg.Terminals)
		lg.Terminals = append(lg.Terminals, []byte(t))
	}

	nonTermID := map[string]int{}
	names := g.NonTerminals()
	// Put the start symbol at id 0 when possible without disturbing the
	// rest of the order, matching the convention (start need not be 0,
	// but placing it there keeps generated code's entrypoint obvious to
	// a reader scanning the non-terminal table).
	ordered := make([]string, 0, len(names))
	ordered = append(ordered, g.Start)
	for _, n := range names {
		if n != g.Start {
			ordered = append(ordered, n)
		}
	}
	for i, n := range ordered {
		nonTermID[n] = i
		lg.NonTerminalNames = append(lg.NonTerminalNames, n)
	}
	lg.Entrypoint = nonTermID[g.Start]

	for _, name := range ordered {
		r, _ := g.Rule(name)
		id := nonTermID[name]
		alts := make([][]LLSymbol, len(r.Alternatives))
		for ai, alt := range r.Alternatives {
			out := make([]LLSymbol, len(alt))
			for si, s := range alt {
				if s.Terminal {
					out[si] = LLSymbol{Terminal: true, ID: termID[s.Text]}
				} else {
					out[si] = LLSymbol{Terminal: false, ID: nonTermID[s.Text]}
				}
			}
			alts[ai] = out
		}
		lg.Rules[id] = alts
	}

	return lg
}

// MarshalBinary renders lg into a compact length-prefixed binary form, so
// it can be persisted (e.g. by the build service, via rezi.EncBinary) and
// later reloaded without re-running the normalizer and lowering pass
// that produced it. Non-terminal ids are walked in the dense 0..N-1
// range NonTerminalNames defines, which is the same order Lower produces
// -- Rules is therefore reconstructed deterministically even though Go
// maps have no iteration order of their own.
func (lg LoweredGrammar) MarshalBinary() ([]byte, error) {
	var buf []byte

	buf = appendUint64(buf, uint64(lg.Entrypoint))

	buf = appendUint64(buf, uint64(len(lg.Terminals)))
	for _, t := range lg.Terminals {
		buf = appendUint64(buf, uint64(len(t)))
		buf = append(buf, t...)
	}

	buf = appendUint64(buf, uint64(len(lg.NonTerminalNames)))
	for _, n := range lg.NonTerminalNames {
		buf = appendUint64(buf, uint64(len(n)))
		buf = append(buf, n...)
	}

	for id := range lg.NonTerminalNames {
		alts := lg.Rules[id]
		buf = appendUint64(buf, uint64(len(alts)))
		for _, alt := range alts {
			buf = appendUint64(buf, uint64(len(alt)))
			for _, sym := range alt {
				if sym.Terminal {
					buf = append(buf, 1)
				} else {
					buf = append(buf, 0)
				}
				buf = appendUint64(buf, uint64(sym.ID))
			}
		}
	}

	return buf, nil
}

// UnmarshalBinary reverses MarshalBinary, replacing lg's contents.
func (lg *LoweredGrammar) UnmarshalBinary(data []byte) error {
	r := binReader{data: data}

	entry, err := r.uint64()
	if err != nil {
		return fmt.Errorf("lowered grammar: entrypoint: %w", err)
	}

	termCount, err := r.uint64()
	if err != nil {
		return fmt.Errorf("lowered grammar: terminal count: %w", err)
	}
	terminals := make([][]byte, termCount)
	for i := range terminals {
		b, err := r.bytes()
		if err != nil {
			return fmt.Errorf("lowered grammar: terminal %d: %w", i, err)
		}
		terminals[i] = b
	}

	ntCount, err := r.uint64()
	if err != nil {
		return fmt.Errorf("lowered grammar: non-terminal count: %w", err)
	}
	names := make([]string, ntCount)
	for i := range names {
		b, err := r.bytes()
		if err != nil {
			return fmt.Errorf("lowered grammar: non-terminal name %d: %w", i, err)
		}
		names[i] = string(b)
	}

	rules := make(map[int][][]LLSymbol, ntCount)
	for id := 0; id < int(ntCount); id++ {
		altCount, err := r.uint64()
		if err != nil {
			return fmt.Errorf("lowered grammar: alternative count for non-terminal %d: %w", id, err)
		}
		alts := make([][]LLSymbol, altCount)
		for ai := range alts {
			symCount, err := r.uint64()
			if err != nil {
				return fmt.Errorf("lowered grammar: symbol count for non-terminal %d alt %d: %w", id, ai, err)
			}
			alt := make([]LLSymbol, symCount)
			for si := range alt {
				isTerm, err := r.byte()
				if err != nil {
					return fmt.Errorf("lowered grammar: symbol tag for non-terminal %d alt %d sym %d: %w", id, ai, si, err)
				}
				symID, err := r.uint64()
				if err != nil {
					return fmt.Errorf("lowered grammar: symbol id for non-terminal %d alt %d sym %d: %w", id, ai, si, err)
				}
				alt[si] = LLSymbol{Terminal: isTerm == 1, ID: int(symID)}
			}
			alts[ai] = alt
		}
		rules[id] = alts
	}

	lg.Entrypoint = int(entry)
	lg.Terminals = terminals
	lg.NonTerminalNames = names
	lg.Rules = rules
	return nil
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

// binReader is a minimal cursor over a length-prefixed binary blob: the
// whole encoding is a flat list of uint64-prefixed fields, so a cursor
// with bounds checks is all decoding needs.
type binReader struct {
	data []byte
	pos  int
}

func (r *binReader) uint64() (uint64, error) {
	if len(r.data)-r.pos < 8 {
		return 0, fmt.Errorf("unexpected end of data")
	}
	v := binary.BigEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *binReader) byte() (byte, error) {
	if len(r.data)-r.pos < 1 {
		return 0, fmt.Errorf("unexpected end of data")
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *binReader) bytes() ([]byte, error) {
	n, err := r.uint64()
	if err != nil {
		return nil, err
	}
	if uint64(len(r.data)-r.pos) < n {
		return nil, fmt.Errorf("unexpected end of data")
	}
	b := make([]byte, n)
	copy(b, r.data[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return b, nil
}
