// Package grammar holds the in-memory representation of a context-free
// grammar, the normalization pipeline that rewrites an arbitrary grammar
// into canonical leading-terminal form, and the lowering step that turns
// a canonical grammar into dense integer-indexed tables ready for code
// generation or interpretation.
package grammar

import (
	"fmt"
	"strings"

	"github.com/dekarrin/gramforge/internal/gferrors"
)

// Symbol is a single element of a production's right-hand side: either a
// Terminal (concrete bytes) or a NonTerminal (a name resolved by another
// rule).
type Symbol struct {
	Terminal bool
	Text     string // terminal bytes, or non-terminal name
}

// Term returns a terminal Symbol holding the given bytes.
func Term(text string) Symbol {
	return Symbol{Terminal: true, Text: text}
}

// NonTerm returns a non-terminal Symbol naming the given non-terminal.
func NonTerm(name string) Symbol {
	return Symbol{Terminal: false, Text: name}
}

func (s Symbol) String() string {
	if s.Terminal {
		return "'" + s.Text + "'"
	}
	return "<" + s.Text + ">"
}

// Production is the right-hand side of a rule: an ordered, non-empty
// sequence of Symbols. Epsilon (empty) productions are never valid.
type Production []Symbol

// Copy returns an independent copy of p.
func (p Production) Copy() Production {
	cp := make(Production, len(p))
	copy(cp, p)
	return cp
}

// Equal reports whether p and o contain the same symbols in the same
// order.
func (p Production) Equal(o Production) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

func (p Production) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.String()
	}
	return strings.Join(parts, " ")
}

// IsUnit reports whether p is a unit production: a single non-terminal
// symbol and nothing else.
func (p Production) IsUnit() bool {
	return len(p) == 1 && !p[0].Terminal
}

// LeadsWithTerminal reports whether p's first symbol is a terminal and
// every symbol after it is a non-terminal -- the canonical shape every
// rule must have once normalization completes.
func (p Production) LeadsWithTerminal() bool {
	if len(p) == 0 || !p[0].Terminal {
		return false
	}
	for _, s := range p[1:] {
		if s.Terminal {
			return false
		}
	}
	return true
}

// Rule is every alternative right-hand side defined for one non-terminal.
// Alternatives are kept in an ordered slice, never a map or set, because
// their order is semantically significant: it becomes the alternative tag
// stored in a derivation sequence (see internal/sequence).
type Rule struct {
	NonTerminal  string
	Alternatives []Production
}

// Copy returns an independent copy of r.
func (r Rule) Copy() Rule {
	alts := make([]Production, len(r.Alternatives))
	for i, a := range r.Alternatives {
		alts[i] = a.Copy()
	}
	return Rule{NonTerminal: r.NonTerminal, Alternatives: alts}
}

func (r Rule) String() string {
	alts := make([]string, len(r.Alternatives))
	for i, a := range r.Alternatives {
		alts[i] = a.String()
	}
	return fmt.Sprintf("<%s> = %s", r.NonTerminal, strings.Join(alts, " | "))
}

// HasAlternative reports whether p is already one of r's alternatives.
func (r Rule) HasAlternative(p Production) bool {
	for _, a := range r.Alternatives {
		if a.Equal(p) {
			return true
		}
	}
	return false
}

// Grammar is an ordered collection of rules plus a designated start
// non-terminal. Rules are stored as an ordered slice with a name-to-index
// map alongside it, so that rewrite passes never have to worry about
// Go's unspecified map iteration order disturbing rule or alternative
// order.
type Grammar struct {
	rules   []Rule
	indexOf map[string]int
	Start   string
}

// New returns an empty Grammar with the given start symbol name. Rules
// are added afterward with AddRule.
func New(start string) *Grammar {
	return &Grammar{
		indexOf: map[string]int{},
		Start:   start,
	}
}

// Copy returns a deep copy of g.
func (g *Grammar) Copy() *Grammar {
	cp := New(g.Start)
	for _, r := range g.rules {
		cp.rules = append(cp.rules, r.Copy())
	}
	for k, v := range g.indexOf {
		cp.indexOf[k] = v
	}
	return cp
}

// NonTerminals returns the names of every non-terminal with a rule,
// in the order those rules were first added.
func (g *Grammar) NonTerminals() []string {
	names := make([]string, len(g.rules))
	for i, r := range g.rules {
		names[i] = r.NonTerminal
	}
	return names
}

// Rule returns the rule for the named non-terminal and whether it
// exists.
func (g *Grammar) Rule(name string) (Rule, bool) {
	idx, ok := g.indexOf[name]
	if !ok {
		return Rule{}, false
	}
	return g.rules[idx], true
}

// HasRule reports whether name has a rule defined for it.
func (g *Grammar) HasRule(name string) bool {
	_, ok := g.indexOf[name]
	return ok
}

// AddRule adds production as a new alternative for nonterminal, creating
// the rule if this is the first alternative seen for it. Duplicate
// alternatives (by structural equality) are not added twice.
func (g *Grammar) AddRule(nonterminal string, production Production) {
	if len(production) == 0 {
		panic("grammar: production must not be empty (epsilon is not supported)")
	}

	idx, ok := g.indexOf[nonterminal]
	if !ok {
		g.indexOf[nonterminal] = len(g.rules)
		g.rules = append(g.rules, Rule{NonTerminal: nonterminal, Alternatives: []Production{production.Copy()}})
		return
	}
	if g.rules[idx].HasAlternative(production) {
		return
	}
	g.rules[idx].Alternatives = append(g.rules[idx].Alternatives, production.Copy())
}

// insertRule inserts r as a whole new rule at position idx, shifting
// everything after it down by one and keeping indexOf consistent. Used
// by rewrite passes that must introduce a fresh non-terminal's rule right
// next to the rule that produced it, rather than merely appending, so
// that grammar dumps stay readable in the order a human wrote the
// original.
func (g *Grammar) insertRule(r Rule, idx int) {
	g.rules = append(g.rules, Rule{})
	copy(g.rules[idx+1:], g.rules[idx:])
	g.rules[idx] = r
	g.indexOf = make(map[string]int, len(g.rules))
	for i, rr := range g.rules {
		g.indexOf[rr.NonTerminal] = i
	}
}

// removeRule deletes the rule for name, if any, reindexing everything
// after it.
func (g *Grammar) removeRule(name string) {
	idx, ok := g.indexOf[name]
	if !ok {
		return
	}
	g.rules = append(g.rules[:idx], g.rules[idx+1:]...)
	delete(g.indexOf, name)
	for n, i := range g.indexOf {
		if i > idx {
			g.indexOf[n] = i - 1
		}
	}
}

// setRule replaces the rule for name wholesale, keeping its existing
// position. name must already have a rule.
func (g *Grammar) setRule(r Rule) {
	idx, ok := g.indexOf[r.NonTerminal]
	if !ok {
		panic("grammar: setRule on non-terminal with no existing rule: " + r.NonTerminal)
	}
	g.rules[idx] = r
}

// ruleIndex returns the position of name's rule, or -1.
func (g *Grammar) ruleIndex(name string) int {
	idx, ok := g.indexOf[name]
	if !ok {
		return -1
	}
	return idx
}

// Terminals returns the distinct terminal byte-strings referenced
// anywhere in the grammar, in first-seen order.
func (g *Grammar) Terminals() []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range g.rules {
		for _, alt := range r.Alternatives {
			for _, s := range alt {
				if s.Terminal && !seen[s.Text] {
					seen[s.Text] = true
					out = append(out, s.Text)
				}
			}
		}
	}
	return out
}

func (g *Grammar) String() string {
	var sb strings.Builder
	for _, r := range g.rules {
		sb.WriteString(r.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Validate checks the structural invariants a Grammar must hold before it
// can be normalized: every non-terminal referenced on a right-hand side
// must have a rule, and the start symbol must have a rule. Unlike the
// normalizer, Validate does not require canonical form -- it is meant to
// run immediately after loading, before any rewrite pass, to produce a
// clear MissingNonTerminal/MissingEntrypoint error instead of a confusing
// failure deep in a later pass.
func (g *Grammar) Validate() error {
	if !g.HasRule(g.Start) {
		return gferrors.MissingEntrypoint(g.Start)
	}
	for _, r := range g.rules {
		for _, alt := range r.Alternatives {
			for _, s := range alt {
				if !s.Terminal && !g.HasRule(s.Text) {
					return gferrors.MissingNonTerminal(s.Text)
				}
			}
		}
	}
	return nil
}
