package grammar

import (
	"fmt"
	"hash/maphash"

	"github.com/dekarrin/gramforge/internal/gferrors"
)

// normSeed is a single process-lifetime seed for the structural-equality
// fingerprint used by removeDuplicateRules. It only needs to be stable
// within one run of this binary, not across runs or machines.
var normSeed = maphash.MakeSeed()

// Options controls how far Normalize carries a grammar. The zero value
// runs the full pipeline.
type Options struct {
	// Raw, if true, stops after pass 4 (remove unused rules) and skips
	// unit-rule elimination, mixed-rhs isolation, binary factoring,
	// leading-terminal conversion, and single-start enforcement. Useful
	// for round-tripping a grammar back out for inspection without
	// committing to the canonical form a generator needs.
	Raw bool
}

// Normalize rewrites g in place through the fixed sequence of passes
// described by this project's grammar-canonicalization contract, and
// returns g for convenience. On success every rule satisfies the
// canonical-leading-terminal invariant (unless opts.Raw is set), every
// non-terminal is reachable from the start symbol, and the start symbol
// has exactly one rule and does not appear on any right-hand side.
func Normalize(g *Grammar, opts Options) (*Grammar, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	g.concatenateTerminals()
	g.removeDuplicateRules()

	if err := g.checkCycles(); err != nil {
		return nil, err
	}

	g.removeUnusedRules()

	if opts.Raw {
		return g, nil
	}

	g.removeUnitRules()
	g.removeUnusedRules()
	g.isolateTerminals()
	g.breakLongRHS()
	if err := g.convertToLeadingTerminal(); err != nil {
		return nil, err
	}
	g.removeUnusedRules()
	g.enforceSingleStart()

	return g, nil
}

// concatenateTerminals merges runs of consecutive terminal symbols within
// each alternative into a single terminal. Pure compaction: it changes no
// language the grammar accepts.
func (g *Grammar) concatenateTerminals() {
	for ri, r := range g.rules {
		newAlts := make([]Production, len(r.Alternatives))
		for ai, alt := range r.Alternatives {
			var out Production
			for _, s := range alt {
				if s.Terminal && len(out) > 0 && out[len(out)-1].Terminal {
					out[len(out)-1].Text += s.Text
					continue
				}
				out = append(out, s)
			}
			newAlts[ai] = out
		}
		g.rules[ri].Alternatives = newAlts
	}
}

// fingerprint produces a stable (within-process) hash of a rule's
// structure, used to deduplicate identical alternatives quickly. Two
// equal alternatives always fingerprint equal; unequal alternatives may
// collide, so fingerprint matches are always confirmed with Equal.
func fingerprint(nonterminal string, p Production) uint64 {
	var h maphash.Hash
	h.SetSeed(normSeed)
	h.WriteString(nonterminal)
	h.WriteByte(0)
	for _, s := range p {
		if s.Terminal {
			h.WriteByte('T')
		} else {
			h.WriteByte('N')
		}
		h.WriteString(s.Text)
		h.WriteByte(0)
	}
	return h.Sum64()
}

// removeDuplicateRules deduplicates alternatives within each rule by
// structural equality, using a fingerprint to avoid an O(n^2) comparison
// for rules with many alternatives.
func (g *Grammar) removeDuplicateRules() {
	for ri, r := range g.rules {
		seen := map[uint64][]Production{}
		var out []Production
		for _, alt := range r.Alternatives {
			fp := fingerprint(r.NonTerminal, alt)
			dup := false
			for _, prior := range seen[fp] {
				if prior.Equal(alt) {
					dup = true
					break
				}
			}
			if dup {
				continue
			}
			seen[fp] = append(seen[fp], alt)
			out = append(out, alt)
		}
		g.rules[ri].Alternatives = out
	}
}

// checkCycles rejects grammars where some non-terminal has no finite
// all-terminal derivation. A non-terminal is "terminating" if some
// alternative consists only of terminals and/or already-terminating
// non-terminals; this is computed to a fixed point starting from nothing
// marked. Any non-terminal left unmarked means every one of its
// alternatives depends, directly or transitively, on itself or another
// non-terminal equally stuck -- an infinite-recursion grammar.
func (g *Grammar) checkCycles() error {
	terminating := map[string]bool{}

	for {
		changed := false
		for _, r := range g.rules {
			if terminating[r.NonTerminal] {
				continue
			}
			for _, alt := range r.Alternatives {
				ok := true
				for _, s := range alt {
					if !s.Terminal && !terminating[s.Text] {
						ok = false
						break
					}
				}
				if ok {
					terminating[r.NonTerminal] = true
					changed = true
					break
				}
			}
		}
		if !changed {
			break
		}
	}

	for _, r := range g.rules {
		if !terminating[r.NonTerminal] {
			return gferrors.Cycles()
		}
	}
	return nil
}

// removeUnusedRules keeps only the rules reachable from the start symbol
// via a breadth-first walk of right-hand sides, dropping everything else.
func (g *Grammar) removeUnusedRules() {
	reachable := map[string]bool{g.Start: true}
	queue := []string{g.Start}

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		r, ok := g.Rule(name)
		if !ok {
			continue
		}
		for _, alt := range r.Alternatives {
			for _, s := range alt {
				if !s.Terminal && !reachable[s.Text] {
					reachable[s.Text] = true
					queue = append(queue, s.Text)
				}
			}
		}
	}

	for _, name := range g.NonTerminals() {
		if !reachable[name] {
			g.removeRule(name)
		}
	}
}

// removeUnitRules eliminates rules of the form A -> <B> by replacing each
// such alternative with copies of every alternative currently defined for
// B. Applied to a fixed point: hoisting B's alternatives into A may
// itself introduce new unit alternatives (if B had one), so the whole
// pass repeats until no rule has a unit alternative left. This terminates
// because no new non-terminals are introduced and removeDuplicateRules-
// style deduplication keeps each rule's alternative count bounded.
func (g *Grammar) removeUnitRules() {
	for {
		changed := false
		for _, name := range g.NonTerminals() {
			r, _ := g.Rule(name)
			var unit *Production
			unitIdx := -1
			for i, alt := range r.Alternatives {
				if alt.IsUnit() {
					unit = &r.Alternatives[i]
					unitIdx = i
					break
				}
			}
			if unit == nil {
				continue
			}

			target := (*unit)[0].Text
			if target == name {
				// self-referential unit rule contributes nothing new;
				// just drop it.
				r.Alternatives = append(r.Alternatives[:unitIdx], r.Alternatives[unitIdx+1:]...)
				g.setRule(r)
				changed = true
				continue
			}

			targetRule, ok := g.Rule(target)
			if !ok {
				continue
			}

			replacement := make([]Production, 0, len(r.Alternatives)+len(targetRule.Alternatives))
			replacement = append(replacement, r.Alternatives[:unitIdx]...)
			replacement = append(replacement, r.Alternatives[unitIdx+1:]...)
			for _, alt := range targetRule.Alternatives {
				dup := false
				for _, existing := range replacement {
					if existing.Equal(alt) {
						dup = true
						break
					}
				}
				if !dup {
					replacement = append(replacement, alt)
				}
			}
			r.Alternatives = replacement
			g.setRule(r)
			changed = true
		}
		if !changed {
			break
		}
	}
}

// isolateTerminals finds alternatives longer than one symbol that mix
// terminals with non-terminals, and replaces each terminal in such an
// alternative with a fresh non-terminal whose sole alternative is that
// terminal. One fresh non-terminal is introduced per distinct terminal
// text, and reused across every alternative that needs it, so the
// grammar doesn't grow a new rule per occurrence.
func (g *Grammar) isolateTerminals() {
	freshFor := map[string]string{}
	counter := 0

	freshName := func(text string) string {
		if name, ok := freshFor[text]; ok {
			return name
		}
		var name string
		for {
			name = fmt.Sprintf("TERM_%d", counter)
			counter++
			if !g.HasRule(name) {
				break
			}
		}
		freshFor[text] = name
		g.AddRule(name, Production{Term(text)})
		return name
	}

	for _, name := range g.NonTerminals() {
		r, _ := g.Rule(name)
		mixed := false
		for _, alt := range r.Alternatives {
			if len(alt) <= 1 {
				continue
			}
			hasTerm, hasNonTerm := false, false
			for _, s := range alt {
				if s.Terminal {
					hasTerm = true
				} else {
					hasNonTerm = true
				}
			}
			if hasTerm && hasNonTerm {
				mixed = true
				break
			}
		}
		if !mixed {
			continue
		}

		newAlts := make([]Production, len(r.Alternatives))
		for ai, alt := range r.Alternatives {
			if len(alt) <= 1 {
				newAlts[ai] = alt
				continue
			}
			hasTerm, hasNonTerm := false, false
			for _, s := range alt {
				if s.Terminal {
					hasTerm = true
				} else {
					hasNonTerm = true
				}
			}
			if !(hasTerm && hasNonTerm) {
				newAlts[ai] = alt
				continue
			}
			out := make(Production, len(alt))
			for i, s := range alt {
				if s.Terminal {
					out[i] = NonTerm(freshName(s.Text))
				} else {
					out[i] = s
				}
			}
			newAlts[ai] = out
		}
		r.Alternatives = newAlts
		g.setRule(r)
	}
}

// breakLongRHS factors any all-non-terminal alternative of length > 2
// into binary form: A -> X1 X2 X3 ... Xn becomes A -> X1 A_1,
// A_1 -> X2 A_2, ..., A_(n-2) -> X(n-1) Xn. Each fresh non-terminal's
// rule is inserted immediately after the rule that needed it, built
// right-to-left so each fresh alternative is fully known before its rule
// is inserted.
func (g *Grammar) breakLongRHS() {
	counter := 0
	freshName := func() string {
		var name string
		for {
			name = fmt.Sprintf("SEQ_%d", counter)
			counter++
			if !g.HasRule(name) {
				break
			}
		}
		return name
	}

	for _, name := range g.NonTerminals() {
		r, _ := g.Rule(name)
		newAlts := make([]Production, len(r.Alternatives))
		for ai, alt := range r.Alternatives {
			if len(alt) <= 2 {
				newAlts[ai] = alt
				continue
			}
			allNonTerm := true
			for _, s := range alt {
				if s.Terminal {
					allNonTerm = false
					break
				}
			}
			if !allNonTerm {
				newAlts[ai] = alt
				continue
			}

			// Build the chain of binary rules right-to-left so each
			// fresh non-terminal's single alternative is fully known
			// before its rule is inserted. Each iteration folds the
			// last two symbols of the working array into one fresh
			// non-terminal and substitutes it back into the array, so
			// the next iteration always sees the correct remaining
			// symbols instead of reusing a stale trailing element.
			symbols := append(Production(nil), alt...)
			for len(symbols) > 2 {
				fresh := freshName()
				rhs := Production{symbols[len(symbols)-2], symbols[len(symbols)-1]}
				g.insertRule(Rule{NonTerminal: fresh, Alternatives: []Production{rhs}}, g.ruleIndex(name)+1)
				symbols = append(symbols[:len(symbols)-2], NonTerm(fresh))
			}
			newAlts[ai] = symbols
		}
		r, _ = g.Rule(name)
		r.Alternatives = newAlts
		g.setRule(r)
	}
}

// convertToLeadingTerminal inlines non-terminal-led alternatives until
// every alternative of every rule begins with a terminal (the
// Greibach-like form this pipeline ultimately produces). While some rule
// A has an alternative [<B>, rest...] with B a non-terminal, that
// alternative is replaced by one copy per current alternative of B,
// substituting B's expansion for the leading symbol: iterate to a fixed
// point, never touch a rule's relative position, and dedupe as you go.
// checkCycles (run earlier in the pipeline) has already rejected any
// non-terminal with no all-terminal derivation, so every inlining chain
// either bottoms out at a terminal-led alternative or leads the
// substituted rule back to itself. The latter is left recursion --
// substitution alone can never give such an alternative a terminal lead,
// and dropping it would silently shrink the grammar's language -- so it
// is rejected as a cycle the caller has to break.
func (g *Grammar) convertToLeadingTerminal() error {
	for {
		changed := false
		for _, name := range g.NonTerminals() {
			r, _ := g.Rule(name)
			var out []Production
			ruleChanged := false
			for _, alt := range r.Alternatives {
				if len(alt) == 0 || alt[0].Terminal {
					out = appendUnique(out, alt)
					continue
				}
				lead := alt[0].Text
				if lead == name {
					return gferrors.Wrap(gferrors.KindCycles, nil,
						fmt.Sprintf("non-terminal %q is left-recursive", name))
				}
				leadRule, ok := g.Rule(lead)
				if !ok {
					out = appendUnique(out, alt)
					continue
				}
				ruleChanged = true
				for _, leadAlt := range leadRule.Alternatives {
					merged := make(Production, 0, len(leadAlt)+len(alt)-1)
					merged = append(merged, leadAlt...)
					merged = append(merged, alt[1:]...)
					out = appendUnique(out, merged)
				}
			}
			if ruleChanged {
				r.Alternatives = out
				g.setRule(r)
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return nil
}

func appendUnique(alts []Production, p Production) []Production {
	for _, existing := range alts {
		if existing.Equal(p) {
			return alts
		}
	}
	return append(alts, p)
}

// enforceSingleStart ensures the start symbol owns exactly one rule
// entry of its own and never appears on the right-hand side of any
// alternative. If it does appear on a right-hand side, a fresh start
// non-terminal is introduced carrying copies of the old start's
// alternatives, inlined directly rather than written as a unit rule
// (a fresh-start -> <old-start> alternative would itself violate
// leading-terminal form and require re-running convertToLeadingTerminal,
// which would inline to the same result anyway). A start that simply has
// several alternatives needs no fresh symbol: the alternatives live
// under one rule entry already, and wrapping them would just recreate
// the same branching one level up.
func (g *Grammar) enforceSingleStart() {
	oldStart := g.Start
	r, ok := g.Rule(oldStart)
	if !ok {
		return
	}

	appearsOnRHS := false
	for _, name := range g.NonTerminals() {
		rr, _ := g.Rule(name)
		for _, alt := range rr.Alternatives {
			for _, s := range alt {
				if !s.Terminal && s.Text == oldStart {
					appearsOnRHS = true
				}
			}
		}
	}

	if !appearsOnRHS {
		return
	}

	newStart := oldStart
	for i := 0; ; i++ {
		candidate := fmt.Sprintf("%s_START_%d", oldStart, i)
		if !g.HasRule(candidate) {
			newStart = candidate
			break
		}
	}

	g.insertRule(Rule{NonTerminal: newStart, Alternatives: append([]Production{}, r.Alternatives...)}, 0)
	g.Start = newStart
	g.removeUnusedRules()
}
