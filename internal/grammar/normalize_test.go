package grammar

import (
	"testing"

	"github.com/dekarrin/gramforge/internal/gferrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertCanonical checks the canonical-form invariants: every rule's
// alternatives start with a terminal followed only by non-terminals, the
// start symbol has exactly one rule entry, and the start symbol does not
// appear on any right-hand side. The start's single rule entry may carry
// several alternatives -- leading-terminal form forces the old start's
// branches to be inlined into the fresh start, so a branching grammar's
// start branches too.
func assertCanonical(t *testing.T, g *Grammar) {
	t.Helper()
	assert := assert.New(t)

	for _, name := range g.NonTerminals() {
		r, _ := g.Rule(name)
		for _, alt := range r.Alternatives {
			assert.Truef(alt.LeadsWithTerminal(), "rule %s alternative %s is not in leading-terminal form", name, alt)
		}
	}

	startRule, ok := g.Rule(g.Start)
	require.True(t, ok)
	assert.NotEmpty(startRule.Alternatives)

	for _, name := range g.NonTerminals() {
		r, _ := g.Rule(name)
		for _, alt := range r.Alternatives {
			for _, s := range alt {
				if !s.Terminal {
					assert.NotEqual(g.Start, s.Text, "start symbol must not appear on any rhs")
				}
			}
		}
	}
}

func Test_Normalize_S1_SmallestGrammar(t *testing.T) {
	assert := assert.New(t)

	g := New("S")
	g.AddRule("S", Production{Term("a")})

	out, err := Normalize(g, Options{})
	assert.NoError(err)
	assertCanonical(t, out)

	r, _ := out.Rule(out.Start)
	assert.Len(r.Alternatives, 1)
	assert.Equal(Production{Term("a")}, r.Alternatives[0])
}

func Test_Normalize_S2_Branching(t *testing.T) {
	assert := assert.New(t)

	g := New("S")
	g.AddRule("S", Production{Term("x"), NonTerm("A")})
	g.AddRule("A", Production{Term("y")})
	g.AddRule("A", Production{Term("z")})

	out, err := Normalize(g, Options{})
	assert.NoError(err)
	assertCanonical(t, out)

	ar, ok := out.Rule("A")
	assert.True(ok)
	assert.Len(ar.Alternatives, 2)
}

func Test_Normalize_S3_ConcatenatesAdjacentTerminals(t *testing.T) {
	assert := assert.New(t)

	g := New("S")
	g.AddRule("S", Production{Term("ab"), Term("cd")})

	out, err := Normalize(g, Options{})
	assert.NoError(err)
	assertCanonical(t, out)

	r, _ := out.Rule(out.Start)
	assert.Len(r.Alternatives, 1)
	assert.Equal(Production{Term("abcd")}, r.Alternatives[0])
}

func Test_Normalize_S4_RejectsCycles(t *testing.T) {
	assert := assert.New(t)

	g := New("S")
	g.AddRule("S", Production{NonTerm("A")})
	g.AddRule("A", Production{NonTerm("B")})
	g.AddRule("B", Production{NonTerm("A")})

	_, err := Normalize(g, Options{})
	assert.Error(err)
	assert.Equal(gferrors.KindCycles, gferrors.KindOf(err))
}

func Test_Normalize_S5_IsolatesMixedRHS(t *testing.T) {
	assert := assert.New(t)

	g := New("S")
	g.AddRule("S", Production{Term("x"), NonTerm("A"), Term("y")})
	g.AddRule("A", Production{Term("z")})

	out, err := Normalize(g, Options{})
	assert.NoError(err)
	assertCanonical(t, out)
}

// deriveString expands a canonical, non-branching rule chain rooted at
// start into the single terminal string it produces. It assumes every rule
// reached has exactly one alternative, which holds for the grammars built
// by the Test_Normalize_S5b/S5c cases below.
func deriveString(t *testing.T, g *Grammar, start string) string {
	t.Helper()
	r, ok := g.Rule(start)
	require.True(t, ok, "no rule for %s", start)
	require.Len(t, r.Alternatives, 1, "rule %s is not a single-alternative chain link", start)

	out := ""
	for _, s := range r.Alternatives[0] {
		if s.Terminal {
			out += s.Text
		} else {
			out += deriveString(t, g, s.Text)
		}
	}
	return out
}

func Test_Normalize_S5b_BinarizesFourSymbolRHS(t *testing.T) {
	assert := assert.New(t)

	g := New("S")
	g.AddRule("S", Production{NonTerm("A"), NonTerm("B"), NonTerm("C"), NonTerm("D")})
	g.AddRule("A", Production{Term("w")})
	g.AddRule("B", Production{Term("x")})
	g.AddRule("C", Production{Term("y")})
	g.AddRule("D", Production{Term("z")})

	out, err := Normalize(g, Options{})
	assert.NoError(err)
	assertCanonical(t, out)

	assert.Equal("wxyz", deriveString(t, out, out.Start))
}

func Test_Normalize_S5c_BinarizesFiveSymbolRHS(t *testing.T) {
	assert := assert.New(t)

	g := New("S")
	g.AddRule("S", Production{NonTerm("A"), NonTerm("B"), NonTerm("C"), NonTerm("D"), NonTerm("E")})
	g.AddRule("A", Production{Term("v")})
	g.AddRule("B", Production{Term("w")})
	g.AddRule("C", Production{Term("x")})
	g.AddRule("D", Production{Term("y")})
	g.AddRule("E", Production{Term("z")})

	out, err := Normalize(g, Options{})
	assert.NoError(err)
	assertCanonical(t, out)

	assert.Equal("vwxyz", deriveString(t, out, out.Start))
}

func Test_Normalize_S6_SelfRecursiveButTerminating(t *testing.T) {
	assert := assert.New(t)

	g := New("S")
	g.AddRule("S", Production{Term("x"), NonTerm("S")})
	g.AddRule("S", Production{Term("y")})

	out, err := Normalize(g, Options{})
	assert.NoError(err)
	assertCanonical(t, out)
}

func Test_Normalize_RejectsLeftRecursion(t *testing.T) {
	assert := assert.New(t)

	// terminating (every run of "x"s can end in "y"), but left-recursive:
	// no amount of substitution gives <A>'s first alternative a leading
	// terminal, so leading-terminal conversion must reject it rather
	// than quietly dropping the recursive alternative.
	g := New("S")
	g.AddRule("S", Production{Term("q"), NonTerm("A")})
	g.AddRule("A", Production{NonTerm("A"), Term("x")})
	g.AddRule("A", Production{Term("y")})

	_, err := Normalize(g, Options{})
	assert.Error(err)
	assert.Equal(gferrors.KindCycles, gferrors.KindOf(err))
}

func Test_Normalize_RejectsIndirectLeftRecursion(t *testing.T) {
	assert := assert.New(t)

	g := New("S")
	g.AddRule("S", Production{Term("q"), NonTerm("A")})
	g.AddRule("A", Production{NonTerm("B"), Term("x")})
	g.AddRule("A", Production{Term("y")})
	g.AddRule("B", Production{NonTerm("A"), Term("z")})
	g.AddRule("B", Production{Term("w")})

	_, err := Normalize(g, Options{})
	assert.Error(err)
	assert.Equal(gferrors.KindCycles, gferrors.KindOf(err))
}

func Test_Normalize_MissingNonTerminal(t *testing.T) {
	assert := assert.New(t)

	g := New("S")
	g.AddRule("S", Production{Term("x"), NonTerm("Nope")})

	_, err := Normalize(g, Options{})
	assert.Error(err)
	assert.Equal(gferrors.KindMissingNonTerminal, gferrors.KindOf(err))
}

func Test_Normalize_MissingEntrypoint(t *testing.T) {
	assert := assert.New(t)

	g := New("S")
	g.AddRule("A", Production{Term("x")})

	_, err := Normalize(g, Options{})
	assert.Error(err)
	assert.Equal(gferrors.KindMissingEntrypoint, gferrors.KindOf(err))
}

func Test_Normalize_RawModeSkipsCanonicalization(t *testing.T) {
	assert := assert.New(t)

	g := New("S")
	g.AddRule("S", Production{NonTerm("A")})
	g.AddRule("A", Production{Term("x")})

	out, err := Normalize(g, Options{Raw: true})
	assert.NoError(err)

	// raw mode stops before unit-rule elimination, so the unit rule
	// S -> <A> must still be present.
	r, ok := out.Rule("S")
	assert.True(ok)
	assert.Len(r.Alternatives, 1)
	assert.True(r.Alternatives[0].IsUnit())
}

func Test_Normalize_Idempotent(t *testing.T) {
	assert := assert.New(t)

	g := New("S")
	g.AddRule("S", Production{Term("x"), NonTerm("A")})
	g.AddRule("A", Production{Term("y")})
	g.AddRule("A", Production{Term("z"), NonTerm("A")})

	once, err := Normalize(g, Options{})
	assert.NoError(err)

	twice, err := Normalize(once.Copy(), Options{})
	assert.NoError(err)

	assert.Equal(once.String(), twice.String())
}

func Test_Normalize_RemovesUnreachableRules(t *testing.T) {
	assert := assert.New(t)

	g := New("S")
	g.AddRule("S", Production{Term("x")})
	g.AddRule("Unused", Production{Term("y")})

	out, err := Normalize(g, Options{})
	assert.NoError(err)
	assert.False(out.HasRule("Unused"))
}

func Test_Lower_PreservesAlternativeOrder(t *testing.T) {
	assert := assert.New(t)

	g := New("S")
	g.AddRule("S", Production{Term("x"), NonTerm("A")})
	g.AddRule("A", Production{Term("a")})
	g.AddRule("A", Production{Term("b")})
	g.AddRule("A", Production{Term("c")})

	out, err := Normalize(g, Options{})
	assert.NoError(err)

	lg := Lower(out)
	aID := -1
	for i, n := range lg.NonTerminalNames {
		if n == "A" {
			aID = i
		}
	}
	assert.GreaterOrEqual(aID, 0)
	assert.Len(lg.Rules[aID], 3)

	// alternative order from the source grammar must be preserved
	srcRule, _ := out.Rule("A")
	for i, alt := range srcRule.Alternatives {
		lowered := lg.Rules[aID][i]
		assert.Len(lowered, 1)
		assert.True(lowered[0].Terminal)
		assert.Equal(alt[0].Text, string(lg.Terminals[lowered[0].ID]))
	}
}
