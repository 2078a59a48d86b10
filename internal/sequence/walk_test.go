package sequence

import (
	"testing"

	"github.com/dekarrin/gramforge/internal/grammar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lowerGrammar(t *testing.T, build func(g *grammar.Grammar), start string) grammar.LoweredGrammar {
	t.Helper()
	g := grammar.New(start)
	build(g)
	out, err := grammar.Normalize(g, grammar.Options{})
	require.NoError(t, err)
	return grammar.Lower(out)
}

func Test_Walker_S1_SmallestGrammar(t *testing.T) {
	assert := assert.New(t)

	lg := lowerGrammar(t, func(g *grammar.Grammar) {
		g.AddRule("S", grammar.Production{grammar.Term("a")})
	}, "S")
	w := NewWalker(lg)

	seq := w.Mutate(nil, 16)
	require.Len(t, seq, 1)
	assert.Equal(uint64(0), seq[0])

	assert.Equal([]byte("a"), w.Serialize(seq, 16))

	unparsed, ok := w.Unparse([]byte("a"), 16)
	assert.True(ok)
	assert.Equal(Sequence{0}, unparsed)
}

func Test_Walker_S2_BranchingIsReproducibleWithSameSeed(t *testing.T) {
	assert := assert.New(t)

	lg := lowerGrammar(t, func(g *grammar.Grammar) {
		g.AddRule("S", grammar.Production{grammar.Term("x"), grammar.NonTerm("A")})
		g.AddRule("A", grammar.Production{grammar.Term("y")})
		g.AddRule("A", grammar.Production{grammar.Term("z")})
	}, "S")

	w1 := NewWalker(lg)
	w1.Seed(42)
	seq1 := w1.Mutate(nil, 16)
	require.Len(t, seq1, 2)

	w2 := NewWalker(lg)
	w2.Seed(42)
	seq2 := w2.Mutate(nil, 16)

	assert.Equal(seq1, seq2)
	assert.Contains([]string{"xy", "xz"}, string(w1.Serialize(seq1, 16)))
}

func Test_Walker_S3_ConcatenatedTerminals(t *testing.T) {
	assert := assert.New(t)

	lg := lowerGrammar(t, func(g *grammar.Grammar) {
		g.AddRule("S", grammar.Production{grammar.Term("ab"), grammar.Term("cd")})
	}, "S")
	w := NewWalker(lg)

	seq := w.Mutate(nil, 16)
	require.Len(t, seq, 1)
	assert.Equal([]byte("abcd"), w.Serialize(seq, 16))

	// output-length truncation never writes past outLen (the whole
	// 4-byte terminal doesn't fit in 3, so nothing of it is written)
	assert.LessOrEqual(len(w.Serialize(seq, 3)), 3)
}

func Test_Walker_S6_CapacityExhaustionLeavesValidPrefix(t *testing.T) {
	assert := assert.New(t)

	lg := lowerGrammar(t, func(g *grammar.Grammar) {
		g.AddRule("S", grammar.Production{grammar.Term("x"), grammar.NonTerm("S")})
		g.AddRule("S", grammar.Production{grammar.Term("y")})
	}, "S")
	w := NewWalker(lg)

	// With one slot of capacity, extension stops after the first tag --
	// the walk aborts rather than steering toward a terminating
	// alternative, leaving a valid prefix a later call can continue.
	seq := w.Mutate(nil, 1)
	assert.Len(seq, 1)

	out := w.Serialize(seq, 64)
	assert.LessOrEqual(len(out), 64)

	// a second call with more room picks up where the prefix left off
	extended := w.Mutate(seq, 64)
	assert.Equal(seq[0], extended[0])
	assert.GreaterOrEqual(len(extended), len(seq))
}

func Test_Walker_MutateReplaysPrefixVerbatim(t *testing.T) {
	assert := assert.New(t)

	lg := lowerGrammar(t, func(g *grammar.Grammar) {
		g.AddRule("S", grammar.Production{grammar.Term("x"), grammar.NonTerm("S")})
		g.AddRule("S", grammar.Production{grammar.Term("y")})
	}, "S")
	w := NewWalker(lg)
	w.Seed(7)

	full := w.Mutate(nil, 64)
	require.NotEmpty(t, full)

	for k := 1; k <= len(full); k++ {
		prefix := make(Sequence, k)
		copy(prefix, full[:k])

		remutated := w.Mutate(prefix, 64)
		require.GreaterOrEqual(t, len(remutated), k)
		assert.Equal(full[:k], remutated[:k], "prefix of length %d was not replayed verbatim", k)
	}
}

func Test_Walker_MutateLongerThanNeededLeavesTailUntouched(t *testing.T) {
	assert := assert.New(t)

	lg := lowerGrammar(t, func(g *grammar.Grammar) {
		g.AddRule("S", grammar.Production{grammar.Term("a")})
	}, "S")
	w := NewWalker(lg)

	// one slot covers the whole derivation; the rest is dead tail
	seq := w.Mutate(Sequence{0, 5, 7}, 16)
	assert.Equal(Sequence{0, 5, 7}, seq)
}

func Test_Walker_SerializeUnparseRoundTrip(t *testing.T) {
	assert := assert.New(t)

	lg := lowerGrammar(t, func(g *grammar.Grammar) {
		g.AddRule("S", grammar.Production{grammar.Term("x"), grammar.NonTerm("A")})
		g.AddRule("A", grammar.Production{grammar.Term("y")})
		g.AddRule("A", grammar.Production{grammar.Term("z")})
	}, "S")

	w := NewWalker(lg)
	w.Seed(1234)

	for i := 0; i < 16; i++ {
		seq := w.Mutate(nil, 64)
		out := w.Serialize(seq, 256)

		unparsed, ok := w.Unparse(out, 64)
		require.True(t, ok)
		// the grammar is unambiguous, so the exact sequence comes back
		assert.Equal(seq, unparsed)
		assert.Equal(out, w.Serialize(unparsed, 256))
	}
}

func Test_Walker_RoundTripRecursiveGrammar(t *testing.T) {
	assert := assert.New(t)

	lg := lowerGrammar(t, func(g *grammar.Grammar) {
		g.AddRule("S", grammar.Production{grammar.Term("x"), grammar.NonTerm("S")})
		g.AddRule("S", grammar.Production{grammar.Term("y")})
	}, "S")

	w := NewWalker(lg)
	w.Seed(99)

	for i := 0; i < 16; i++ {
		seq := w.Mutate(nil, 128)
		out := w.Serialize(seq, 1024)

		unparsed, ok := w.Unparse(out, 128)
		require.True(t, ok)
		assert.Equal(out, w.Serialize(unparsed, 1024))
	}
}

func Test_Walker_UnparseTieBreaksOnLongestRHSFirst(t *testing.T) {
	assert := assert.New(t)

	lg := lowerGrammar(t, func(g *grammar.Grammar) {
		g.AddRule("S", grammar.Production{grammar.Term("a")})
		g.AddRule("S", grammar.Production{grammar.Term("a"), grammar.NonTerm("S")})
	}, "S")
	w := NewWalker(lg)

	// "aaa" decomposes as the two-symbol alternative chosen greedily
	// until only one "a" remains: three tags in all.
	seq, ok := w.Unparse([]byte("aaa"), 16)
	assert.True(ok)
	assert.Len(seq, 3)
}

func Test_Walker_BoundaryBehaviors(t *testing.T) {
	assert := assert.New(t)

	lg := lowerGrammar(t, func(g *grammar.Grammar) {
		g.AddRule("S", grammar.Production{grammar.Term("a")})
	}, "S")
	w := NewWalker(lg)

	assert.Empty(w.Mutate(nil, 0))
	assert.Empty(w.Serialize(nil, 16))
	assert.Empty(w.Serialize(Sequence{0}, 0))

	_, ok := w.Unparse([]byte("a"), 0)
	assert.False(ok)

	_, ok = w.Unparse([]byte("b"), 16)
	assert.False(ok)
}

func Test_Walker_SeedZeroCoercesToDefault(t *testing.T) {
	assert := assert.New(t)

	lg := lowerGrammar(t, func(g *grammar.Grammar) {
		g.AddRule("S", grammar.Production{grammar.Term("x"), grammar.NonTerm("A")})
		g.AddRule("A", grammar.Production{grammar.Term("y")})
		g.AddRule("A", grammar.Production{grammar.Term("z")})
	}, "S")

	fresh := NewWalker(lg)
	zeroed := NewWalker(lg)
	zeroed.Seed(0)

	assert.Equal(fresh.Mutate(nil, 16), zeroed.Mutate(nil, 16))
}
