package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dekarrin/gramforge/internal/grammar"
)

func buildAndLower(t *testing.T, build func(g *grammar.Grammar), start string) grammar.LoweredGrammar {
	t.Helper()
	g := grammar.New(start)
	build(g)
	normalized, err := grammar.Normalize(g, grammar.Options{})
	require.NoError(t, err)
	return grammar.Lower(normalized)
}

func Test_Generate_SmallestGrammar(t *testing.T) {
	// S -> "a"
	lg := buildAndLower(t, func(g *grammar.Grammar) {
		g.AddRule("S", grammar.Production{grammar.Term("a")})
	}, "S")

	src, hdr := Generate(lg, Options{})

	source := string(src)
	assert.Contains(t, source, "mutate_sequence")
	assert.Contains(t, source, "serialize_sequence")
	assert.Contains(t, source, "unparse_sequence")
	assert.Contains(t, source, "seed_generator")
	assert.Contains(t, source, "TERM0")
	assert.Contains(t, source, "0x61") // 'a'

	header := string(hdr)
	assert.Contains(t, header, "size_t mutate_sequence(size_t* buf, size_t len, size_t capacity);")
	assert.Contains(t, header, "size_t serialize_sequence(const size_t* seq, size_t seq_len, unsigned char* out, size_t out_len);")
	assert.Contains(t, header, "size_t unparse_sequence(size_t* seq_buf, size_t seq_capacity, const unsigned char* input, size_t input_len);")
	assert.Contains(t, header, "void seed_generator(size_t new_seed);")
}

func Test_Generate_Branching(t *testing.T) {
	// S -> "x" A; A -> "y" | "z"
	lg := buildAndLower(t, func(g *grammar.Grammar) {
		g.AddRule("S", grammar.Production{grammar.Term("x"), grammar.NonTerm("A")})
		g.AddRule("A", grammar.Production{grammar.Term("y")})
		g.AddRule("A", grammar.Production{grammar.Term("z")})
	}, "S")

	src, _ := Generate(lg, Options{Seed: 42})
	source := string(src)

	// The multi-alternative non-terminal must dispatch on a switch, with
	// an unreachable default, and draw from the RNG.
	assert.Contains(t, source, "switch (target)")
	assert.Contains(t, source, "gramforge_rand() % 2")
	assert.Contains(t, source, "__builtin_unreachable();")
	assert.Contains(t, source, "0x2a") // seed 42 in hex
}

func Test_Generate_SingleAlternativeStillConsumesSlot(t *testing.T) {
	// S -> "x" A; A -> "y" (only one alternative)
	lg := buildAndLower(t, func(g *grammar.Grammar) {
		g.AddRule("S", grammar.Production{grammar.Term("x"), grammar.NonTerm("A")})
		g.AddRule("A", grammar.Production{grammar.Term("y")})
	}, "S")

	src, _ := Generate(lg, Options{})
	source := string(src)

	// Single-alternative non-terminals get a straight-line body (no
	// switch) per the emission strategy, but still advance step/len.
	assert.Contains(t, source, "seq->buf[idx] = 0;")
	assert.Contains(t, source, "*step += 1;")
}

func Test_Generate_UnparseTieBreak(t *testing.T) {
	// S -> "x" A "y"; A -> "z" -- exercises the mixed-rhs isolation pass
	// and gives the unparser more than one alternative to choose among
	// once lowered.
	lg := buildAndLower(t, func(g *grammar.Grammar) {
		g.AddRule("S", grammar.Production{grammar.Term("x"), grammar.NonTerm("A"), grammar.Term("y")})
		g.AddRule("A", grammar.Production{grammar.Term("z")})
	}, "S")

	src, _ := Generate(lg, Options{})
	source := string(src)

	assert.Contains(t, source, "unparse_try_nonterm")
	assert.Contains(t, source, "best_is_last_tried")
}

func Test_DefaultedSeed(t *testing.T) {
	assert.Equal(t, uint64(defaultSeed), defaultedSeed(0))
	assert.Equal(t, uint64(7), defaultedSeed(7))
}
