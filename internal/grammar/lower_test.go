package grammar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_LoweredGrammar_MarshalUnmarshalBinary_RoundTrips(t *testing.T) {
	assert := assert.New(t)

	g := New("S")
	g.AddRule("S", Production{Term("x"), NonTerm("A")})
	g.AddRule("A", Production{Term("a")})
	g.AddRule("A", Production{Term("b")})

	out, err := Normalize(g, Options{})
	require.NoError(t, err)

	lg := Lower(out)

	data, err := lg.MarshalBinary()
	require.NoError(t, err)

	var roundTripped LoweredGrammar
	require.NoError(t, roundTripped.UnmarshalBinary(data))

	assert.Equal(lg.Entrypoint, roundTripped.Entrypoint)
	assert.Equal(lg.Terminals, roundTripped.Terminals)
	assert.Equal(lg.NonTerminalNames, roundTripped.NonTerminalNames)
	assert.Equal(lg.Rules, roundTripped.Rules)
}

func Test_LoweredGrammar_UnmarshalBinary_RejectsTruncatedData(t *testing.T) {
	g := New("S")
	g.AddRule("S", Production{Term("x")})
	out, err := Normalize(g, Options{})
	require.NoError(t, err)

	lg := Lower(out)
	data, err := lg.MarshalBinary()
	require.NoError(t, err)

	var roundTripped LoweredGrammar
	err = roundTripped.UnmarshalBinary(data[:len(data)-1])
	assert.Error(t, err)
}
