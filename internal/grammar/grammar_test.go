package grammar

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Grammar_Validate(t *testing.T) {
	testCases := []struct {
		name      string
		build     func(g *Grammar)
		start     string
		expectErr bool
	}{
		{
			name:      "empty grammar, no entrypoint",
			start:     "S",
			expectErr: true,
		},
		{
			name: "undefined non-terminal on rhs",
			build: func(g *Grammar) {
				g.AddRule("S", Production{Term("x"), NonTerm("A")})
			},
			start:     "S",
			expectErr: true,
		},
		{
			name: "single rule grammar",
			build: func(g *Grammar) {
				g.AddRule("S", Production{Term("x")})
			},
			start: "S",
		},
		{
			name: "multiple rules, all resolved",
			build: func(g *Grammar) {
				g.AddRule("S", Production{Term("x"), NonTerm("A")})
				g.AddRule("A", Production{Term("y")})
			},
			start: "S",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			g := New(tc.start)
			if tc.build != nil {
				tc.build(g)
			}

			err := g.Validate()
			if tc.expectErr {
				assert.Error(err)
			} else {
				assert.NoError(err)
			}
		})
	}
}

func Test_Production_Equal(t *testing.T) {
	assert := assert.New(t)

	a := Production{Term("x"), NonTerm("A")}
	b := Production{Term("x"), NonTerm("A")}
	c := Production{Term("x"), NonTerm("B")}

	assert.True(a.Equal(b))
	assert.False(a.Equal(c))
}

func Test_Production_IsUnit(t *testing.T) {
	assert := assert.New(t)

	assert.True(Production{NonTerm("A")}.IsUnit())
	assert.False(Production{Term("x")}.IsUnit())
	assert.False(Production{NonTerm("A"), NonTerm("B")}.IsUnit())
}

func Test_Production_LeadsWithTerminal(t *testing.T) {
	assert := assert.New(t)

	assert.True(Production{Term("x"), NonTerm("A"), NonTerm("B")}.LeadsWithTerminal())
	assert.False(Production{NonTerm("A"), Term("x")}.LeadsWithTerminal())
	assert.False(Production{Term("x"), Term("y")}.LeadsWithTerminal())
}

func Test_Grammar_AddRule_DedupesAlternatives(t *testing.T) {
	assert := assert.New(t)

	g := New("S")
	g.AddRule("S", Production{Term("x")})
	g.AddRule("S", Production{Term("x")})
	g.AddRule("S", Production{Term("y")})

	r, ok := g.Rule("S")
	assert.True(ok)
	assert.Len(r.Alternatives, 2)
}
