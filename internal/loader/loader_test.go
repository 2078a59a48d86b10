package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dekarrin/gramforge/internal/gferrors"
	"github.com/dekarrin/gramforge/internal/grammar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func Test_ParsePeacock(t *testing.T) {
	testCases := []struct {
		name      string
		source    string
		expectErr bool
		expect    []parsedRule
	}{
		{
			name: "terminal and non-terminal tokens",
			source: `{
				// a comment
				"<S>": [["'x'", "<A>"]],
				"<A>": [["'y'"], ["'z'"]]
			}`,
			expect: []parsedRule{
				{NonTerminal: "S", Alternative: grammar.Production{grammar.Term("x"), grammar.NonTerm("A")}},
				{NonTerminal: "A", Alternative: grammar.Production{grammar.Term("y")}},
				{NonTerminal: "A", Alternative: grammar.Production{grammar.Term("z")}},
			},
		},
		{
			name:      "lhs not a non-terminal",
			source:    `{"S": [["'x'"]]}`,
			expectErr: true,
		},
		{
			name:      "empty alternative array",
			source:    `{"<S>": []}`,
			expectErr: true,
		},
		{
			name:      "invalid json",
			source:    `{not json`,
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			rules, err := ParsePeacock("test.json", []byte(tc.source))
			if tc.expectErr {
				assert.Error(err)
				return
			}
			require.NoError(t, err)
			assert.ElementsMatch(tc.expect, rules)
		})
	}
}

func Test_ParseGramatron(t *testing.T) {
	assert := assert.New(t)

	source := `{"S": ["'x' A"], "A": ["'y'", "'z'"]}`
	rules, err := ParseGramatron("test.json", []byte(source))
	require.NoError(t, err)

	assert.Contains(rules, parsedRule{NonTerminal: "S", Alternative: grammar.Production{grammar.Term("x"), grammar.NonTerm("A")}})
	assert.Contains(rules, parsedRule{NonTerminal: "A", Alternative: grammar.Production{grammar.Term("y")}})
	assert.Contains(rules, parsedRule{NonTerminal: "A", Alternative: grammar.Production{grammar.Term("z")}})
}

func Test_Load_MergesMultipleFiles(t *testing.T) {
	assert := assert.New(t)

	p1 := writeTemp(t, "a.json", `{"<S>": [["'x'", "<A>"]]}`)
	p2 := writeTemp(t, "b.json", `{"<A>": [["'y'"]]}`)

	g, err := Load(FormatPeacock, "S", p1, p2)
	require.NoError(t, err)
	assert.True(g.HasRule("S"))
	assert.True(g.HasRule("A"))
}

func Test_Load_MergeConflict(t *testing.T) {
	assert := assert.New(t)

	p1 := writeTemp(t, "a.json", `{"<S>": [["'x'"]]}`)
	p2 := writeTemp(t, "b.json", `{"<S>": [["'y'"]]}`)

	_, err := Load(FormatPeacock, "S", p1, p2)
	assert.Error(err)
	assert.Equal(gferrors.KindMergeConflict, gferrors.KindOf(err))
}

func Test_ParseFiles_SameMergeSemanticsAsLoad(t *testing.T) {
	assert := assert.New(t)

	files := []SourceFile{
		{Name: "a.json", Data: []byte(`{"<S>": [["'x'", "<A>"]]}`)},
		{Name: "b.json", Data: []byte(`{"<A>": [["'y'"]]}`)},
	}

	g, err := ParseFiles(FormatPeacock, "S", files)
	require.NoError(t, err)
	assert.True(g.HasRule("S"))
	assert.True(g.HasRule("A"))
}

func Test_ParseFiles_MergeConflict(t *testing.T) {
	assert := assert.New(t)

	files := []SourceFile{
		{Name: "a.json", Data: []byte(`{"<S>": [["'x'"]]}`)},
		{Name: "b.json", Data: []byte(`{"<S>": [["'y'"]]}`)},
	}

	_, err := ParseFiles(FormatPeacock, "S", files)
	assert.Error(err)
	assert.Equal(gferrors.KindMergeConflict, gferrors.KindOf(err))
}

func Test_EncodeDecodeSources_RoundTrips(t *testing.T) {
	assert := assert.New(t)

	files := []SourceFile{
		{Name: "a.json", Data: []byte(`{"<S>": [["'x'"]]}`)},
		{Name: "b.json", Data: []byte(`{"<A>": [["'y'"]]}`)},
	}

	encoded, err := EncodeSources(files)
	require.NoError(t, err)

	decoded, err := DecodeSources(encoded)
	require.NoError(t, err)
	assert.Equal(files, decoded)
}

func Test_DecodeSources_RejectsMalformedData(t *testing.T) {
	_, err := DecodeSources([]byte(`not json`))
	assert.Error(t, err)
}

func Test_Dump_RoundTripsThroughPeacockParser(t *testing.T) {
	assert := assert.New(t)

	g := grammar.New("S")
	g.AddRule("S", grammar.Production{grammar.Term("x"), grammar.NonTerm("A")})
	g.AddRule("A", grammar.Production{grammar.Term("y")})

	data, err := Dump(g)
	require.NoError(t, err)

	rules, err := ParsePeacock("dump.json", data)
	require.NoError(t, err)
	assert.Len(rules, 2)
}
