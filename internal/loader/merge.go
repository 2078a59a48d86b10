package loader

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dekarrin/gramforge/internal/gferrors"
	"github.com/dekarrin/gramforge/internal/grammar"
)

// Format names one of the two supported grammar source formats.
type Format string

const (
	FormatPeacock   Format = "peacock"
	FormatGramatron Format = "gramatron"
)

// Load reads and merges one or more grammar source files of the given
// format into a single grammar.Grammar with the given start symbol. It
// is an error for the same non-terminal to be defined by more than one
// file (MergeConflict); within a single file, repeated definitions of
// the same non-terminal are additive (every format here represents a
// rule as "one key, many alternatives", so that much is expected and not
// a conflict).
func Load(format Format, entrypoint string, paths ...string) (*grammar.Grammar, error) {
	files := make([]SourceFile, len(paths))
	for i, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, gferrors.Wrap(gferrors.KindParsing, err, "read "+path)
		}
		files[i] = SourceFile{Name: path, Data: data}
	}

	return ParseFiles(format, entrypoint, files)
}

// SourceFile pairs a grammar source file's original name with its bytes.
// It exists so that grammar sources submitted over a transport that has
// no filesystem path of its own (e.g. a multipart HTTP upload handled by
// the build service) can still be merged with ParseFiles exactly as Load
// merges files read from disk -- the name is used only for error
// messages and MergeConflict bookkeeping, never reopened.
type SourceFile struct {
	Name string
	Data []byte
}

// ParseFiles merges one or more in-memory grammar source files of the
// given format into a single grammar.Grammar with the given start
// symbol. It has the same merge semantics as Load (MergeConflict across
// files, additive within one file); Load itself is implemented as a thin
// wrapper that reads paths off disk and delegates here.
func ParseFiles(format Format, entrypoint string, files []SourceFile) (*grammar.Grammar, error) {
	g := grammar.New(entrypoint)
	definedInFile := map[string]string{} // non-terminal -> name of file that first defined it

	for _, f := range files {
		var rules []parsedRule
		var err error
		switch format {
		case FormatPeacock:
			rules, err = ParsePeacock(f.Name, f.Data)
		case FormatGramatron:
			rules, err = ParseGramatron(f.Name, f.Data)
		default:
			return nil, gferrors.Parsing(f.Name, "unknown grammar format "+string(format))
		}
		if err != nil {
			return nil, err
		}

		for _, r := range rules {
			if prior, ok := definedInFile[r.NonTerminal]; ok && prior != f.Name {
				return nil, gferrors.MergeConflict(r.NonTerminal)
			}
			definedInFile[r.NonTerminal] = f.Name
			g.AddRule(r.NonTerminal, r.Alternative)
		}
	}

	return g, nil
}

// EncodeSources packs a slice of SourceFile into a single blob suitable
// for storage as one column (e.g. dao.BuildJob.GrammarSource), so a
// build job submitted with several grammar files can be persisted and
// later re-parsed with ParseFiles without needing one storage column per
// uploaded file.
func EncodeSources(files []SourceFile) ([]byte, error) {
	return json.Marshal(files)
}

// DecodeSources reverses EncodeSources.
func DecodeSources(data []byte) ([]SourceFile, error) {
	var files []SourceFile
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, fmt.Errorf("decode stored grammar sources: %w", err)
	}
	return files, nil
}
