/*
Gramforge compiles a declarative context-free grammar into a
self-contained C module that mutates, serializes, and unparses grammar
derivations, for loading into a coverage-guided fuzzer as a
grammar-aware mutator.

Usage:

	gramforge [flags]

The flags are:

	-v, --version
		Give the current version of gramforge and then exit.

	-g, --grammar FILE
		A grammar source file to load. Repeatable; all given files are
		merged into one grammar before normalization.

	-f, --format peacock|gramatron
		The format of the grammar source files. Defaults to "peacock".

	-e, --entry NAME
		The start non-terminal's name. Defaults to "ENTRYPOINT".

	-o, --out DIR
		Output directory for the emitted generator.c/generator.h pair.
		Defaults to the current directory.

	-r, --raw
		Skip unit-rule elimination, mixed-rhs isolation, binary
		factoring, leading-terminal conversion, and single-start
		enforcement. Mostly useful together with --dump-grammar, to
		inspect a grammar before it is committed to canonical form.

	-d, --dump-grammar
		Write the normalized grammar back out as peacock-format JSON
		instead of emitting C.

	-s, --seed SEED
		The default RNG seed baked into the emitted source.

	-i, --interpret N
		Skip code generation entirely and print N one-shot generations
		via the in-process interpreter, for smoke-testing a grammar
		before compiling anything.

Once the grammar is loaded, it is run through the full normalization and
lowering pipeline (see internal/grammar) and, unless --dump-grammar or
--interpret was given, through the C emitter (see internal/codegen). Any
failure in loading or normalizing the grammar is reported to stderr with
the error kind from internal/gferrors.
*/
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/dekarrin/gramforge/internal/codegen"
	"github.com/dekarrin/gramforge/internal/gferrors"
	"github.com/dekarrin/gramforge/internal/grammar"
	"github.com/dekarrin/gramforge/internal/interpreter"
	"github.com/dekarrin/gramforge/internal/loader"
	"github.com/dekarrin/gramforge/internal/version"
)

const (
	// ExitSuccess indicates a successful program execution.
	ExitSuccess = iota

	// ExitGrammarError indicates the grammar could not be loaded or
	// normalized.
	ExitGrammarError

	// ExitIOError indicates a failure reading input or writing output
	// that was not itself a grammar problem.
	ExitIOError
)

var (
	returnCode int = ExitSuccess

	flagVersion     = pflag.BoolP("version", "v", false, "Gives the version info")
	flagGrammars    = pflag.StringArrayP("grammar", "g", nil, "A grammar source file to load; repeatable")
	flagFormat      = pflag.StringP("format", "f", "peacock", `Grammar source format: "peacock" or "gramatron"`)
	flagEntry       = pflag.StringP("entry", "e", "ENTRYPOINT", "The start non-terminal's name")
	flagOut         = pflag.StringP("out", "o", ".", "Output directory for the emitted generator.c/.h pair")
	flagRaw         = pflag.BoolP("raw", "r", false, "Skip canonicalization passes 5-10")
	flagDumpGrammar = pflag.BoolP("dump-grammar", "d", false, "Write the normalized grammar back out as JSON instead of emitting C")
	flagSeed        = pflag.Uint64P("seed", "s", 0, "The default RNG seed baked into the emitted source")
	flagInterpret   = pflag.IntP("interpret", "i", 0, "Skip codegen and print N one-shot generations via the interpreter")
)

func main() {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			panic(fmt.Sprintf("unrecoverable panic occurred: %v", panicErr))
		} else {
			os.Exit(returnCode)
		}
	}()

	pflag.Parse()

	if *flagVersion {
		fmt.Printf("%s\n", version.Current)
		return
	}

	if len(*flagGrammars) == 0 {
		fmt.Fprintln(os.Stderr, "ERROR: at least one --grammar file is required")
		returnCode = ExitGrammarError
		return
	}

	format := loader.Format(*flagFormat)
	if format != loader.FormatPeacock && format != loader.FormatGramatron {
		fmt.Fprintf(os.Stderr, "ERROR: unknown --format %q: must be \"peacock\" or \"gramatron\"\n", *flagFormat)
		returnCode = ExitGrammarError
		return
	}

	g, err := loader.Load(format, *flagEntry, (*flagGrammars)...)
	if err != nil {
		reportGrammarError(err)
		return
	}

	normalized, err := grammar.Normalize(g, grammar.Options{Raw: *flagRaw})
	if err != nil {
		reportGrammarError(err)
		return
	}

	if *flagDumpGrammar {
		dumpGrammar(normalized)
		return
	}

	lowered := grammar.Lower(normalized)

	if *flagInterpret > 0 {
		runInterpreter(lowered)
		return
	}

	emit(lowered)
}

func reportGrammarError(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: [%s] %s\n", gferrors.KindOf(err), err.Error())
	returnCode = ExitGrammarError
}

func dumpGrammar(g *grammar.Grammar) {
	data, err := loader.Dump(g)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: could not dump grammar: %s\n", err.Error())
		returnCode = ExitIOError
		return
	}
	fmt.Println(string(data))
}

func runInterpreter(lg grammar.LoweredGrammar) {
	it := interpreter.New(lg)
	if *flagSeed != 0 {
		it.Seed(*flagSeed)
	}
	for i := 0; i < *flagInterpret; i++ {
		out, err := it.GenerateString()
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: generation %d failed: %s\n", i, err.Error())
			returnCode = ExitIOError
			return
		}
		fmt.Println(out)
	}
}

func emit(lg grammar.LoweredGrammar) {
	src, hdr := codegen.Generate(lg, codegen.Options{Seed: *flagSeed})

	if err := os.MkdirAll(*flagOut, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: could not create output directory: %s\n", err.Error())
		returnCode = ExitIOError
		return
	}

	srcPath := filepath.Join(*flagOut, "generator.c")
	hdrPath := filepath.Join(*flagOut, "generator.h")

	if err := os.WriteFile(srcPath, src, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: could not write %s: %s\n", srcPath, err.Error())
		returnCode = ExitIOError
		return
	}
	if err := os.WriteFile(hdrPath, hdr, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: could not write %s: %s\n", hdrPath, err.Error())
		returnCode = ExitIOError
		return
	}

	fmt.Printf("wrote %s and %s\n", srcPath, hdrPath)
}
