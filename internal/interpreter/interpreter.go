// Package interpreter provides an in-process, allocating grammar walker
// that produces concrete output directly from a lowered grammar, without
// generating or compiling any code. It is used for testing a grammar and
// for one-shot generation; it does not use the derivation-sequence
// encoding the emitted module and internal/sequence deal in.
package interpreter

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"

	"github.com/dekarrin/gramforge/internal/grammar"
)

// defaultSeed mirrors the emitted module's own fixed default seed, so an
// interpreter run with no explicit Seed call is reproducible the same
// way unseeded emitted code is.
const defaultSeed = 0xDEADBEEF

// Interpreter walks a grammar.LoweredGrammar with an explicit stack of
// pending symbols, expanding non-terminals by picking a uniformly random
// alternative and pushing its right-hand side in reverse so traversal
// stays left-to-right.
type Interpreter struct {
	grammar grammar.LoweredGrammar
	rng     *rand.Rand
}

// New returns an Interpreter over g, seeded with the default seed.
func New(g grammar.LoweredGrammar) *Interpreter {
	return &Interpreter{
		grammar: g,
		rng:     rand.New(rand.NewSource(defaultSeed)),
	}
}

// Seed replaces the interpreter's RNG state. A seed of 0 is coerced to
// defaultSeed, matching the emitted module's seed_generator contract.
func (it *Interpreter) Seed(seed uint64) {
	if seed == 0 {
		seed = defaultSeed
	}
	it.rng = rand.New(rand.NewSource(int64(seed)))
}

// Generate produces one derivation starting from the grammar's
// entrypoint, writing concrete bytes to w and returning the number of
// bytes written.
func (it *Interpreter) Generate(w io.Writer) (int, error) {
	bw := bufio.NewWriter(w)
	n, err := it.generate(bw)
	if err != nil {
		return n, err
	}
	if err := bw.Flush(); err != nil {
		return n, err
	}
	return n, nil
}

// generate does the actual stack-based walk, grounded on the
// interpreter's explicit-stack generation model: push the entrypoint,
// pop the top of the stack, write terminal bytes directly, or pick a
// random alternative for a non-terminal and push its symbols in reverse.
func (it *Interpreter) generate(w io.Writer) (int, error) {
	stack := []grammar.LLSymbol{{Terminal: false, ID: it.grammar.Entrypoint}}
	written := 0

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if top.Terminal {
			b := it.grammar.Terminals[top.ID]
			n, err := w.Write(b)
			written += n
			if err != nil {
				return written, err
			}
			continue
		}

		alts, ok := it.grammar.Rules[top.ID]
		if !ok || len(alts) == 0 {
			return written, fmt.Errorf("interpreter: non-terminal id %d has no rule", top.ID)
		}

		tag := 0
		if len(alts) > 1 {
			tag = it.rng.Intn(len(alts))
		}
		chosen := alts[tag]
		for i := len(chosen) - 1; i >= 0; i-- {
			stack = append(stack, chosen[i])
		}
	}

	return written, nil
}

// GenerateString is a convenience wrapper around Generate that returns
// the produced bytes as a string.
func (it *Interpreter) GenerateString() (string, error) {
	var buf []byte
	w := &byteSliceWriter{buf: &buf}
	if _, err := it.Generate(w); err != nil {
		return "", err
	}
	return string(buf), nil
}

type byteSliceWriter struct {
	buf *[]byte
}

func (w *byteSliceWriter) Write(p []byte) (int, error) {
	*w.buf = append(*w.buf, p...)
	return len(p), nil
}
