package sequence

import (
	"bytes"
	"sort"

	"github.com/dekarrin/gramforge/internal/grammar"
)

// defaultSeed is the same fixed fallback the emitted module bakes in as
// its SEED macro, so an unseeded Walker and unseeded emitted code make
// identical choices.
const defaultSeed = 0xDEADBEEF

// Walker performs the emitted module's three sequence operations
// (mutate, serialize, unparse) in process over a lowered grammar, with
// the same semantics the generated C has: the same pre-order
// tag-per-non-terminal encoding, the same one-slot-per-non-terminal rule
// for single-alternative non-terminals, the same capacity and
// output-length truncation behavior, the same furthest-cursor unparse
// selection with its longest-rhs-then-declaration-order tie-break, and
// the same xorshift64 RNG. Given the same seed, a Walker and the module
// emitted for the same grammar produce identical sequences.
//
// It is used by tests and tooling to exercise a grammar's runtime
// contract without compiling anything; the emitted module remains the
// production implementation.
type Walker struct {
	g     grammar.LoweredGrammar
	state uint64
}

// NewWalker returns a Walker over g with the default RNG seed.
func NewWalker(g grammar.LoweredGrammar) *Walker {
	return &Walker{g: g, state: defaultSeed}
}

// Seed replaces the Walker's RNG state. A seed of 0 is coerced to the
// fixed nonzero fallback, matching the emitted seed_generator contract.
func (w *Walker) Seed(seed uint64) {
	if seed == 0 {
		seed = defaultSeed
	}
	w.state = seed
}

// rand is the emitted module's xorshift64 step.
func (w *Walker) rand() uint64 {
	x := w.state
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	w.state = x
	return x
}

// Mutate extends seq by a pre-order traversal from the grammar's
// entrypoint, replaying the existing elements verbatim and drawing new
// alternative tags from the RNG past them, up to capacity. The returned
// sequence is always a valid prefix: if capacity runs out mid-walk the
// extension simply stops there, and a later call with more capacity can
// continue it. A sequence longer than one full derivation requires is
// returned at its full given length with the tail untouched, the same
// way the emitted module reports the length of the buffer it was handed
// rather than the portion the traversal read.
func (w *Walker) Mutate(seq Sequence, capacity int) Sequence {
	if capacity <= 0 || capacity < len(seq) {
		return seq
	}
	out := make(Sequence, len(seq), capacity)
	copy(out, seq)
	step := 0
	out, _ = w.mutateSymbol(w.g.Entrypoint, out, capacity, &step)
	return out
}

func (w *Walker) mutateSymbol(id int, seq Sequence, capacity int, step *int) (Sequence, bool) {
	alts := w.g.Rules[id]

	var tag uint64
	if *step < len(seq) {
		tag = seq[*step]
	} else {
		if len(seq) >= capacity {
			return seq, false
		}
		if len(alts) > 1 {
			tag = w.rand() % uint64(len(alts))
		}
		seq = append(seq, tag)
	}
	*step++

	for _, sym := range alts[tag] {
		if sym.Terminal {
			continue
		}
		var ok bool
		seq, ok = w.mutateSymbol(sym.ID, seq, capacity, step)
		if !ok {
			return seq, false
		}
	}
	return seq, true
}

// Serialize renders seq's derivation to concrete bytes, writing at most
// outLen bytes. Truncated output is permitted when outLen or the
// sequence itself runs out mid-walk; the result never exceeds outLen.
func (w *Walker) Serialize(seq Sequence, outLen int) []byte {
	if len(seq) == 0 || outLen <= 0 {
		return nil
	}
	out := make([]byte, 0, outLen)
	step := 0
	return w.serializeSymbol(w.g.Entrypoint, seq, out, outLen, &step)
}

func (w *Walker) serializeSymbol(id int, seq Sequence, out []byte, outLen int, step *int) []byte {
	if *step >= len(seq) {
		return out
	}
	tag := seq[*step]
	*step++

	for _, sym := range w.g.Rules[id][tag] {
		if sym.Terminal {
			b := w.g.Terminals[sym.ID]
			if outLen-len(out) < len(b) {
				return out
			}
			out = append(out, b...)
		} else {
			out = w.serializeSymbol(sym.ID, seq, out, outLen, step)
		}
	}
	return out
}

// Unparse greedily reconstructs a derivation sequence of at most
// capacity tags from concrete input bytes, choosing at every
// non-terminal whichever alternative advances the cursor furthest,
// tie-broken by longest right-hand side then declaration order. It
// reports failure when capacity is exhausted or no alternative of the
// entrypoint makes any progress.
func (w *Walker) Unparse(input []byte, capacity int) (Sequence, bool) {
	if capacity <= 0 {
		return nil, false
	}
	seq, _, ok := w.unparseSymbol(w.g.Entrypoint, input, 0, make(Sequence, 0, capacity), capacity)
	if !ok {
		return nil, false
	}
	return seq, true
}

// unparseOrder returns alternative indices in the stable tie-break order
// shared with internal/codegen's emitted unparse functions: longest
// right-hand side first, ties broken by original declaration index.
func unparseOrder(alts [][]grammar.LLSymbol) []int {
	order := make([]int, len(alts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return len(alts[order[a]]) > len(alts[order[b]])
	})
	return order
}

func (w *Walker) unparseSymbol(id int, input []byte, cursor int, seq Sequence, capacity int) (Sequence, int, bool) {
	if len(seq) >= capacity {
		return seq, 0, false
	}
	reserved := len(seq)
	alts := w.g.Rules[id]

	bestTag := -1
	bestConsumed := 0
	var bestSeq Sequence

	for _, tag := range unparseOrder(alts) {
		trial := make(Sequence, reserved+1, capacity)
		copy(trial, seq)
		c := cursor
		ok := true
		for _, sym := range alts[tag] {
			if sym.Terminal {
				b := w.g.Terminals[sym.ID]
				if len(input)-c < len(b) || !bytes.Equal(input[c:c+len(b)], b) {
					ok = false
					break
				}
				c += len(b)
			} else {
				var childConsumed int
				trial, childConsumed, ok = w.unparseSymbol(sym.ID, input, c, trial, capacity)
				if !ok {
					break
				}
				c += childConsumed
			}
		}
		if !ok {
			continue
		}
		if bestTag == -1 || c-cursor > bestConsumed {
			bestTag = tag
			bestConsumed = c - cursor
			bestSeq = trial
		}
	}

	if bestTag == -1 {
		return seq, 0, false
	}
	bestSeq[reserved] = uint64(bestTag)
	return bestSeq, bestConsumed, true
}
