// Package codegen emits the self-contained C module that implements the
// four-function mutation/serialization/unparsing/seeding ABI over a
// lowered grammar. It never invokes a C toolchain -- compiling the
// output is the fuzzing harness's job, out of scope per this pipeline's
// own non-goals.
package codegen

import (
	"fmt"
	"sort"

	"github.com/dekarrin/gramforge/internal/grammar"
)

// Options controls details of the emitted module that are not determined
// by the grammar itself.
type Options struct {
	// Seed is the default RNG seed baked into the emitted source as the
	// SEED macro. Zero is coerced to the same fixed fallback the runtime
	// seed_generator uses, so an un-seeded build and an explicitly
	// zero-seeded build behave identically.
	Seed uint64
}

const defaultSeed = 0xDEADBEEF

// defaultedSeed applies the same zero-coercion rule seed_generator uses
// at runtime, so a build-time seed of 0 and a runtime seed_generator(0)
// call agree on what "no seed given" means.
func defaultedSeed(seed uint64) uint64 {
	if seed == 0 {
		return defaultSeed
	}
	return seed
}

// Generate emits the module's C source and header for lg. The returned
// source is a single translation unit with no external dependencies
// beyond <stddef.h>; the header declares the four public entry points.
func Generate(lg grammar.LoweredGrammar, opts Options) (source []byte, header []byte) {
	w := newCWriter()

	emitFileHeader(w)
	emitMacros(w)
	emitTypes(w)
	emitRand(w, opts)
	emitMutationCode(w, lg)
	emitSerializationCode(w, lg)
	emitUnparsingCode(w, lg)

	return []byte(w.String()), []byte(EmitHeader())
}

// EmitHeader returns the header file's contents. It never varies with
// the grammar: the four entry points have the same signature regardless
// of what was compiled into mutate_seq_nontermN et al.
func EmitHeader() string {
	hw := newCWriter()
	hw.DocComment("Generated by gramforge. Derivation sequences are caller-owned buffers of size_t alternative tags; every entry point returns 0 when nothing could be done and never writes past the given capacity. Alternative selection during mutation draws from a thread-local xorshift64 generator reduced modulo the alternative count, which is very slightly biased toward lower tags when the count is not a power of two -- acceptable for fuzzing workloads.")
	hw.Line("#ifndef __GRAMFORGE_GENERATOR_H")
	hw.Line("#define __GRAMFORGE_GENERATOR_H")
	hw.Blank()
	hw.Line("#include <stddef.h>")
	hw.Blank()
	hw.Line("size_t mutate_sequence(size_t* buf, size_t len, size_t capacity);")
	hw.Line("size_t serialize_sequence(const size_t* seq, size_t seq_len, unsigned char* out, size_t out_len);")
	hw.Line("size_t unparse_sequence(size_t* seq_buf, size_t seq_capacity, const unsigned char* input, size_t input_len);")
	hw.Line("void seed_generator(size_t new_seed);")
	hw.Blank()
	hw.Line("#endif /* __GRAMFORGE_GENERATOR_H */")
	return hw.String()
}

func emitFileHeader(w *cWriter) {
	w.DocComment("Generated by gramforge. Do not edit by hand -- re-run the build that produced this file instead.")
	w.Line("#include <stddef.h>")
	w.Blank()
}

// emitMacros emits the thread-local/visibility/branch-hint macros every
// other section relies on: THREAD_LOCAL compiles to __thread only under
// MULTITHREADING, UNLIKELY/LIKELY wrap __builtin_expect, and
// EXPORT_FUNCTION restricts visibility to the four public entry points
// unless MAKE_VISIBLE is defined.
func emitMacros(w *cWriter) {
	w.Line("/* Helper macros */")
	w.Line("#undef THREAD_LOCAL")
	w.Line("#ifdef MULTITHREADING")
	w.Line("#define THREAD_LOCAL __thread")
	w.Line("#else")
	w.Line("#define THREAD_LOCAL")
	w.Line("#endif")
	w.Blank()

	w.Line("#undef UNLIKELY")
	w.Line("#define UNLIKELY(x) __builtin_expect(!!(x), 0)")
	w.Line("#undef LIKELY")
	w.Line("#define LIKELY(x) __builtin_expect(!!(x), 1)")
	w.Blank()

	w.Line("#ifndef __clang__")
	w.Line("#undef __builtin_memcpy_inline")
	w.Line("#define __builtin_memcpy_inline __builtin_memcpy")
	w.Line("#endif")
	w.Blank()

	w.Line("#undef EXPORT_FUNCTION")
	w.Line("#ifdef MAKE_VISIBLE")
	w.Line(`#define EXPORT_FUNCTION __attribute__((visibility ("default")))`)
	w.Line("#else")
	w.Line("#define EXPORT_FUNCTION")
	w.Line("#endif")
	w.Blank()
}

func emitTypes(w *cWriter) {
	w.Line("/* A derivation sequence: a caller-owned buffer of alternative tags. */")
	w.Line("typedef struct {")
	w.Indent()
	w.Line("size_t* buf;")
	w.Line("size_t len;")
	w.Line("size_t capacity;")
	w.Unindent()
	w.Line("} Sequence;")
	w.Blank()
}

// emitRand emits the thread-local xorshift64 RNG and the seed_generator
// entry point. The RNG is lock-free and reentrant across threads by
// construction: rand_state is THREAD_LOCAL, so no two threads ever touch
// the same word.
func emitRand(w *cWriter, opts Options) {
	w.Line("/* RNG */")
	w.Line("#ifndef SEED")
	w.Linef("#define SEED %#xULL", defaultedSeed(opts.Seed))
	w.Line("#endif")
	w.Blank()

	w.Line("static THREAD_LOCAL size_t rand_state = SEED;")
	w.Blank()

	w.Line("static inline size_t gramforge_rand(void) {")
	w.Indent()
	w.Line("size_t x = rand_state;")
	w.Line("x ^= x << 13;")
	w.Line("x ^= x >> 7;")
	w.Line("x ^= x << 17;")
	w.Line("return rand_state = x;")
	w.Unindent()
	w.Line("}")
	w.Blank()

	w.DocComment("Replaces the calling thread's RNG state. A new_seed of 0 is coerced to a fixed nonzero fallback, matching the SEED default.")
	w.Line("EXPORT_FUNCTION")
	w.Line("void seed_generator(size_t new_seed) {")
	w.Indent()
	w.Line("if (!new_seed) {")
	w.Indent()
	w.Linef("new_seed = %#xULL;", uint64(defaultSeed))
	w.Unindent()
	w.Line("}")
	w.Blank()
	w.Line("rand_state = new_seed;")
	w.Unindent()
	w.Line("}")
	w.Blank()
}

// sortedNonTerminalIDs returns lg's non-terminal ids in ascending order,
// so every per-grammar emission pass (declarations, definitions) walks
// them in a stable, readable order regardless of Go map iteration order.
func sortedNonTerminalIDs(lg grammar.LoweredGrammar) []int {
	ids := make([]int, 0, len(lg.Rules))
	for id := range lg.Rules {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func ruleHasNonTerminals(rule []grammar.LLSymbol) bool {
	for _, s := range rule {
		if !s.Terminal {
			return true
		}
	}
	return false
}

func ruleHasTerminals(rule []grammar.LLSymbol) bool {
	for _, s := range rule {
		if s.Terminal {
			return true
		}
	}
	return false
}

func rulesHaveNonTerminals(rules [][]grammar.LLSymbol) bool {
	for _, r := range rules {
		if ruleHasNonTerminals(r) {
			return true
		}
	}
	return false
}

// ---- mutation ----

func emitMutationCode(w *cWriter, lg grammar.LoweredGrammar) {
	ids := sortedNonTerminalIDs(lg)

	w.Line("/* Forward declarations for sequence mutation functions */")
	for _, id := range ids {
		w.Linef("static int mutate_seq_nonterm%d(Sequence* seq, size_t* step);", id)
	}
	w.Blank()

	for _, id := range ids {
		emitMutationFunction(w, id, lg.Rules[id], lg)
	}

	emitMutationEntrypoint(w, lg)
}

func emitMutationFunction(w *cWriter, id int, rules [][]grammar.LLSymbol, lg grammar.LoweredGrammar) {
	w.Linef("/* Mutation function for non-terminal %q */", lg.NonTerminalNames[id])
	w.Linef("static int mutate_seq_nonterm%d(Sequence* seq, size_t* step) {", id)
	w.Indent()

	if len(rules) == 1 {
		emitMutationSingle(w, rules[0])
	} else {
		emitMutationMultiple(w, rules)
	}

	w.Unindent()
	w.Line("}")
	w.Blank()
}

// emitMutationSingle handles the single-alternative case (open question
// 2): the non-terminal still consumes one sequence slot, written to 0,
// purely so the encoding stays position-addressable; there is no
// randomness to draw and so no switch is emitted.
func emitMutationSingle(w *cWriter, rule []grammar.LLSymbol) {
	w.Line("size_t idx = seq->len;")
	w.Blank()
	w.Line("if (*step >= idx) {")
	w.Indent()
	w.Line("if (UNLIKELY(idx >= seq->capacity)) {")
	w.Indent()
	w.Line("return 0;")
	w.Unindent()
	w.Line("}")
	w.Blank()
	w.Line("seq->buf[idx] = 0;")
	w.Line("seq->len = idx + 1;")
	w.Unindent()
	w.Line("}")
	w.Blank()

	w.Line("*step += 1;")
	w.Blank()
	emitMutationRuleBody(w, rule)
	w.Line("return 1;")
}

func emitMutationMultiple(w *cWriter, rules [][]grammar.LLSymbol) {
	haveNonTerminals := rulesHaveNonTerminals(rules)

	w.Line("size_t idx = seq->len;")
	w.Line("size_t target;")
	w.Blank()

	w.Line("if (*step < idx) {")
	w.Indent()
	w.Line("target = seq->buf[*step];")
	w.Unindent()
	w.Line("} else {")
	w.Indent()
	w.Line("if (UNLIKELY(idx >= seq->capacity)) {")
	w.Indent()
	w.Line("return 0;")
	w.Unindent()
	w.Line("}")
	w.Blank()
	w.Linef("target = gramforge_rand() %% %d;", len(rules))
	w.Line("seq->buf[idx] = target;")
	w.Line("seq->len = idx + 1;")
	w.Unindent()
	w.Line("}")
	w.Blank()

	w.Line("*step += 1;")
	w.Blank()

	if haveNonTerminals {
		w.Line("switch (target) {")
		w.Indent()
		for i, rule := range rules {
			w.Linef("case %d: {", i)
			w.Indent()
			emitMutationRuleBody(w, rule)
			w.Line("break;")
			w.Unindent()
			w.Line("}")
		}
		w.Line("default: {")
		w.Indent()
		w.Line("__builtin_unreachable();")
		w.Unindent()
		w.Line("}")
		w.Unindent()
		w.Line("}")
		w.Blank()
	}

	w.Line("return 1;")
}

func emitMutationRuleBody(w *cWriter, rule []grammar.LLSymbol) {
	for _, s := range rule {
		if !s.Terminal {
			w.Linef("if (UNLIKELY(!mutate_seq_nonterm%d(seq, step))) {", s.ID)
			w.Indent()
			w.Line("return 0;")
			w.Unindent()
			w.Line("}")
			w.Blank()
		}
	}
}

func emitMutationEntrypoint(w *cWriter, lg grammar.LoweredGrammar) {
	w.DocComment("Extends buf (a valid prefix of length len) by random choices up to capacity, replaying the existing prefix verbatim, and returns the new length. 0 means no work was possible. When capacity runs out mid-walk the extension aborts where it stands rather than steering toward a terminating alternative; the buffer is left holding a valid prefix that a later call with more capacity can continue.")
	w.Line("EXPORT_FUNCTION")
	w.Line("size_t mutate_sequence(size_t* buf, size_t len, size_t capacity) {")
	w.Indent()
	w.Line("if (UNLIKELY(!buf || !capacity)) {")
	w.Indent()
	w.Line("return 0;")
	w.Unindent()
	w.Line("}")
	w.Blank()

	w.Line("Sequence seq = {")
	w.Indent()
	w.Line(".buf = buf,")
	w.Line(".len = len,")
	w.Line(".capacity = capacity,")
	w.Unindent()
	w.Line("};")
	w.Line("size_t step = 0;")
	w.Blank()
	w.Linef("mutate_seq_nonterm%d(&seq, &step);", lg.Entrypoint)
	w.Blank()
	w.Line("return seq.len;")
	w.Unindent()
	w.Line("}")
	w.Blank()
}

// ---- serialization ----

func emitTerminals(w *cWriter, lg grammar.LoweredGrammar) {
	w.Line("/* Terminals */")
	for i, t := range lg.Terminals {
		w.Linef("static const unsigned char TERM%d[%d] = {", i, len(t))
		w.Indent()
		for start := 0; start < len(t); start += 12 {
			end := start + 12
			if end > len(t) {
				end = len(t)
			}
			line := ""
			for _, b := range t[start:end] {
				line += fmt.Sprintf("%#02x, ", b)
			}
			w.Line(line)
		}
		w.Unindent()
		w.Line("};")
	}
	w.Blank()
}

func emitSerializationCode(w *cWriter, lg grammar.LoweredGrammar) {
	ids := sortedNonTerminalIDs(lg)

	emitTerminals(w, lg)

	w.Line("/* Forward declarations for serialization functions */")
	for _, id := range ids {
		w.Linef("static size_t serialize_seq_nonterm%d(const size_t* seq, size_t seq_len, unsigned char* out, size_t out_len, size_t* step);", id)
	}
	w.Blank()

	for _, id := range ids {
		emitSerializationFunction(w, id, lg.Rules[id], lg)
	}

	emitSerializationEntrypoint(w, lg)
}

func emitSerializationFunction(w *cWriter, id int, rules [][]grammar.LLSymbol, lg grammar.LoweredGrammar) {
	w.Linef("/* Serialization function for non-terminal %q */", lg.NonTerminalNames[id])
	w.Linef("static size_t serialize_seq_nonterm%d(const size_t* seq, size_t seq_len, unsigned char* out, size_t out_len, size_t* step) {", id)
	w.Indent()

	if len(rules) == 1 {
		emitSerializationSingle(w, rules[0])
	} else {
		emitSerializationMultiple(w, rules)
	}

	w.Unindent()
	w.Line("}")
	w.Blank()
}

func emitSerializationSingle(w *cWriter, rule []grammar.LLSymbol) {
	hasNonTerminals := ruleHasNonTerminals(rule)

	if !hasNonTerminals {
		w.Line("(void) seq;")
		w.Blank()
	}

	w.Line("if (UNLIKELY(*step >= seq_len)) {")
	w.Indent()
	w.Line("return 0;")
	w.Unindent()
	w.Line("}")
	w.Blank()

	if hasNonTerminals {
		w.Line("size_t len;")
	}
	w.Line("unsigned char* original_out = out;")
	w.Line("*step += 1;")
	w.Blank()

	emitSerializationRuleBody(w, rule)

	if ruleHasTerminals(rule) {
		w.Line("end:")
	}
	w.Line("return (size_t) (out - original_out);")
}

func emitSerializationMultiple(w *cWriter, rules [][]grammar.LLSymbol) {
	w.Line("if (UNLIKELY(*step >= seq_len)) {")
	w.Indent()
	w.Line("return 0;")
	w.Unindent()
	w.Line("}")
	w.Blank()

	if rulesHaveNonTerminals(rules) {
		w.Line("size_t len;")
	}
	w.Line("unsigned char* original_out = out;")
	w.Line("size_t target = seq[*step];")
	w.Line("*step += 1;")
	w.Blank()

	w.Line("switch (target) {")
	w.Indent()
	for i, rule := range rules {
		w.Linef("case %d: {", i)
		w.Indent()
		emitSerializationRuleBody(w, rule)
		w.Line("break;")
		w.Unindent()
		w.Line("}")
	}
	w.Line("default: {")
	w.Indent()
	w.Line("__builtin_unreachable();")
	w.Unindent()
	w.Line("}")
	w.Unindent()
	w.Line("}")
	w.Blank()

	anyTerminals := false
	for _, r := range rules {
		if ruleHasTerminals(r) {
			anyTerminals = true
			break
		}
	}
	if anyTerminals {
		w.Line("end:")
	}
	w.Line("return (size_t) (out - original_out);")
}

func emitSerializationRuleBody(w *cWriter, rule []grammar.LLSymbol) {
	for _, s := range rule {
		if s.Terminal {
			w.Linef("if (UNLIKELY(out_len < sizeof(TERM%d))) {", s.ID)
			w.Indent()
			w.Line("goto end;")
			w.Unindent()
			w.Line("}")
			w.Linef("__builtin_memcpy_inline(out, TERM%d, sizeof(TERM%d));", s.ID, s.ID)
			w.Linef("out += sizeof(TERM%d); out_len -= sizeof(TERM%d);", s.ID, s.ID)
			w.Blank()
		} else {
			w.Linef("len = serialize_seq_nonterm%d(seq, seq_len, out, out_len, step);", s.ID)
			w.Line("out += len; out_len -= len;")
			w.Blank()
		}
	}
}

func emitSerializationEntrypoint(w *cWriter, lg grammar.LoweredGrammar) {
	w.DocComment("Renders seq's derivation to concrete bytes, writing at most out_len bytes and returning the number actually written. Truncated output never overflows out_len.")
	w.Line("EXPORT_FUNCTION")
	w.Line("size_t serialize_sequence(const size_t* seq, size_t seq_len, unsigned char* out, size_t out_len) {")
	w.Indent()
	w.Line("if (UNLIKELY(!seq || !seq_len || !out || !out_len)) {")
	w.Indent()
	w.Line("return 0;")
	w.Unindent()
	w.Line("}")
	w.Blank()
	w.Line("size_t step = 0;")
	w.Blank()
	w.Linef("return serialize_seq_nonterm%d(seq, seq_len, out, out_len, &step);", lg.Entrypoint)
	w.Unindent()
	w.Line("}")
	w.Blank()
}

// ---- unparsing ----

// unparseOrder returns the positions of rules in the stable tie-break
// order this pipeline commits to everywhere (internal/sequence's Walker
// and this package must never disagree): longest right-hand side first,
// ties broken by original declaration index. The returned slice holds
// *original* alternative indices, in the order they should be tried.
func unparseOrder(rules [][]grammar.LLSymbol) []int {
	order := make([]int, len(rules))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return len(rules[order[a]]) > len(rules[order[b]])
	})
	return order
}

func emitUnparsingCode(w *cWriter, lg grammar.LoweredGrammar) {
	ids := sortedNonTerminalIDs(lg)

	w.Line("/* Forward declarations for unparsing functions */")
	for _, id := range ids {
		w.Linef("static int unparse_seq_nonterm%d(Sequence* seq, const unsigned char* input, size_t input_len, size_t cursor, size_t* consumed);", id)
		for _, tag := range ids2tags(lg.Rules[id]) {
			w.Linef("static int unparse_try_nonterm%d_alt%d(Sequence* seq, const unsigned char* input, size_t input_len, size_t cursor, size_t* consumed);", id, tag)
		}
	}
	w.Blank()

	for _, id := range ids {
		emitUnparsingAltHelpers(w, id, lg.Rules[id])
		emitUnparsingFunction(w, id, lg.Rules[id], lg)
	}

	emitUnparsingEntrypoint(w, lg)
}

func ids2tags(rules [][]grammar.LLSymbol) []int {
	tags := make([]int, len(rules))
	for i := range tags {
		tags[i] = i
	}
	return tags
}

// emitUnparsingAltHelpers emits one static function per alternative that
// attempts to match it against input starting at cursor, matching
// terminals by byte comparison and recursively unparsing non-terminal
// children. This is called twice per candidate from the owning
// non-terminal's function below: once while measuring every
// alternative's furthest reach, and -- only if some *other*, later-tried
// alternative clobbered the winner's child writes in the shared seq
// buffer -- once more to regenerate the winner's tags as the final
// write.
func emitUnparsingAltHelpers(w *cWriter, id int, rules [][]grammar.LLSymbol) {
	for tag, rule := range rules {
		w.Linef("static int unparse_try_nonterm%d_alt%d(Sequence* seq, const unsigned char* input, size_t input_len, size_t cursor, size_t* consumed) {", id, tag)
		w.Indent()
		w.Line("size_t c = cursor;")
		if ruleHasNonTerminals(rule) {
			w.Line("size_t child_consumed;")
		}
		w.Blank()
		for _, s := range rule {
			if s.Terminal {
				w.Linef("if (UNLIKELY(input_len - c < sizeof(TERM%d)) || __builtin_memcmp(&input[c], TERM%d, sizeof(TERM%d)) != 0) {", s.ID, s.ID, s.ID)
				w.Indent()
				w.Line("return 0;")
				w.Unindent()
				w.Line("}")
				w.Linef("c += sizeof(TERM%d);", s.ID)
				w.Blank()
			} else {
				w.Linef("if (!unparse_seq_nonterm%d(seq, input, input_len, c, &child_consumed)) {", s.ID)
				w.Indent()
				w.Line("return 0;")
				w.Unindent()
				w.Line("}")
				w.Line("c += child_consumed;")
				w.Blank()
			}
		}
		w.Line("*consumed = c - cursor;")
		w.Line("return 1;")
		w.Unindent()
		w.Line("}")
		w.Blank()
	}
}

// emitUnparsingFunction implements the furthest-cursor selection rule:
// try every alternative (in the stable tie-break order), keep whichever
// advanced the cursor furthest, and record its *original* declaration
// tag. Because every trial shares the same seq buffer region (this
// non-terminal's reserved slot plus whatever its children write after
// it), a losing trial's writes are simply overwritten by the next
// trial's; if the winning trial was not the last one attempted, its
// writes have since been clobbered and must be regenerated once more
// before returning.
func emitUnparsingFunction(w *cWriter, id int, rules [][]grammar.LLSymbol, lg grammar.LoweredGrammar) {
	order := unparseOrder(rules)

	w.Linef("/* Unparsing function for non-terminal %q */", lg.NonTerminalNames[id])
	w.Linef("static int unparse_seq_nonterm%d(Sequence* seq, const unsigned char* input, size_t input_len, size_t cursor, size_t* consumed) {", id)
	w.Indent()

	w.Line("size_t reserved = seq->len;")
	w.Line("if (UNLIKELY(reserved >= seq->capacity)) {")
	w.Indent()
	w.Line("return 0;")
	w.Unindent()
	w.Line("}")
	w.Blank()

	w.Line("int best_tag = -1;")
	w.Line("int best_is_last_tried = 0;")
	w.Line("size_t best_consumed = 0;")
	w.Blank()

	for i, tag := range order {
		isLast := i == len(order)-1
		w.Line("seq->len = reserved + 1;")
		w.Line("{")
		w.Indent()
		w.Line("size_t trial_consumed;")
		w.Linef("if (unparse_try_nonterm%d_alt%d(seq, input, input_len, cursor, &trial_consumed)) {", id, tag)
		w.Indent()
		w.Line("if (best_tag == -1 || trial_consumed > best_consumed) {")
		w.Indent()
		w.Linef("best_tag = %d;", tag)
		w.Line("best_consumed = trial_consumed;")
		if isLast {
			w.Line("best_is_last_tried = 1;")
		} else {
			w.Line("best_is_last_tried = 0;")
		}
		w.Unindent()
		w.Line("}")
		w.Unindent()
		w.Line("}")
		w.Unindent()
		w.Line("}")
		w.Blank()
	}

	w.Line("if (best_tag == -1) {")
	w.Indent()
	w.Line("seq->len = reserved;")
	w.Line("return 0;")
	w.Unindent()
	w.Line("}")
	w.Blank()

	w.Line("if (!best_is_last_tried) {")
	w.Indent()
	w.Line("seq->len = reserved + 1;")
	w.Line("switch (best_tag) {")
	w.Indent()
	for _, tag := range order {
		w.Linef("case %d: {", tag)
		w.Indent()
		w.Line("size_t redo_consumed;")
		w.Linef("unparse_try_nonterm%d_alt%d(seq, input, input_len, cursor, &redo_consumed);", id, tag)
		w.Line("break;")
		w.Unindent()
		w.Line("}")
	}
	w.Line("default: {")
	w.Indent()
	w.Line("__builtin_unreachable();")
	w.Unindent()
	w.Line("}")
	w.Unindent()
	w.Line("}")
	w.Unindent()
	w.Line("}")
	w.Blank()

	w.Line("seq->buf[reserved] = (size_t) best_tag;")
	w.Line("*consumed = best_consumed;")
	w.Line("return 1;")

	w.Unindent()
	w.Line("}")
	w.Blank()
}

func emitUnparsingEntrypoint(w *cWriter, lg grammar.LoweredGrammar) {
	w.DocComment("Greedily reconstructs a derivation sequence from concrete input bytes, choosing -- at every non-terminal -- whichever alternative advances the cursor furthest, tie-broken by longest right-hand side then declaration order. Returns the sequence length, or 0 if no alternative of the entrypoint made any progress or seq_capacity was exhausted.")
	w.Line("EXPORT_FUNCTION")
	w.Line("size_t unparse_sequence(size_t* seq_buf, size_t seq_capacity, const unsigned char* input, size_t input_len) {")
	w.Indent()
	w.Line("if (UNLIKELY(!seq_buf || !seq_capacity || !input)) {")
	w.Indent()
	w.Line("return 0;")
	w.Unindent()
	w.Line("}")
	w.Blank()

	w.Line("Sequence seq = {")
	w.Indent()
	w.Line(".buf = seq_buf,")
	w.Line(".len = 0,")
	w.Line(".capacity = seq_capacity,")
	w.Unindent()
	w.Line("};")
	w.Line("size_t consumed;")
	w.Linef("if (!unparse_seq_nonterm%d(&seq, input, input_len, 0, &consumed)) {", lg.Entrypoint)
	w.Indent()
	w.Line("return 0;")
	w.Unindent()
	w.Line("}")
	w.Blank()
	w.Line("return seq.len;")
	w.Unindent()
	w.Line("}")
	w.Blank()
}
