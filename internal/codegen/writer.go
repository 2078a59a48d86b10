package codegen

import (
	"fmt"
	"strings"

	"github.com/dekarrin/rosed"
)

// cWriter is an indentation-tracking text builder for emitted C source:
// a single current indentation depth, applied one tab per level at the
// start of every line written through Line/Linef.
type cWriter struct {
	sb     strings.Builder
	indent int
}

func newCWriter() *cWriter {
	return &cWriter{}
}

func (w *cWriter) Indent() {
	w.indent++
}

func (w *cWriter) Unindent() {
	if w.indent > 0 {
		w.indent--
	}
}

// Line writes s prefixed by the current indentation and followed by a
// newline.
func (w *cWriter) Line(s string) {
	if s != "" {
		w.sb.WriteString(strings.Repeat("\t", w.indent))
		w.sb.WriteString(s)
	}
	w.sb.WriteByte('\n')
}

// Linef is Line with fmt.Sprintf formatting.
func (w *cWriter) Linef(format string, args ...interface{}) {
	w.Line(fmt.Sprintf(format, args...))
}

// Blank writes an empty line, separating emitted declarations.
func (w *cWriter) Blank() {
	w.sb.WriteByte('\n')
}

// DocComment writes s as a "/** ... */" block, word-wrapped to a
// reasonable width via rosed.
func (w *cWriter) DocComment(s string) {
	wrapped := rosed.Edit(s).Wrap(76).String()
	w.Line("/**")
	for _, line := range strings.Split(wrapped, "\n") {
		w.Line(" * " + line)
	}
	w.Line(" */")
}

func (w *cWriter) String() string {
	return w.sb.String()
}
