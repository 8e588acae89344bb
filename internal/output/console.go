// Package output writes the human-readable run report. Lines printed with
// Printf always appear; lines printed with Verbosef appear only when the
// console was created verbose.
package output

import (
	"fmt"
	"io"
	"strings"
)

const ruleWidth = 60

// Console is the report writer shared by the pipeline stages.
type Console struct {
	w       io.Writer
	verbose bool
}

// NewConsole creates a console writing to w.
func NewConsole(w io.Writer, verbose bool) *Console {
	if w == nil {
		w = io.Discard
	}
	return &Console{w: w, verbose: verbose}
}

// Writer returns the underlying writer, for renderers such as tables.
func (c *Console) Writer() io.Writer {
	return c.w
}

// Printf writes a line unconditionally.
func (c *Console) Printf(format string, args ...any) {
	fmt.Fprintf(c.w, format+"\n", args...)
}

// Verbosef writes a line only in verbose mode.
func (c *Console) Verbosef(format string, args ...any) {
	if !c.verbose {
		return
	}
	fmt.Fprintf(c.w, format+"\n", args...)
}

// Banner prints the tool header between two rules.
func (c *Console) Banner(title string) {
	rule := strings.Repeat("=", ruleWidth)
	c.Printf("%s", rule)
	c.Printf("   %s   ", title)
	c.Printf("%s", rule)
}
