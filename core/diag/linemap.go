package diag

import (
	"fmt"
	"strings"
)

// LineMap indexes the start of every line in a source text so diagnostics
// can be mapped back to the text an editor shows.
type LineMap struct {
	source string
	starts []int // byte offset of each line start; starts[0] == 0
}

// NewLineMap indexes source.
func NewLineMap(source string) *LineMap {
	starts := []int{0}
	for i := 0; i < len(source); i++ {
		if source[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineMap{source: source, starts: starts}
}

// LineCount returns the number of lines, counting a trailing partial line.
func (m *LineMap) LineCount() int {
	return len(m.starts)
}

// Line returns the text of the 1-based line n without its terminator.
func (m *LineMap) Line(n int) (string, bool) {
	if n < 1 || n > len(m.starts) {
		return "", false
	}
	start := m.starts[n-1]
	end := len(m.source)
	if n < len(m.starts) {
		end = m.starts[n] - 1
	}
	return strings.TrimSuffix(m.source[start:end], "\r"), true
}

// Clamp maps an out-of-range line (for example one reported past the final
// newline) onto the nearest real line.
func (m *LineMap) Clamp(line int) int {
	if line < 1 {
		return 1
	}
	if line > len(m.starts) {
		return len(m.starts)
	}
	return line
}

// Render formats d with a source snippet and caret:
//
//	Line 3: Syntax Error - Expected 'ENDIF' after IF statement
//	  --> 3:5
//	   |
//	 3 |     OUTPUT x
//	   |     ^
func (m *LineMap) Render(d Diagnostic) string {
	var b strings.Builder
	b.WriteString(d.Message)
	b.WriteByte('\n')

	text, ok := m.Line(d.Line)
	if !ok {
		return b.String()
	}

	col := d.Column
	if col < 1 {
		col = 1
	}
	fmt.Fprintf(&b, "  --> %d:%d\n", d.Line, col)
	b.WriteString("   |\n")
	fmt.Fprintf(&b, "%2d | %s\n", d.Line, text)
	b.WriteString("   | ")
	if n := len([]rune(text)); col <= n+1 {
		b.WriteString(strings.Repeat(" ", col-1))
	}
	b.WriteString("^\n")
	if d.Hint != "" {
		fmt.Fprintf(&b, "   = hint: %s\n", d.Hint)
	}
	return b.String()
}
