package monitor

import (
	"fmt"
	"strings"

	"github.com/mgutz/ansi"
)

var (
	chSame = ansi.ColorCode("default:default")
	chNew  = ansi.ColorCode("default+bu:default")
)

// change is one register value compared with its last displayed value.
type change struct {
	name     string
	old, new uint32
}

func (c change) changed() bool {
	return c.old != c.new
}

// changeMask is a run of hex digits that either all changed or all stayed.
type changeMask struct {
	text    string
	changed bool
}

func (c change) mask() []changeMask {
	s1, s2 := fmt.Sprintf("%08x", c.new), fmt.Sprintf("%08x", c.old)

	var masks []changeMask
	pos := 0
	for i := 1; i <= len(s1); i++ {
		if i == len(s1) || (s1[i] != s2[i]) != (s1[pos] != s2[pos]) {
			masks = append(masks, changeMask{text: s1[pos:i], changed: s1[pos] != s2[pos]})
			pos = i
		}
	}
	return masks
}

func colorPad(s, color string, pad int) string {
	length := len(s)
	s = color + s + ansi.Reset
	if length < pad {
		s = strings.Repeat(" ", pad-length) + s
	}
	return s
}

// render formats the value. Changed values are highlighted digit by digit
// when color is on, and marked with a trailing '*' otherwise.
func (c change) render(color bool) string {
	if !c.changed() {
		return fmt.Sprintf("%4s 0x%08x ", c.name, c.new)
	}
	if !color {
		return fmt.Sprintf("%4s 0x%08x*", c.name, c.new)
	}

	var b strings.Builder
	b.WriteString(colorPad(c.name, chNew, 4))
	b.WriteString(" 0x")
	for _, m := range c.mask() {
		col := chSame
		if m.changed {
			col = chNew
		}
		b.WriteString(col + m.text)
	}
	b.WriteString(ansi.Reset + " ")
	return b.String()
}

// renderColumns lays out changes column by column.
func renderColumns(changes []change, cols int, color bool) string {
	rows := (len(changes) + cols - 1) / cols

	var b strings.Builder
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			i := c*rows + r
			if i >= len(changes) {
				break
			}
			if c > 0 {
				b.WriteString("  ")
			}
			b.WriteString(changes[i].render(color))
		}
		b.WriteString("\n")
	}
	return b.String()
}
