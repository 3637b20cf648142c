package console

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Style names a block/line style.
type Style int

const (
	StylePlain Style = iota
	StyleSuccess
	StyleError
	StyleComment
	StyleQuestion
)

// Formatter renders console text with lipgloss styles.
type Formatter struct {
	noColor bool
	styles  map[Style]lipgloss.Style
	blocks  map[Style]lipgloss.Style
}

// NewFormatter creates a formatter. With noColor set every style renders plain.
func NewFormatter(noColor bool) *Formatter {
	return &Formatter{
		noColor: noColor,
		styles: map[Style]lipgloss.Style{
			StylePlain:    lipgloss.NewStyle(),
			StyleSuccess:  lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
			StyleError:    lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
			StyleComment:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
			StyleQuestion: lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true),
		},
		blocks: map[Style]lipgloss.Style{
			StylePlain:    lipgloss.NewStyle(),
			StyleSuccess:  lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("2")),
			StyleError:    lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("1")),
			StyleComment:  lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("3")),
			StyleQuestion: lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("6")),
		},
	}
}

// Line styles a single line.
func (f *Formatter) Line(text string, style Style) string {
	if f.noColor {
		return text
	}
	return f.styles[style].Render(text)
}

// Block pads every line to the same width, adds an empty line above and below,
// and styles the whole thing as a colored block.
func (f *Formatter) Block(lines []string, style Style) []string {
	width := 0
	for _, line := range lines {
		if w := runewidth.StringWidth(line); w > width {
			width = w
		}
	}

	padded := make([]string, 0, len(lines)+2)
	empty := strings.Repeat(" ", width+4)
	padded = append(padded, empty)
	for _, line := range lines {
		fill := width - runewidth.StringWidth(line)
		padded = append(padded, "  "+line+strings.Repeat(" ", fill)+"  ")
	}
	padded = append(padded, empty)

	if f.noColor {
		return padded
	}
	out := make([]string, len(padded))
	for i, line := range padded {
		out[i] = f.blocks[style].Render(line)
	}
	return out
}
