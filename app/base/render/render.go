/*
Package render turns the markdown produced by help templates and by `show --markdown`
into whatever suits the output stream.

Markdown mode passes the text through untouched, which is what docs tooling and tests want.
ANSI mode styles it for a terminal, wrapping at the terminal's width when it can be detected.
*/
package render

import (
	"io"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"golang.org/x/term"
)

type Mode uint8

const (
	Mode_Markdown Mode = iota // Plain, honorable, and indentation-free markdown.
	Mode_ANSI                 // Text annotated with terminal ANSI codes for color, and wrapped to the terminal.
)

// DefaultWidth is used for wrapping when the writer is not a terminal.
const DefaultWidth = 80

// Render writes markdown to wr in the given mode.
//
// The writer may be subject to feature detection to see if it's a terminal,
// and if so how wide it is, if the mode requests ANSI output.
func Render(markdown []byte, wr io.Writer, m Mode) error {
	if m == Mode_Markdown {
		_, err := wr.Write(markdown)
		return err
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(ansiStyle()),
		glamour.WithWordWrap(TerminalWidth(wr)),
	)
	if err != nil {
		return err
	}
	out, err := r.RenderBytes(markdown)
	if err != nil {
		return err
	}
	_, err = wr.Write(out)
	return err
}

// IsTerminal reports whether wr is a file attached to a terminal.
func IsTerminal(wr io.Writer) bool {
	fd, ok := wr.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(fd.Fd()))
}

// TerminalWidth is the column count of the terminal behind wr, or DefaultWidth.
// Very narrow terminals get 60 columns anyway; wrapping tighter than that is unreadable.
func TerminalWidth(wr io.Writer) int {
	fd, ok := wr.(interface{ Fd() uintptr })
	if !ok {
		return DefaultWidth
	}
	width, _, err := term.GetSize(int(fd.Fd()))
	switch {
	case err != nil || width <= 0:
		return DefaultWidth
	case width < 60:
		return 60
	}
	return width
}

// ansiStyle is the dark style, with less margin and with headings tinted to tell help sections apart.
func ansiStyle() ansi.StyleConfig {
	style := glamour.DarkStyleConfig
	stringPtr := func(s string) *string { return &s }
	uintPtr := func(u uint) *uint { return &u }
	style.Document.Margin = uintPtr(0)
	style.Code.Prefix = "`"
	style.Code.Suffix = "`"
	style.H3.Margin = uintPtr(2)
	style.H3.Color = stringPtr("135")
	style.H4.Margin = uintPtr(2)
	style.H4.Color = stringPtr("67")
	return style
}
