package diag

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"golang.org/x/text/unicode/norm"

	"hirmir/internal/source"
)

// PrettyOptions configures FormatPretty.
type PrettyOptions struct {
	Color   bool
	Context int // not read by FormatPretty, which prints only the line holding the span start
}

var (
	gutterStyle = lipgloss.NewStyle().Faint(true)
	codeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
)

// FormatPretty renders every diagnostic in the bag against fs: one
// header line per diagnostic, a source line, and a caret underline
// aligned to the span's visual column (accounting for tabs, wide runes,
// and multi-codepoint grapheme clusters).
func FormatPretty(w io.Writer, bag *Bag, fs *source.FileSet, opts PrettyOptions) {
	if bag == nil {
		return
	}
	var (
		errColor  = color.New(color.FgRed, color.Bold)
		warnColor = color.New(color.FgYellow, color.Bold)
		infoColor = color.New(color.FgCyan, color.Bold)
		caretCol  = color.New(color.FgRed, color.Bold)
	)
	prevNoColor := color.NoColor
	defer func() { color.NoColor = prevNoColor }()
	color.NoColor = !opts.Color

	for _, d := range bag.Items() {
		sevColor := infoColor
		switch d.Severity {
		case SevError:
			sevColor = errColor
		case SevWarning:
			sevColor = warnColor
		}
		fmt.Fprintf(w, "%s %s: %s (%s)\n",
			sevColor.Sprint(d.Severity.String()+":"),
			codeStyle.Render(d.Code.String()),
			d.Message,
			d.Primary)

		if fs != nil {
			line, col := lineAndColumn(fs, d.Primary)
			if line != "" {
				fmt.Fprintf(w, "%s %s\n", gutterStyle.Render("|"), line)
				fmt.Fprintf(w, "%s %s%s\n", gutterStyle.Render("|"), strings.Repeat(" ", col),
					caretCol.Sprint(strings.Repeat("^", caretWidth(d.Primary))))
			}
		}
		for _, n := range d.Notes {
			fmt.Fprintf(w, "  %s %s (%s)\n", gutterStyle.Render("note:"), n.Msg, n.Span)
		}
	}
}

func caretWidth(span source.Span) int {
	if span.Len() == 0 {
		return 1
	}
	if span.Len() > 40 {
		return 40
	}
	return int(span.Len())
}

// lineAndColumn extracts the source line containing span.Start and the
// visual column (in terminal cells) at which it begins, using runewidth
// so East-Asian-wide runes and tabs still land the caret correctly.
func lineAndColumn(fs *source.FileSet, span source.Span) (string, int) {
	f := fs.Get(span.File)
	if f.Data == nil {
		return "", 0
	}
	lineStart, lineEnd := bytes.LastIndexByte(f.Data[:min(int(span.Start), len(f.Data))], '\n')+1, len(f.Data)
	if nl := bytes.IndexByte(f.Data[span.Start:], '\n'); nl >= 0 {
		lineEnd = int(span.Start) + nl
	}
	if lineStart > lineEnd || lineStart > len(f.Data) {
		return "", 0
	}
	line := f.Data[lineStart:lineEnd]

	col := 0
	upto := int(span.Start) - lineStart
	if upto > len(line) {
		upto = len(line)
	}
	// NFC-normalize before measuring so a decomposed accent (base rune +
	// combining mark) counts one cell, keeping the caret under the right
	// column.
	for _, r := range norm.NFC.String(string(line[:upto])) {
		if r == '\t' {
			col = (col + 8) / 8 * 8
			continue
		}
		col += runewidth.RuneWidth(r)
	}
	return norm.NFC.String(string(line)), col
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
