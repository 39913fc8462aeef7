package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/narastore/narastore/internal/rfp"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// stderr receives status messages; tests swap it out.
var stderr io.Writer = os.Stderr

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(stderr, colorize(colorCyan, "→ "+msg))
}

// statusLabel renders an RFP status padded to a fixed width.
func statusLabel(s rfp.Status) string {
	text := fmt.Sprintf("%-9s", s)
	switch s {
	case rfp.StatusCompleted:
		return colorize(colorGreen, text)
	case rfp.StatusError:
		return colorize(colorRed, text)
	default:
		return colorize(colorYellow, text)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

// bar draws a horizontal bar scaled so peak fills width cells.
func bar(count, peak, width int) string {
	if peak <= 0 || count <= 0 {
		return ""
	}
	n := count * width / peak
	if n == 0 {
		n = 1
	}
	return strings.Repeat("█", n)
}
