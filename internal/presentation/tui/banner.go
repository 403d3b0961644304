package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the dsflow banner to w.
func PrintBanner(w io.Writer) {
	colored := IsTerminal(w)
	p := termenv.ColorProfile()
	// Using a subtle gradient-like color scheme (Teal/Cyan)
	lines := []struct {
		text  string
		color string
	}{
		{"      _       __ _               ", "#2dd4bf"},
		{"   __| |___  / _| | _____      __", "#22d3ee"},
		{"  / _` / __|| |_| |/ _ \\ \\ /\\ / /", "#38bdf8"},
		{" | (_| \\__ \\|  _| | (_) \\ V  V / ", "#60a5fa"},
		{"  \\__,_|___/|_| |_|\\___/ \\_/\\_/  ", "#818cf8"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		if !colored {
			fmt.Fprintln(w, l.text)
			continue
		}
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
