package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the witmorph banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"          _ _                              _     ", "#818cf8"},
		{"__      _(_) |_ _ __ ___   ___  _ __ _ __ | |__  ", "#a78bfa"},
		{"\\ \\ /\\ / / | __| '_ ` _ \\ / _ \\| '__| '_ \\| '_ \\ ", "#c084fc"},
		{" \\ V  V /| | |_| | | | | | (_) | |  | |_) | | | |", "#e879f9"},
		{"  \\_/\\_/ |_|\\__|_| |_| |_|\\___/|_|  | .__/|_| |_|", "#f472b6"},
		{"                                     |_|          ", "#fb7185"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
