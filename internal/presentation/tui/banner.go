package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{`        _                     _      _`, "#818cf8"},
	{`    ___| |__  _ __ ___  _ __ (_) ___| | ___`, "#a78bfa"},
	{`   / __| '_ \| '__/ _ \| '_ \| |/ __| |/ _ \`, "#c084fc"},
	{`  | (__| | | | | | (_) | | | | | (__| |  __/`, "#e879f9"},
	{`   \___|_| |_|_|  \___/|_| |_|_|\___|_|\___|`, "#f472b6"},
}

// PrintBanner writes the chronicle banner and version to w.
// Colors degrade to plain text when w is not a color terminal.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for _, line := range bannerLines {
		fmt.Fprintln(w, out.String(line.text).Foreground(out.Color(line.color)))
	}
	fmt.Fprintln(w, out.String("   v"+version).Faint())
	fmt.Fprintln(w)
}
