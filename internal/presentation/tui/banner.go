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
	{" _  ___           _    ", "#34d399"},
	{"| |/ (_) ___  ___| | __", "#2dd4bf"},
	{"| ' /| |/ _ \\/ __| |/ /", "#22d3ee"},
	{"| . \\| | (_) \\__ \\   < ", "#38bdf8"},
	{"|_|\\_\\_|\\___/|___/_|\\_\\", "#60a5fa"},
}

// PrintBanner writes the kiosk banner followed by the store name and language.
// Colors degrade to the profile of w.
func PrintBanner(w io.Writer, storeName, language string) {
	out := termenv.NewOutput(w)

	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	if storeName != "" {
		fmt.Fprintln(w, out.String("  "+storeName).Bold())
	}
	fmt.Fprintln(w, out.String(fmt.Sprintf("  language: %s   :restart <lang>  :quit", language)).Faint())
	fmt.Fprintln(w)
}
