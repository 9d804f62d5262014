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
	{" ___ _____ ___   _         _   ", "#f59e0b"},
	{"|_ _|_   _| _ \\ | |__  ___| |_ ", "#f97316"},
	{" | |  | | |  _/ | '_ \\/ _ \\  _|", "#ef4444"},
	{"|___| |_| |_|   |_.__/\\___/\\__|", "#dc2626"},
}

// PrintBanner writes the chat banner to w, colored when w is a terminal.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for _, line := range bannerLines {
		fmt.Fprintln(w, out.String(line.text).Foreground(out.Color(line.color)))
	}
	fmt.Fprintln(w, out.String("  Impuesto de Transmisiones Patrimoniales · v"+version).Faint())
	fmt.Fprintln(w)
}
