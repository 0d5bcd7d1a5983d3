package tui

import (
	"fmt"
	"io"

	"github.com/aretw0/callflow/internal/runtime"
	"github.com/muesli/termenv"
)

// PrintBanner writes the callflow ASCII art banner to w.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	lines := []struct {
		text  string
		color string
	}{
		{`            _ _  __ _               `, "#818cf8"},
		{`   ___ __ _| | |/ _| | _____      __`, "#a78bfa"},
		{`  / __/ _' | | | |_| |/ _ \ \ /\ / /`, "#c084fc"},
		{` | (_| (_| | | |  _| | (_) \ V  V / `, "#e879f9"},
		{`  \___\__,_|_|_|_| |_|\___/ \_/\_/  `, "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}

// FormatBanner colours the closing notice of a preview by its kind.
func FormatBanner(w io.Writer, b runtime.Banner) string {
	out := termenv.NewOutput(w)
	var color string
	switch b.Kind {
	case runtime.BannerCallEnded:
		color = "#22c55e"
	case runtime.BannerTransferred:
		color = "#3b82f6"
	case runtime.BannerNoResponses:
		color = "#f59e0b"
	default:
		color = "#9ca3af"
	}
	return out.String("■ " + b.Text).Foreground(out.Color(color)).Bold().String()
}
