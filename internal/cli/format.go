package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fpang/wildlife-vision/internal/aggregate"
)

const barWidth = 40

// FormatDurationShort formats a duration in a short format (M:SS or H:MM:SS).
func FormatDurationShort(d time.Duration) string {
	totalSeconds := int(d.Seconds())
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// FormatProgress renders one progress line, e.g. "[2/5]  40% trap.zip (12 labels)".
func FormatProgress(processed, total int, input string, labels int) string {
	pct := 0
	if total > 0 {
		pct = processed * 100 / total
	}
	return fmt.Sprintf("[%d/%d] %3d%% %s (%d labels)", processed, total, pct, input, labels)
}

// WriteBarChart draws one horizontal bar per label, longest first. display
// maps a label to the text shown for it; nil shows labels as-is.
func WriteBarChart(w io.Writer, counts aggregate.ClassCounts, display func(string) string) {
	labels := counts.Labels()
	if len(labels) == 0 {
		fmt.Fprintln(w, "   (no labels)")
		return
	}
	if display == nil {
		display = func(s string) string { return s }
	}

	peak, nameWidth := 0, 0
	for _, l := range labels {
		if counts[l] > peak {
			peak = counts[l]
		}
		if n := len([]rune(display(l))); n > nameWidth {
			nameWidth = n
		}
	}

	for _, l := range labels {
		name := display(l)
		n := counts[l] * barWidth / peak
		if n == 0 && counts[l] > 0 {
			n = 1
		}
		pad := strings.Repeat(" ", nameWidth-len([]rune(name)))
		fmt.Fprintf(w, "   %s%s | %s %d\n", name, pad, strings.Repeat("█", n), counts[l])
	}
}
