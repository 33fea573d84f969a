package probe

import (
	"fmt"
	"io"
	"strings"
)

const mib = 1024 * 1024

// WriteTable prints one row per probe followed by the uncorrected session
// totals.
func WriteTable(w io.Writer, name string, samples []Sample, summary Summary) {
	rule := strings.Repeat("=", 70)
	dash := strings.Repeat("-", 70)

	fmt.Fprintf(w, "\n%s\n", rule)
	fmt.Fprintf(w, "Performance Measurement: %s\n", name)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%-25s %-12s %-12s %-12s %-12s\n",
		"Probe", "Time (s)", "dt (s)", "Mem (MB)", "dMem (MB)")
	fmt.Fprintln(w, dash)

	for _, s := range samples {
		fmt.Fprintf(w, "%-25s %10.4f  %10.4f  %10.2f  %+10.2f\n",
			s.Label,
			s.ElapsedSinceStart,
			s.ElapsedSinceLast,
			float64(s.TotalMemoryBytes)/mib,
			float64(s.DeltaSinceLast)/mib,
		)
	}

	fmt.Fprintln(w, dash)
	fmt.Fprintf(w, "%-25s %10.4f  %10s  %10s  %+10.2f\n",
		"TOTAL", summary.TotalElapsed, "", "", float64(summary.MemoryDelta)/mib)
	fmt.Fprintf(w, "%s\n\n", rule)
}
