package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pfrederiksen/hh-events/internal/logger"
	"github.com/pfrederiksen/hh-events/internal/metrics"
	"github.com/pfrederiksen/hh-events/internal/pipeline"
)

// WriteResult prints the rendered answer to w. In verbose mode a short run
// report follows on diag.
func WriteResult(w, diag io.Writer, st *pipeline.State, verbose bool) error {
	text := st.Output.Text
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if _, err := io.WriteString(w, text); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	if verbose {
		writeReport(diag, st)
	}
	return nil
}

// writeReport describes how the answer was produced
func writeReport(w io.Writer, st *pipeline.State) {
	path := make([]string, len(st.Path))
	for i, s := range st.Path {
		path[i] = s.String()
	}

	fmt.Fprintf(w, "\nBranch: %s\n", st.Branch)
	fmt.Fprintf(w, "States: %s\n", strings.Join(path, " -> "))
	if st.Branch == pipeline.NeedsExtraction {
		fmt.Fprintf(w, "Extracted: %d\n", len(st.Candidates))
	}
	if st.Augment == nil {
		return
	}

	fmt.Fprintf(w, "Augmentation: %s (%d patches applied)\n", st.Augment.Outcome, st.Augment.Applied)
	for _, a := range st.Attempts {
		line := fmt.Sprintf("  attempt %d via %s: %s in %s", a.Number, a.Provider, a.Result, a.Duration.Round(time.Millisecond))
		if a.Err != nil {
			line += " (" + a.Err.Error() + ")"
		}
		fmt.Fprintln(w, line)
	}
	if st.Augment.Outcome.Degraded() {
		fmt.Fprintln(w, "Note: categories and descriptions may be incomplete")
	}
}

func writeMetrics(w io.Writer) {
	fmt.Fprintln(w)
	if err := metrics.WriteSnapshot(w); err != nil {
		logger.WarnErr("Writing metrics snapshot failed", nil, err)
	}
}
