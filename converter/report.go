package converter

import (
	"fmt"
	"io"
	"strings"
	"time"

	"toxref_brick/source"
)

const (
	StatusOK     = "OK"
	StatusFailed = "FAILED"
)

// Summary describes the conversion of one relation.
type Summary struct {
	Relation    string
	Kind        source.Kind
	RowsRead    int
	RowsCopied  int
	RowsSkipped int
	Status      string
	Duration    time.Duration
}

func (s *Summary) apply(stats CopyStats) {
	s.RowsRead = stats.Read
	s.RowsCopied = stats.Copied
	s.RowsSkipped = stats.Skipped
}

// Report is the outcome of one conversion run.
type Report struct {
	RunID     string
	Output    string
	Summaries []Summary
	Err       error
	Elapsed   time.Duration
}

// Totals sums the row counters over all relations.
func (r *Report) Totals() CopyStats {
	var t CopyStats
	for _, s := range r.Summaries {
		t.Read += s.RowsRead
		t.Copied += s.RowsCopied
		t.Skipped += s.RowsSkipped
	}
	return t
}

// Print writes the report as a fixed-width table.
func (r *Report) Print(w io.Writer) {
	fmt.Fprintf(w, "=== SUMMARY (run %s) ===\n", r.RunID)
	fmt.Fprintf(w, "%-45s %-18s %-12s %-12s %-12s %-8s %s\n", "Relation", "Kind", "Read", "Copied", "Skipped", "Status", "Duration")
	fmt.Fprintln(w, strings.Repeat("-", 125))
	for _, s := range r.Summaries {
		fmt.Fprintf(w, "%-45s %-18s %-12d %-12d %-12d %-8s %s\n",
			s.Relation, s.Kind, s.RowsRead, s.RowsCopied, s.RowsSkipped, s.Status, s.Duration.Round(time.Millisecond))
	}
	fmt.Fprintln(w, strings.Repeat("-", 125))

	t := r.Totals()
	fmt.Fprintf(w, "%d relations, %d rows read, %d copied, %d skipped in %s\n",
		len(r.Summaries), t.Read, t.Copied, t.Skipped, r.Elapsed.Round(time.Millisecond))
	if r.Err != nil {
		fmt.Fprintf(w, "FAILED: %v\n", r.Err)
	}
}
