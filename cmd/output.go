package cmd

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"seekplan/internal/simulator"
)

func printReport(w io.Writer, r *simulator.Report) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "policy\t%s (%s)\n", r.Policy, r.SchedulerVersion)
	fmt.Fprintf(tw, "requests\t%d\n", r.Requests)
	fmt.Fprintf(tw, "dispatched\t%d\n", r.Dispatched)
	fmt.Fprintf(tw, "merged\t%d (back %d, front %d)\n", r.Merged, r.BackMerges, r.FrontMerges)
	fmt.Fprintf(tw, "seek total\t%d sectors\n", r.TotalSeek)
	fmt.Fprintf(tw, "seek mean\t%.1f sectors\n", r.MeanSeek)
	fmt.Fprintf(tw, "latency mean\t%s\n", roundDuration(r.MeanLatency))
	fmt.Fprintf(tw, "latency max\t%s\n", roundDuration(r.MaxLatency))
	fmt.Fprintf(tw, "makespan\t%s\n", roundDuration(r.Makespan))
	if r.Plans > 0 {
		fmt.Fprintf(tw, "plans\t%d (forced %d)\n", r.Plans, r.ForcedPlans)
	}
	tw.Flush()
}

// printComparison prints one row per policy, cheapest total seek first.
func printComparison(w io.Writer, reports []*simulator.Report) {
	sorted := append([]*simulator.Report(nil), reports...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TotalSeek < sorted[j].TotalSeek })

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "POLICY\tDISPATCHED\tMERGED\tSEEK TOTAL\tSEEK MEAN\tLATENCY MEAN\tLATENCY MAX\tMAKESPAN")
	for _, r := range sorted {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.1f\t%s\t%s\t%s\n",
			r.Policy, r.Dispatched, r.Merged, r.TotalSeek, r.MeanSeek,
			roundDuration(r.MeanLatency), roundDuration(r.MaxLatency), roundDuration(r.Makespan))
	}
	tw.Flush()
}

func roundDuration(d time.Duration) time.Duration {
	if d > time.Millisecond {
		return d.Round(time.Microsecond)
	}
	return d
}
