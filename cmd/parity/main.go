// Command parity reconciles two JSONL trade logs: the observed trader's tape
// against the replica's, matching trades by nearest timestamp and printing
// per-market agreement statistics.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/haqhal13/EDGEBOTPRO/internal/journal"
	"github.com/haqhal13/EDGEBOTPRO/internal/parity"
)

func main() {
	var (
		refPath  = flag.String("ref", "", "reference trade log (the observed trader)")
		repPath  = flag.String("replica", "", "replica trade log (this bot)")
		windowMs = flag.Int64("window-ms", 2000, "matching window in milliseconds")
		topN     = flag.Int("top", 5, "matches listed per market, ranked by fill-price difference")
	)
	flag.Parse()

	if *refPath == "" || *repPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	reference, refSkipped, err := journal.ReadTrades(*refPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read reference log: %v\n", err)
		os.Exit(1)
	}
	replica, repSkipped, err := journal.ReadTrades(*repPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read replica log: %v\n", err)
		os.Exit(1)
	}

	report := parity.Compare(reference, replica, time.Duration(*windowMs)*time.Millisecond, *topN)

	fmt.Printf("reference trades: %d (%d malformed lines skipped)\n", len(reference), refSkipped)
	fmt.Printf("replica trades:   %d (%d malformed lines skipped)\n", len(replica), repSkipped)
	fmt.Printf("window: %v, matched pairs: %d\n", report.Window, len(report.Matches))

	for _, st := range report.Markets {
		fmt.Printf("\n%s\n", st.Market)
		fmt.Printf("  matched %d/%d (%.1f%%), missed %d\n", st.Matched, st.Reference, st.MatchRate*100, st.Missed)
		if st.Matched == 0 {
			continue
		}
		fmt.Printf("  same side: %.1f%%  avg dt: %.0fms\n", st.SameSideRate*100, st.AvgDelta)
		fmt.Printf("  size ratio median: %.4f  (MAD from 1.0: %.4f)\n", st.MedianSizeRatio, st.SizeRatioMAD)
		fmt.Printf("  fill price diff median: %.4f\n", st.MedianPriceDiff)
		for i, m := range st.Top {
			fmt.Printf("  #%d  %s ref %s@%.4f vs rep %s@%.4f  diff %.4f  dt %v\n",
				i+1, m.RefTs.Format(time.RFC3339), m.RefSide, m.RefPrice, m.RepSide, m.RepPrice, m.PriceDiff, m.Delta)
		}
	}
}
