package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"grimm.is/xlatbench/internal/bench"
	"grimm.is/xlatbench/internal/netns"
)

// RunBench sweeps the configured iperf3 matrix and prints the summary.
// A sweep with failed cells still writes its results but exits with
// the partial-failure code.
func RunBench(configFile string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	if cfg.Bench == nil {
		return fmt.Errorf("%w: no bench block declared", ErrConfig)
	}

	nsm := netns.NewManager(nil)
	runner := bench.NewRunner(nsm, nsm, nil)

	report, err := runner.Run(context.Background(), cfg)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s: %d cells, results in %s\n",
		report.RunID, len(report.Records), cfg.Bench.ResultsDir)

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "NAMESPACE\tTARGET\tPROTO\tRUNS\tFAILED\tMEAN Mbps\tSTDDEV")
	failed := 0
	for _, row := range report.Summary {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.1f\t%.1f\n",
			row.Namespace, row.Target, row.Protocol, row.Runs, row.Failed, row.MeanMbps, row.StdDev)
		failed += row.Failed
	}
	w.Flush()

	if failed > 0 {
		return fmt.Errorf("%w: %d cells", ErrBenchFailures, failed)
	}
	return nil
}
