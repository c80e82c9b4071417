package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"grimm.is/xlatbench/internal/topology"
)

// RunVerify probes the rig's data paths with ICMP and reports the
// pairs that did not answer.
func RunVerify(configFile string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}

	orch := topology.Wire(nil, false)
	failures, err := orch.Verify(context.Background(), cfg)
	if err != nil {
		return err
	}

	if len(failures) == 0 {
		fmt.Println("All probes answered")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "NAMESPACE\tTARGET\tERROR")
	for _, f := range failures {
		fmt.Fprintf(w, "%s\t%s\t%v\n", f.Namespace, f.Target, f.Err)
	}
	w.Flush()
	return fmt.Errorf("%d of the probes failed", len(failures))
}
