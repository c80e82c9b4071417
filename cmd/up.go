package cmd

import (
	"context"
	"fmt"
	"time"

	"grimm.is/xlatbench/internal/topology"
)

// RunUp builds the configured topology: namespaces, links, routes and
// translator daemons. With strict set, existing namespaces are an
// error instead of being replaced.
func RunUp(configFile string, strict bool, timeout time.Duration) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	orch := topology.Wire(nil, strict)
	if err := orch.Build(ctx, cfg); err != nil {
		return err
	}

	t := cfg.Topology
	fmt.Printf("Topology %s is up: %d namespaces, %d links, %d routes\n",
		t.Name, len(t.Namespaces), len(t.Links), len(t.Routes))
	for ns, tr := range orch.Translators() {
		fmt.Printf("  translator %s in %s: %s (pid %d)\n", tr.Kind(), ns, tr.State(), tr.Pid())
	}
	return nil
}
