package cmd

import (
	"fmt"

	"grimm.is/xlatbench/internal/topology"
)

// RunDown tears the configured topology back down. Already-absent
// pieces are tolerated so repeated downs converge.
func RunDown(configFile string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}

	orch := topology.Wire(nil, false)
	if err := orch.Down(cfg); err != nil {
		return err
	}
	fmt.Printf("Topology %s is down\n", cfg.Topology.Name)
	return nil
}
