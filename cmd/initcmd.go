package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"grimm.is/xlatbench/internal/config"
)

// RunInit writes a starter NAT64 rig configuration to path. An
// existing file is only replaced with force.
func RunInit(path string, force bool) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use -force to overwrite)", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, config.Sample(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Printf("Wrote starter configuration to %s\n", path)
	return nil
}
