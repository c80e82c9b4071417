// Package cmd implements the CLI subcommands. Each RunXxx function is
// one subcommand; main maps their errors to exit codes via ExitCode.
package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"grimm.is/xlatbench/internal/brand"
	"grimm.is/xlatbench/internal/config"
	"grimm.is/xlatbench/internal/netns"
	"grimm.is/xlatbench/internal/network"
	"grimm.is/xlatbench/internal/topology"
	"grimm.is/xlatbench/internal/xlat"
)

var (
	// ErrConfig wraps configuration load and validation failures.
	ErrConfig = errors.New("configuration invalid")
	// ErrBenchFailures means the sweep completed but some cells failed.
	ErrBenchFailures = errors.New("benchmark had failed runs")
)

// DefaultConfigPath is where subcommands look when -c is not given.
func DefaultConfigPath() string {
	return filepath.Join(brand.GetConfigDir(), brand.ConfigFileName)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return cfg, nil
}

// ExitCode maps a subcommand error onto the process exit code: 2 for
// configuration, 3 for namespaces, 4 for links and routes, 5 for
// translators, 6 for partial benchmark failures, 1 for anything else.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrConfig):
		return 2
	case errors.Is(err, netns.ErrAlreadyExists),
		errors.Is(err, netns.ErrOperation):
		return 3
	case errors.Is(err, topology.ErrUnreachableNextHop),
		errors.Is(err, network.ErrNotFound),
		errors.Is(err, network.ErrInterfaceExists),
		errors.Is(err, network.ErrAddressConflict):
		return 4
	case errors.Is(err, xlat.ErrInvalidConfig),
		errors.Is(err, xlat.ErrDeviceCreate),
		errors.Is(err, xlat.ErrStartTimeout),
		errors.Is(err, xlat.ErrOutOfOrder):
		return 5
	case errors.Is(err, ErrBenchFailures):
		return 6
	default:
		return 1
	}
}
