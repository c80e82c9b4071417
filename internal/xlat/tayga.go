package xlat

import (
	"fmt"
	"path/filepath"
	"strings"

	"grimm.is/xlatbench/internal/brand"
	"grimm.is/xlatbench/internal/config"
)

type taygaMode int

const (
	taygaSIIT taygaMode = iota
	taygaNAT64
)

// taygaAdapter drives tayga in either stateless (explicit map entries)
// or stateful (dynamic pool) mode.
type taygaAdapter struct {
	mode taygaMode
}

func (taygaAdapter) binary() string { return "tayga" }

func (taygaAdapter) dataDir() string {
	return filepath.Join(brand.GetStateDir(), "tayga")
}

func (a taygaAdapter) renderConf(cfg config.Translator) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "tun-device %s\n", cfg.Device)
	fmt.Fprintf(&sb, "ipv4-addr %s\n", cfg.IPv4)
	fmt.Fprintf(&sb, "ipv6-addr %s\n", cfg.IPv6)
	fmt.Fprintf(&sb, "prefix %s\n", cfg.Prefix)
	switch a.mode {
	case taygaNAT64:
		fmt.Fprintf(&sb, "dynamic-pool %s\n", cfg.Pool)
	case taygaSIIT:
		for _, m := range cfg.Maps {
			v4, v6, ok := strings.Cut(m, "=")
			if !ok {
				continue
			}
			fmt.Fprintf(&sb, "map %s %s\n", v4, v6)
		}
	}
	fmt.Fprintf(&sb, "data-dir %s\n", a.dataDir())
	return sb.String()
}

func (taygaAdapter) mktunArgs(confPath string) []string {
	return []string{"--mktun", "-c", confPath}
}

func (taygaAdapter) runArgs(confPath string) []string {
	return []string{"--nodetach", "-c", confPath}
}

// deviceRoutes steers the translation prefix into the TUN device, plus
// the return path: the dynamic pool for NAT64, the mapped IPv4 hosts
// for SIIT.
func (a taygaAdapter) deviceRoutes(cfg config.Translator) []string {
	routes := []string{cfg.Prefix}
	switch a.mode {
	case taygaNAT64:
		routes = append(routes, cfg.Pool)
	case taygaSIIT:
		for _, m := range cfg.Maps {
			v4, _, ok := strings.Cut(m, "=")
			if !ok {
				continue
			}
			routes = append(routes, v4+"/32")
		}
	}
	return routes
}
