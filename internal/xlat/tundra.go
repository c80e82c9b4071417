package xlat

import (
	"fmt"
	"strings"

	"grimm.is/xlatbench/internal/config"
)

// tundraAdapter drives tundra-nat64 in CLAT mode: the namespace's IPv4
// traffic is translated onto an IPv6-only uplink.
type tundraAdapter struct{}

func (tundraAdapter) binary() string { return "tundra-nat64" }

func (tundraAdapter) dataDir() string { return "" }

func (tundraAdapter) renderConf(cfg config.Translator) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "program.translator-threads = %d\n", cfg.Threads)
	sb.WriteString("io.mode = tun\n")
	sb.WriteString("io.tun.device-path = /dev/net/tun\n")
	fmt.Fprintf(&sb, "io.tun.interface-name = %s\n", cfg.Device)
	fmt.Fprintf(&sb, "router.generated-packet-ttl = %d\n", cfg.TTL)
	sb.WriteString("addressing.mode = clat\n")
	fmt.Fprintf(&sb, "addressing.nat64-clat.ipv4 = %s\n", cfg.IPv4)
	fmt.Fprintf(&sb, "addressing.nat64-clat.ipv6 = %s\n", cfg.IPv6)
	fmt.Fprintf(&sb, "addressing.nat64-clat-siit.prefix = %s\n", cfg.Prefix)
	return sb.String()
}

func (tundraAdapter) mktunArgs(confPath string) []string {
	return []string{"--config", confPath, "mktun"}
}

func (tundraAdapter) runArgs(confPath string) []string {
	return []string{"--config", confPath, "translate"}
}

// deviceRoutes sends all the namespace's IPv4 traffic into the CLAT
// device, which is the point of a CLAT namespace.
func (tundraAdapter) deviceRoutes(cfg config.Translator) []string {
	return []string{"0.0.0.0/0"}
}
