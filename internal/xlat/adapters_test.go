package xlat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"grimm.is/xlatbench/internal/config"
)

func TestTaygaNAT64Conf(t *testing.T) {
	t.Setenv("XLATBENCH_STATE_DIR", "/tmp/state")
	conf := taygaAdapter{mode: taygaNAT64}.renderConf(nat64Config())

	assert.Contains(t, conf, "tun-device nat64\n")
	assert.Contains(t, conf, "ipv4-addr 192.168.255.1\n")
	assert.Contains(t, conf, "ipv6-addr fd00:64::1\n")
	assert.Contains(t, conf, "prefix 64:ff9b::/96\n")
	assert.Contains(t, conf, "dynamic-pool 192.168.255.0/24\n")
	assert.Contains(t, conf, "data-dir /tmp/state/tayga\n")
	assert.NotContains(t, conf, "map ")
}

func TestTaygaSIITConf(t *testing.T) {
	cfg := config.Translator{
		Kind:   "siit",
		Device: "nat64",
		Prefix: "fd00:46::/96",
		IPv4:   "10.0.0.1",
		IPv6:   "fd00:46::1",
		Maps:   []string{"10.0.0.2=fd00::2", "10.0.0.3=fd00::3"},
	}
	a := taygaAdapter{mode: taygaSIIT}
	conf := a.renderConf(cfg)

	assert.Contains(t, conf, "map 10.0.0.2 fd00::2\n")
	assert.Contains(t, conf, "map 10.0.0.3 fd00::3\n")
	assert.NotContains(t, conf, "dynamic-pool")

	assert.Equal(t,
		[]string{"fd00:46::/96", "10.0.0.2/32", "10.0.0.3/32"},
		a.deviceRoutes(cfg))
}

func TestTaygaNAT64DeviceRoutes(t *testing.T) {
	routes := taygaAdapter{mode: taygaNAT64}.deviceRoutes(nat64Config())
	assert.Equal(t, []string{"64:ff9b::/96", "192.168.255.0/24"}, routes)
}

func TestTaygaArgs(t *testing.T) {
	a := taygaAdapter{}
	assert.Equal(t, []string{"--mktun", "-c", "/run/t.conf"}, a.mktunArgs("/run/t.conf"))
	assert.Equal(t, []string{"--nodetach", "-c", "/run/t.conf"}, a.runArgs("/run/t.conf"))
}

func TestTundraConf(t *testing.T) {
	cfg := config.Translator{
		Kind:    "clat-tundra",
		Device:  "clat",
		Prefix:  "64:ff9b::/96",
		IPv4:    "192.0.0.1",
		IPv6:    "fd00:c1a7::1",
		TTL:     64,
		Threads: 4,
	}
	a := tundraAdapter{}
	conf := a.renderConf(cfg)

	assert.Contains(t, conf, "program.translator-threads = 4\n")
	assert.Contains(t, conf, "io.tun.interface-name = clat\n")
	assert.Contains(t, conf, "addressing.mode = clat\n")
	assert.Contains(t, conf, "addressing.nat64-clat.ipv4 = 192.0.0.1\n")
	assert.Contains(t, conf, "addressing.nat64-clat.ipv6 = fd00:c1a7::1\n")
	assert.Contains(t, conf, "addressing.nat64-clat-siit.prefix = 64:ff9b::/96\n")

	assert.Equal(t, []string{"--config", "/run/c.conf", "mktun"}, a.mktunArgs("/run/c.conf"))
	assert.Equal(t, []string{"--config", "/run/c.conf", "translate"}, a.runArgs("/run/c.conf"))
	assert.Equal(t, []string{"0.0.0.0/0"}, a.deviceRoutes(cfg))
}
