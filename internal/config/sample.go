package config

import (
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// Sample generates a starter configuration: a single NAT64 rig behind
// one veth pair, plus a matching benchmark matrix. Written by the
// `init` subcommand.
func Sample() []byte {
	f := hclwrite.NewEmptyFile()
	root := f.Body()

	topo := root.AppendNewBlock("topology", []string{"nat64"}).Body()

	ns := topo.AppendNewBlock("namespace", []string{"tayga-ns"}).Body()
	ns.SetAttributeValue("forwarding", cty.True)

	tr := ns.AppendNewBlock("translator", nil).Body()
	tr.SetAttributeValue("kind", cty.StringVal("nat64-tayga"))
	tr.SetAttributeValue("device", cty.StringVal("nat64"))
	tr.SetAttributeValue("prefix", cty.StringVal("64:ff9b::/96"))
	tr.SetAttributeValue("ipv4", cty.StringVal("192.168.255.1"))
	tr.SetAttributeValue("ipv6", cty.StringVal("fd00:64::1"))
	tr.SetAttributeValue("pool", cty.StringVal("192.168.255.0/24"))

	topo.AppendNewline()
	link := topo.AppendNewBlock("link", []string{"uplink"}).Body()
	link.SetAttributeValue("host_name", cty.StringVal("veth-tayga-h"))
	link.SetAttributeValue("peer_name", cty.StringVal("veth-tayga-p"))
	link.SetAttributeValue("namespace", cty.StringVal("tayga-ns"))
	link.SetAttributeValue("host_addrs", cty.ListVal([]cty.Value{
		cty.StringVal("fe80::1/64"),
		cty.StringVal("fd00:1::1/64"),
		cty.StringVal("10.64.0.1/24"),
	}))
	link.SetAttributeValue("peer_addrs", cty.ListVal([]cty.Value{
		cty.StringVal("fe80::2/64"),
		cty.StringVal("fd00:1::2/64"),
		cty.StringVal("10.64.0.2/24"),
	}))

	topo.AppendNewline()
	rt := topo.AppendNewBlock("route", []string{"nat64-prefix"}).Body()
	rt.SetAttributeValue("destination", cty.StringVal("64:ff9b::/96"))
	rt.SetAttributeValue("via", cty.StringVal("fe80::2"))
	rt.SetAttributeValue("interface", cty.StringVal("veth-tayga-h"))

	def := topo.AppendNewBlock("route", []string{"ns-default-v6"}).Body()
	def.SetAttributeValue("namespace", cty.StringVal("tayga-ns"))
	def.SetAttributeValue("default", cty.True)
	def.SetAttributeValue("family", cty.StringVal("v6"))
	def.SetAttributeValue("via", cty.StringVal("fe80::1"))
	def.SetAttributeValue("interface", cty.StringVal("veth-tayga-p"))

	root.AppendNewline()
	bench := root.AppendNewBlock("bench", nil).Body()
	bench.SetAttributeValue("results_dir", cty.StringVal("results"))
	bench.SetAttributeValue("namespaces", cty.ListVal([]cty.Value{cty.StringVal("tayga-ns")}))
	bench.SetAttributeValue("targets", cty.ListVal([]cty.Value{
		cty.StringVal("64:ff9b::a40:1"),
		cty.StringVal("10.64.0.1"),
	}))
	bench.SetAttributeValue("durations", cty.ListVal([]cty.Value{
		cty.NumberIntVal(30),
		cty.NumberIntVal(120),
	}))
	bench.SetAttributeValue("protocols", cty.ListVal([]cty.Value{
		cty.StringVal("tcp"),
		cty.StringVal("udp"),
	}))
	bench.SetAttributeValue("udp_bandwidth", cty.StringVal("10M"))

	return f.Bytes()
}
