// Package config provides HCL configuration handling for topology and
// benchmark declarations.
package config

// Config is the root of a topology/benchmark configuration file.
type Config struct {
	Topology *Topology `hcl:"topology,block" json:"topology,omitempty"`
	Bench    *Bench    `hcl:"bench,block" json:"bench,omitempty"`
}

// Topology declares a full multi-namespace test rig: the namespaces,
// the veth links wiring them to the host or to each other, and the
// static routes the scenario needs. Declaration order of namespaces is
// build order.
type Topology struct {
	Name       string      `hcl:"name,label" json:"name"`
	Namespaces []Namespace `hcl:"namespace,block" json:"namespaces"`
	Links      []Link      `hcl:"link,block" json:"links"`
	Routes     []Route     `hcl:"route,block" json:"routes,omitempty"`
}

// Namespace declares one network namespace and, optionally, the
// translator that runs inside it.
type Namespace struct {
	Name       string      `hcl:"name,label" json:"name"`
	Forwarding bool        `hcl:"forwarding,optional" json:"forwarding,omitempty"`
	Translator *Translator `hcl:"translator,block" json:"translator,omitempty"`
}

// Translator configures the SIIT/NAT64/CLAT daemon owned by a
// namespace. The internal IPv4/IPv6 pair is the translator's own
// identity on the TUN device; Prefix is the external-facing translation
// prefix.
type Translator struct {
	Kind    string   `hcl:"kind" json:"kind"` // siit | nat64-tayga | clat-tundra
	Device  string   `hcl:"device,optional" json:"device,omitempty"`
	Prefix  string   `hcl:"prefix" json:"prefix"`
	IPv4    string   `hcl:"ipv4" json:"ipv4"`
	IPv6    string   `hcl:"ipv6" json:"ipv6"`
	Pool    string   `hcl:"pool,optional" json:"pool,omitempty"` // NAT64 dynamic pool
	Maps    []string `hcl:"map,optional" json:"map,omitempty"`   // SIIT "v4=v6" entries
	MTU     int      `hcl:"mtu,optional" json:"mtu,omitempty"`
	TTL     int      `hcl:"ttl,optional" json:"ttl,omitempty"`
	Threads int      `hcl:"threads,optional" json:"threads,omitempty"` // tundra worker threads
}

// Link declares a veth pair. The host end stays in the host namespace
// unless HostNamespace names another namespace; the peer end is moved
// into Namespace.
type Link struct {
	Name          string   `hcl:"name,label" json:"name"`
	HostName      string   `hcl:"host_name" json:"host_name"`
	PeerName      string   `hcl:"peer_name" json:"peer_name"`
	Namespace     string   `hcl:"namespace" json:"namespace"`
	HostNamespace string   `hcl:"host_namespace,optional" json:"host_namespace,omitempty"`
	HostAddrs     []string `hcl:"host_addrs,optional" json:"host_addrs,omitempty"`
	PeerAddrs     []string `hcl:"peer_addrs,optional" json:"peer_addrs,omitempty"`
	MTU           int      `hcl:"mtu,optional" json:"mtu,omitempty"`
}

// Route declares a static route. An empty Namespace means the host.
// Default routes set Default and Family instead of Destination.
type Route struct {
	Name        string `hcl:"name,label" json:"name"`
	Namespace   string `hcl:"namespace,optional" json:"namespace,omitempty"`
	Destination string `hcl:"destination,optional" json:"destination,omitempty"`
	Via         string `hcl:"via" json:"via"`
	Interface   string `hcl:"interface" json:"interface"`
	Default     bool   `hcl:"default,optional" json:"default,omitempty"`
	Family      string `hcl:"family,optional" json:"family,omitempty"` // v4 | v6, required with default
}

// Bench declares the benchmark matrix swept by `bench run`.
type Bench struct {
	ResultsDir   string       `hcl:"results_dir,optional" json:"results_dir,omitempty"`
	Namespaces   []string     `hcl:"namespaces" json:"namespaces"`
	Targets      []string     `hcl:"targets" json:"targets"`
	Durations    []int        `hcl:"durations" json:"durations"`
	Protocols    []string     `hcl:"protocols" json:"protocols"`
	UDPBandwidth string       `hcl:"udp_bandwidth,optional" json:"udp_bandwidth,omitempty"`
	Server       *BenchServer `hcl:"server,block" json:"server,omitempty"`
}

// BenchServer tells the runner where to keep an iperf3 server for the
// duration of the sweep. An empty Namespace means the host.
type BenchServer struct {
	Namespace string `hcl:"namespace,optional" json:"namespace,omitempty"`
	Bind      string `hcl:"bind,optional" json:"bind,omitempty"`
}

// NamespaceByName returns the namespace declaration with the given name.
func (t *Topology) NamespaceByName(name string) (*Namespace, bool) {
	for i := range t.Namespaces {
		if t.Namespaces[i].Name == name {
			return &t.Namespaces[i], true
		}
	}
	return nil, false
}

// LinksFor returns the links whose peer end lands in the given
// namespace, in declaration order.
func (t *Topology) LinksFor(namespace string) []Link {
	var out []Link
	for _, l := range t.Links {
		if l.Namespace == namespace {
			out = append(out, l)
		}
	}
	return out
}

// RoutesFor returns the routes scoped to the given namespace ("" for
// the host), in declaration order.
func (t *Topology) RoutesFor(namespace string) []Route {
	var out []Route
	for _, r := range t.Routes {
		if r.Namespace == namespace {
			out = append(out, r)
		}
	}
	return out
}
