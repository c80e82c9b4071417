package config

import (
	"fmt"
	"net/netip"
	"regexp"
	"strings"

	"grimm.is/xlatbench/internal/addrplan"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

func (e *ValidationErrors) add(field, format string, args ...any) {
	*e = append(*e, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// TranslatorKinds lists the supported translator adapters.
var TranslatorKinds = []string{"siit", "nat64-tayga", "clat-tundra"}

var bandwidthRe = regexp.MustCompile(`^[0-9]+[KMG]?$`)

// Validate checks the whole configuration. Defaults are applied first
// so callers always see a normalized config afterwards.
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors

	c.applyDefaults()

	if c.Topology != nil {
		c.Topology.validate(&errs)
	}
	if c.Bench != nil {
		c.validateBench(&errs)
	}
	if c.Topology == nil && c.Bench == nil {
		errs.add("config", "neither a topology nor a bench block is declared")
	}
	return errs
}

func (c *Config) applyDefaults() {
	if c.Topology != nil {
		for i := range c.Topology.Namespaces {
			tr := c.Topology.Namespaces[i].Translator
			if tr == nil {
				continue
			}
			if tr.Device == "" {
				switch tr.Kind {
				case "clat-tundra":
					tr.Device = "clat"
				default:
					tr.Device = "nat64"
				}
			}
			if tr.MTU == 0 {
				tr.MTU = 1500
			}
			if tr.TTL == 0 {
				tr.TTL = 64
			}
			if tr.Kind == "clat-tundra" && tr.Threads == 0 {
				tr.Threads = 1
			}
		}
	}
	if c.Bench != nil {
		if c.Bench.UDPBandwidth == "" {
			c.Bench.UDPBandwidth = "10M"
		}
		if c.Bench.ResultsDir == "" {
			c.Bench.ResultsDir = "results"
		}
	}
}

func (t *Topology) validate(errs *ValidationErrors) {
	if t.Name == "" {
		errs.add("topology", "missing name label")
	}
	if len(t.Namespaces) == 0 {
		errs.add("topology."+t.Name, "declares no namespaces")
	}

	seenNS := map[string]bool{}
	for _, ns := range t.Namespaces {
		field := "namespace." + ns.Name
		if ns.Name == "" {
			errs.add("namespace", "missing name label")
			continue
		}
		if seenNS[ns.Name] {
			errs.add(field, "declared twice")
		}
		seenNS[ns.Name] = true

		if ns.Translator != nil {
			validateTranslator(field+".translator", ns.Translator, errs)
		}
	}

	seenIf := map[string]string{}
	for _, l := range t.Links {
		field := "link." + l.Name
		if l.HostName == "" || l.PeerName == "" {
			errs.add(field, "host_name and peer_name are required")
			continue
		}
		if l.HostName == l.PeerName {
			errs.add(field, "host_name and peer_name must differ")
		}
		if !seenNS[l.Namespace] {
			errs.add(field, "references undeclared namespace %q", l.Namespace)
		}
		if l.HostNamespace != "" && !seenNS[l.HostNamespace] {
			errs.add(field, "references undeclared host_namespace %q", l.HostNamespace)
		}
		for _, name := range []string{l.HostName, l.PeerName} {
			if prev, dup := seenIf[name]; dup {
				errs.add(field, "interface %s already used by link %s", name, prev)
			}
			seenIf[name] = l.Name
		}

		hostLL, peerLL := parseEndpointAddrs(field, l.HostName, l.HostAddrs, errs),
			parseEndpointAddrs(field, l.PeerName, l.PeerAddrs, errs)
		if hostLL != nil && peerLL != nil {
			if err := addrplan.CheckLinkLocalPair(*hostLL, *peerLL); err != nil {
				errs.add(field, "%v", err)
			}
		}
	}

	for _, r := range t.Routes {
		field := "route." + r.Name
		if r.Namespace != "" && !seenNS[r.Namespace] {
			errs.add(field, "references undeclared namespace %q", r.Namespace)
		}
		if r.Interface == "" {
			errs.add(field, "interface is required")
		}
		if _, err := netip.ParseAddr(r.Via); err != nil {
			errs.add(field, "invalid via address %q", r.Via)
		}
		if r.Default {
			if r.Destination != "" {
				errs.add(field, "default routes must not set destination")
			}
			if r.Family != string(addrplan.FamilyV4) && r.Family != string(addrplan.FamilyV6) {
				errs.add(field, "default routes require family v4 or v6")
			}
		} else {
			if _, err := netip.ParsePrefix(r.Destination); err != nil {
				errs.add(field, "invalid destination %q", r.Destination)
			}
		}
	}
}

// parseEndpointAddrs parses one endpoint's address list and returns its
// link-local assignment, if any.
func parseEndpointAddrs(field, iface string, addrs []string, errs *ValidationErrors) *addrplan.Assignment {
	var linkLocal *addrplan.Assignment
	for _, cidr := range addrs {
		a, err := addrplan.ParseAssignment(iface, cidr)
		if err != nil {
			errs.add(field, "%v", err)
			continue
		}
		if a.Scope == addrplan.ScopeLinkLocal {
			aCopy := a
			linkLocal = &aCopy
		}
	}
	return linkLocal
}

// Validate checks a translator block on its own, for callers that
// receive one outside a full configuration.
func (tr *Translator) Validate() error {
	var errs ValidationErrors
	validateTranslator("translator", tr, &errs)
	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateTranslator(field string, tr *Translator, errs *ValidationErrors) {
	kindOK := false
	for _, k := range TranslatorKinds {
		if tr.Kind == k {
			kindOK = true
		}
	}
	if !kindOK {
		errs.add(field, "unknown kind %q (supported: %s)", tr.Kind, strings.Join(TranslatorKinds, ", "))
		return
	}

	if _, err := netip.ParsePrefix(tr.Prefix); err != nil {
		errs.add(field, "invalid prefix %q", tr.Prefix)
	}
	if a, err := netip.ParseAddr(tr.IPv4); err != nil || !a.Is4() {
		errs.add(field, "invalid ipv4 address %q", tr.IPv4)
	}
	if a, err := netip.ParseAddr(tr.IPv6); err != nil || !a.Is6() {
		errs.add(field, "invalid ipv6 address %q", tr.IPv6)
	}

	switch tr.Kind {
	case "siit":
		if len(tr.Maps) == 0 {
			errs.add(field, "siit requires at least one map entry")
		}
		for _, m := range tr.Maps {
			v4, v6, ok := strings.Cut(m, "=")
			if !ok {
				errs.add(field, "map entry %q is not in v4=v6 form", m)
				continue
			}
			if a, err := netip.ParseAddr(v4); err != nil || !a.Is4() {
				errs.add(field, "map entry %q has invalid IPv4 side", m)
			}
			if a, err := netip.ParseAddr(v6); err != nil || !a.Is6() {
				errs.add(field, "map entry %q has invalid IPv6 side", m)
			}
		}
	case "nat64-tayga":
		if tr.Pool == "" {
			errs.add(field, "nat64-tayga requires a dynamic pool")
		} else if _, err := netip.ParsePrefix(tr.Pool); err != nil {
			errs.add(field, "invalid pool %q", tr.Pool)
		}
	case "clat-tundra":
		if tr.Threads < 1 {
			errs.add(field, "threads must be at least 1")
		}
	}
}

func (c *Config) validateBench(errs *ValidationErrors) {
	b := c.Bench
	if len(b.Namespaces) == 0 {
		errs.add("bench", "namespaces is empty")
	}
	if c.Topology != nil {
		for _, ns := range b.Namespaces {
			if _, ok := c.Topology.NamespaceByName(ns); !ok {
				errs.add("bench", "references undeclared namespace %q", ns)
			}
		}
	}
	if len(b.Targets) == 0 {
		errs.add("bench", "targets is empty")
	}
	for _, tgt := range b.Targets {
		if _, err := netip.ParseAddr(tgt); err != nil {
			errs.add("bench", "invalid target address %q", tgt)
		}
	}
	if len(b.Durations) == 0 {
		errs.add("bench", "durations is empty")
	}
	for _, d := range b.Durations {
		if d <= 0 {
			errs.add("bench", "duration %d is not positive", d)
		}
	}
	if len(b.Protocols) == 0 {
		errs.add("bench", "protocols is empty")
	}
	for _, p := range b.Protocols {
		if p != "tcp" && p != "udp" {
			errs.add("bench", "unknown protocol %q", p)
		}
	}
	if !bandwidthRe.MatchString(b.UDPBandwidth) {
		errs.add("bench", "invalid udp_bandwidth %q", b.UDPBandwidth)
	}
}
