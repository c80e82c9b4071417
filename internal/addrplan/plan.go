// Package addrplan holds the pure address-plan data consumed by the
// topology layers: per-endpoint address assignments and the invariants
// they must satisfy before anything touches the kernel.
package addrplan

import (
	"fmt"
	"net/netip"
)

// Family selects an IP family for routes and forwarding sysctls.
type Family string

const (
	FamilyV4 Family = "v4"
	FamilyV6 Family = "v6"
)

// Scope classifies an address assignment.
type Scope string

const (
	ScopeLinkLocal Scope = "link-local"
	ScopeGlobal    Scope = "global"
)

// WellKnownNAT64Prefix is the RFC 6052 well-known translation prefix.
var WellKnownNAT64Prefix = netip.MustParsePrefix("64:ff9b::/96")

// Assignment is one address on one interface endpoint.
type Assignment struct {
	Interface string
	Prefix    netip.Prefix
	Scope     Scope
}

// ParseAssignment parses a CIDR string into an Assignment, classifying
// its scope from the address itself.
func ParseAssignment(iface, cidr string) (Assignment, error) {
	p, err := netip.ParsePrefix(cidr)
	if err != nil {
		return Assignment{}, fmt.Errorf("invalid address %q on %s: %w", cidr, iface, err)
	}
	scope := ScopeGlobal
	if p.Addr().IsLinkLocalUnicast() {
		scope = ScopeLinkLocal
	}
	return Assignment{Interface: iface, Prefix: p, Scope: scope}, nil
}

// FamilyOf returns the family of the assignment's address.
func (a Assignment) FamilyOf() Family {
	if a.Prefix.Addr().Is4() {
		return FamilyV4
	}
	return FamilyV6
}

// CheckLinkLocalPair validates that the two link-local endpoints of a
// veth pair share the same prefix and prefix length but differ in host
// bits. Both sides answering to the same address would make neighbor
// discovery on the link ambiguous.
func CheckLinkLocalPair(host, peer Assignment) error {
	if host.Scope != ScopeLinkLocal || peer.Scope != ScopeLinkLocal {
		return fmt.Errorf("assignments %s and %s are not both link-local", host.Prefix, peer.Prefix)
	}
	if host.Prefix.Bits() != peer.Prefix.Bits() {
		return fmt.Errorf("link-local pair %s/%s disagrees on prefix length (%d vs %d)",
			host.Prefix.Addr(), peer.Prefix.Addr(), host.Prefix.Bits(), peer.Prefix.Bits())
	}
	if host.Prefix.Masked() != peer.Prefix.Masked() {
		return fmt.Errorf("link-local pair %s and %s are not in the same subnet",
			host.Prefix, peer.Prefix)
	}
	if host.Prefix.Addr() == peer.Prefix.Addr() {
		return fmt.Errorf("link-local pair duplicates address %s", host.Prefix.Addr())
	}
	return nil
}

// OnLink reports whether nextHop is directly reachable through any of
// the given assignments. Link-local next hops are on-link whenever the
// egress interface carries any link-local address of the same family.
func OnLink(nextHop netip.Addr, assignments []Assignment) bool {
	for _, a := range assignments {
		if a.Prefix.Addr().Is4() != nextHop.Is4() {
			continue
		}
		if nextHop.IsLinkLocalUnicast() && a.Prefix.Addr().IsLinkLocalUnicast() {
			return true
		}
		if a.Prefix.Contains(nextHop) {
			return true
		}
	}
	return false
}

// EmbedIPv4 maps an IPv4 address into a /96 translation prefix per
// RFC 6052 (the only embedding layout the translators here use).
func EmbedIPv4(prefix netip.Prefix, v4 netip.Addr) (netip.Addr, error) {
	if !v4.Is4() {
		return netip.Addr{}, fmt.Errorf("%s is not an IPv4 address", v4)
	}
	if !prefix.Addr().Is6() || prefix.Bits() != 96 {
		return netip.Addr{}, fmt.Errorf("translation prefix %s is not an IPv6 /96", prefix)
	}
	b := prefix.Addr().As16()
	v4b := v4.As4()
	copy(b[12:], v4b[:])
	return netip.AddrFrom16(b), nil
}
