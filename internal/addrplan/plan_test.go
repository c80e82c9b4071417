package addrplan

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustAssign(t *testing.T, iface, cidr string) Assignment {
	t.Helper()
	a, err := ParseAssignment(iface, cidr)
	require.NoError(t, err)
	return a
}

func TestParseAssignmentScope(t *testing.T) {
	ll := mustAssign(t, "veth0", "fe80::1/64")
	assert.Equal(t, ScopeLinkLocal, ll.Scope)
	assert.Equal(t, FamilyV6, ll.FamilyOf())

	global := mustAssign(t, "veth0", "2001:db8::1/64")
	assert.Equal(t, ScopeGlobal, global.Scope)

	v4 := mustAssign(t, "veth0", "192.0.2.1/24")
	assert.Equal(t, ScopeGlobal, v4.Scope)
	assert.Equal(t, FamilyV4, v4.FamilyOf())

	_, err := ParseAssignment("veth0", "not-an-address")
	assert.Error(t, err)
}

func TestCheckLinkLocalPair(t *testing.T) {
	host := mustAssign(t, "veth-h", "fe80::1/64")
	peer := mustAssign(t, "veth-p", "fe80::2/64")
	assert.NoError(t, CheckLinkLocalPair(host, peer))

	// Same address on both ends.
	dup := mustAssign(t, "veth-p", "fe80::1/64")
	assert.Error(t, CheckLinkLocalPair(host, dup))

	// Prefix length mismatch.
	short := mustAssign(t, "veth-p", "fe80::2/10")
	assert.Error(t, CheckLinkLocalPair(host, short))

	// Not link-local at all.
	global := mustAssign(t, "veth-p", "2001:db8::2/64")
	assert.Error(t, CheckLinkLocalPair(host, global))
}

func TestOnLink(t *testing.T) {
	assigns := []Assignment{
		mustAssign(t, "veth-h", "fe80::1/64"),
		mustAssign(t, "veth-h", "2001:db8::1/64"),
		mustAssign(t, "veth-h", "192.0.2.1/24"),
	}

	assert.True(t, OnLink(netip.MustParseAddr("fe80::2"), assigns))
	assert.True(t, OnLink(netip.MustParseAddr("2001:db8::42"), assigns))
	assert.True(t, OnLink(netip.MustParseAddr("192.0.2.7"), assigns))
	assert.False(t, OnLink(netip.MustParseAddr("2001:db8:ffff::1"), assigns))
	assert.False(t, OnLink(netip.MustParseAddr("198.51.100.1"), assigns))
}

func TestEmbedIPv4(t *testing.T) {
	got, err := EmbedIPv4(WellKnownNAT64Prefix, netip.MustParseAddr("192.0.2.1"))
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("64:ff9b::c000:201"), got)

	_, err = EmbedIPv4(WellKnownNAT64Prefix, netip.MustParseAddr("2001:db8::1"))
	assert.Error(t, err)

	_, err = EmbedIPv4(netip.MustParsePrefix("2001:db8::/64"), netip.MustParseAddr("192.0.2.1"))
	assert.Error(t, err)
}
