package network

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"

	"grimm.is/xlatbench/internal/addrplan"
)

func newMockedRouteManager(t *testing.T, enter NsRunner) (*RouteManager, *MockHandleProvider, *MockNetlinker, *MockSysctler) {
	t.Helper()
	nl := new(MockNetlinker)
	nl.On("Close").Return()
	prov := new(MockHandleProvider)
	sys := new(MockSysctler)
	return NewRouteManager(prov, sys, enter, nil), prov, nl, sys
}

func TestAddRoute(t *testing.T) {
	m, prov, nl, _ := newMockedRouteManager(t, nil)
	prov.On("At", "").Return(nl, nil)

	link := &netlink.Veth{LinkAttrs: netlink.LinkAttrs{Name: "veth-h", Index: 2}}
	nl.On("LinkByName", "veth-h").Return(link, nil).Once()
	nl.On("RouteAdd", mock.MatchedBy(func(r *netlink.Route) bool {
		return r.LinkIndex == 2 && r.Dst.String() == "64:ff9b::/96" && r.Gw.String() == "fe80::2"
	})).Return(nil).Once()

	require.NoError(t, m.AddRoute("", "64:ff9b::/96", "fe80::2", "veth-h"))
	nl.AssertExpectations(t)
}

func TestAddRouteExistingIsSuccess(t *testing.T) {
	m, prov, nl, _ := newMockedRouteManager(t, nil)
	prov.On("At", "").Return(nl, nil)

	link := &netlink.Veth{LinkAttrs: netlink.LinkAttrs{Name: "veth-h", Index: 2}}
	nl.On("LinkByName", "veth-h").Return(link, nil).Once()
	nl.On("RouteAdd", mock.Anything).Return(syscall.EEXIST).Once()

	assert.NoError(t, m.AddRoute("", "64:ff9b::/96", "fe80::2", "veth-h"))
}

func TestAddRouteMissingInterface(t *testing.T) {
	m, prov, nl, _ := newMockedRouteManager(t, nil)
	prov.On("At", "tayga-ns").Return(nl, nil)
	nl.On("LinkByName", "ghost").Return(nil, netlink.LinkNotFoundError{}).Once()

	err := m.AddRoute("tayga-ns", "64:ff9b::/96", "fe80::2", "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddDeviceRoute(t *testing.T) {
	m, prov, nl, _ := newMockedRouteManager(t, nil)
	prov.On("At", "tayga-ns").Return(nl, nil)

	link := &netlink.Veth{LinkAttrs: netlink.LinkAttrs{Name: "nat64", Index: 7}}
	nl.On("LinkByName", "nat64").Return(link, nil).Once()
	nl.On("RouteAdd", mock.MatchedBy(func(r *netlink.Route) bool {
		return r.LinkIndex == 7 && r.Dst.String() == "64:ff9b::/96" && r.Gw == nil
	})).Return(nil).Once()

	require.NoError(t, m.AddDeviceRoute("tayga-ns", "64:ff9b::/96", "nat64"))
	nl.AssertExpectations(t)
}

func TestSetDefaultRouteReplaces(t *testing.T) {
	m, prov, nl, _ := newMockedRouteManager(t, nil)
	prov.On("At", "tayga-ns").Return(nl, nil)

	link := &netlink.Veth{LinkAttrs: netlink.LinkAttrs{Name: "veth-p", Index: 5}}
	nl.On("LinkByName", "veth-p").Return(link, nil).Once()
	nl.On("RouteReplace", mock.MatchedBy(func(r *netlink.Route) bool {
		ones, bits := r.Dst.Mask.Size()
		return r.LinkIndex == 5 && ones == 0 && bits == 128 && r.Gw.String() == "fe80::1"
	})).Return(nil).Once()

	require.NoError(t, m.SetDefaultRoute("tayga-ns", "fe80::1", "veth-p", addrplan.FamilyV6))
	nl.AssertExpectations(t)
}

func TestSetForwardingHost(t *testing.T) {
	m, _, _, sys := newMockedRouteManager(t, nil)

	sys.On("WriteSysctl", "net.ipv4.ip_forward", "1").Return(nil).Once()
	require.NoError(t, m.SetForwarding("", addrplan.FamilyV4, true))

	sys.On("WriteSysctl", "net.ipv6.conf.all.forwarding", "0").Return(nil).Once()
	require.NoError(t, m.SetForwarding("", addrplan.FamilyV6, false))
	sys.AssertExpectations(t)
}

func TestSetForwardingEntersNamespace(t *testing.T) {
	var entered string
	enter := func(namespace string, fn func() error) error {
		entered = namespace
		return fn()
	}
	m, _, _, sys := newMockedRouteManager(t, enter)

	sys.On("WriteSysctl", "net.ipv6.conf.all.forwarding", "1").Return(nil).Once()
	require.NoError(t, m.SetForwarding("tayga-ns", addrplan.FamilyV6, true))
	assert.Equal(t, "tayga-ns", entered)
}

func TestSetForwardingNoRunnerForNamespace(t *testing.T) {
	m, _, _, _ := newMockedRouteManager(t, nil)
	assert.Error(t, m.SetForwarding("tayga-ns", addrplan.FamilyV6, true))
}

func TestForwardingReadsBack(t *testing.T) {
	var entered string
	enter := func(namespace string, fn func() error) error {
		entered = namespace
		return fn()
	}
	m, _, _, sys := newMockedRouteManager(t, enter)

	sys.On("ReadSysctl", "net.ipv6.conf.all.forwarding").Return("1", nil).Once()
	on, err := m.Forwarding("tayga-ns", addrplan.FamilyV6)
	require.NoError(t, err)
	assert.True(t, on)
	assert.Equal(t, "tayga-ns", entered)

	sys.On("ReadSysctl", "net.ipv4.ip_forward").Return("0", nil).Once()
	on, err = m.Forwarding("", addrplan.FamilyV4)
	require.NoError(t, err)
	assert.False(t, on)
	sys.AssertExpectations(t)
}
