package network

import (
	"github.com/stretchr/testify/mock"
	"github.com/vishvananda/netlink"
)

// MockNetlinker is a mock implementation of the Netlinker interface.
type MockNetlinker struct {
	mock.Mock
}

func (m *MockNetlinker) LinkByName(name string) (netlink.Link, error) {
	args := m.Called(name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(netlink.Link), args.Error(1)
}

func (m *MockNetlinker) LinkList() ([]netlink.Link, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]netlink.Link), args.Error(1)
}

func (m *MockNetlinker) LinkAdd(link netlink.Link) error {
	args := m.Called(link)
	return args.Error(0)
}

func (m *MockNetlinker) LinkDel(link netlink.Link) error {
	args := m.Called(link)
	return args.Error(0)
}

func (m *MockNetlinker) LinkSetUp(link netlink.Link) error {
	args := m.Called(link)
	return args.Error(0)
}

func (m *MockNetlinker) LinkSetMTU(link netlink.Link, mtu int) error {
	args := m.Called(link, mtu)
	return args.Error(0)
}

func (m *MockNetlinker) LinkSetNsFd(link netlink.Link, fd int) error {
	args := m.Called(link, fd)
	return args.Error(0)
}

func (m *MockNetlinker) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	args := m.Called(link, family)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]netlink.Addr), args.Error(1)
}

func (m *MockNetlinker) AddrAdd(link netlink.Link, addr *netlink.Addr) error {
	args := m.Called(link, addr)
	return args.Error(0)
}

func (m *MockNetlinker) RouteAdd(route *netlink.Route) error {
	args := m.Called(route)
	return args.Error(0)
}

func (m *MockNetlinker) RouteReplace(route *netlink.Route) error {
	args := m.Called(route)
	return args.Error(0)
}

func (m *MockNetlinker) RouteDel(route *netlink.Route) error {
	args := m.Called(route)
	return args.Error(0)
}

func (m *MockNetlinker) ParseAddr(s string) (*netlink.Addr, error) {
	args := m.Called(s)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*netlink.Addr), args.Error(1)
}

func (m *MockNetlinker) Close() {
	m.Called()
}

// MockHandleProvider hands out fixed Netlinkers per namespace.
type MockHandleProvider struct {
	mock.Mock
}

func (m *MockHandleProvider) At(namespace string) (Netlinker, error) {
	args := m.Called(namespace)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(Netlinker), args.Error(1)
}

func (m *MockHandleProvider) NsFd(namespace string) (int, func(), error) {
	args := m.Called(namespace)
	return args.Int(0), func() {}, args.Error(2)
}

// MockSysctler is a mock implementation of the Sysctler interface.
type MockSysctler struct {
	mock.Mock
}

func (m *MockSysctler) ReadSysctl(path string) (string, error) {
	args := m.Called(path)
	return args.String(0), args.Error(1)
}

func (m *MockSysctler) WriteSysctl(path, value string) error {
	args := m.Called(path, value)
	return args.Error(0)
}

// MockExecer is a mock implementation of the Execer interface.
type MockExecer struct {
	mock.Mock
}

func (m *MockExecer) Run(namespace string, name string, arg ...string) (string, error) {
	callArgs := make([]any, 0, len(arg)+2)
	callArgs = append(callArgs, namespace, name)
	for _, a := range arg {
		callArgs = append(callArgs, a)
	}
	args := m.Called(callArgs...)
	return args.String(0), args.Error(1)
}
