// Package network manages veth links, addresses, routes and forwarding
// sysctls across the host and the rig's network namespaces. All kernel
// interactions go through small interfaces (Netlinker, Sysctler,
// Execer) so the managers can be unit tested against mocks.
package network

import (
	"errors"
	"net"

	"github.com/vishvananda/netlink"
)

// Sentinel errors for the link/address layer.
var (
	// ErrNotFound means a namespace or interface was absent when required.
	ErrNotFound = errors.New("not found")
	// ErrInterfaceExists means a veth endpoint name is already taken.
	ErrInterfaceExists = errors.New("interface exists")
	// ErrAddressConflict means an address is already bound to a different interface.
	ErrAddressConflict = errors.New("address conflict")
)

// Netlinker abstracts the netlink interactions of one namespace scope.
// This allows for mocking netlink calls during unit testing.
type Netlinker interface {
	LinkByName(name string) (netlink.Link, error)
	LinkList() ([]netlink.Link, error)
	LinkAdd(link netlink.Link) error
	LinkDel(link netlink.Link) error
	LinkSetUp(link netlink.Link) error
	LinkSetMTU(link netlink.Link, mtu int) error
	LinkSetNsFd(link netlink.Link, fd int) error

	AddrList(link netlink.Link, family int) ([]netlink.Addr, error)
	AddrAdd(link netlink.Link, addr *netlink.Addr) error

	RouteAdd(route *netlink.Route) error
	RouteReplace(route *netlink.Route) error
	RouteDel(route *netlink.Route) error

	ParseAddr(s string) (*netlink.Addr, error)

	Close()
}

// HandleProvider opens a Netlinker scoped to a network namespace.
// The empty string means the host namespace. Callers must Close the
// returned Netlinker. NsFd opens the namespace's fd for LinkSetNsFd;
// callers must invoke the returned func when done.
type HandleProvider interface {
	At(namespace string) (Netlinker, error)
	NsFd(namespace string) (int, func(), error)
}

// Sysctler abstracts sysctl reads and writes. Paths may be given in
// dotted notation (net.ipv6.conf.all.forwarding) or as /proc/sys paths.
type Sysctler interface {
	ReadSysctl(path string) (string, error)
	WriteSysctl(path, value string) error
}

// Execer abstracts executing external commands, optionally inside a
// network namespace. Implementations block until the command exits and
// return its combined output.
type Execer interface {
	Run(namespace string, name string, arg ...string) (string, error)
}

// ParseIPNet parses a CIDR string into a *net.IPNet that keeps the
// host bits (the form netlink address assignment expects).
func ParseIPNet(s string) (*net.IPNet, error) {
	ip, ipNet, err := net.ParseCIDR(s)
	if err != nil {
		return nil, err
	}
	ipNet.IP = ip
	return ipNet, nil
}
