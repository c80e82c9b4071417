//go:build linux

package network

import (
	"fmt"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"
)

// NetlinkProvider opens real netlink handles, per namespace.
type NetlinkProvider struct{}

// At returns a Netlinker bound to the named namespace ("" = host).
func (p *NetlinkProvider) At(namespace string) (Netlinker, error) {
	if namespace == "" {
		h, err := netlink.NewHandle()
		if err != nil {
			return nil, fmt.Errorf("failed to open netlink handle: %w", err)
		}
		return &RealNetlinker{h: h}, nil
	}

	nsh, err := netns.GetFromName(namespace)
	if err != nil {
		return nil, fmt.Errorf("namespace %s: %w", namespace, ErrNotFound)
	}
	defer nsh.Close()

	h, err := netlink.NewHandleAt(nsh)
	if err != nil {
		return nil, fmt.Errorf("failed to open netlink handle in %s: %w", namespace, err)
	}
	return &RealNetlinker{h: h}, nil
}

// NsFd opens the named namespace and returns its fd.
func (p *NetlinkProvider) NsFd(namespace string) (int, func(), error) {
	nsh, err := netns.GetFromName(namespace)
	if err != nil {
		return -1, nil, fmt.Errorf("namespace %s: %w", namespace, ErrNotFound)
	}
	return int(nsh), func() { nsh.Close() }, nil
}

// RealNetlinker is a concrete Netlinker over a *netlink.Handle.
type RealNetlinker struct {
	h *netlink.Handle
}

func (r *RealNetlinker) LinkByName(name string) (netlink.Link, error) {
	return r.h.LinkByName(name)
}

func (r *RealNetlinker) LinkList() ([]netlink.Link, error) {
	return r.h.LinkList()
}

func (r *RealNetlinker) LinkAdd(link netlink.Link) error {
	return r.h.LinkAdd(link)
}

func (r *RealNetlinker) LinkDel(link netlink.Link) error {
	return r.h.LinkDel(link)
}

func (r *RealNetlinker) LinkSetUp(link netlink.Link) error {
	return r.h.LinkSetUp(link)
}

func (r *RealNetlinker) LinkSetMTU(link netlink.Link, mtu int) error {
	return r.h.LinkSetMTU(link, mtu)
}

func (r *RealNetlinker) LinkSetNsFd(link netlink.Link, fd int) error {
	return r.h.LinkSetNsFd(link, fd)
}

func (r *RealNetlinker) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	return r.h.AddrList(link, family)
}

func (r *RealNetlinker) AddrAdd(link netlink.Link, addr *netlink.Addr) error {
	return r.h.AddrAdd(link, addr)
}

func (r *RealNetlinker) RouteAdd(route *netlink.Route) error {
	return r.h.RouteAdd(route)
}

func (r *RealNetlinker) RouteReplace(route *netlink.Route) error {
	return r.h.RouteReplace(route)
}

func (r *RealNetlinker) RouteDel(route *netlink.Route) error {
	return r.h.RouteDel(route)
}

func (r *RealNetlinker) ParseAddr(s string) (*netlink.Addr, error) {
	return netlink.ParseAddr(s)
}

func (r *RealNetlinker) Close() {
	r.h.Close()
}
