package network

import (
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/vishvananda/netlink"

	"grimm.is/xlatbench/internal/addrplan"
	"grimm.is/xlatbench/internal/logging"
)

const (
	sysctlForwardV4 = "net.ipv4.ip_forward"
	sysctlForwardV6 = "net.ipv6.conf.all.forwarding"
)

// NsRunner runs fn with the calling thread switched into the named
// namespace ("" = host). Satisfied by netns.Manager.InNamespace.
type NsRunner func(namespace string, fn func() error) error

// RouteManager installs routes and toggles forwarding sysctls on the
// host and inside namespaces.
type RouteManager struct {
	nl    HandleProvider
	sys   Sysctler
	enter NsRunner
	log   *logging.Logger
}

// NewRouteManager returns a RouteManager. enter is used to scope
// sysctl writes to a namespace; pass the namespace manager's
// InNamespace.
func NewRouteManager(nl HandleProvider, sys Sysctler, enter NsRunner, log *logging.Logger) *RouteManager {
	if sys == nil {
		sys = DefaultSysctler
	}
	if enter == nil {
		enter = func(namespace string, fn func() error) error {
			if namespace != "" {
				return fmt.Errorf("no namespace runner configured for %q", namespace)
			}
			return fn()
		}
	}
	if log == nil {
		log = logging.WithComponent("route")
	}
	return &RouteManager{nl: nl, sys: sys, enter: enter, log: log}
}

// AddRoute installs a route to destination via the given next hop and
// egress interface. An identical existing route is success.
func (m *RouteManager) AddRoute(namespace, destination, via, ifName string) error {
	h, err := m.nl.At(namespace)
	if err != nil {
		return err
	}
	defer h.Close()

	link, err := h.LinkByName(ifName)
	if err != nil {
		if isLinkNotFound(err) {
			return fmt.Errorf("interface %s in %q: %w", ifName, namespace, ErrNotFound)
		}
		return fmt.Errorf("failed to look up %s: %w", ifName, err)
	}

	dst, err := ParseIPNet(destination)
	if err != nil {
		return fmt.Errorf("invalid destination %q: %w", destination, err)
	}
	gw := net.ParseIP(via)
	if gw == nil {
		return fmt.Errorf("invalid next hop %q", via)
	}

	route := &netlink.Route{
		LinkIndex: link.Attrs().Index,
		Dst:       dst,
		Gw:        gw,
	}
	if err := h.RouteAdd(route); err != nil {
		if errors.Is(err, syscall.EEXIST) {
			return nil
		}
		return fmt.Errorf("failed to add route %s via %s: %w", destination, via, err)
	}
	m.log.Debug("route installed", "namespace", namespace, "destination", destination, "via", via)
	return nil
}

// AddDeviceRoute installs a route that sends a prefix straight into a
// device with no next hop (the form translator TUN devices need).
func (m *RouteManager) AddDeviceRoute(namespace, destination, ifName string) error {
	h, err := m.nl.At(namespace)
	if err != nil {
		return err
	}
	defer h.Close()

	link, err := h.LinkByName(ifName)
	if err != nil {
		if isLinkNotFound(err) {
			return fmt.Errorf("interface %s in %q: %w", ifName, namespace, ErrNotFound)
		}
		return fmt.Errorf("failed to look up %s: %w", ifName, err)
	}

	dst, err := ParseIPNet(destination)
	if err != nil {
		return fmt.Errorf("invalid destination %q: %w", destination, err)
	}

	route := &netlink.Route{
		LinkIndex: link.Attrs().Index,
		Dst:       dst,
	}
	if err := h.RouteAdd(route); err != nil {
		if errors.Is(err, syscall.EEXIST) {
			return nil
		}
		return fmt.Errorf("failed to add device route %s dev %s: %w", destination, ifName, err)
	}
	m.log.Debug("device route installed", "namespace", namespace, "destination", destination, "dev", ifName)
	return nil
}

// SetDefaultRoute replaces the default route of the given family.
func (m *RouteManager) SetDefaultRoute(namespace, via, ifName string, family addrplan.Family) error {
	h, err := m.nl.At(namespace)
	if err != nil {
		return err
	}
	defer h.Close()

	link, err := h.LinkByName(ifName)
	if err != nil {
		if isLinkNotFound(err) {
			return fmt.Errorf("interface %s in %q: %w", ifName, namespace, ErrNotFound)
		}
		return fmt.Errorf("failed to look up %s: %w", ifName, err)
	}

	gw := net.ParseIP(via)
	if gw == nil {
		return fmt.Errorf("invalid next hop %q", via)
	}

	var dst *net.IPNet
	switch family {
	case addrplan.FamilyV4:
		dst = &net.IPNet{IP: net.IPv4zero, Mask: net.CIDRMask(0, 32)}
	case addrplan.FamilyV6:
		dst = &net.IPNet{IP: net.IPv6zero, Mask: net.CIDRMask(0, 128)}
	default:
		return fmt.Errorf("unknown family %q", family)
	}

	route := &netlink.Route{
		LinkIndex: link.Attrs().Index,
		Dst:       dst,
		Gw:        gw,
	}
	if err := h.RouteReplace(route); err != nil {
		return fmt.Errorf("failed to set default %s route via %s: %w", family, via, err)
	}
	m.log.Debug("default route set", "namespace", namespace, "family", family, "via", via)
	return nil
}

func forwardingKey(family addrplan.Family) (string, error) {
	switch family {
	case addrplan.FamilyV4:
		return sysctlForwardV4, nil
	case addrplan.FamilyV6:
		return sysctlForwardV6, nil
	default:
		return "", fmt.Errorf("unknown family %q", family)
	}
}

// SetForwarding toggles the kernel forwarding switch for a family
// inside the given namespace scope.
func (m *RouteManager) SetForwarding(namespace string, family addrplan.Family, enabled bool) error {
	key, err := forwardingKey(family)
	if err != nil {
		return err
	}
	value := "0"
	if enabled {
		value = "1"
	}

	err = m.enter(namespace, func() error {
		return m.sys.WriteSysctl(key, value)
	})
	if err != nil {
		return fmt.Errorf("failed to set %s=%s in %q: %w", key, value, namespace, err)
	}
	m.log.Debug("forwarding set", "namespace", namespace, "family", family, "enabled", enabled)
	return nil
}

// Forwarding reads back the kernel forwarding switch for a family
// inside the given namespace scope.
func (m *RouteManager) Forwarding(namespace string, family addrplan.Family) (bool, error) {
	key, err := forwardingKey(family)
	if err != nil {
		return false, err
	}

	var value string
	err = m.enter(namespace, func() error {
		v, err := m.sys.ReadSysctl(key)
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to read %s in %q: %w", key, namespace, err)
	}
	return value == "1", nil
}
