package network

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"grimm.is/xlatbench/internal/logging"
)

// LinkManager creates and tears down veth pairs and assigns their
// addresses. One endpoint of each pair stays where it was created (the
// host, normally) and the other is moved into a namespace.
type LinkManager struct {
	nl  HandleProvider
	log *logging.Logger
}

// NewLinkManager returns a LinkManager using the given provider.
func NewLinkManager(nl HandleProvider, log *logging.Logger) *LinkManager {
	if log == nil {
		log = logging.WithComponent("link")
	}
	return &LinkManager{nl: nl, log: log}
}

// CreateVethPair creates a veth pair with both ends on the host.
// Fails with ErrInterfaceExists if either name is already taken.
func (m *LinkManager) CreateVethPair(hostIf, peerIf string, mtu int) error {
	h, err := m.nl.At("")
	if err != nil {
		return err
	}
	defer h.Close()

	for _, name := range []string{hostIf, peerIf} {
		if _, err := h.LinkByName(name); err == nil {
			return fmt.Errorf("interface %s: %w", name, ErrInterfaceExists)
		}
	}

	attrs := netlink.NewLinkAttrs()
	attrs.Name = hostIf
	if mtu > 0 {
		attrs.MTU = mtu
	}
	veth := &netlink.Veth{LinkAttrs: attrs, PeerName: peerIf}
	if err := h.LinkAdd(veth); err != nil {
		return fmt.Errorf("failed to create veth pair %s/%s: %w", hostIf, peerIf, err)
	}
	m.log.Debug("veth pair created", "host", hostIf, "peer", peerIf)
	return nil
}

// MoveToNamespace moves a host interface into the named namespace.
// On failure the veth pair is deleted so no half-moved link survives.
func (m *LinkManager) MoveToNamespace(ifName, namespace string) error {
	h, err := m.nl.At("")
	if err != nil {
		return err
	}
	defer h.Close()

	link, err := h.LinkByName(ifName)
	if err != nil {
		if isLinkNotFound(err) {
			return fmt.Errorf("interface %s: %w", ifName, ErrNotFound)
		}
		return fmt.Errorf("failed to look up %s: %w", ifName, err)
	}

	fd, done, err := m.nl.NsFd(namespace)
	if err != nil {
		return err
	}
	defer done()

	if err := h.LinkSetNsFd(link, fd); err != nil {
		// A pair with one end stranded is worse than no pair. Deleting
		// either end removes both.
		if delErr := h.LinkDel(link); delErr != nil {
			m.log.Warn("failed to clean up veth after move failure",
				"interface", ifName, "error", delErr)
		}
		return fmt.Errorf("failed to move %s into %s: %w", ifName, namespace, err)
	}
	m.log.Debug("interface moved", "interface", ifName, "namespace", namespace)
	return nil
}

// SetUp brings the named interface administratively up. Idempotent.
func (m *LinkManager) SetUp(namespace, ifName string) error {
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
	if err := h.LinkSetUp(link); err != nil {
		return fmt.Errorf("failed to bring up %s: %w", ifName, err)
	}
	return nil
}

// AssignAddress adds an address to an interface. Fails with
// ErrAddressConflict if the address is already bound to a different
// interface in the same namespace; re-assigning to the same interface
// is idempotent success.
func (m *LinkManager) AssignAddress(namespace, ifName, cidr string) error {
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

	addr, err := h.ParseAddr(cidr)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", cidr, err)
	}

	if owner, err := m.addressOwner(h, addr); err == nil && owner != "" && owner != ifName {
		return fmt.Errorf("address %s already on %s: %w", cidr, owner, ErrAddressConflict)
	}

	if err := h.AddrAdd(link, addr); err != nil {
		if errors.Is(err, syscall.EEXIST) {
			return nil
		}
		return fmt.Errorf("failed to assign %s to %s: %w", cidr, ifName, err)
	}
	m.log.Debug("address assigned", "interface", ifName, "namespace", namespace, "address", cidr)
	return nil
}

// DeleteLink removes an interface; absence is success.
func (m *LinkManager) DeleteLink(namespace, ifName string) error {
	h, err := m.nl.At(namespace)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	defer h.Close()

	link, err := h.LinkByName(ifName)
	if err != nil {
		if isLinkNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to look up %s: %w", ifName, err)
	}
	if err := h.LinkDel(link); err != nil {
		return fmt.Errorf("failed to delete %s: %w", ifName, err)
	}
	m.log.Debug("interface deleted", "interface", ifName, "namespace", namespace)
	return nil
}

// Addresses returns the CIDR strings assigned to an interface.
func (m *LinkManager) Addresses(namespace, ifName string) ([]string, error) {
	h, err := m.nl.At(namespace)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	link, err := h.LinkByName(ifName)
	if err != nil {
		if isLinkNotFound(err) {
			return nil, fmt.Errorf("interface %s in %q: %w", ifName, namespace, ErrNotFound)
		}
		return nil, err
	}
	addrs, err := h.AddrList(link, unix.AF_UNSPEC)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.IPNet.String())
	}
	return out, nil
}

// addressOwner finds which interface, if any, already carries addr.
func (m *LinkManager) addressOwner(h Netlinker, addr *netlink.Addr) (string, error) {
	links, err := h.LinkList()
	if err != nil {
		return "", err
	}
	for _, l := range links {
		addrs, err := h.AddrList(l, unix.AF_UNSPEC)
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if a.IP.Equal(addr.IP) {
				return l.Attrs().Name, nil
			}
		}
	}
	return "", nil
}

func isLinkNotFound(err error) bool {
	var lnf netlink.LinkNotFoundError
	return errors.As(err, &lnf)
}
