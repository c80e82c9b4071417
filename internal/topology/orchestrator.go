// Package topology turns a parsed configuration into a live rig:
// namespaces, veth pairs, addresses, routes, forwarding switches and
// running translator daemons. Build is all-or-nothing; a failure rolls
// back everything provisioned so far.
package topology

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"grimm.is/xlatbench/internal/addrplan"
	"grimm.is/xlatbench/internal/config"
	"grimm.is/xlatbench/internal/logging"
	"grimm.is/xlatbench/internal/network"
	"grimm.is/xlatbench/internal/xlat"
)

// ErrUnreachableNextHop means a configured route names a next hop that
// no address on its egress interface can reach directly.
var ErrUnreachableNextHop = errors.New("next hop is not on-link")

// NamespaceManager is the namespace surface the orchestrator needs.
// Satisfied by netns.Manager.
type NamespaceManager interface {
	Create(name string) error
	Destroy(name string) error
	Exists(name string) bool
	List() ([]string, error)
	InNamespace(name string, fn func() error) error
}

// LinkManager is the veth surface. Satisfied by network.LinkManager.
type LinkManager interface {
	CreateVethPair(hostIf, peerIf string, mtu int) error
	MoveToNamespace(ifName, namespace string) error
	SetUp(namespace, ifName string) error
	AssignAddress(namespace, ifName, cidr string) error
	DeleteLink(namespace, ifName string) error
	Addresses(namespace, ifName string) ([]string, error)
}

// RouteManager is the routing surface. Satisfied by
// network.RouteManager.
type RouteManager interface {
	AddRoute(namespace, destination, via, ifName string) error
	SetDefaultRoute(namespace, via, ifName string, family addrplan.Family) error
	SetForwarding(namespace string, family addrplan.Family, enabled bool) error
	Forwarding(namespace string, family addrplan.Family) (bool, error)
}

// Translator is the supervisor surface. Satisfied by xlat.Supervisor.
type Translator interface {
	Configure() error
	CreateDevice() error
	Start(ctx context.Context) error
	Stop() error
	Kind() string
	Device() string
	State() xlat.State
	Pid() int
}

// TranslatorFactory builds a supervisor for one namespace's translator
// block.
type TranslatorFactory func(namespace string, cfg config.Translator) (Translator, error)

// Deps carries the orchestrator's collaborators.
type Deps struct {
	Namespaces    NamespaceManager
	Links         LinkManager
	Routes        RouteManager
	Exec          network.Execer
	NewTranslator TranslatorFactory
	Log           *logging.Logger
}

// Orchestrator provisions and tears down whole topologies.
type Orchestrator struct {
	deps Deps
	log  *logging.Logger

	translators map[string]Translator
}

// New returns an Orchestrator over the given collaborators.
func New(deps Deps) *Orchestrator {
	if deps.Log == nil {
		deps.Log = logging.WithComponent("topology")
	}
	return &Orchestrator{
		deps:        deps,
		log:         deps.Log,
		translators: map[string]Translator{},
	}
}

// Translators returns the supervisors started by the last Build, keyed
// by namespace.
func (o *Orchestrator) Translators() map[string]Translator {
	out := make(map[string]Translator, len(o.translators))
	for k, v := range o.translators {
		out[k] = v
	}
	return out
}

// Build provisions the topology in dependency order: namespaces, veth
// pairs, forwarding, routes, translators. Next hops are validated
// against the address plan before anything is created. Any failure
// rolls back what was already provisioned and returns the cause.
func (o *Orchestrator) Build(ctx context.Context, cfg *config.Config) error {
	t := cfg.Topology
	if t == nil {
		return errors.New("configuration has no topology block")
	}

	if err := o.checkNextHops(t); err != nil {
		return err
	}

	var undo []func()
	fail := func(err error) error {
		o.log.Error("build failed, rolling back", "topology", t.Name, "error", err)
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		o.translators = map[string]Translator{}
		return err
	}

	for _, ns := range t.Namespaces {
		if err := o.deps.Namespaces.Create(ns.Name); err != nil {
			return fail(fmt.Errorf("namespace %s: %w", ns.Name, err))
		}
		name := ns.Name
		undo = append(undo, func() { _ = o.deps.Namespaces.Destroy(name) })
	}

	for _, l := range t.Links {
		if err := o.buildLink(l); err != nil {
			return fail(err)
		}
		link := l
		undo = append(undo, func() { _ = o.deps.Links.DeleteLink(link.HostNamespace, link.HostName) })
	}

	for _, ns := range t.Namespaces {
		if !ns.Forwarding {
			continue
		}
		for _, fam := range []addrplan.Family{addrplan.FamilyV4, addrplan.FamilyV6} {
			if err := o.deps.Routes.SetForwarding(ns.Name, fam, true); err != nil {
				return fail(fmt.Errorf("forwarding in %s: %w", ns.Name, err))
			}
		}
	}

	for _, r := range t.Routes {
		if err := o.buildRoute(r); err != nil {
			return fail(fmt.Errorf("route %s: %w", r.Name, err))
		}
	}

	for _, ns := range t.Namespaces {
		if ns.Translator == nil {
			continue
		}
		tr, err := o.deps.NewTranslator(ns.Name, *ns.Translator)
		if err != nil {
			return fail(fmt.Errorf("translator in %s: %w", ns.Name, err))
		}
		undo = append(undo, func() { _ = tr.Stop() })
		if err := tr.Configure(); err != nil {
			return fail(fmt.Errorf("translator in %s: %w", ns.Name, err))
		}
		if err := tr.CreateDevice(); err != nil {
			return fail(fmt.Errorf("translator in %s: %w", ns.Name, err))
		}
		if err := tr.Start(ctx); err != nil {
			return fail(fmt.Errorf("translator in %s: %w", ns.Name, err))
		}
		o.translators[ns.Name] = tr
	}

	o.log.Info("topology up", "name", t.Name,
		"namespaces", len(t.Namespaces), "links", len(t.Links), "routes", len(t.Routes))
	return nil
}

func (o *Orchestrator) buildLink(l config.Link) error {
	if err := o.deps.Links.CreateVethPair(l.HostName, l.PeerName, l.MTU); err != nil {
		return fmt.Errorf("link %s: %w", l.Name, err)
	}
	if err := o.deps.Links.MoveToNamespace(l.PeerName, l.Namespace); err != nil {
		return fmt.Errorf("link %s: %w", l.Name, err)
	}
	if l.HostNamespace != "" {
		if err := o.deps.Links.MoveToNamespace(l.HostName, l.HostNamespace); err != nil {
			return fmt.Errorf("link %s: %w", l.Name, err)
		}
	}
	// Addresses go on only after the owning end is up, so DAD and the
	// kernel's link-local setup see a live interface.
	if err := o.deps.Links.SetUp(l.HostNamespace, l.HostName); err != nil {
		return fmt.Errorf("link %s: %w", l.Name, err)
	}
	if err := o.deps.Links.SetUp(l.Namespace, l.PeerName); err != nil {
		return fmt.Errorf("link %s: %w", l.Name, err)
	}
	for _, cidr := range l.HostAddrs {
		if err := o.deps.Links.AssignAddress(l.HostNamespace, l.HostName, cidr); err != nil {
			return fmt.Errorf("link %s: %w", l.Name, err)
		}
	}
	for _, cidr := range l.PeerAddrs {
		if err := o.deps.Links.AssignAddress(l.Namespace, l.PeerName, cidr); err != nil {
			return fmt.Errorf("link %s: %w", l.Name, err)
		}
	}
	return nil
}

func (o *Orchestrator) buildRoute(r config.Route) error {
	if r.Default {
		return o.deps.Routes.SetDefaultRoute(r.Namespace, r.Via, r.Interface, addrplan.Family(r.Family))
	}
	return o.deps.Routes.AddRoute(r.Namespace, r.Destination, r.Via, r.Interface)
}

// checkNextHops rejects routes whose next hop no address on the egress
// interface can reach, before anything touches the kernel. Routes over
// translator devices are exempt; those interfaces carry no addresses.
func (o *Orchestrator) checkNextHops(t *config.Topology) error {
	xlatDevices := map[string]bool{}
	for _, ns := range t.Namespaces {
		if ns.Translator != nil {
			xlatDevices[ns.Translator.Device] = true
		}
	}

	for _, r := range t.Routes {
		if xlatDevices[r.Interface] {
			continue
		}
		via, err := netip.ParseAddr(r.Via)
		if err != nil {
			return fmt.Errorf("route %s: invalid via %q", r.Name, r.Via)
		}
		assignments, err := o.plannedAssignments(t, r.Namespace, r.Interface)
		if err != nil {
			return fmt.Errorf("route %s: %w", r.Name, err)
		}
		if !addrplan.OnLink(via, assignments) {
			return fmt.Errorf("route %s: %s via %s: %w", r.Name, r.Interface, r.Via, ErrUnreachableNextHop)
		}
	}
	return nil
}

// plannedAssignments collects the addresses the configuration assigns
// to one interface in one namespace scope.
func (o *Orchestrator) plannedAssignments(t *config.Topology, namespace, ifName string) ([]addrplan.Assignment, error) {
	var out []addrplan.Assignment
	add := func(addrs []string) error {
		for _, cidr := range addrs {
			a, err := addrplan.ParseAssignment(ifName, cidr)
			if err != nil {
				return err
			}
			out = append(out, a)
		}
		return nil
	}
	for _, l := range t.Links {
		if l.HostName == ifName && l.HostNamespace == namespace {
			if err := add(l.HostAddrs); err != nil {
				return nil, err
			}
		}
		if l.PeerName == ifName && l.Namespace == namespace {
			if err := add(l.PeerAddrs); err != nil {
				return nil, err
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("interface %s in %q has no configured addresses", ifName, namespace)
	}
	return out, nil
}

// Down tears the topology back down: translators stopped, stray daemon
// processes killed, host-side veth ends deleted, namespaces destroyed.
// Absent pieces are warned about, never fatal; teardown keeps going and
// reports the errors it could not swallow.
func (o *Orchestrator) Down(cfg *config.Config) error {
	t := cfg.Topology
	if t == nil {
		return errors.New("configuration has no topology block")
	}

	var errs []error

	for name, tr := range o.translators {
		if err := tr.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("translator in %s: %w", name, err))
		}
		delete(o.translators, name)
	}

	// Daemons from a previous process are not in the map; kill them by
	// binary name, best effort.
	binaries := map[string]bool{}
	for _, ns := range t.Namespaces {
		if ns.Translator == nil {
			continue
		}
		switch ns.Translator.Kind {
		case "clat-tundra":
			binaries["tundra-nat64"] = true
		default:
			binaries["tayga"] = true
		}
	}
	for bin := range binaries {
		if _, err := o.deps.Exec.Run("", "pkill", "-x", bin); err != nil {
			o.log.Debug("no stray processes to kill", "binary", bin)
		}
	}

	for _, l := range t.Links {
		if l.HostNamespace != "" {
			// Both ends live in namespaces about to be destroyed.
			continue
		}
		if err := o.deps.Links.DeleteLink("", l.HostName); err != nil {
			errs = append(errs, fmt.Errorf("link %s: %w", l.Name, err))
		}
	}

	for _, ns := range t.Namespaces {
		if !o.deps.Namespaces.Exists(ns.Name) {
			o.log.Warn("namespace already absent", "name", ns.Name)
			continue
		}
		if err := o.deps.Namespaces.Destroy(ns.Name); err != nil {
			errs = append(errs, fmt.Errorf("namespace %s: %w", ns.Name, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	o.log.Info("topology down", "name", t.Name)
	return nil
}
