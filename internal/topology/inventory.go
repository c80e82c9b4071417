package topology

import (
	"errors"

	"grimm.is/xlatbench/internal/addrplan"
	"grimm.is/xlatbench/internal/config"
	"grimm.is/xlatbench/internal/xlat"
)

// InterfaceInfo is one interface and its live addresses.
type InterfaceInfo struct {
	Name      string   `json:"name"`
	Addresses []string `json:"addresses,omitempty"`
}

// TranslatorInfo reports a translator's declared shape and whatever
// live state is observable.
type TranslatorInfo struct {
	Kind          string `json:"kind"`
	Device        string `json:"device"`
	State         string `json:"state"`
	Pid           int    `json:"pid,omitempty"`
	DevicePresent bool   `json:"device_present"`
}

// NamespaceInfo is the live view of one configured namespace.
type NamespaceInfo struct {
	Name       string          `json:"name"`
	Exists     bool            `json:"exists"`
	Forwarding bool            `json:"forwarding"`
	Interfaces []InterfaceInfo `json:"interfaces,omitempty"`
	Translator *TranslatorInfo `json:"translator,omitempty"`
}

// Inventory is the live view of a whole topology.
type Inventory struct {
	Topology   string          `json:"topology"`
	Namespaces []NamespaceInfo `json:"namespaces"`
}

// Inventory reports what the configuration declares against what is
// actually present: namespace existence, interface addresses, and
// translator device and process state. Supervisors started by another
// process report state "unknown".
func (o *Orchestrator) Inventory(cfg *config.Config) (*Inventory, error) {
	t := cfg.Topology
	if t == nil {
		return nil, errors.New("configuration has no topology block")
	}

	inv := &Inventory{Topology: t.Name}
	for _, ns := range t.Namespaces {
		info := NamespaceInfo{
			Name:   ns.Name,
			Exists: o.deps.Namespaces.Exists(ns.Name),
		}

		if info.Exists {
			if on, err := o.deps.Routes.Forwarding(ns.Name, addrplan.FamilyV6); err == nil {
				info.Forwarding = on
			}
			for _, l := range t.Links {
				if l.Namespace != ns.Name {
					continue
				}
				iface := InterfaceInfo{Name: l.PeerName}
				if addrs, err := o.deps.Links.Addresses(ns.Name, l.PeerName); err == nil {
					iface.Addresses = addrs
				}
				info.Interfaces = append(info.Interfaces, iface)
			}
		}

		if ns.Translator != nil {
			ti := &TranslatorInfo{
				Kind:   ns.Translator.Kind,
				Device: ns.Translator.Device,
				State:  "unknown",
			}
			if info.Exists {
				_, err := o.deps.Links.Addresses(ns.Name, ns.Translator.Device)
				ti.DevicePresent = err == nil
			}
			if tr, ok := o.translators[ns.Name]; ok {
				ti.State = string(tr.State())
				ti.Pid = tr.Pid()
			} else if !ti.DevicePresent {
				ti.State = string(xlat.StateUnconfigured)
			}
			info.Translator = ti
		}

		inv.Namespaces = append(inv.Namespaces, info)
	}
	return inv, nil
}
