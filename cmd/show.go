package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"grimm.is/xlatbench/internal/topology"
)

// RunShow prints the live inventory of the configured topology, as a
// table or as JSON.
func RunShow(configFile string, jsonOut bool) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}

	orch := topology.Wire(nil, false)
	inv, err := orch.Inventory(cfg)
	if err != nil {
		return err
	}

	if jsonOut {
		data, err := json.MarshalIndent(inv, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Topology: %s\n", inv.Topology)
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "NAMESPACE\tPRESENT\tFWD\tINTERFACES\tTRANSLATOR")
	for _, ns := range inv.Namespaces {
		present := "no"
		if ns.Exists {
			present = "yes"
		}
		fwd := "no"
		if ns.Forwarding {
			fwd = "yes"
		}
		ifaces := ""
		for i, iface := range ns.Interfaces {
			if i > 0 {
				ifaces += ", "
			}
			ifaces += iface.Name
		}
		xl := "-"
		if ns.Translator != nil {
			dev := "absent"
			if ns.Translator.DevicePresent {
				dev = "present"
			}
			xl = fmt.Sprintf("%s/%s (%s, device %s)",
				ns.Translator.Kind, ns.Translator.Device, ns.Translator.State, dev)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", ns.Name, present, fwd, ifaces, xl)
	}
	w.Flush()

	for _, ns := range inv.Namespaces {
		for _, iface := range ns.Interfaces {
			for _, addr := range iface.Addresses {
				fmt.Printf("  %s/%s: %s\n", ns.Name, iface.Name, addr)
			}
		}
	}
	return nil
}
