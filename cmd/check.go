package cmd

import (
	"fmt"
)

// RunCheck validates the configuration file and prints what it
// declares.
func RunCheck(configFile string, verbose bool) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}

	fmt.Println("Configuration valid")
	if t := cfg.Topology; t != nil {
		translators := 0
		for _, ns := range t.Namespaces {
			if ns.Translator != nil {
				translators++
			}
		}
		fmt.Printf("Topology: %s (%d namespaces, %d links, %d routes, %d translators)\n",
			t.Name, len(t.Namespaces), len(t.Links), len(t.Routes), translators)

		if verbose {
			for _, ns := range t.Namespaces {
				line := "  namespace " + ns.Name
				if ns.Forwarding {
					line += " [forwarding]"
				}
				if ns.Translator != nil {
					line += fmt.Sprintf(" [%s on %s]", ns.Translator.Kind, ns.Translator.Device)
				}
				fmt.Println(line)
			}
			for _, l := range t.Links {
				fmt.Printf("  link %s: %s <-> %s@%s\n", l.Name, l.HostName, l.PeerName, l.Namespace)
			}
		}
	}
	if b := cfg.Bench; b != nil {
		cells := len(b.Namespaces) * len(b.Targets) * len(b.Durations) * len(b.Protocols)
		fmt.Printf("Bench: %d cells into %s\n", cells, b.ResultsDir)
	}
	return nil
}
