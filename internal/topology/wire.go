package topology

import (
	"grimm.is/xlatbench/internal/config"
	"grimm.is/xlatbench/internal/logging"
	"grimm.is/xlatbench/internal/netns"
	"grimm.is/xlatbench/internal/network"
	"grimm.is/xlatbench/internal/xlat"
)

// Wire assembles an Orchestrator over the real kernel-facing stack:
// netlink handles, /proc/sys, named namespaces and exec'd translator
// daemons. strict makes namespace creation refuse to replace existing
// namespaces.
func Wire(log *logging.Logger, strict bool) *Orchestrator {
	nsm := netns.NewManager(log)
	nsm.Strict = strict
	prov := &network.NetlinkProvider{}
	links := network.NewLinkManager(prov, nil)
	routes := network.NewRouteManager(prov, nil, nsm.InNamespace, nil)

	return New(Deps{
		Namespaces: nsm,
		Links:      links,
		Routes:     routes,
		Exec:       nsm,
		NewTranslator: func(namespace string, cfg config.Translator) (Translator, error) {
			return xlat.New(namespace, cfg, xlat.Deps{
				Exec:    nsm,
				Links:   links,
				Routes:  routes,
				Starter: nsm,
			})
		},
		Log: log,
	})
}
