package topology

import (
	"context"
	"errors"
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"grimm.is/xlatbench/internal/config"
)

const (
	probeCount   = 3
	probeTimeout = 3 * time.Second
)

// ProbeFailure is one source/target pair that did not answer.
type ProbeFailure struct {
	Namespace string
	Target    string
	Err       error
}

func (f ProbeFailure) String() string {
	return fmt.Sprintf("%s -> %s: %v", f.Namespace, f.Target, f.Err)
}

// pingFunc sends ICMP echoes to target from the current namespace.
// Overridable for tests.
var pingFunc = func(ctx context.Context, target string) error {
	pinger, err := probing.NewPinger(target)
	if err != nil {
		return fmt.Errorf("failed to create pinger: %w", err)
	}
	pinger.Count = probeCount
	pinger.Timeout = probeTimeout
	pinger.SetPrivileged(true)

	if err := pinger.RunWithContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	if pinger.Statistics().PacketsRecv == 0 {
		return errors.New("no replies")
	}
	return nil
}

// Verify pings each probe pair from inside its source namespace and
// returns the pairs that failed. The pair list comes from the bench
// block when one is declared (its full namespace x target matrix);
// otherwise every route's next hop is probed from its own namespace.
func (o *Orchestrator) Verify(ctx context.Context, cfg *config.Config) ([]ProbeFailure, error) {
	if cfg.Topology == nil {
		return nil, errors.New("configuration has no topology block")
	}

	type pair struct{ namespace, target string }
	var pairs []pair
	if cfg.Bench != nil {
		for _, ns := range cfg.Bench.Namespaces {
			for _, tgt := range cfg.Bench.Targets {
				pairs = append(pairs, pair{ns, tgt})
			}
		}
	} else {
		for _, r := range cfg.Topology.Routes {
			pairs = append(pairs, pair{r.Namespace, r.Via})
		}
	}

	var failures []ProbeFailure
	for _, p := range pairs {
		err := o.deps.Namespaces.InNamespace(p.namespace, func() error {
			return pingFunc(ctx, p.target)
		})
		if err != nil {
			o.log.Warn("probe failed", "namespace", p.namespace, "target", p.target, "error", err)
			failures = append(failures, ProbeFailure{Namespace: p.namespace, Target: p.target, Err: err})
			continue
		}
		o.log.Debug("probe ok", "namespace", p.namespace, "target", p.target)
	}
	return failures, nil
}
