package bench

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// SummaryRow aggregates the successful runs of one namespace/target/
// protocol group across all durations.
type SummaryRow struct {
	Namespace string  `json:"namespace"`
	Target    string  `json:"target"`
	Protocol  string  `json:"protocol"`
	Runs      int     `json:"runs"`
	Failed    int     `json:"failed"`
	MeanMbps  float64 `json:"mean_mbps"`
	StdDev    float64 `json:"stddev_mbps"`
	MinMbps   float64 `json:"min_mbps"`
	MaxMbps   float64 `json:"max_mbps"`
}

// Summarize groups records and computes throughput statistics over the
// successful runs in each group. Groups whose runs all failed still
// appear, with zeroed statistics, so gaps in the matrix stay visible.
func Summarize(records []RunRecord) []SummaryRow {
	type key struct{ namespace, target, protocol string }

	groups := map[key][]RunRecord{}
	var order []key
	for _, rec := range records {
		k := key{rec.Namespace, rec.Target, rec.Protocol}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], rec)
	}
	sort.Slice(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.namespace != b.namespace {
			return a.namespace < b.namespace
		}
		if a.target != b.target {
			return a.target < b.target
		}
		return a.protocol < b.protocol
	})

	rows := make([]SummaryRow, 0, len(order))
	for _, k := range order {
		row := SummaryRow{Namespace: k.namespace, Target: k.target, Protocol: k.protocol}
		var rates []float64
		for _, rec := range groups[k] {
			row.Runs++
			if rec.Status != RunOK {
				row.Failed++
				continue
			}
			rates = append(rates, rec.Mbps)
		}
		if len(rates) > 0 {
			row.MeanMbps = stat.Mean(rates, nil)
			// Sample stddev needs two points; one run is just itself.
			if len(rates) > 1 {
				row.StdDev = stat.StdDev(rates, nil)
			}
			row.MinMbps, row.MaxMbps = rates[0], rates[0]
			for _, v := range rates[1:] {
				if v < row.MinMbps {
					row.MinMbps = v
				}
				if v > row.MaxMbps {
					row.MaxMbps = v
				}
			}
		}
		rows = append(rows, row)
	}
	return rows
}
