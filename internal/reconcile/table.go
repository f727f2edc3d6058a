package reconcile

import (
	"sort"

	"furtrade/internal/model"
)

// Order fixes the row ordering of the assembled table. Reporters, partners
// and flows rank in configuration order; the synthetic partners always rank
// after the named ones, European Union before Rest of World.
type Order struct {
	Reporters []string
	Partners  []string
	Flows     []model.Flow
}

// Assemble merges real-partner aggregates with the synthetic partner records
// into the canonical row sequence external sinks serialize. Only named
// partners survive from the aggregated input; the World total and
// reporter==partner pairings are never emitted. No I/O happens here.
func Assemble(aggregated, synthetic []model.Record, order Order) []model.Record {
	namedSet := toSet(order.Partners)

	rows := make([]model.Record, 0, len(aggregated)+len(synthetic))
	for _, record := range aggregated {
		if record.Partner == record.Reporter || record.Partner == model.PartnerWorld {
			continue
		}
		if _, ok := namedSet[record.Partner]; !ok {
			continue
		}
		rows = append(rows, record)
	}
	for _, record := range synthetic {
		if record.Partner == record.Reporter {
			continue
		}
		rows = append(rows, record)
	}

	reporterRank := rankOf(order.Reporters)
	partnerRank := rankOf(order.Partners)
	partnerRank[model.PartnerEU] = len(order.Partners)
	partnerRank[model.PartnerRestOfWorld] = len(order.Partners) + 1
	flowRank := make(map[model.Flow]int, len(order.Flows))
	for i, flow := range order.Flows {
		flowRank[flow] = i
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if ra, rb := rank(reporterRank, a.Reporter), rank(reporterRank, b.Reporter); ra != rb {
			return ra < rb
		}
		if a.Reporter != b.Reporter {
			return a.Reporter < b.Reporter
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if fa, fb := flowRank[a.Flow], flowRank[b.Flow]; fa != fb {
			return fa < fb
		}
		if pa, pb := rank(partnerRank, a.Partner), rank(partnerRank, b.Partner); pa != pb {
			return pa < pb
		}
		return a.Partner < b.Partner
	})
	return rows
}

func rankOf(values []string) map[string]int {
	ranks := make(map[string]int, len(values))
	for i, value := range values {
		ranks[value] = i
	}
	return ranks
}

// rank places labels missing from the configured ordering after all known
// ones; ties fall back to the lexicographic comparison in the sort.
func rank(ranks map[string]int, label string) int {
	if r, ok := ranks[label]; ok {
		return r
	}
	return len(ranks)
}
