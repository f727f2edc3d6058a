// Package reconcile implements the reconciliation engine: product-level
// aggregation, the synthetic European Union and Rest of World partners, and
// the assembly of the final ordered table. All functions are pure; callers
// materialize the full observation set before invoking them.
package reconcile

import (
	"sort"

	"furtrade/internal/model"
)

// Aggregate sums quantity and values over all observations sharing a
// (reporter, partner, year, flow) key. One record is produced per key with
// at least one contributing observation; zero-valued observations keep their
// key alive and contribute nothing. Output order is deterministic and
// independent of input order.
func Aggregate(observations []model.RawObservation) []model.Record {
	totals := make(map[model.Key]model.Record)
	for _, obs := range observations {
		key := model.Key{Reporter: obs.Reporter, Partner: obs.Partner, Year: obs.Year, Flow: obs.Flow}
		record, ok := totals[key]
		if !ok {
			record = model.Record{Reporter: key.Reporter, Partner: key.Partner, Year: key.Year, Flow: key.Flow}
		}
		record.QuantityKG += obs.QuantityKG
		record.ValueUSD += obs.ValueUSD
		record.ValueEUR += obs.ValueEUR
		totals[key] = record
	}

	records := make([]model.Record, 0, len(totals))
	for _, record := range totals {
		records = append(records, record)
	}
	sortByKey(records)
	return records
}

func sortByKey(records []model.Record) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Reporter != b.Reporter {
			return a.Reporter < b.Reporter
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Flow != b.Flow {
			return a.Flow < b.Flow
		}
		return a.Partner < b.Partner
	})
}
