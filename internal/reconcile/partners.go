package reconcile

import (
	"fmt"
	"sort"

	"furtrade/internal/model"
)

// Residuals smaller than this are treated as floating-point noise rather
// than a data inconsistency.
const residualEpsilon = 1e-9

type sums struct {
	quantityKG float64
	valueUSD   float64
	valueEUR   float64
}

func (s *sums) add(record model.Record) {
	s.quantityKG += record.QuantityKG
	s.valueUSD += record.ValueUSD
	s.valueEUR += record.ValueEUR
}

type groupTotals struct {
	world    sums
	hasWorld bool
	eu       sums
	tracked  sums // every distinct named or EU-member partner, counted once
}

// Partners derives the two synthetic partner records per (reporter, year,
// flow) group present in the aggregated input:
//
//   - European Union: sum over records whose partner is an EU member, the
//     reporter itself excluded (a country is never its own partner).
//   - Rest of World: the World total minus every record whose partner is
//     named or an EU member. A partner that is both is subtracted exactly
//     once, so the EU aggregate is never double-counted.
//
// A missing World total yields a zero Rest of World record with a
// missing-world flag; a negative residual is clamped to zero per field and
// flagged. Neither condition is an error.
func Partners(records []model.Record, named, euMembers []string) ([]model.Record, []model.Flag) {
	namedSet := toSet(named)
	euSet := toSet(euMembers)

	groups := make(map[model.Group]*groupTotals)
	for _, record := range records {
		group := model.Group{Reporter: record.Reporter, Year: record.Year, Flow: record.Flow}
		totals, ok := groups[group]
		if !ok {
			totals = &groupTotals{}
			groups[group] = totals
		}

		if record.Partner == model.PartnerWorld {
			totals.world.add(record)
			totals.hasWorld = true
			continue
		}
		if record.Partner == record.Reporter {
			continue
		}

		_, isNamed := namedSet[record.Partner]
		_, isEU := euSet[record.Partner]
		if isEU {
			totals.eu.add(record)
		}
		if isNamed || isEU {
			totals.tracked.add(record)
		}
	}

	synthetic := make([]model.Record, 0, 2*len(groups))
	flags := make([]model.Flag, 0)
	for _, group := range sortedGroups(groups) {
		totals := groups[group]

		synthetic = append(synthetic, model.Record{
			Reporter:   group.Reporter,
			Partner:    model.PartnerEU,
			Year:       group.Year,
			Flow:       group.Flow,
			QuantityKG: totals.eu.quantityKG,
			ValueUSD:   totals.eu.valueUSD,
			ValueEUR:   totals.eu.valueEUR,
		})

		row := model.Record{
			Reporter: group.Reporter,
			Partner:  model.PartnerRestOfWorld,
			Year:     group.Year,
			Flow:     group.Flow,
		}
		if !totals.hasWorld {
			flags = append(flags, model.Flag{
				Group:  group,
				Kind:   model.FlagMissingWorldTotal,
				Detail: "no World total in source data; Rest of World reported as 0",
			})
		} else {
			var negative []string
			row.QuantityKG, negative = residual(totals.world.quantityKG, totals.tracked.quantityKG, "quantity_kg", negative)
			row.ValueUSD, negative = residual(totals.world.valueUSD, totals.tracked.valueUSD, "value_usd", negative)
			row.ValueEUR, negative = residual(totals.world.valueEUR, totals.tracked.valueEUR, "value_eur", negative)
			if len(negative) > 0 {
				flags = append(flags, model.Flag{
					Group:  group,
					Kind:   model.FlagNegativeResidual,
					Detail: fmt.Sprintf("tracked partners exceed World total for %v; clamped to 0", negative),
				})
			}
		}
		synthetic = append(synthetic, row)
	}

	return synthetic, flags
}

func residual(world, tracked float64, field string, negative []string) (float64, []string) {
	value := world - tracked
	if value >= 0 {
		return value, negative
	}
	if value < -residualEpsilon {
		negative = append(negative, field)
	}
	return 0, negative
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		set[value] = struct{}{}
	}
	return set
}

func sortedGroups(groups map[model.Group]*groupTotals) []model.Group {
	keys := make([]model.Group, 0, len(groups))
	for group := range groups {
		keys = append(keys, group)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Reporter != b.Reporter {
			return a.Reporter < b.Reporter
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Flow < b.Flow
	})
	return keys
}
