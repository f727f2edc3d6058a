package model

type Flow string

const (
	FlowImport Flow = "import"
	FlowExport Flow = "export"
)

// Label returns the flow name used in output tables.
func (f Flow) Label() string {
	switch f {
	case FlowImport:
		return "Import"
	case FlowExport:
		return "Export"
	default:
		return string(f)
	}
}

// Partner labels with special meaning. World is a computation input only and
// never appears in assembled output.
const (
	PartnerWorld       = "World"
	PartnerEU          = "European Union"
	PartnerRestOfWorld = "Rest of World"
)

// ProductCode is a 6-digit HS commodity code.
type ProductCode string

func (c ProductCode) Valid() bool {
	if len(c) != 6 {
		return false
	}
	for _, r := range c {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// RawObservation is one partner-level data point as returned by a provider
// for a single (reporter, year, flow, product) request. Absent quantity or
// value fields arrive as 0.
type RawObservation struct {
	Reporter   string
	Partner    string
	Year       int
	Flow       Flow
	Product    ProductCode
	QuantityKG float64
	ValueUSD   float64
	ValueEUR   float64
}

// Key identifies one row of the table before partner reconciliation.
type Key struct {
	Reporter string
	Partner  string
	Year     int
	Flow     Flow
}

// Record is a summed observation for one Key. Partner is a real partner for
// aggregated records and may be PartnerEU or PartnerRestOfWorld for
// reconciled ones.
type Record struct {
	Reporter   string
	Partner    string
	Year       int
	Flow       Flow
	QuantityKG float64
	ValueUSD   float64
	ValueEUR   float64
}

func (r Record) Key() Key {
	return Key{Reporter: r.Reporter, Partner: r.Partner, Year: r.Year, Flow: r.Flow}
}

// Group identifies a (reporter, year, flow) slice of the data, the unit the
// partner reconciler and data-quality flags operate on.
type Group struct {
	Reporter string
	Year     int
	Flow     Flow
}

type FlagKind string

const (
	FlagMissingWorldTotal FlagKind = "missing_world_total"
	FlagNegativeResidual  FlagKind = "negative_residual"
	FlagFetchFailed       FlagKind = "fetch_failed"
)

// Flag is a non-fatal data-quality warning attached to a group.
type Flag struct {
	Group  Group
	Kind   FlagKind
	Detail string
}
