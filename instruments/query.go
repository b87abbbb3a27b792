package instruments

import (
	"errors"
	"sort"
	"time"
)

// ErrNotFound is returned by GetFirst when no instrument matches the
// applied filters.
var ErrNotFound = errors.New("no instrument matches the applied filters")

type predicate func(*Instrument) bool

// Query is an immutable chain of filters over a catalog. Filter methods
// return a new Query and never evaluate; only the Get* terminals walk the
// catalog, and they return plain values so nothing can be chained after
// them. A Query with no filters matches the whole catalog.
type Query struct {
	catalog *Catalog
	preds   []predicate
}

func (q *Query) with(p predicate) *Query {
	preds := make([]predicate, len(q.preds), len(q.preds)+1)
	copy(preds, q.preds)
	return &Query{catalog: q.catalog, preds: append(preds, p)}
}

func (q *Query) matches(i *Instrument) bool {
	for _, p := range q.preds {
		if !p(i) {
			return false
		}
	}
	return true
}

// Name filters by the instrument's underlying name, e.g. "NIFTY".
func (q *Query) Name(name string) *Query {
	return q.with(func(i *Instrument) bool { return i.Name == name })
}

// Tradingsymbol filters by exact trading symbol.
func (q *Query) Tradingsymbol(symbol string) *Query {
	return q.with(func(i *Instrument) bool { return i.Tradingsymbol == symbol })
}

// InstrumentType filters by type: EQ, FUT, CE or PE.
func (q *Query) InstrumentType(instrumentType string) *Query {
	return q.with(func(i *Instrument) bool { return i.InstrumentType == instrumentType })
}

// Exchange filters by exchange, e.g. "NSE" or "NFO".
func (q *Query) Exchange(exchange string) *Query {
	return q.with(func(i *Instrument) bool { return i.Exchange == exchange })
}

// Segment filters by segment, e.g. "NFO-OPT".
func (q *Query) Segment(segment string) *Query {
	return q.with(func(i *Instrument) bool { return i.Segment == segment })
}

// Expiry filters by expiry day.
func (q *Query) Expiry(t time.Time) *Query {
	return q.with(func(i *Instrument) bool { return i.Expiry.SameDay(t) })
}

// ExpiryBetween filters by expiry in [from, to], inclusive. Rows without an
// expiry never match.
func (q *Query) ExpiryBetween(from, to time.Time) *Query {
	return q.with(func(i *Instrument) bool {
		if i.Expiry.IsZero() {
			return false
		}
		return !i.Expiry.Before(from) && !i.Expiry.After(to)
	})
}

// HasExpiry filters on whether a row carries an expiry date.
func (q *Query) HasExpiry(has bool) *Query {
	return q.with(func(i *Instrument) bool { return i.HasExpiry() == has })
}

// Strike filters by exact strike price.
func (q *Query) Strike(strike float64) *Query {
	return q.with(func(i *Instrument) bool { return i.Strike == strike })
}

// StrikeBetween filters by strike in [min, max], inclusive.
func (q *Query) StrikeBetween(min, max float64) *Query {
	return q.with(func(i *Instrument) bool { return i.Strike >= min && i.Strike <= max })
}

// InstrumentToken filters by instrument token.
func (q *Query) InstrumentToken(token uint32) *Query {
	return q.with(func(i *Instrument) bool { return i.InstrumentToken == token })
}

// ExchangeToken filters by exchange token.
func (q *Query) ExchangeToken(token uint32) *Query {
	return q.with(func(i *Instrument) bool { return i.ExchangeToken == token })
}

// LotSize filters by lot size.
func (q *Query) LotSize(lotSize int) *Query {
	return q.with(func(i *Instrument) bool { return i.LotSize == lotSize })
}

// TickSize filters by tick size.
func (q *Query) TickSize(tickSize float64) *Query {
	return q.with(func(i *Instrument) bool { return i.TickSize == tickSize })
}

// GetAll returns every matching instrument in catalog order.
func (q *Query) GetAll() []Instrument {
	results := []Instrument{}
	for idx := range q.catalog.instruments {
		if q.matches(&q.catalog.instruments[idx]) {
			results = append(results, q.catalog.instruments[idx])
		}
	}
	return results
}

// GetFirst returns the first matching instrument, or ErrNotFound.
func (q *Query) GetFirst() (Instrument, error) {
	for idx := range q.catalog.instruments {
		if q.matches(&q.catalog.instruments[idx]) {
			return q.catalog.instruments[idx], nil
		}
	}
	return Instrument{}, ErrNotFound
}

// GetCount returns the number of matching instruments.
func (q *Query) GetCount() int {
	count := 0
	for idx := range q.catalog.instruments {
		if q.matches(&q.catalog.instruments[idx]) {
			count++
		}
	}
	return count
}

// GetExists reports whether anything matches.
func (q *Query) GetExists() bool {
	for idx := range q.catalog.instruments {
		if q.matches(&q.catalog.instruments[idx]) {
			return true
		}
	}
	return false
}

// GetExpiries returns the sorted distinct expiry dates among matches. Rows
// without an expiry are excluded.
func (q *Query) GetExpiries() []Date {
	seen := make(map[int64]bool)
	var expiries []Date
	for _, inst := range q.GetAll() {
		if inst.Expiry.IsZero() {
			continue
		}
		key := inst.Expiry.Unix()
		if seen[key] {
			continue
		}
		seen[key] = true
		expiries = append(expiries, inst.Expiry)
	}
	sort.Slice(expiries, func(a, b int) bool {
		return expiries[a].Before(expiries[b].Time)
	})
	return expiries
}

// GetStrikes returns the sorted distinct strike prices among matches.
func (q *Query) GetStrikes() []float64 {
	seen := make(map[float64]bool)
	var strikes []float64
	for _, inst := range q.GetAll() {
		if seen[inst.Strike] {
			continue
		}
		seen[inst.Strike] = true
		strikes = append(strikes, inst.Strike)
	}
	sort.Float64s(strikes)
	return strikes
}

// GetOptionChain returns matching options, calls before puts.
func (q *Query) GetOptionChain() []Instrument {
	all := q.GetAll()
	chain := make([]Instrument, 0, len(all))
	for _, inst := range all {
		if inst.InstrumentType == "CE" {
			chain = append(chain, inst)
		}
	}
	for _, inst := range all {
		if inst.InstrumentType == "PE" {
			chain = append(chain, inst)
		}
	}
	return chain
}

// Summary aggregates counts over a query's matches.
type Summary struct {
	Total       int
	ByType      map[string]int
	ByExchange  map[string]int
	BySegment   map[string]int
	UniqueNames int
}

// GetSummary returns aggregate statistics for the matches.
func (q *Query) GetSummary() Summary {
	s := Summary{
		ByType:     make(map[string]int),
		ByExchange: make(map[string]int),
		BySegment:  make(map[string]int),
	}
	names := make(map[string]bool)
	for _, inst := range q.GetAll() {
		s.Total++
		s.ByType[inst.InstrumentType]++
		s.ByExchange[inst.Exchange]++
		s.BySegment[inst.Segment]++
		names[inst.Name] = true
	}
	s.UniqueNames = len(names)
	return s
}
