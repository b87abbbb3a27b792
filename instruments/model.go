package instruments

import "time"

// dumpDateFormat is the expiry format used by the instrument dump.
const dumpDateFormat = "2006-01-02"

// Date wraps time.Time so gocsv can parse the dump's expiry column, which is
// blank for non-derivative rows.
type Date struct {
	time.Time
}

// UnmarshalCSV parses a dump date cell. Blank cells become the zero Date.
func (d *Date) UnmarshalCSV(csv string) error {
	if csv == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(dumpDateFormat, csv)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// MarshalCSV renders the date back into the dump format.
func (d *Date) MarshalCSV() (string, error) {
	if d.IsZero() {
		return "", nil
	}
	return d.Format(dumpDateFormat), nil
}

// SameDay reports whether the date falls on the given calendar day.
func (d Date) SameDay(t time.Time) bool {
	y1, m1, d1 := d.Date()
	y2, m2, d2 := t.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// Instrument is one row of the instrument dump.
type Instrument struct {
	InstrumentToken uint32  `csv:"instrument_token"`
	ExchangeToken   uint32  `csv:"exchange_token"`
	Tradingsymbol   string  `csv:"tradingsymbol"`
	Name            string  `csv:"name"`
	LastPrice       float64 `csv:"last_price"`
	Expiry          Date    `csv:"expiry"`
	Strike          float64 `csv:"strike"`
	TickSize        float64 `csv:"tick_size"`
	LotSize         int     `csv:"lot_size"`
	InstrumentType  string  `csv:"instrument_type"`
	Segment         string  `csv:"segment"`
	Exchange        string  `csv:"exchange"`
}

// HasExpiry reports whether the row carries an expiry date.
func (i *Instrument) HasExpiry() bool {
	return !i.Expiry.IsZero()
}

// Catalog is one fetch of the instrument dump, insertion order preserved.
type Catalog struct {
	instruments []Instrument
	fetchedAt   time.Time
}

// NewCatalog wraps an already-parsed instrument list.
func NewCatalog(instruments []Instrument) *Catalog {
	return &Catalog{
		instruments: instruments,
		fetchedAt:   time.Now(),
	}
}

// Len returns the number of instruments in the catalog.
func (c *Catalog) Len() int {
	return len(c.instruments)
}

// FetchedAt returns when the catalog was downloaded or loaded.
func (c *Catalog) FetchedAt() time.Time {
	return c.fetchedAt
}

// Query starts a fresh, unfiltered query over the catalog.
func (c *Catalog) Query() *Query {
	return &Query{catalog: c}
}
