package domain

import "time"

// HistoryCapacity is the number of prices kept per instrument.
const HistoryCapacity = 100

// PriceHistory is a fixed-capacity ring buffer of prices. When full, the
// oldest price is evicted on push.
type PriceHistory struct {
	buf   []float64
	start int
	n     int
}

// NewPriceHistory creates an empty history with the given capacity.
func NewPriceHistory(capacity int) PriceHistory {
	if capacity <= 0 {
		capacity = HistoryCapacity
	}
	return PriceHistory{buf: make([]float64, capacity)}
}

// Push appends p, evicting the oldest entry if the buffer is full.
func (h *PriceHistory) Push(p float64) {
	if len(h.buf) == 0 {
		h.buf = make([]float64, HistoryCapacity)
	}
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = p
		h.n++
		return
	}
	h.buf[h.start] = p
	h.start = (h.start + 1) % len(h.buf)
}

// Len returns the number of stored prices.
func (h *PriceHistory) Len() int {
	return h.n
}

// Last returns up to n of the most recent prices, oldest first.
func (h *PriceHistory) Last(n int) []float64 {
	if n > h.n {
		n = h.n
	}
	if n <= 0 {
		return []float64{}
	}
	out := make([]float64, n)
	offset := h.n - n
	for i := 0; i < n; i++ {
		out[i] = h.buf[(h.start+offset+i)%len(h.buf)]
	}
	return out
}

// Values returns every stored price, oldest first.
func (h *PriceHistory) Values() []float64 {
	return h.Last(h.n)
}

// Clone returns an independent copy.
func (h PriceHistory) Clone() PriceHistory {
	buf := make([]float64, len(h.buf))
	copy(buf, h.buf)
	h.buf = buf
	return h
}

// Listing is a catalog entry used to create an instrument at startup.
type Listing struct {
	Symbol string  `yaml:"symbol" json:"symbol"`
	Name   string  `yaml:"name" json:"name"`
	Price  float64 `yaml:"price" json:"price"`
	Volume int64   `yaml:"volume" json:"volume"`
}

// Validate checks that a listing can seed an instrument.
func (l Listing) Validate() error {
	if l.Symbol == "" {
		return InvalidParameters("listing symbol is required")
	}
	if !(l.Price > 0) {
		return InvalidParameters("listing %s: price must be greater than 0", l.Symbol)
	}
	if l.Volume < 0 {
		return InvalidParameters("listing %s: volume must be >= 0", l.Symbol)
	}
	return nil
}

// Instrument is the live state of a tradable symbol.
type Instrument struct {
	Symbol           string
	Name             string
	Price            float64
	PreviousClose    float64
	Open             float64
	High             float64
	Low              float64
	Volume           int64
	Change           float64
	ChangePercent    float64
	LastUpdated      time.Time
	VolatilityFactor float64
	History          PriceHistory
}

// NewInstrument seeds an instrument from a listing. The history starts
// with the listing price.
func NewInstrument(l Listing, volatilityFactor float64, now time.Time) *Instrument {
	inst := &Instrument{
		Symbol:           l.Symbol,
		Name:             l.Name,
		Price:            l.Price,
		PreviousClose:    l.Price,
		Open:             l.Price,
		High:             l.Price,
		Low:              l.Price,
		Volume:           l.Volume,
		LastUpdated:      now,
		VolatilityFactor: volatilityFactor,
		History:          NewPriceHistory(HistoryCapacity),
	}
	inst.History.Push(l.Price)
	return inst
}

// SetPrice moves the instrument to p and refreshes the derived fields.
// It does not touch the history.
func (i *Instrument) SetPrice(p float64, now time.Time) {
	i.Price = p
	i.Change = p - i.PreviousClose
	if i.PreviousClose != 0 {
		i.ChangePercent = i.Change / i.PreviousClose * 100
	}
	if p > i.High {
		i.High = p
	}
	if p < i.Low {
		i.Low = p
	}
	i.LastUpdated = now
}

// Clone returns a deep copy safe to hand outside the symbol lock.
func (i *Instrument) Clone() Instrument {
	c := *i
	c.History = i.History.Clone()
	return c
}
