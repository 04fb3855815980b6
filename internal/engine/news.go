package engine

import (
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/efreitasn/marketsim/internal/domain"
)

// referenceNewsImpact is the newsImpactFactor the catalog magnitudes are
// calibrated against.
const referenceNewsImpact = 0.2

// newsTemplate is one entry of the fixed news catalog. A nil symbol list
// with single=false affects every instrument; single=true picks one at
// random.
type newsTemplate struct {
	kind      domain.NewsKind
	magnitude float64
	symbols   []string
	single    bool
}

var newsCatalog = []newsTemplate{
	{kind: domain.NewsEarnings, magnitude: 0.03, single: true},
	{kind: domain.NewsFedRate, magnitude: 0.015},
	{kind: domain.NewsTechSector, magnitude: 0.02, symbols: []string{"AAPL", "MSFT", "GOOGL", "NVDA", "AMD", "INTC", "META"}},
	{kind: domain.NewsRegulation, magnitude: 0.025, single: true},
	{kind: domain.NewsMacroData, magnitude: 0.01},
}

type newsKey struct {
	kind     domain.NewsKind
	positive bool
}

var newsDescriptions = map[newsKey]string{
	{domain.NewsEarnings, true}:    "%s beats quarterly earnings expectations",
	{domain.NewsEarnings, false}:   "%s misses quarterly earnings expectations",
	{domain.NewsFedRate, true}:     "Central bank signals interest rate cut",
	{domain.NewsFedRate, false}:    "Central bank signals interest rate hike",
	{domain.NewsTechSector, true}:  "Tech sector rallies on strong demand outlook",
	{domain.NewsTechSector, false}: "Tech sector slides on supply chain concerns",
	{domain.NewsRegulation, true}:  "Regulators clear %s of antitrust concerns",
	{domain.NewsRegulation, false}: "Regulators open investigation into %s",
	{domain.NewsMacroData, true}:   "Economic data comes in stronger than expected",
	{domain.NewsMacroData, false}:  "Economic data comes in weaker than expected",
}

// NewsInjector decides whether a news event fires and which instruments
// it moves. It does not touch prices; the market applies the shock.
type NewsInjector struct {
	rng Source

	mu      sync.Mutex
	entropy io.Reader
}

// NewNewsInjector creates an injector drawing from rng.
func NewNewsInjector(rng Source) *NewsInjector {
	return &NewsInjector{
		rng:     rng,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// Draw rolls for an event. It returns false when no event fires this time.
// Symbols restricted to a sector only include those present in symbols.
func (n *NewsInjector) Draw(p domain.MarketParameters, symbols []string, now time.Time) (domain.NewsEvent, bool) {
	if len(symbols) == 0 || n.rng.Float64() >= p.NewsProbability {
		return domain.NewsEvent{}, false
	}

	tpl := newsCatalog[pick(n.rng, len(newsCatalog))]
	positive := n.rng.Float64() < 0.5

	var affected []string
	var subject string
	switch {
	case tpl.single:
		subject = symbols[pick(n.rng, len(symbols))]
		affected = []string{subject}
	case tpl.symbols != nil:
		known := make(map[string]bool, len(symbols))
		for _, s := range symbols {
			known[s] = true
		}
		for _, s := range tpl.symbols {
			if known[s] {
				affected = append(affected, s)
			}
		}
		if len(affected) == 0 {
			return domain.NewsEvent{}, false
		}
	default:
		affected = append([]string(nil), symbols...)
	}

	impact := tpl.magnitude * p.NewsImpactFactor / referenceNewsImpact
	if !positive {
		impact = -impact
	}

	desc := newsDescriptions[newsKey{tpl.kind, positive}]
	if subject != "" {
		desc = fmt.Sprintf(desc, subject)
	}

	return domain.NewsEvent{
		ID:          n.newID(now),
		Kind:        tpl.kind,
		Positive:    positive,
		Impact:      impact,
		Symbols:     affected,
		Description: desc,
		Timestamp:   now,
	}, true
}

func (n *NewsInjector) newID(now time.Time) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), n.entropy).String()
}

// ApplyShock moves price by impact, never below the price floor.
func ApplyShock(price, impact float64) float64 {
	next := price + price*impact
	if next < domain.PriceFloor {
		return domain.PriceFloor
	}
	return next
}
