package domain

import "time"

// NewsKind identifies an entry in the news catalog.
type NewsKind string

const (
	NewsEarnings   NewsKind = "earnings"
	NewsFedRate    NewsKind = "fed_rate"
	NewsTechSector NewsKind = "tech_sector"
	NewsRegulation NewsKind = "regulation"
	NewsMacroData  NewsKind = "macro_data"
)

// NewsEvent is a price shock applied to a set of instruments.
type NewsEvent struct {
	ID          string
	Kind        NewsKind
	Positive    bool
	Impact      float64 // signed fractional change
	Symbols     []string
	Description string
	Timestamp   time.Time
}
