package domain

import (
	"math"
	"time"
)

// MarketParameters drives the price model and the scheduler cadences.
// It is passed by value into every tick.
type MarketParameters struct {
	BaseVolatility      float64       `json:"baseVolatility"`
	MarketSentiment     float64       `json:"marketSentiment"`
	TradingVolumeFactor float64       `json:"tradingVolumeFactor"`
	OrderImpactFactor   float64       `json:"orderImpactFactor"`
	MomentumFactor      float64       `json:"momentumFactor"`
	RandomWalkFactor    float64       `json:"randomWalkFactor"`
	SentimentChangeRate float64       `json:"sentimentChangeRate"`
	NewsImpactFactor    float64       `json:"newsImpactFactor"`
	NewsProbability     float64       `json:"newsProbability"`
	PricingInterval     time.Duration `json:"-"`
	MatchingInterval    time.Duration `json:"-"`
	NewsInterval        time.Duration `json:"-"`
}

// DefaultParameters returns the stock parameter set.
func DefaultParameters() MarketParameters {
	return MarketParameters{
		BaseVolatility:      0.002,
		MarketSentiment:     0,
		TradingVolumeFactor: 0.5,
		OrderImpactFactor:   0.001,
		MomentumFactor:      0.3,
		RandomWalkFactor:    0.4,
		SentimentChangeRate: 0.05,
		NewsImpactFactor:    0.2,
		NewsProbability:     0.3,
		PricingInterval:     time.Second,
		MatchingInterval:    2 * time.Second,
		NewsInterval:        time.Minute,
	}
}

// Validate checks the ranges a tick relies on.
func (p MarketParameters) Validate() error {
	factors := []struct {
		name string
		v    float64
	}{
		{"baseVolatility", p.BaseVolatility},
		{"tradingVolumeFactor", p.TradingVolumeFactor},
		{"orderImpactFactor", p.OrderImpactFactor},
		{"momentumFactor", p.MomentumFactor},
		{"randomWalkFactor", p.RandomWalkFactor},
		{"sentimentChangeRate", p.SentimentChangeRate},
		{"newsImpactFactor", p.NewsImpactFactor},
	}
	for _, f := range factors {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v < 0 {
			return InvalidParameters("%s must be a finite number >= 0", f.name)
		}
	}
	if math.IsNaN(p.MarketSentiment) || p.MarketSentiment < -1 || p.MarketSentiment > 1 {
		return InvalidParameters("marketSentiment must be within [-1, 1]")
	}
	if math.IsNaN(p.NewsProbability) || p.NewsProbability < 0 || p.NewsProbability > 1 {
		return InvalidParameters("newsProbability must be within [0, 1]")
	}
	if p.PricingInterval <= 0 || p.MatchingInterval <= 0 || p.NewsInterval <= 0 {
		return InvalidParameters("intervals must be greater than 0")
	}
	return nil
}

// ParameterPatch is a partial update. Nil fields are left unchanged.
type ParameterPatch struct {
	BaseVolatility      *float64
	MarketSentiment     *float64
	TradingVolumeFactor *float64
	OrderImpactFactor   *float64
	MomentumFactor      *float64
	RandomWalkFactor    *float64
	SentimentChangeRate *float64
	NewsImpactFactor    *float64
	NewsProbability     *float64
	PricingInterval     *time.Duration
	MatchingInterval    *time.Duration
	NewsInterval        *time.Duration
}

// Merge applies the patch on top of p and validates the result. p is not
// modified.
func (patch ParameterPatch) Merge(p MarketParameters) (MarketParameters, error) {
	setF := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	setD := func(dst *time.Duration, src *time.Duration) {
		if src != nil {
			*dst = *src
		}
	}
	setF(&p.BaseVolatility, patch.BaseVolatility)
	setF(&p.MarketSentiment, patch.MarketSentiment)
	setF(&p.TradingVolumeFactor, patch.TradingVolumeFactor)
	setF(&p.OrderImpactFactor, patch.OrderImpactFactor)
	setF(&p.MomentumFactor, patch.MomentumFactor)
	setF(&p.RandomWalkFactor, patch.RandomWalkFactor)
	setF(&p.SentimentChangeRate, patch.SentimentChangeRate)
	setF(&p.NewsImpactFactor, patch.NewsImpactFactor)
	setF(&p.NewsProbability, patch.NewsProbability)
	setD(&p.PricingInterval, patch.PricingInterval)
	setD(&p.MatchingInterval, patch.MatchingInterval)
	setD(&p.NewsInterval, patch.NewsInterval)

	if err := p.Validate(); err != nil {
		return MarketParameters{}, err
	}
	return p, nil
}

// ClampSentiment bounds s to [-1, 1].
func ClampSentiment(s float64) float64 {
	return math.Max(-1, math.Min(1, s))
}
