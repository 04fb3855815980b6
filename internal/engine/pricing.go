package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/efreitasn/marketsim/internal/domain"
)

const (
	momentumWindow    = 10
	maxTickMove       = 0.10
	sentimentWeight   = 0.5
	volumeScale       = 10000
	volumeEffectScale = 0.001
)

// Components is the breakdown of one pricing step. Each term is a
// fractional change; Sum is what gets applied to the price.
type Components struct {
	RandomWalk float64
	Momentum   float64
	Sentiment  float64
	Imbalance  float64
	Volume     float64
}

// Sum returns the combined fractional change.
func (c Components) Sum() float64 {
	return c.RandomWalk + c.Momentum + c.Sentiment + c.Imbalance + c.Volume
}

// PriceModel computes the next price of an instrument from five additive
// effects. It draws exactly one random number per instrument tick.
type PriceModel struct {
	rng Source
}

// NewPriceModel creates a PriceModel drawing from rng.
func NewPriceModel(rng Source) *PriceModel {
	return &PriceModel{rng: rng}
}

// Components computes the effects for inst without applying them.
func (pm *PriceModel) Components(inst *domain.Instrument, p domain.MarketParameters, imbalance float64) Components {
	var c Components

	r := pm.rng.Float64()
	c.RandomWalk = (r - 0.5) * 2 * p.BaseVolatility * inst.VolatilityFactor * p.RandomWalkFactor

	c.Momentum = momentum(inst.History.Last(momentumWindow)) * p.MomentumFactor

	c.Sentiment = p.MarketSentiment * p.BaseVolatility * sentimentWeight

	c.Imbalance = imbalance * p.OrderImpactFactor * inst.VolatilityFactor

	c.Volume = (float64(inst.Volume) / volumeScale) * p.TradingVolumeFactor * volumeEffectScale

	return c
}

// momentum is the mean relative change between consecutive prices.
func momentum(prices []float64) float64 {
	if len(prices) < 2 {
		return 0
	}
	var sum float64
	for i := 1; i < len(prices); i++ {
		sum += (prices[i] - prices[i-1]) / prices[i-1]
	}
	return sum / float64(len(prices)-1)
}

// Next returns the price inst would move to. The result is at least
// PriceFloor and within ±10% of the current price.
func (pm *PriceModel) Next(inst *domain.Instrument, p domain.MarketParameters, imbalance float64) (float64, error) {
	old := inst.Price
	if !(old > 0) || math.IsInf(old, 0) {
		return 0, &domain.InvariantViolation{Symbol: inst.Symbol, Reason: fmt.Sprintf("price %v is not a positive finite number", old)}
	}

	next := old * (1 + pm.Components(inst, p, imbalance).Sum())
	if math.IsNaN(next) || math.IsInf(next, 0) {
		return 0, &domain.InvariantViolation{Symbol: inst.Symbol, Reason: fmt.Sprintf("computed price %v from %v", next, old)}
	}

	next = math.Max(next, math.Max(old*(1-maxTickMove), domain.PriceFloor))
	next = math.Min(next, old*(1+maxTickMove))
	return next, nil
}

// Tick moves inst to its next price and appends it to the history. On
// error inst is left untouched.
func (pm *PriceModel) Tick(inst *domain.Instrument, p domain.MarketParameters, imbalance float64, now time.Time) (float64, error) {
	next, err := pm.Next(inst, p, imbalance)
	if err != nil {
		return 0, err
	}
	inst.SetPrice(next, now)
	inst.History.Push(next)
	return next, nil
}

// NextSentiment advances market sentiment by one bounded random step.
func NextSentiment(rng Source, p domain.MarketParameters) float64 {
	return domain.ClampSentiment(p.MarketSentiment + (rng.Float64()-0.5)*p.SentimentChangeRate)
}
