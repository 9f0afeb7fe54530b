// Package alpha combina los precios de BTC de varios exchanges en un
// consenso, proyecta el precio de liquidación y estima el valor justo del
// contrato.
package alpha

import (
	"time"

	"github.com/alejandrodnm/kalshibot/internal/domain"
)

// momentumWindow es la ventana de la media del spread lead/lag.
const momentumWindow = 60 * time.Second

type timedValue struct {
	at    time.Time
	value float64
}

// Consensus guarda el último precio de cada venue y deriva el precio global
// ponderado, el spread lead/lag y su momentum. No es seguro para uso
// concurrente; Monitor lo protege.
type Consensus struct {
	venues []domain.VenueConfig
	prices map[string]float64

	// spread clásico binance - coinbase
	binance  float64
	coinbase float64
	latency  float64

	leadLag  float64
	history  []timedValue
	baseline float64
	momentum float64
}

// NewConsensus crea un consenso para los venues dados. El orden importa para
// elegir la referencia de liquidación.
func NewConsensus(venues []domain.VenueConfig) *Consensus {
	return &Consensus{venues: venues, prices: make(map[string]float64, len(venues))}
}

// Update registra un precio y recalcula spread y momentum. Precios <= 0 se
// ignoran.
func (c *Consensus) Update(s domain.PriceSample) {
	if s.Price <= 0 {
		return
	}
	c.prices[s.Venue] = s.Price
	switch s.Venue {
	case domain.VenueBinance:
		c.binance = s.Price
	case domain.VenueCoinbase:
		c.coinbase = s.Price
	}
	c.leadLag = c.LeadVsSettlement().Spread
	c.updateMomentum(s.At)
}

func (c *Consensus) updateMomentum(now time.Time) {
	if c.binance > 0 && c.coinbase > 0 {
		c.latency = c.binance - c.coinbase
	}

	signal := c.leadLag
	if signal == 0 {
		signal = c.latency
	}
	if signal == 0 {
		return
	}

	c.history = append(c.history, timedValue{at: now, value: signal})
	cutoff := now.Add(-momentumWindow)
	kept := c.history[:0]
	for _, h := range c.history {
		if !h.at.Before(cutoff) {
			kept = append(kept, h)
		}
	}
	c.history = kept

	if len(c.history) >= 2 {
		var sum float64
		for _, h := range c.history {
			sum += h.value
		}
		c.baseline = sum / float64(len(c.history))
		c.momentum = signal - c.baseline
		return
	}
	c.baseline = signal
	c.momentum = 0
}

// Price devuelve el último precio de un venue (0 si no hay).
func (c *Consensus) Price(venue string) float64 { return c.prices[venue] }

// WeightedGlobalPrice es la media ponderada por peso de los venues con
// precio. 0 si no hay ninguno.
func (c *Consensus) WeightedGlobalPrice() float64 {
	return c.weighted(func(domain.VenueConfig) bool { return true })
}

// LeadVsSettlement compara la media ponderada de los venues lead con la de
// los de liquidación.
func (c *Consensus) LeadVsSettlement() domain.LeadLag {
	lead := c.weighted(func(v domain.VenueConfig) bool { return v.Role == domain.RoleLead })
	ref := c.weighted(func(v domain.VenueConfig) bool { return v.Role == domain.RoleSettlement })
	if lead == 0 || ref == 0 {
		return domain.LeadLag{}
	}
	return domain.LeadLag{Lead: lead, Ref: ref, Spread: lead - ref}
}

func (c *Consensus) weighted(include func(domain.VenueConfig) bool) float64 {
	var sum, weights float64
	for _, v := range c.venues {
		p := c.prices[v.ID]
		if p <= 0 || !include(v) {
			continue
		}
		sum += p * v.Weight
		weights += v.Weight
	}
	if weights <= 0 {
		return 0
	}
	return sum / weights
}

// Signal compara el consenso con el strike: BULLISH si lo supera por más de
// threshold, BEARISH si queda por debajo por más de threshold.
func (c *Consensus) Signal(strike, threshold float64) (domain.Signal, float64) {
	gwp := c.WeightedGlobalPrice()
	if gwp == 0 || strike == 0 {
		return domain.Neutral, 0
	}
	diff := gwp - strike
	switch {
	case diff > threshold:
		return domain.Bullish, diff
	case diff < -threshold:
		return domain.Bearish, diff
	}
	return domain.Neutral, diff
}

// Momentum devuelve señal actual menos su media de 60s.
func (c *Consensus) Momentum() float64 { return c.momentum }

// Baseline devuelve la media de 60s de la señal.
func (c *Consensus) Baseline() float64 { return c.baseline }

// Latency devuelve el spread binance - coinbase.
func (c *Consensus) Latency() float64 { return c.latency }

// SettlementReference devuelve el precio del primer venue de liquidación con
// precio, en orden de configuración. Si no hay, el último de coinbase.
func (c *Consensus) SettlementReference() float64 {
	for _, v := range c.venues {
		if v.Role == domain.RoleSettlement && c.prices[v.ID] > 0 {
			return c.prices[v.ID]
		}
	}
	return c.coinbase
}

// SettlementMean es la media simple de los venues de liquidación con precio.
func (c *Consensus) SettlementMean() (float64, bool) {
	var sum float64
	var n int
	for _, v := range c.venues {
		if v.Role == domain.RoleSettlement && c.prices[v.ID] > 0 {
			sum += c.prices[v.ID]
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
