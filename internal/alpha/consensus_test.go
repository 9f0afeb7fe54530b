package alpha_test

import (
	"testing"
	"time"

	"github.com/alejandrodnm/kalshibot/internal/alpha"
	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func sample(venue string, price float64, at time.Time) domain.PriceSample {
	return domain.PriceSample{Venue: venue, Price: price, At: at}
}

func TestConsensus_WeightedPriceUsesLiveVenuesOnly(t *testing.T) {
	c := alpha.NewConsensus(domain.DefaultVenues())
	assert.Equal(t, 0.0, c.WeightedGlobalPrice())

	c.Update(sample(domain.VenueBinance, 100000, t0))
	c.Update(sample(domain.VenueCoinbase, 99000, t0))
	c.Update(sample(domain.VenueKraken, 0, t0))

	want := (100000*0.35 + 99000*0.18) / (0.35 + 0.18)
	assert.InDelta(t, want, c.WeightedGlobalPrice(), 1e-6)
}

func TestConsensus_EqualPricesGiveThatPrice(t *testing.T) {
	c := alpha.NewConsensus(domain.DefaultVenues())
	for _, v := range domain.DefaultVenues() {
		c.Update(sample(v.ID, 97000, t0))
	}
	assert.InDelta(t, 97000, c.WeightedGlobalPrice(), 1e-6)
	assert.Equal(t, 0.0, c.LeadVsSettlement().Spread)
}

func TestConsensus_LeadVsSettlementNeedsBothGroups(t *testing.T) {
	c := alpha.NewConsensus(domain.DefaultVenues())
	c.Update(sample(domain.VenueBinance, 100000, t0))
	c.Update(sample(domain.VenueBybit, 100100, t0))
	assert.Equal(t, domain.LeadLag{}, c.LeadVsSettlement())

	c.Update(sample(domain.VenueKraken, 99900, t0))
	ll := c.LeadVsSettlement()
	lead := (100000*0.35 + 100100*0.20) / 0.55
	assert.InDelta(t, lead, ll.Lead, 1e-6)
	assert.InDelta(t, 99900, ll.Ref, 1e-6)
	assert.InDelta(t, lead-99900, ll.Spread, 1e-6)
}

func TestConsensus_Momentum(t *testing.T) {
	c := alpha.NewConsensus(domain.DefaultVenues())

	c.Update(sample(domain.VenueBinance, 100, t0))
	assert.Equal(t, 0.0, c.Momentum())

	c.Update(sample(domain.VenueCoinbase, 90, t0.Add(time.Second)))
	assert.InDelta(t, 10, c.Baseline(), 1e-9)
	assert.Equal(t, 0.0, c.Momentum())
	assert.InDelta(t, 10, c.Latency(), 1e-9)

	c.Update(sample(domain.VenueBinance, 110, t0.Add(2*time.Second)))
	assert.InDelta(t, 15, c.Baseline(), 1e-9)
	assert.InDelta(t, 5, c.Momentum(), 1e-9)
}

func TestConsensus_MomentumWindowExpires(t *testing.T) {
	c := alpha.NewConsensus(domain.DefaultVenues())
	c.Update(sample(domain.VenueBinance, 100, t0))
	c.Update(sample(domain.VenueCoinbase, 90, t0))

	// el primer punto sale de la ventana de 60s
	c.Update(sample(domain.VenueBinance, 130, t0.Add(61*time.Second)))
	assert.InDelta(t, 40, c.Baseline(), 1e-9)
	assert.Equal(t, 0.0, c.Momentum())
}

func TestConsensus_Signal(t *testing.T) {
	c := alpha.NewConsensus(domain.DefaultVenues())
	sig, diff := c.Signal(100000, 75)
	assert.Equal(t, domain.Neutral, sig)
	assert.Equal(t, 0.0, diff)

	c.Update(sample(domain.VenueCoinbase, 100100, t0))
	sig, diff = c.Signal(100000, 75)
	assert.Equal(t, domain.Bullish, sig)
	assert.InDelta(t, 100, diff, 1e-9)

	sig, _ = c.Signal(100200, 75)
	assert.Equal(t, domain.Bearish, sig)

	sig, _ = c.Signal(100050, 75)
	assert.Equal(t, domain.Neutral, sig)

	sig, _ = c.Signal(0, 75)
	assert.Equal(t, domain.Neutral, sig)
}

func TestConsensus_SettlementReference(t *testing.T) {
	c := alpha.NewConsensus(domain.DefaultVenues())
	assert.Equal(t, 0.0, c.SettlementReference())

	c.Update(sample(domain.VenueKraken, 99950, t0))
	assert.Equal(t, 99950.0, c.SettlementReference())

	// coinbase va antes que kraken en la configuración
	c.Update(sample(domain.VenueCoinbase, 99900, t0))
	assert.Equal(t, 99900.0, c.SettlementReference())

	mean, ok := c.SettlementMean()
	assert.True(t, ok)
	assert.InDelta(t, 99925, mean, 1e-9)
}
