package alpha_test

import (
	"math"
	"testing"
	"time"

	"github.com/alejandrodnm/kalshibot/internal/alpha"
	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/assert"
)

func input(gwp, strike, secs float64) alpha.FairValueInput {
	return alpha.FairValueInput{
		GlobalPrice:    gwp,
		Strike:         strike,
		SecsLeft:       secs,
		ContractMean:   optional.None[float64](),
		SettlementMean: optional.None[float64](),
		Now:            t0,
		Vol5m:          0.0005,
		K:              0.6,
	}
}

func TestFairValue_NoData(t *testing.T) {
	fv := alpha.ComputeFairValue(input(0, 100000, 300))
	assert.Equal(t, 0.5, fv.Prob)
	assert.Equal(t, 50, fv.Cents)

	fv = alpha.ComputeFairValue(input(100000, 0, 300))
	assert.Equal(t, 50, fv.Cents)
}

func TestFairValue_AtStrikeIsHalf(t *testing.T) {
	fv := alpha.ComputeFairValue(input(100000, 100000, 300))
	assert.InDelta(t, 0.5, fv.Prob, 1e-9)
	assert.Equal(t, 50, fv.Cents)
}

func TestFairValue_MonotonicInPrice(t *testing.T) {
	prev := 0.0
	for gwp := 99900.0; gwp <= 100100; gwp += 20 {
		fv := alpha.ComputeFairValue(input(gwp, 100000, 300))
		assert.GreaterOrEqual(t, fv.Prob, prev, "gwp=%v", gwp)
		assert.GreaterOrEqual(t, fv.Prob, 0.01)
		assert.LessOrEqual(t, fv.Prob, 0.99)
		prev = fv.Prob
	}
}

func TestFairValue_Clamped(t *testing.T) {
	assert.Equal(t, 0.99, alpha.ComputeFairValue(input(150000, 100000, 30)).Prob)
	lo := alpha.ComputeFairValue(input(50000, 100000, 30))
	assert.Equal(t, 0.01, lo.Prob)
	assert.Equal(t, 1, lo.Cents)
}

func TestFairValue_BlendWeight(t *testing.T) {
	in := input(100100, 100000, 300)
	in.ContractMean = optional.Some(100000.0)
	in.ContractStart = t0.Add(-300 * time.Second)

	fv := alpha.ComputeFairValue(in)
	// w = min(0.85, 300/600 + 0.3) = 0.8
	assert.InDelta(t, 100000*0.2+100100*0.8, fv.Projected, 1e-6)
	assert.InDelta(t, 100, fv.BTCvsStrike, 1e-9)

	dollarVol := 100100 * 0.0005 * math.Sqrt(300.0/5)
	z := (fv.Projected - 100000) / dollarVol
	assert.InDelta(t, 1/(1+math.Exp(-0.6*z)), fv.Prob, 1e-9)
}

func TestFairValue_BlendWeightCapped(t *testing.T) {
	in := input(100100, 100000, 800)
	in.ContractMean = optional.Some(100000.0)
	in.ContractStart = t0.Add(-100 * time.Second)

	fv := alpha.ComputeFairValue(in)
	assert.InDelta(t, 100000*0.15+100100*0.85, fv.Projected, 1e-6)
}

func TestFairValue_AverageFallbacks(t *testing.T) {
	in := input(100100, 100000, 0)
	assert.InDelta(t, 100100, alpha.ComputeFairValue(in).Projected, 1e-9)

	in.SettlementMean = optional.Some(100050.0)
	assert.InDelta(t, 100050, alpha.ComputeFairValue(in).Projected, 1e-9)

	in.ContractMean = optional.Some(100020.0)
	assert.InDelta(t, 100020, alpha.ComputeFairValue(in).Projected, 1e-9)
}

func TestFairValue_ZeroVolUsesFloor(t *testing.T) {
	in := input(100010, 100000, 300)
	in.Vol5m = 0
	fv := alpha.ComputeFairValue(in)

	dollarVol := 100010 * 0.0001 * math.Sqrt(60)
	assert.InDelta(t, 1/(1+math.Exp(-0.6*10/dollarVol)), fv.Prob, 1e-9)
}
