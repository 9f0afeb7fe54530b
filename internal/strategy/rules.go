package strategy

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/alejandrodnm/kalshibot/config"
	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/alejandrodnm/kalshibot/internal/ports"
)

const (
	rulesName = "rules"

	// contractSecs es la duración de un contrato de 15 minutos.
	contractSecs = 900.0

	trendBonus     = 0.10
	highVolBonus   = 0.05
	baseConfidence = 0.45
	maxConfidence  = 0.95
)

// Rules es la estrategia por defecto. Combina cuatro dimensiones:
// edge contra el valor justo, tendencia de 1m, régimen de volatilidad y
// tiempo restante.
type Rules struct {
	tunables func() config.Tunables
}

// NewRules crea la estrategia. tunables se lee en cada decisión para que los
// cambios en runtime apliquen en el siguiente ciclo.
func NewRules(tunables func() config.Tunables) *Rules {
	return &Rules{tunables: tunables}
}

// Name implementa ports.Strategy.
func (s *Rules) Name() string { return rulesName }

// Decide implementa ports.Strategy.
func (s *Rules) Decide(_ context.Context, view ports.MarketView, sig ports.Signals) domain.Decision {
	if sig == nil || view.Strike <= 0 {
		return domain.HoldDecision("no strike price or alpha data available")
	}
	t := s.tunables()

	fv := sig.FairValue(view.Strike, view.SecsLeft)
	vol := sig.Volatility()
	vel := sig.Velocity().OneMin
	timeFactor := domain.TimeFactor(view.SecsLeft, contractSecs)

	side := "above"
	if fv.BTCvsStrike <= 0 {
		side = "below"
	}
	reasons := []string{
		fmt.Sprintf("BTC %s strike by $%.0f", side, math.Abs(fv.BTCvsStrike)),
		fmt.Sprintf("fair: %dc YES (%.0f%%)", fv.Cents, fv.Prob*100),
		fmt.Sprintf("vol: %s ($%.1f/min)", vol.Regime, vol.DollarPerMin),
		fmt.Sprintf("trend: $%+.0f/1m", vel.Change),
		fmt.Sprintf("time: %.0fs left", view.SecsLeft),
	}

	if t.SitOutLowVol && vol.Regime == domain.RegimeLow {
		return domain.HoldDecision("low vol, sitting out. " + strings.Join(reasons, "; "))
	}

	yesCost := view.Book.BestAsk()
	noCost := 100 - view.Book.BestBid()
	yesEdge := fv.Cents - yesCost
	noEdge := (100 - fv.Cents) - noCost
	reasons = append(reasons,
		fmt.Sprintf("YES edge: %+dc (fair %d vs ask %d)", yesEdge, fv.Cents, yesCost),
		fmt.Sprintf("NO edge: %+dc (fair %d vs cost %d)", noEdge, 100-fv.Cents, noCost),
	)

	minEdge := t.MinEdgeCents
	high := vol.Regime == domain.RegimeHigh
	if high {
		minEdge = max(3, minEdge-3)
	}
	fast := high && math.Abs(vel.PerSecond) > t.TrendFollowVelocity

	yesScore := score(yesEdge, minEdge, vel.Direction > 0, fast, timeFactor)
	noScore := score(noEdge, minEdge, vel.Direction < 0, fast, timeFactor)

	var d domain.Decision
	switch {
	case yesScore > noScore && yesScore > 0:
		d = domain.Decision{Action: domain.BuyYes, Confidence: min(maxConfidence, baseConfidence+yesScore)}
		reasons = append(reasons, pick("YES", yesScore, yesEdge, vel.Direction > 0))
	case noScore > yesScore && noScore > 0:
		d = domain.Decision{Action: domain.BuyNo, Confidence: min(maxConfidence, baseConfidence+noScore)}
		reasons = append(reasons, pick("NO", noScore, noEdge, vel.Direction < 0))
	default:
		return domain.HoldDecision("no edge. " + strings.Join(reasons, "; "))
	}

	if d.Confidence < t.MinConfidence {
		return domain.HoldDecision(fmt.Sprintf("low confidence %.0f%%. %s", d.Confidence*100, strings.Join(reasons, "; ")))
	}
	d.Reasoning = strings.Join(reasons, "; ")
	return d
}

// score puntúa un lado: edge/100, bonus por tendencia a favor (y extra si la
// volatilidad es alta y el precio se mueve rápido), escalado por el tiempo
// restante. Cero si el edge no llega al mínimo.
func score(edge, minEdge int, trend, fast bool, timeFactor float64) float64 {
	if edge < minEdge {
		return 0
	}
	s := float64(edge) / 100
	if trend {
		s += trendBonus
		if fast {
			s += highVolBonus
		}
	}
	return s * timeFactor
}

func pick(side string, score float64, edge int, trend bool) string {
	r := fmt.Sprintf("-> BUY %s (score %.2f, edge %dc", side, score, edge)
	if trend {
		r += ", trend OK"
	}
	return r + ")"
}
