package engine

import (
	"fmt"
	"time"

	"github.com/alejandrodnm/kalshibot/config"
	"github.com/alejandrodnm/kalshibot/internal/domain"
)

// spreadGuard devuelve si se puede operar con el libro. Un libro vacío
// bloquea; con un solo lado se permite operar con una orden límite.
func spreadGuard(ob domain.OrderBook, maxSpread int) (bool, string) {
	if ob.Empty() {
		return false, "spread guard: empty order book"
	}
	if ob.TwoSided() {
		if spread := ob.Spread(); spread > maxSpread {
			return false, fmt.Sprintf("spread guard: %dc spread too wide", spread)
		}
	}
	return true, ""
}

// entryGuard comprueba las guardas previas a colocar una entrada en side.
// Devuelve el motivo del bloqueo o "" si se puede entrar.
func entryGuard(t config.Tunables, side domain.Side, pos domain.BrokerPosition, hasPos bool, st domain.ExitState, edge int, now time.Time) string {
	if hasPos && pos.Position != 0 && pos.Side() != side {
		return fmt.Sprintf("same-side guard: holding %s", pos.Side())
	}
	if st.TookProfit {
		return "already took profit, no re-entry"
	}
	if !st.LastEdgeExit.IsZero() {
		cooldown := time.Duration(t.EdgeExitCooldownSecs) * time.Second
		if st.InEdgeCooldown(now, cooldown) {
			left := cooldown - now.Sub(st.LastEdgeExit)
			return fmt.Sprintf("edge re-entry cooldown (%.0fs left)", left.Seconds())
		}
		if required := t.MinEdgeCents + t.ReentryEdgePremium; edge < required {
			return fmt.Sprintf("insufficient edge for re-entry (%dc < %dc)", edge, required)
		}
	}
	return ""
}

// priceGuard rechaza contratos demasiado baratos o demasiado caros. price
// es lo que se paga por contrato en el lado elegido.
func priceGuard(t config.Tunables, price int) string {
	if price < t.MinContractPrice {
		return fmt.Sprintf("price guard: %dc < %dc min", price, t.MinContractPrice)
	}
	if price > t.MaxContractPrice {
		return fmt.Sprintf("price guard: %dc > %dc max", price, t.MaxContractPrice)
	}
	return ""
}

// exposureGuard bloquea si la exposición total alcanza el límite.
func exposureGuard(t config.Tunables, balance, exposure int) string {
	limit := float64(balance) * t.MaxTotalExposurePct / 100
	if float64(exposure) >= limit {
		return fmt.Sprintf("max exposure reached (%s of %s)", dollars(exposure), dollars(int(limit)))
	}
	return ""
}

// entryPrice elige el límite de la entrada. Las señales urgentes y el modo
// paper cruzan el spread; en live se empieza en el punto medio. Con un libro
// de un solo lado se puja 1c por encima del mejor bid.
func entryPrice(side domain.Side, bid, ask int, cross bool) int {
	twoSided := ask < 100 && bid > 0
	switch {
	case twoSided && cross:
		if side == domain.SideYes {
			return ask
		}
		return 100 - bid
	case twoSided:
		if side == domain.SideYes {
			return domain.ClampCents((bid + ask + 1) / 2)
		}
		noBid, noAsk := 100-ask, 100-bid
		return domain.ClampCents((noBid + noAsk + 1) / 2)
	}
	if side == domain.SideYes {
		return domain.ClampCents(bid + 1)
	}
	return domain.ClampCents(100 - ask + 1)
}

// contracts convierte un porcentaje del balance en número de contratos a
// price centavos. Siempre al menos 1.
func contracts(balance int, pct float64, price int) int {
	if price <= 0 {
		return 1
	}
	budget := float64(balance) * pct / 100
	return max(1, int(budget/float64(price)))
}
