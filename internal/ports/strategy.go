package ports

import (
	"context"

	"github.com/alejandrodnm/kalshibot/internal/domain"
)

// MarketView es lo que ve la estrategia del contrato activo.
type MarketView struct {
	Ticker   string
	Strike   float64
	SecsLeft float64
	Book     domain.OrderBook
	Position domain.BrokerPosition
	Balance  int
}

// Strategy decide la entrada de cada ciclo. Nunca coloca órdenes.
type Strategy interface {
	Name() string
	Decide(ctx context.Context, view MarketView, signals Signals) domain.Decision
}
