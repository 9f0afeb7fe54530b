package ports

import (
	"context"

	"github.com/alejandrodnm/kalshibot/internal/domain"
)

// Broker es el exchange de contratos: datos de mercado, cartera y órdenes.
// La implementación live habla con la API REST de Kalshi; la de paper simula
// cartera y órdenes sobre los mismos datos de mercado.
type Broker interface {
	// Balance devuelve el saldo disponible en centavos.
	Balance(ctx context.Context) (int, error)

	// OpenMarkets lista los mercados abiertos de una serie.
	OpenMarkets(ctx context.Context, series string) ([]domain.Market, error)

	// OrderBook devuelve el libro actual de un mercado.
	OrderBook(ctx context.Context, ticker string) (domain.OrderBook, error)

	// Positions devuelve las posiciones abiertas con cantidad con signo.
	Positions(ctx context.Context) ([]domain.BrokerPosition, error)

	PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.Order, error)
	CancelOrder(ctx context.Context, orderID string) error
	CancelAll(ctx context.Context) error
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)

	// GetMarket devuelve un mercado, incluido su resultado una vez liquidado.
	GetMarket(ctx context.Context, ticker string) (domain.Market, error)

	// Fills devuelve las ejecuciones de un mercado (vacío = todos).
	Fills(ctx context.Context, ticker string) ([]domain.Fill, error)
}

// Settler liquida posiciones simuladas. Solo lo implementa el broker de paper.
type Settler interface {
	// Expired devuelve los tickers con posición distintos de current.
	Expired(current string) []string

	// Settle paga 100c por contrato si winner es el lado de la posición y
	// la elimina.
	Settle(ctx context.Context, ticker string, winner domain.Side) (domain.Settlement, error)
}
