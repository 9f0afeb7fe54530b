package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/kalshibot/internal/domain"
)

// BookSource lee libros mantenidos por el stream del broker.
type BookSource interface {
	// Read devuelve el libro si se actualizó hace menos de maxAge.
	Read(ticker string, maxAge time.Duration) (domain.OrderBook, error)
}

// BookSubscriber pide al stream del broker los deltas de un mercado.
type BookSubscriber interface {
	SubscribeOrderBook(ctx context.Context, ticker string) error
	Connected() bool
}
