package venues

import (
	"fmt"

	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/alejandrodnm/kalshibot/internal/feed"
)

// Connections construye una feed.Connection por venue. newBackoff se llama
// una vez por conexión.
func Connections(cfgs []domain.VenueConfig, sink Sink, status *feed.Status, newBackoff func() *feed.Backoff) ([]*feed.Connection, error) {
	conns := make([]*feed.Connection, 0, len(cfgs))
	for _, cfg := range cfgs {
		if cfg.ID == domain.VenueBinance {
			conns = append(conns, feed.NewStreamConnection(NewBinance(cfg, sink), status, newBackoff()))
			continue
		}
		h, err := NewHandler(cfg, sink)
		if err != nil {
			return nil, fmt.Errorf("venues.Connections: %w", err)
		}
		conns = append(conns, feed.NewConnection(h, status, newBackoff()))
	}
	return conns, nil
}
