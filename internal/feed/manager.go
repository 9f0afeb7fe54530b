package feed

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Manager arranca y para un conjunto de feeds como una unidad.
type Manager struct {
	conns []*Connection
}

// NewManager crea un Manager para las conexiones dadas.
func NewManager(conns ...*Connection) *Manager {
	return &Manager{conns: conns}
}

// Add registra otra conexión antes de Run.
func (m *Manager) Add(c *Connection) { m.conns = append(m.conns, c) }

// Run arranca todos los feeds y bloquea hasta que ctx se cancela. Al volver,
// todos los feeds han terminado.
func (m *Manager) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, c := range m.conns {
		c.Start(gctx)
		g.Go(func() error {
			c.Wait()
			return nil
		})
	}
	slog.Info("feed: manager started", "feeds", len(m.conns))

	<-gctx.Done()
	for _, c := range m.conns {
		c.Stop()
	}
	err := g.Wait()
	slog.Info("feed: manager stopped")
	return err
}
