package ports

import (
	"context"

	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/moznion/go-optional"
)

// Settings es el almacén clave/valor de ajustes persistidos.
type Settings interface {
	GetSetting(ctx context.Context, key string) (optional.Option[string], error)
	SetSetting(ctx context.Context, key, value string) error
}

// Store persiste trades, decisiones, snapshots y eventos.
type Store interface {
	Settings

	// RecordTrade guarda un trade y devuelve su id.
	RecordTrade(ctx context.Context, t domain.TradeRecord) (int64, error)
	RecordDecision(ctx context.Context, d domain.DecisionRecord) error
	RecordSnapshot(ctx context.Context, s domain.Snapshot) error

	// EntrySnapshot devuelve la última entrada BUY registrada para un mercado.
	EntrySnapshot(ctx context.Context, marketID string) (optional.Option[domain.EntrySnapshot], error)

	// UnsettledEntry devuelve la última entrada BUY sin salida ni liquidación
	// posterior.
	UnsettledEntry(ctx context.Context, marketID string) (optional.Option[domain.EntrySnapshot], error)

	RecentTrades(ctx context.Context, limit int) ([]domain.TradeRecord, error)

	Log(ctx context.Context, level, message string) error
}
