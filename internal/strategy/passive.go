package strategy

import (
	"context"

	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/alejandrodnm/kalshibot/internal/ports"
)

const passiveName = "passive"

// Passive nunca entra. Con ella el motor solo gestiona salidas, overrides de
// alpha y liquidaciones.
type Passive struct{}

// NewPassive crea la estrategia.
func NewPassive() Passive { return Passive{} }

// Name implementa ports.Strategy.
func (Passive) Name() string { return passiveName }

// Decide implementa ports.Strategy.
func (Passive) Decide(context.Context, ports.MarketView, ports.Signals) domain.Decision {
	return domain.HoldDecision("passive strategy")
}
