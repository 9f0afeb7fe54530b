package ports

import "github.com/alejandrodnm/kalshibot/internal/domain"

// Signals es la vista de solo lectura del modelo de precio.
type Signals interface {
	WeightedGlobalPrice() float64
	LeadVsSettlement() domain.LeadLag
	// Signal compara el consenso con el strike y devuelve la dirección y la
	// diferencia en dólares.
	Signal(strike, threshold float64) (domain.Signal, float64)
	Momentum() float64
	Volatility() domain.Volatility
	Velocity() domain.Velocities
	FairValue(strike, secsLeft float64) domain.FairValue
	ProjectSettlement(strike, secsLeft float64) bool
	ProjectedSettlement() float64
	VenueConnected(id string) bool
	Venues() []domain.VenueStatus
}

// Alpha es Signals más el control del contrato que usa el motor.
type Alpha interface {
	Signals
	ResetContract()
}
