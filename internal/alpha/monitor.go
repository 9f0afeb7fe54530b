package alpha

import (
	"sync"
	"time"

	"github.com/alejandrodnm/kalshibot/config"
	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/moznion/go-optional"
)

// Connectivity dice si un feed está conectado.
type Connectivity interface {
	Connected(id string) bool
}

// Monitor junta consenso, proyector y modelo de señales detrás de un mutex.
// Recibe los precios de los feeds (OnPrice) y responde a las lecturas del
// motor y la estrategia.
type Monitor struct {
	mu        sync.Mutex
	venues    []domain.VenueConfig
	consensus *Consensus
	projector *Projector
	signals   *SignalModel
	status    Connectivity
	tunables  func() config.Tunables
	now       func() time.Time
}

// NewMonitor crea un Monitor. tunables se consulta en cada lectura para usar
// los umbrales vigentes.
func NewMonitor(venues []domain.VenueConfig, status Connectivity, tunables func() config.Tunables) *Monitor {
	return &Monitor{
		venues:    venues,
		consensus: NewConsensus(venues),
		projector: NewProjector(),
		signals:   NewSignalModel(),
		status:    status,
		tunables:  tunables,
		now:       time.Now,
	}
}

// WithClock reemplaza el reloj (tests).
func (m *Monitor) WithClock(now func() time.Time) *Monitor {
	m.now = now
	return m
}

// OnPrice procesa un precio de un venue.
func (m *Monitor) OnPrice(s domain.PriceSample) {
	if s.Price <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.consensus.Update(s)
	if m.role(s.Venue) == domain.RoleSettlement {
		m.projector.Record(s.Price, s.At)
	}
	m.signals.Record(m.consensus.WeightedGlobalPrice(), s.At)
}

func (m *Monitor) role(id string) domain.VenueRole {
	for _, v := range m.venues {
		if v.ID == id {
			return v.Role
		}
	}
	return ""
}

// WeightedGlobalPrice devuelve el precio de consenso ponderado, 0 sin datos.
func (m *Monitor) WeightedGlobalPrice() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consensus.WeightedGlobalPrice()
}

// LeadVsSettlement devuelve el spread entre venues líderes y de liquidación.
func (m *Monitor) LeadVsSettlement() domain.LeadLag {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consensus.LeadVsSettlement()
}

// Signal compara el consenso con strike usando el umbral en dólares.
func (m *Monitor) Signal(strike, threshold float64) (domain.Signal, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consensus.Signal(strike, threshold)
}

// Momentum devuelve el delta momentum del consenso.
func (m *Monitor) Momentum() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consensus.Momentum()
}

// Volatility clasifica la volatilidad con los umbrales vigentes.
func (m *Monitor) Volatility() domain.Volatility {
	t := m.tunables()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signals.Volatility(m.now(), t.VolHighThreshold, t.VolLowThreshold)
}

// Velocity devuelve la velocidad del consenso por ventana.
func (m *Monitor) Velocity() domain.Velocities {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signals.Velocity(m.now())
}

// FairValue calcula el valor justo del YES para strike con secsLeft restantes.
func (m *Monitor) FairValue(strike, secsLeft float64) domain.FairValue {
	t := m.tunables()
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	in := FairValueInput{
		GlobalPrice:    m.consensus.WeightedGlobalPrice(),
		Strike:         strike,
		SecsLeft:       secsLeft,
		ContractMean:   optional.None[float64](),
		SettlementMean: optional.None[float64](),
		ContractStart:  m.projector.ContractStart(),
		Now:            now,
		Vol5m:          m.signals.Volatility(now, t.VolHighThreshold, t.VolLowThreshold).Vol5m,
		K:              t.FairValueK,
	}
	if v, ok := m.projector.ContractMean(); ok {
		in.ContractMean = optional.Some(v)
	}
	if v, ok := m.consensus.SettlementMean(); ok {
		in.SettlementMean = optional.Some(v)
	}
	return ComputeFairValue(in)
}

// ProjectSettlement dice si la liquidación proyectada queda por encima de strike.
func (m *Monitor) ProjectSettlement(strike, secsLeft float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.projector.ProjectSettlement(strike, secsLeft, m.consensus.SettlementReference(), m.now())
}

// ProjectedSettlement devuelve la media de liquidación proyectada.
func (m *Monitor) ProjectedSettlement() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.projector.Projected()
}

// VenueConnected dice si el feed del venue está conectado.
func (m *Monitor) VenueConnected(id string) bool {
	if m.status == nil {
		return false
	}
	return m.status.Connected(id)
}

// Venues devuelve precio y conexión de cada venue.
func (m *Monitor) Venues() []domain.VenueStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.VenueStatus, 0, len(m.venues))
	for _, v := range m.venues {
		out = append(out, domain.VenueStatus{
			ID:        v.ID,
			Label:     v.Label,
			Role:      v.Role,
			Price:     m.consensus.Price(v.ID),
			Connected: m.status != nil && m.status.Connected(v.ID),
		})
	}
	return out
}

// ResetContract empieza el cubo de liquidación de un contrato nuevo.
func (m *Monitor) ResetContract() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projector.ResetContract(m.now())
}
