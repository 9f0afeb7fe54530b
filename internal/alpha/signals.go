package alpha

import (
	"math"
	"time"

	"github.com/alejandrodnm/kalshibot/internal/domain"
)

const historyWindow = 900 * time.Second

// SignalModel guarda 15 minutos de consenso y deriva velocidad y volatilidad.
type SignalModel struct {
	history []timedValue
}

// NewSignalModel crea un modelo vacío.
func NewSignalModel() *SignalModel { return &SignalModel{} }

// Record añade un precio de consenso. Precios <= 0 se ignoran.
func (m *SignalModel) Record(price float64, at time.Time) {
	if price <= 0 {
		return
	}
	m.history = append(m.history, timedValue{at: at, value: price})
	cutoff := at.Add(-historyWindow)
	i := 0
	for i < len(m.history) && m.history[i].at.Before(cutoff) {
		i++
	}
	m.history = m.history[i:]
}

// Len devuelve cuántas muestras hay.
func (m *SignalModel) Len() int { return len(m.history) }

// Velocity calcula el cambio en 1m y 5m contra la muestra más reciente
// anterior al corte (con 5s de margen).
func (m *SignalModel) Velocity(now time.Time) domain.Velocities {
	if len(m.history) < 2 {
		return domain.Velocities{}
	}
	return domain.Velocities{
		OneMin:  m.velocity(now, 60*time.Second),
		FiveMin: m.velocity(now, 300*time.Second),
	}
}

func (m *SignalModel) velocity(now time.Time, window time.Duration) domain.Velocity {
	current := m.history[len(m.history)-1].value
	cutoff := now.Add(-window).Add(5 * time.Second)

	var old float64
	found := false
	for _, h := range m.history {
		if h.at.After(cutoff) {
			break
		}
		old = h.value
		found = true
	}
	if !found {
		return domain.Velocity{}
	}

	change := current - old
	v := domain.Velocity{Change: change, PerSecond: change / window.Seconds()}
	switch {
	case change > 0:
		v.Direction = 1
	case change < 0:
		v.Direction = -1
	}
	return v
}

// Volatility calcula la volatilidad de retornos en 1m y 5m y el movimiento
// medio en $/min de los últimos 5 minutos.
func (m *SignalModel) Volatility(now time.Time, highThreshold, lowThreshold float64) domain.Volatility {
	out := domain.Volatility{
		Vol1m: returnStdev(m.window(now, 60*time.Second)),
		Vol5m: returnStdev(m.window(now, 300*time.Second)),
	}

	w := m.window(now, 300*time.Second)
	if len(w) >= 10 {
		minutes := w[len(w)-1].at.Sub(w[0].at).Minutes()
		if minutes > 0.5 {
			var path float64
			for i := 1; i < len(w); i++ {
				path += math.Abs(w[i].value - w[i-1].value)
			}
			out.DollarPerMin = path / minutes
		}
	}

	switch {
	case out.DollarPerMin > highThreshold:
		out.Regime = domain.RegimeHigh
	case out.DollarPerMin > lowThreshold:
		out.Regime = domain.RegimeMedium
	default:
		out.Regime = domain.RegimeLow
	}
	return out
}

func (m *SignalModel) window(now time.Time, d time.Duration) []timedValue {
	cutoff := now.Add(-d)
	for i, h := range m.history {
		if !h.at.Before(cutoff) {
			return m.history[i:]
		}
	}
	return nil
}

// returnStdev es la desviación típica poblacional de los retornos simples.
// Necesita 10 muestras y 5 retornos; ignora pares a menos de 100ms.
func returnStdev(w []timedValue) float64 {
	if len(w) < 10 {
		return 0
	}
	returns := make([]float64, 0, len(w)-1)
	for i := 1; i < len(w); i++ {
		if w[i].at.Sub(w[i-1].at) < 100*time.Millisecond {
			continue
		}
		returns = append(returns, (w[i].value-w[i-1].value)/w[i-1].value)
	}
	if len(returns) < 5 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mu := sum / float64(len(returns))
	var variance float64
	for _, r := range returns {
		variance += (r - mu) * (r - mu)
	}
	return math.Sqrt(variance / float64(len(returns)))
}
