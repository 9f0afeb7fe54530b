package alpha

import "time"

// contractWindow es lo que dura un contrato de la serie.
const contractWindow = 900 * time.Second

// Projector acumula los precios de los venues de liquidación en dos cubos:
// el minuto UTC en curso y el contrato en curso.
type Projector struct {
	minute        []timedValue
	minuteStart   time.Time
	contract      []timedValue
	contractStart time.Time
	projected     float64
}

// NewProjector crea un Projector vacío.
func NewProjector() *Projector { return &Projector{} }

// Record añade un precio de un venue de liquidación.
func (p *Projector) Record(price float64, at time.Time) {
	if m := at.UTC().Truncate(time.Minute); !m.Equal(p.minuteStart) {
		p.minute = p.minute[:0]
		p.minuteStart = m
	}
	p.minute = append(p.minute, timedValue{at: at, value: price})

	p.contract = append(p.contract, timedValue{at: at, value: price})
	cutoff := at.Add(-contractWindow)
	kept := p.contract[:0]
	for _, c := range p.contract {
		if !c.at.Before(cutoff) {
			kept = append(kept, c)
		}
	}
	p.contract = kept

	p.projected = mean(p.minute)
}

// ResetContract vacía el cubo del contrato y marca su inicio.
func (p *Projector) ResetContract(now time.Time) {
	p.contract = nil
	p.contractStart = now
}

// ContractStart devuelve cuándo empezó el contrato (cero si nunca se marcó).
func (p *Projector) ContractStart() time.Time { return p.contractStart }

// ContractMean devuelve la media del cubo del contrato.
func (p *Projector) ContractMean() (float64, bool) {
	if len(p.contract) == 0 {
		return 0, false
	}
	return mean(p.contract), true
}

// Projected devuelve la última proyección calculada.
func (p *Projector) Projected() float64 { return p.projected }

// ProjectSettlement proyecta si la media de liquidación quedará por encima
// del strike: lo ya observado en el minuto más ref durante lo que queda.
// Sin datos devuelve true.
func (p *Projector) ProjectSettlement(strike, secsLeft, ref float64, now time.Time) bool {
	if len(p.minute) == 0 || ref <= 0 {
		return true
	}
	avg := mean(p.minute)
	elapsed := max(now.Sub(p.minute[0].at).Seconds(), 1)
	remaining := max(secsLeft, 0)

	p.projected = (avg*elapsed + ref*remaining) / (elapsed + remaining)
	return p.projected >= strike
}

func mean(vs []timedValue) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v.value
	}
	return sum / float64(len(vs))
}
