package alpha

import (
	"math"
	"time"

	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/moznion/go-optional"
)

// FairValueInput son los datos de mercado del cálculo de valor justo.
type FairValueInput struct {
	GlobalPrice    float64
	Strike         float64
	SecsLeft       float64
	ContractMean   optional.Option[float64] // media de liquidación del contrato
	SettlementMean optional.Option[float64] // media de venues de liquidación vivos
	ContractStart  time.Time
	Now            time.Time
	Vol5m          float64
	K              float64
}

// ComputeFairValue estima la probabilidad de que YES liquide a 100.
//
// Proyecta la liquidación mezclando la media ya observada con el precio
// actual (más peso al actual cuanto más falta), pasa la distancia al strike
// a z-score con la volatilidad en dólares del tiempo restante y la convierte
// en probabilidad con una logística de pendiente K.
func ComputeFairValue(in FairValueInput) domain.FairValue {
	if in.GlobalPrice <= 0 || in.Strike <= 0 {
		return domain.FairValue{Prob: 0.5, Cents: 50}
	}

	avg := in.ContractMean.Or(in.SettlementMean).TakeOr(in.GlobalPrice)

	projected := avg
	if in.SecsLeft > 0 && !in.ContractStart.IsZero() {
		elapsed := max(in.Now.Sub(in.ContractStart).Seconds(), 1)
		w := min(0.85, in.SecsLeft/(elapsed+in.SecsLeft)+0.3)
		projected = avg*(1-w) + in.GlobalPrice*w
	}

	vol := in.Vol5m
	if vol <= 0 {
		vol = 0.0001
	}
	dollarVol := max(in.GlobalPrice*vol*math.Sqrt(max(in.SecsLeft, 1)/5), 1)
	z := (projected - in.Strike) / dollarVol

	prob := 1 / (1 + math.Exp(-in.K*z))
	prob = max(0.01, min(0.99, prob))

	return domain.FairValue{
		Prob:        prob,
		Cents:       int(math.Round(prob * 100)),
		BTCvsStrike: in.GlobalPrice - in.Strike,
		Projected:   projected,
	}
}
