package domain

// Action es la decisión de entrada de un ciclo.
type Action string

const (
	BuyYes Action = "BUY_YES"
	BuyNo  Action = "BUY_NO"
	Hold   Action = "HOLD"
)

// Side devuelve el lado a comprar. Hold no tiene lado.
func (a Action) Side() (Side, bool) {
	switch a {
	case BuyYes:
		return SideYes, true
	case BuyNo:
		return SideNo, true
	}
	return "", false
}

// BuyAction devuelve la acción de compra para un lado.
func BuyAction(s Side) Action {
	if s == SideYes {
		return BuyYes
	}
	return BuyNo
}

// Decision es lo que devuelve la estrategia: opaca para el motor salvo
// acción y confianza.
type Decision struct {
	Action     Action
	Confidence float64
	Reasoning  string
}

// HoldDecision builds a HOLD with a reason.
func HoldDecision(reason string) Decision {
	return Decision{Action: Hold, Reasoning: reason}
}

// Trigger identifica qué disparó una entrada.
type Trigger string

const (
	TriggerRules    Trigger = "rules"
	TriggerLeadLag  Trigger = "lead_lag"
	TriggerMomentum Trigger = "momentum"
	TriggerAnchor   Trigger = "anchor"
)

// Signal es la lectura direccional del consenso contra el strike.
type Signal string

const (
	Bullish Signal = "BULLISH"
	Bearish Signal = "BEARISH"
	Neutral Signal = "NEUTRAL"
)

// Regime clasifica la volatilidad en $/minuto.
type Regime string

const (
	RegimeLow    Regime = "low"
	RegimeMedium Regime = "medium"
	RegimeHigh   Regime = "high"
)
