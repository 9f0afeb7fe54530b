package domain

import "time"

// ExitType etiqueta el motivo de una venta.
type ExitType string

const (
	ExitStopLoss   ExitType = "SL"
	ExitEdge       ExitType = "EDGE"
	ExitTakeProfit ExitType = "TP"
	ExitSell       ExitType = "SELL"
	ExitSettle     ExitType = "SETTLE"
)

// ExitRule identifica la regla de salida que disparó. El orden de las
// constantes es el orden de prioridad.
type ExitRule int

const (
	RuleNone ExitRule = iota
	RuleHoldToExpiry
	RuleStopLoss
	RuleEdgeExit
	RuleHitAndRun
	RuleProfitTake
	RuleFreeRoll
)

func (r ExitRule) String() string {
	switch r {
	case RuleHoldToExpiry:
		return "hold_to_expiry"
	case RuleStopLoss:
		return "stop_loss"
	case RuleEdgeExit:
		return "edge_exit"
	case RuleHitAndRun:
		return "hit_and_run"
	case RuleProfitTake:
		return "profit_take"
	case RuleFreeRoll:
		return "free_roll"
	}
	return "none"
}

// ExitType devuelve la etiqueta con la que se registra la venta.
func (r ExitRule) ExitType() ExitType {
	switch r {
	case RuleStopLoss:
		return ExitStopLoss
	case RuleEdgeExit:
		return ExitEdge
	case RuleHitAndRun, RuleProfitTake:
		return ExitTakeProfit
	}
	return ExitSell
}

// ExitState es el estado efímero de salida de un ticker. Vive lo que vive el
// contrato y se borra en el rollover.
type ExitState struct {
	EntryAt      time.Time
	EntryEdge    int
	FreeRolled   bool
	TookProfit   bool
	LastEdgeExit time.Time
	EdgeExits    int

	// una entrada que quedó en reposo sin fill; se adopta al aparecer la posición
	Resting     bool
	RestingEdge int
}

// HasEntry reports whether an entry was recorded for this contract.
func (s ExitState) HasEntry() bool { return !s.EntryAt.IsZero() }

// AdoptResting convierte la entrada en reposo en entrada registrada.
func (s *ExitState) AdoptResting(now time.Time) {
	if !s.Resting {
		return
	}
	s.EntryAt = now
	s.EntryEdge = s.RestingEdge
	s.Resting = false
	s.RestingEdge = 0
}

// InEdgeCooldown reports whether an edge exit happened less than cooldown ago.
func (s ExitState) InEdgeCooldown(now time.Time, cooldown time.Duration) bool {
	if s.LastEdgeExit.IsZero() {
		return false
	}
	return now.Sub(s.LastEdgeExit) < cooldown
}
