package domain

// DailyLossBreaker corta las entradas cuando el P&L liquidado de la sesión
// cae por debajo de un porcentaje del balance inicial.
//
// El P&L liquidado es (balance + exposición) - (balance inicial + exposición
// inicial): comprar mueve dinero de balance a exposición sin cambiar la suma,
// así que solo las liquidaciones y las ventas lo mueven.
type DailyLossBreaker struct {
	StartBalance  int // centavos
	StartExposure int // centavos
	started       bool
	Triggered     bool
}

// Started reports whether the session baseline was captured.
func (b *DailyLossBreaker) Started() bool { return b.started }

// Start captura el punto de partida de la sesión. Solo la primera llamada
// tiene efecto.
func (b *DailyLossBreaker) Start(balance, exposure int) {
	if b.started {
		return
	}
	b.StartBalance = balance
	b.StartExposure = exposure
	b.started = true
}

// Reset olvida el punto de partida (cambio de entorno o reset de paper).
func (b *DailyLossBreaker) Reset() {
	*b = DailyLossBreaker{}
}

// SettledPnL devuelve el P&L liquidado en centavos.
func (b *DailyLossBreaker) SettledPnL(balance, exposure int) int {
	return (balance + exposure) - (b.StartBalance + b.StartExposure)
}

// MaxLoss devuelve la pérdida máxima permitida en centavos para un porcentaje.
func (b *DailyLossBreaker) MaxLoss(pct float64) float64 {
	return float64(b.StartBalance) * pct / 100
}

// IsOpen returns true if trading is allowed. It trips once the settled P&L
// goes below -MaxLoss(pct).
func (b *DailyLossBreaker) IsOpen(balance, exposure int, pct float64) bool {
	b.Triggered = float64(b.SettledPnL(balance, exposure)) < -b.MaxLoss(pct)
	return !b.Triggered
}
