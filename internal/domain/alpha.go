package domain

// LeadLag compara la media ponderada de los venues lead contra la de los de
// liquidación. Todo a cero si falta alguno de los dos grupos.
type LeadLag struct {
	Lead   float64
	Ref    float64
	Spread float64
}

// FairValue es la probabilidad justa de que YES liquide a 100.
type FairValue struct {
	Prob        float64
	Cents       int
	BTCvsStrike float64
	Projected   float64
}

// Volatility agrupa la volatilidad del consenso en las ventanas de 1m y 5m.
type Volatility struct {
	Vol1m        float64 // stdev de retornos simples
	Vol5m        float64
	DollarPerMin float64
	Regime       Regime
}

// Velocity es el cambio del consenso en una ventana.
type Velocity struct {
	Change    float64 // dólares
	PerSecond float64
	Direction int // -1, 0, 1
}

// Velocities son las lecturas de 1m y 5m.
type Velocities struct {
	OneMin  Velocity
	FiveMin Velocity
}

// VenueStatus es la vista de un venue para el panel de estado.
type VenueStatus struct {
	ID        string
	Label     string
	Role      VenueRole
	Price     float64
	Connected bool
}
