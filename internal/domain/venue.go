package domain

import "time"

// VenueRole clasifica un exchange según su papel en la señal.
type VenueRole string

const (
	// RoleLead son los derivados donde se descubre el precio primero.
	RoleLead VenueRole = "lead"
	// RoleSettlement son los spot que componen el índice de liquidación.
	RoleSettlement VenueRole = "settlement"
)

// Venue IDs.
const (
	VenueBinance  = "binance"
	VenueBybit    = "bybit"
	VenueCoinbase = "coinbase"
	VenueOKX      = "okx"
	VenueKraken   = "kraken"
	VenueDeribit  = "deribit"
)

// VenueConfig describe un exchange que alimenta el consenso de precio.
type VenueConfig struct {
	ID     string
	Weight float64 // 0–1; no hace falta que sumen 1
	Role   VenueRole
	Symbol string
	Label  string
}

// PriceSample es el último precio observado en un venue.
type PriceSample struct {
	Venue string
	Price float64
	At    time.Time
}

// DefaultVenues devuelve los seis venues en orden de peso.
// El orden importa: el primer venue de liquidación vivo es la referencia
// de la proyección.
func DefaultVenues() []VenueConfig {
	return []VenueConfig{
		{ID: VenueBinance, Weight: 0.35, Role: RoleLead, Symbol: "BTC/USDT:USDT", Label: "Binance Futures"},
		{ID: VenueBybit, Weight: 0.20, Role: RoleLead, Symbol: "BTC/USDT:USDT", Label: "Bybit Futures"},
		{ID: VenueCoinbase, Weight: 0.18, Role: RoleSettlement, Symbol: "BTC/USD", Label: "Coinbase Spot"},
		{ID: VenueOKX, Weight: 0.12, Role: RoleLead, Symbol: "BTC/USDT:USDT", Label: "OKX Perpetual"},
		{ID: VenueKraken, Weight: 0.08, Role: RoleSettlement, Symbol: "BTC/USD", Label: "Kraken Spot"},
		{ID: VenueDeribit, Weight: 0.07, Role: RoleLead, Symbol: "BTC/USD:BTC", Label: "Deribit Futures"},
	}
}

// FilterVenues keeps only the venues whose ID is in ids, preserving order.
// An empty ids slice returns all venues.
func FilterVenues(all []VenueConfig, ids []string) []VenueConfig {
	if len(ids) == 0 {
		return all
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make([]VenueConfig, 0, len(ids))
	for _, v := range all {
		if want[v.ID] {
			out = append(out, v)
		}
	}
	return out
}
