package domain

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/moznion/go-optional"
)

// Market es un contrato de la serie tal como lo devuelve el broker.
type Market struct {
	Ticker                 string
	Title                  string
	YesSubTitle            string
	Status                 string
	Result                 string // "yes" | "no" | "" mientras no liquida
	FloorStrike            optional.Option[float64]
	StrikePrice            optional.Option[float64]
	CloseTime              optional.Option[time.Time]
	ExpectedExpirationTime optional.Option[time.Time]
	LastPrice              int
	Volume                 int
}

// Close devuelve el cierre del contrato: close_time o, si falta, la
// expiración esperada.
func (m Market) Close() optional.Option[time.Time] {
	if m.CloseTime.IsSome() {
		return m.CloseTime
	}
	return m.ExpectedExpirationTime
}

// SecondsToClose devuelve los segundos que faltan hasta el cierre.
func (m Market) SecondsToClose(now time.Time) float64 {
	c := m.Close()
	if c.IsNone() {
		return 0
	}
	return c.Unwrap().Sub(now).Seconds()
}

var dollarAmount = regexp.MustCompile(`\$([0-9,.]+)`)

// ExtractStrike obtiene el precio de referencia del contrato.
// Primero los campos estructurados (floor_strike, strike_price); valores
// <= 1000 se interpretan como centavos. Si no hay, busca "$83,873.07" en
// yes_sub_title y luego en title.
func ExtractStrike(m Market) optional.Option[float64] {
	for _, s := range []optional.Option[float64]{m.FloorStrike, m.StrikePrice} {
		if s.IsSome() && s.Unwrap() != 0 {
			v := s.Unwrap()
			if v > 1000 {
				return optional.Some(v)
			}
			return optional.Some(v / 100)
		}
	}
	for _, text := range []string{m.YesSubTitle, m.Title} {
		match := dollarAmount.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", ""), 64)
		if err == nil {
			return optional.Some(v)
		}
	}
	return optional.None[float64]()
}

// SelectActive elige el contrato a operar entre los mercados abiertos.
// Ordena por tiempo restante; si hay solapamiento y el más próximo cierra en
// menos de minSecs, salta al siguiente.
func SelectActive(markets []Market, now time.Time, minSecs float64) (Market, bool) {
	candidates := make([]Market, 0, len(markets))
	for _, m := range markets {
		if m.Close().IsNone() {
			continue
		}
		if m.SecondsToClose(now) > 0 {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return Market{}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].SecondsToClose(now) < candidates[j].SecondsToClose(now)
	})
	if len(candidates) > 1 && candidates[0].SecondsToClose(now) < minSecs {
		return candidates[1], true
	}
	return candidates[0], true
}

// ContractWindow es el contrato activo: se crea al cambiar de ticker y
// delimita el estado por contrato.
type ContractWindow struct {
	Ticker    string
	Strike    optional.Option[float64]
	CloseTime time.Time
	StartedAt time.Time
}
