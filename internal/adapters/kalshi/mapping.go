package kalshi

import (
	"strings"
	"time"

	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/moznion/go-optional"
)

func mapMarket(r marketDTO) domain.Market {
	return domain.Market{
		Ticker:                 r.Ticker,
		Title:                  r.Title,
		YesSubTitle:            r.YesSubTitle,
		Status:                 r.Status,
		Result:                 strings.ToLower(r.Result),
		FloorStrike:            optional.FromNillable(r.FloorStrike),
		StrikePrice:            optional.FromNillable(r.StrikePrice),
		CloseTime:              parseTime(r.CloseTime),
		ExpectedExpirationTime: parseTime(r.ExpectedExpirationTime),
		LastPrice:              r.LastPrice,
		Volume:                 r.Volume,
	}
}

func parseTime(s string) optional.Option[time.Time] {
	if s == "" {
		return optional.None[time.Time]()
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return optional.None[time.Time]()
	}
	return optional.Some(t.UTC())
}

func mapLevels(raw [][2]int) []domain.Level {
	levels := make([]domain.Level, 0, len(raw))
	for _, l := range raw {
		levels = append(levels, domain.Level{Price: l[0], Qty: l[1]})
	}
	return levels
}

func mapOrderBook(ticker string, r orderbookResponse, at time.Time) domain.OrderBook {
	return domain.OrderBook{
		Ticker:    ticker,
		Yes:       mapLevels(r.Orderbook.Yes),
		No:        mapLevels(r.Orderbook.No),
		UpdatedAt: at,
	}
}

func mapPositions(raw []positionDTO) []domain.BrokerPosition {
	out := make([]domain.BrokerPosition, 0, len(raw))
	for _, p := range raw {
		out = append(out, domain.BrokerPosition{
			Ticker:         p.Ticker,
			Position:       p.Position,
			MarketExposure: p.MarketExposure,
		})
	}
	return out
}

func mapOrder(r orderDTO) domain.Order {
	o := domain.Order{
		ID:             r.OrderID,
		Ticker:         r.Ticker,
		Side:           domain.Side(strings.ToLower(r.Side)),
		Action:         domain.OrderAction(strings.ToLower(r.Action)),
		Status:         domain.OrderStatus(strings.ToLower(r.Status)),
		PriceCents:     r.YesPrice,
		FilledCount:    r.FilledCount,
		RemainingCount: r.RemainingCount,
	}
	if o.Side == domain.SideNo {
		o.PriceCents = r.NoPrice
	}
	return o
}

func mapFill(r fillDTO) domain.Fill {
	f := domain.Fill{
		TradeID:  r.TradeID,
		OrderID:  r.OrderID,
		Ticker:   r.Ticker,
		Side:     domain.Side(strings.ToLower(r.Side)),
		Action:   domain.OrderAction(strings.ToLower(r.Action)),
		Count:    r.Count,
		YesPrice: r.YesPrice,
		NoPrice:  r.NoPrice,
	}
	if t := parseTime(r.CreatedTime); t.IsSome() {
		f.CreatedAt = t.Unwrap()
	}
	return f
}
