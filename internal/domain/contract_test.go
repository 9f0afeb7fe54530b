package domain

import (
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/assert"
)

func TestExtractStrike_Structured(t *testing.T) {
	s := ExtractStrike(Market{FloorStrike: optional.Some(83873.07)})
	assert.InDelta(t, 83873.07, s.Unwrap(), 1e-9)
}

func TestExtractStrike_CentsField(t *testing.T) {
	s := ExtractStrike(Market{StrikePrice: optional.Some(950.0)})
	assert.InDelta(t, 9.5, s.Unwrap(), 1e-9)
}

func TestExtractStrike_FromSubtitle(t *testing.T) {
	s := ExtractStrike(Market{YesSubTitle: "Price to beat: $83,873.07"})
	assert.True(t, s.IsSome())
	assert.InDelta(t, 83873.07, s.Unwrap(), 1e-9)
}

func TestExtractStrike_FromTitle(t *testing.T) {
	s := ExtractStrike(Market{Title: "BTC above $91,000 at 10:15?"})
	assert.InDelta(t, 91000.0, s.Unwrap(), 1e-9)
}

func TestExtractStrike_None(t *testing.T) {
	assert.True(t, ExtractStrike(Market{Title: "Bitcoin up or down"}).IsNone())
}

func TestSelectActive_PicksNearest(t *testing.T) {
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	markets := []Market{
		{Ticker: "LATER", CloseTime: optional.Some(now.Add(20 * time.Minute))},
		{Ticker: "SOON", CloseTime: optional.Some(now.Add(5 * time.Minute))},
		{Ticker: "CLOSED", CloseTime: optional.Some(now.Add(-time.Minute))},
		{Ticker: "NOCLOSE"},
	}
	m, ok := SelectActive(markets, now, 90)
	assert.True(t, ok)
	assert.Equal(t, "SOON", m.Ticker)
}

func TestSelectActive_SkipsNearlyClosed(t *testing.T) {
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	markets := []Market{
		{Ticker: "ENDING", ExpectedExpirationTime: optional.Some(now.Add(30 * time.Second))},
		{Ticker: "NEXT", CloseTime: optional.Some(now.Add(15 * time.Minute))},
	}
	m, ok := SelectActive(markets, now, 90)
	assert.True(t, ok)
	assert.Equal(t, "NEXT", m.Ticker)
}

func TestSelectActive_SingleNearlyClosed(t *testing.T) {
	now := time.Now()
	markets := []Market{{Ticker: "ONLY", CloseTime: optional.Some(now.Add(10 * time.Second))}}
	m, ok := SelectActive(markets, now, 90)
	assert.True(t, ok)
	assert.Equal(t, "ONLY", m.Ticker)
}

func TestSelectActive_None(t *testing.T) {
	_, ok := SelectActive(nil, time.Now(), 90)
	assert.False(t, ok)
}
