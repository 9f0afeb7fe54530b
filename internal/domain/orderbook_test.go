package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderBook_BestBidAsk(t *testing.T) {
	ob := OrderBook{
		Yes: []Level{{Price: 40, Qty: 5}, {Price: 44, Qty: 3}, {Price: 42, Qty: 1}},
		No:  []Level{{Price: 50, Qty: 2}, {Price: 53, Qty: 7}},
	}
	assert.Equal(t, 44, ob.BestBid())
	assert.Equal(t, 47, ob.BestAsk())
	assert.Equal(t, 3, ob.Spread())
	assert.True(t, ob.TwoSided())
	assert.Equal(t, 9, ob.Depth(SideYes))
}

func TestOrderBook_OneSided(t *testing.T) {
	ob := OrderBook{Yes: []Level{{Price: 30, Qty: 1}}}
	assert.Equal(t, 30, ob.BestBid())
	assert.Equal(t, 100, ob.BestAsk())
	assert.False(t, ob.TwoSided())
	assert.False(t, ob.Empty())
}

func TestOrderBook_Empty(t *testing.T) {
	var ob OrderBook
	assert.True(t, ob.Empty())
	assert.Equal(t, 0, ob.BestBid())
	assert.Equal(t, 100, ob.BestAsk())
}

func TestClampCents(t *testing.T) {
	assert.Equal(t, 1, ClampCents(-4))
	assert.Equal(t, 1, ClampCents(0))
	assert.Equal(t, 55, ClampCents(55))
	assert.Equal(t, 99, ClampCents(120))
}

func TestSide_Opposite(t *testing.T) {
	assert.Equal(t, SideNo, SideYes.Opposite())
	assert.Equal(t, SideYes, SideNo.Opposite())
}
