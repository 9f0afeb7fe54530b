package paper_test

import (
	"testing"

	"github.com/alejandrodnm/kalshibot/internal/application/engine/paper"
	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestSimulateFill_BuyCrossesConvertedLevel(t *testing.T) {
	// un bid NO a 45 es una oferta YES a 55
	book := domain.OrderBook{No: []domain.Level{{Price: 45, Qty: 10}}}

	res := paper.SimulateFill(book, domain.ActionBuy, domain.SideYes, 60, 5, 1.0)
	assert.Equal(t, 5, res.Filled)
	assert.Equal(t, 55, res.AvgPrice)
	assert.Equal(t, []domain.Level{{Price: 55, Qty: 5}}, res.Fills)
}

func TestSimulateFill_BuyWalksCheapestFirst(t *testing.T) {
	book := domain.OrderBook{No: []domain.Level{{Price: 45, Qty: 2}, {Price: 47, Qty: 3}, {Price: 30, Qty: 50}}}

	res := paper.SimulateFill(book, domain.ActionBuy, domain.SideYes, 56, 4, 1.0)
	// 47 -> 53 x3, 45 -> 55 x1; el nivel 30 (70c) no cruza
	assert.Equal(t, 4, res.Filled)
	assert.Equal(t, []domain.Level{{Price: 53, Qty: 3}, {Price: 55, Qty: 1}}, res.Fills)
	assert.Equal(t, 54, res.AvgPrice) // (159+55)/4 = 53.5
}

func TestSimulateFill_BuyNoUsesYesBids(t *testing.T) {
	book := domain.OrderBook{Yes: []domain.Level{{Price: 62, Qty: 5}}}

	res := paper.SimulateFill(book, domain.ActionBuy, domain.SideNo, 40, 2, 1.0)
	assert.Equal(t, 2, res.Filled)
	assert.Equal(t, 38, res.AvgPrice)
}

func TestSimulateFill_NoCrossIsResting(t *testing.T) {
	book := domain.OrderBook{No: []domain.Level{{Price: 30, Qty: 10}}}

	res := paper.SimulateFill(book, domain.ActionBuy, domain.SideYes, 60, 5, 1.0)
	assert.True(t, res.Resting())
	assert.Zero(t, res.AvgPrice)
	assert.Empty(t, res.Fills)
}

func TestSimulateFill_SellBestPriceFirst(t *testing.T) {
	book := domain.OrderBook{Yes: []domain.Level{{Price: 40, Qty: 5}, {Price: 44, Qty: 1}, {Price: 38, Qty: 9}}}

	res := paper.SimulateFill(book, domain.ActionSell, domain.SideYes, 40, 3, 1.0)
	assert.Equal(t, 3, res.Filled)
	assert.Equal(t, []domain.Level{{Price: 44, Qty: 1}, {Price: 40, Qty: 2}}, res.Fills)
	assert.Equal(t, 41, res.AvgPrice) // 124/3
}

func TestSimulateFill_FractionTakesAtLeastOne(t *testing.T) {
	book := domain.OrderBook{No: []domain.Level{{Price: 45, Qty: 3}, {Price: 44, Qty: 10}}}

	res := paper.SimulateFill(book, domain.ActionBuy, domain.SideYes, 60, 10, 0.2)
	// 3*0.2 -> 1, 10*0.2 -> 2
	assert.Equal(t, 3, res.Filled)
	assert.Equal(t, []domain.Level{{Price: 55, Qty: 1}, {Price: 56, Qty: 2}}, res.Fills)
}
