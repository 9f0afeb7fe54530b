package orderbook_test

import (
	"testing"
	"time"

	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/alejandrodnm/kalshibot/internal/orderbook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newStore() (*orderbook.Store, *clock) {
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return orderbook.NewStore().WithClock(c.now), c
}

func TestStore_SnapshotAndRead(t *testing.T) {
	s, _ := newStore()
	s.ApplySnapshot("T", []domain.Level{{Price: 40, Qty: 5}, {Price: 44, Qty: 2}}, []domain.Level{{Price: 53, Qty: 1}})

	ob, err := s.Read("T", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []domain.Level{{Price: 44, Qty: 2}, {Price: 40, Qty: 5}}, ob.Yes)
	assert.Equal(t, 44, ob.BestBid())
	assert.Equal(t, 47, ob.BestAsk())
}

func TestStore_DeltaZeroRemovesLevel(t *testing.T) {
	s, _ := newStore()
	s.ApplySnapshot("T", []domain.Level{{Price: 40, Qty: 5}, {Price: 44, Qty: 2}}, nil)

	require.NoError(t, s.ApplyDelta("T", domain.SideYes, []domain.Level{{Price: 44, Qty: 0}}))

	ob, err := s.Read("T", time.Second)
	require.NoError(t, err)
	assert.Equal(t, []domain.Level{{Price: 40, Qty: 5}}, ob.Yes)
}

func TestStore_DeltaIsIdempotent(t *testing.T) {
	s, _ := newStore()
	s.ApplySnapshot("T", nil, []domain.Level{{Price: 50, Qty: 3}})
	delta := []domain.Level{{Price: 52, Qty: 7}, {Price: 50, Qty: 1}}

	require.NoError(t, s.ApplyDelta("T", domain.SideNo, delta))
	once, _ := s.Read("T", time.Second)
	require.NoError(t, s.ApplyDelta("T", domain.SideNo, delta))
	twice, _ := s.Read("T", time.Second)

	assert.Equal(t, once.No, twice.No)
	assert.Equal(t, []domain.Level{{Price: 52, Qty: 7}, {Price: 50, Qty: 1}}, twice.No)
}

func TestStore_DeltaUnknownTicker(t *testing.T) {
	s, _ := newStore()
	err := s.ApplyDelta("NOPE", domain.SideYes, []domain.Level{{Price: 10, Qty: 1}})
	assert.ErrorIs(t, err, orderbook.ErrUnknownInstrument)
}

func TestStore_ReadStale(t *testing.T) {
	s, c := newStore()
	s.ApplySnapshot("T", []domain.Level{{Price: 40, Qty: 5}}, nil)

	c.t = c.t.Add(6 * time.Second)
	_, err := s.Read("T", 5*time.Second)
	assert.ErrorIs(t, err, orderbook.ErrStale)

	_, err = s.Read("MISSING", time.Hour)
	assert.ErrorIs(t, err, orderbook.ErrStale)
}

func TestStore_Forget(t *testing.T) {
	s, _ := newStore()
	s.ApplySnapshot("T", []domain.Level{{Price: 40, Qty: 5}}, nil)
	s.Forget("T")
	_, err := s.Read("T", time.Hour)
	assert.ErrorIs(t, err, orderbook.ErrStale)
}

func TestStore_AdjustLevel(t *testing.T) {
	s, _ := newStore()
	s.ApplySnapshot("T", []domain.Level{{Price: 40, Qty: 5}}, nil)

	require.NoError(t, s.AdjustLevel("T", domain.SideYes, 40, -2))
	require.NoError(t, s.AdjustLevel("T", domain.SideYes, 42, 4))
	ob, _ := s.Read("T", time.Second)
	assert.Equal(t, []domain.Level{{Price: 42, Qty: 4}, {Price: 40, Qty: 3}}, ob.Yes)

	require.NoError(t, s.AdjustLevel("T", domain.SideYes, 40, -3))
	ob, _ = s.Read("T", time.Second)
	assert.Equal(t, []domain.Level{{Price: 42, Qty: 4}}, ob.Yes)

	assert.ErrorIs(t, s.AdjustLevel("X", domain.SideNo, 1, 1), orderbook.ErrUnknownInstrument)
}
