// Package orderbook mantiene los libros que llegan por el stream del broker.
package orderbook

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/kalshibot/internal/domain"
)

var (
	// ErrStale indica que no hay libro o que es más viejo que maxAge.
	ErrStale = errors.New("orderbook: stale or missing")
	// ErrUnknownInstrument indica un delta para un ticker sin snapshot.
	ErrUnknownInstrument = errors.New("orderbook: unknown instrument")
)

type book struct {
	yes     map[int]int // precio -> cantidad
	no      map[int]int
	updated time.Time
}

func (b *book) side(s domain.Side) map[int]int {
	if s == domain.SideYes {
		return b.yes
	}
	return b.no
}

// Store guarda un libro por ticker. Seguro para uso concurrente: el stream
// escribe y el motor lee.
type Store struct {
	mu    sync.RWMutex
	books map[string]*book
	now   func() time.Time
}

// NewStore crea un Store vacío.
func NewStore() *Store {
	return &Store{books: make(map[string]*book), now: time.Now}
}

// WithClock reemplaza el reloj (tests).
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// ApplySnapshot reemplaza el libro entero.
func (s *Store) ApplySnapshot(ticker string, yes, no []domain.Level) {
	b := &book{yes: toMap(yes), no: toMap(no)}

	s.mu.Lock()
	b.updated = s.now()
	s.books[ticker] = b
	s.mu.Unlock()
}

// ApplyDelta fija la cantidad de cada nivel: 0 lo borra, otra la reemplaza.
// Aplicar el mismo delta dos veces deja el mismo libro.
func (s *Store) ApplyDelta(ticker string, side domain.Side, levels []domain.Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.books[ticker]
	if !ok {
		return fmt.Errorf("orderbook.ApplyDelta: %s: %w", ticker, ErrUnknownInstrument)
	}
	m := b.side(side)
	for _, l := range levels {
		if l.Qty <= 0 {
			delete(m, l.Price)
			continue
		}
		m[l.Price] = l.Qty
	}
	b.updated = s.now()
	return nil
}

// AdjustLevel suma delta a la cantidad de un nivel; si queda <= 0 lo borra.
func (s *Store) AdjustLevel(ticker string, side domain.Side, price, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.books[ticker]
	if !ok {
		return fmt.Errorf("orderbook.AdjustLevel: %s: %w", ticker, ErrUnknownInstrument)
	}
	m := b.side(side)
	if q := m[price] + delta; q > 0 {
		m[price] = q
	} else {
		delete(m, price)
	}
	b.updated = s.now()
	return nil
}

// Read devuelve una copia del libro si se actualizó hace menos de maxAge.
// Los niveles salen ordenados por precio descendente.
func (s *Store) Read(ticker string, maxAge time.Duration) (domain.OrderBook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.books[ticker]
	if !ok || s.now().Sub(b.updated) > maxAge {
		return domain.OrderBook{}, fmt.Errorf("orderbook.Read: %s: %w", ticker, ErrStale)
	}
	return domain.OrderBook{
		Ticker:    ticker,
		Yes:       toLevels(b.yes),
		No:        toLevels(b.no),
		UpdatedAt: b.updated,
	}, nil
}

// Forget borra el libro de un ticker (rollover).
func (s *Store) Forget(ticker string) {
	s.mu.Lock()
	delete(s.books, ticker)
	s.mu.Unlock()
}

func toMap(levels []domain.Level) map[int]int {
	m := make(map[int]int, len(levels))
	for _, l := range levels {
		if l.Qty > 0 {
			m[l.Price] = l.Qty
		}
	}
	return m
}

func toLevels(m map[int]int) []domain.Level {
	out := make([]domain.Level, 0, len(m))
	for p, q := range m {
		out = append(out, domain.Level{Price: p, Qty: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price > out[j].Price })
	return out
}
