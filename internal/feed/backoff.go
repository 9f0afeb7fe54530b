package feed

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jpillora/backoff"
)

// Backoff calcula la espera entre reconexiones: min(Base·2^fallos, Max) más
// un jitter uniforme en [0, Jitter·delay). Los fallos solo vuelven a cero
// con Reset.
type Backoff struct {
	mu       sync.Mutex
	exp      backoff.Backoff
	jitter   float64
	failures int
	rand     func() float64
}

// NewBackoff crea un Backoff. jitter es la fracción máxima del delay que se
// suma al azar (0.5 = hasta un 50%).
func NewBackoff(base, maxDelay time.Duration, jitter float64) *Backoff {
	return &Backoff{
		exp:    backoff.Backoff{Min: base, Max: maxDelay, Factor: 2},
		jitter: jitter,
		rand:   rand.Float64,
	}
}

// WithRand reemplaza la fuente de aleatoriedad (tests).
func (b *Backoff) WithRand(fn func() float64) *Backoff {
	b.rand = fn
	return b
}

// Delay devuelve la espera sin jitter para el número de fallos actual.
func (b *Backoff) Delay() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exp.ForAttempt(float64(b.failures))
}

// Next devuelve la espera con jitter y cuenta un fallo más.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.exp.ForAttempt(float64(b.failures))
	b.failures++
	return d + time.Duration(b.rand()*b.jitter*float64(d))
}

// Failures devuelve los fallos consecutivos.
func (b *Backoff) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset vuelve a cero tras una conexión exitosa.
func (b *Backoff) Reset() {
	b.mu.Lock()
	b.failures = 0
	b.mu.Unlock()
}
