package strategy

import (
	"fmt"
	"sort"

	"github.com/alejandrodnm/kalshibot/internal/ports"
)

// Registry mantiene las estrategias disponibles indexadas por nombre.
type Registry map[string]ports.Strategy

// NewRegistry crea un registry con las estrategias dadas.
func NewRegistry(strategies ...ports.Strategy) Registry {
	r := make(Registry, len(strategies))
	for _, s := range strategies {
		r.Register(s)
	}
	return r
}

// Register añade una estrategia al registry.
func (r Registry) Register(s ports.Strategy) {
	r[s.Name()] = s
}

// Get devuelve la estrategia por nombre.
func (r Registry) Get(name string) (ports.Strategy, error) {
	s, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("strategy.Get: unknown strategy %q (have %v)", name, r.Names())
	}
	return s, nil
}

// Names devuelve los nombres registrados, ordenados.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for n := range r {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
