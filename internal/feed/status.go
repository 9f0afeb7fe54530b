package feed

import "sync"

// Status guarda qué feeds están conectados.
type Status struct {
	mu        sync.RWMutex
	connected map[string]bool
}

// NewStatus crea un Status vacío.
func NewStatus() *Status {
	return &Status{connected: make(map[string]bool)}
}

// Set marca un feed como conectado o desconectado.
func (s *Status) Set(id string, connected bool) {
	s.mu.Lock()
	s.connected[id] = connected
	s.mu.Unlock()
}

// Connected reports whether the feed is currently connected.
func (s *Status) Connected(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected[id]
}

// Snapshot devuelve una copia del estado.
func (s *Status) Snapshot() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.connected))
	for k, v := range s.connected {
		out[k] = v
	}
	return out
}
