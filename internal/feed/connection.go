package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrNotConnected se devuelve al escribir sin socket abierto.
var ErrNotConnected = errors.New("feed: not connected")

// Conn es el lado de escritura de una conexión abierta.
type Conn interface {
	WriteJSON(v any) error
}

// Handler contiene la lógica específica de un feed websocket.
type Handler interface {
	ID() string
	URL() string
	// OnConnect se llama tras cada conexión; envía las suscripciones.
	OnConnect(ctx context.Context, conn Conn) error
	// OnMessage procesa un mensaje. Un error se loguea y no corta la conexión.
	OnMessage(ctx context.Context, msg []byte) error
}

// HeaderProvider lo implementan los handlers que firman cada conexión.
type HeaderProvider interface {
	Header() (http.Header, error)
}

// Streamer lo implementan los feeds que gestionan su propio transporte.
// Stream bloquea hasta que el stream termina; llama a connected cuando el
// stream queda establecido.
type Streamer interface {
	ID() string
	Stream(ctx context.Context, connected func()) error
}

// Connection mantiene un feed vivo: conecta, lee hasta que se cae y
// reconecta con backoff, sin límite de reintentos, hasta Stop.
type Connection struct {
	id      string
	session func(ctx context.Context) error
	status  *Status
	backoff *Backoff

	handler Handler
	mu      sync.RWMutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	cancel context.CancelFunc
	wg     sync.WaitGroup

	ReadTimeout  time.Duration
	PingInterval time.Duration
}

// NewConnection crea la conexión websocket de un Handler.
func NewConnection(h Handler, status *Status, b *Backoff) *Connection {
	c := &Connection{
		id:           h.ID(),
		handler:      h,
		status:       status,
		backoff:      b,
		ReadTimeout:  60 * time.Second,
		PingInterval: 20 * time.Second,
	}
	c.session = c.wsSession
	return c
}

// NewStreamConnection crea la conexión de un Streamer.
func NewStreamConnection(s Streamer, status *Status, b *Backoff) *Connection {
	c := &Connection{id: s.ID(), status: status, backoff: b}
	c.session = func(ctx context.Context) error {
		defer c.status.Set(c.id, false)
		return s.Stream(ctx, func() {
			c.backoff.Reset()
			c.status.Set(c.id, true)
			slog.Info("feed: connected", "id", c.id)
		})
	}
	return c
}

// ID devuelve el id del feed.
func (c *Connection) ID() string { return c.id }

// Connected reports whether the feed is connected.
func (c *Connection) Connected() bool { return c.status.Connected(c.id) }

// Start arranca el loop en background y vuelve enseguida.
func (c *Connection) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.runLoop(ctx)
}

// Stop cancela la I/O en curso y espera a que el loop termine.
func (c *Connection) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.close()
	c.wg.Wait()
}

// Wait bloquea hasta que el loop termina.
func (c *Connection) Wait() { c.wg.Wait() }

func (c *Connection) runLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		err := c.session(ctx)
		if ctx.Err() != nil {
			return
		}

		delay := c.backoff.Next()
		slog.Warn("feed: reconnecting", "id", c.id, "err", err, "delay", delay, "failures", c.backoff.Failures())

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (c *Connection) wsSession(ctx context.Context) error {
	header := make(http.Header)
	if hp, ok := c.handler.(HeaderProvider); ok {
		h, err := hp.Header()
		if err != nil {
			return fmt.Errorf("feed.connect: %s: headers: %w", c.id, err)
		}
		header = h
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.handler.URL(), header)
	if err != nil {
		return fmt.Errorf("feed.connect: %s: dial: %w", c.id, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer c.close()

	c.backoff.Reset()
	c.status.Set(c.id, true)
	defer c.status.Set(c.id, false)
	slog.Info("feed: connected", "id", c.id)

	// context.AfterFunc cierra el socket si se cancela ctx durante la lectura
	stop := context.AfterFunc(ctx, c.close)
	defer stop()

	if err := c.handler.OnConnect(ctx, c); err != nil {
		return fmt.Errorf("feed.connect: %s: on connect: %w", c.id, err)
	}

	if c.PingInterval > 0 {
		pingCtx, cancelPing := context.WithCancel(ctx)
		defer cancelPing()
		go c.pingLoop(pingCtx)
	}

	return c.read(ctx, conn)
}

func (c *Connection) read(ctx context.Context, conn *websocket.Conn) error {
	for {
		if c.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(c.ReadTimeout))
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed.read: %s: %w", c.id, err)
		}
		if err := c.handler.OnMessage(ctx, msg); err != nil {
			slog.Debug("feed: message ignored", "id", c.id, "err", err)
		}
	}
}

func (c *Connection) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(c.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				slog.Warn("feed: ping failed", "id", c.id, "err", err)
				c.close()
				return
			}
		}
	}
}

// WriteJSON serializa v y lo envía. Seguro para uso concurrente.
func (c *Connection) WriteJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.WriteJSON(v)
}

func (c *Connection) write(msgType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.WriteMessage(msgType, data)
}

func (c *Connection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}
