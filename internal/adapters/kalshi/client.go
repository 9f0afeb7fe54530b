package kalshi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	apiPrefix = "/trade-api/v2"

	maxAttempts   = 3
	baseRetryWait = time.Second
)

var (
	// ErrRejected es un rechazo de la API (status >= 400). No se reintenta.
	ErrRejected = errors.New("kalshi: request rejected")
	// ErrTransport es un fallo de conexión que persiste tras los reintentos.
	ErrTransport = errors.New("kalshi: transport failure")
)

// Client es el HTTP client autenticado de Kalshi con rate limiting y retries.
type Client struct {
	http      *http.Client
	base      string
	signer    *Signer
	limiter   *rate.Limiter
	retryWait time.Duration
	now       func() time.Time
}

// NewClient crea un Client contra host (sin el prefijo /trade-api/v2).
func NewClient(host string, signer *Signer, ratePerSec float64, timeout time.Duration) *Client {
	if ratePerSec <= 0 {
		ratePerSec = 10
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		base:      host + apiPrefix,
		signer:    signer,
		limiter:   rate.NewLimiter(rate.Limit(ratePerSec), 5),
		retryWait: baseRetryWait,
		now:       time.Now,
	}
}

// WithRetryWait cambia la espera base entre reintentos (tests).
func (c *Client) WithRetryWait(d time.Duration) *Client {
	c.retryWait = d
	return c
}

// Signer devuelve el firmante, nil si el cliente no está autenticado.
func (c *Client) Signer() *Signer { return c.signer }

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, out)
}

// do ejecuta el request firmándolo en cada intento. Solo los errores de
// transporte (dial, timeout) se reintentan; una respuesta con status >= 400
// es definitiva.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("kalshi.do: marshal body: %w", err)
		}
		payload = b
	}

	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("kalshi.do: rate limiter: %w", err)
		}

		resp, err := c.send(ctx, method, target, apiPrefix+path, payload)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("kalshi.do: %s %s: %w", method, path, ctx.Err())
			}
			lastErr = err
			if attempt < maxAttempts-1 {
				slog.Warn("kalshi: transport error, retrying",
					"method", method, "path", path, "attempt", attempt+1, "err", err)
				// conexión nueva en el siguiente intento
				c.http.CloseIdleConnections()
				c.sleep(ctx, attempt)
			}
			continue
		}
		return decode(resp, method, path, out)
	}
	return fmt.Errorf("kalshi.do: %s %s after %d attempts: %w: %v", method, path, maxAttempts, ErrTransport, lastErr)
}

func (c *Client) send(ctx context.Context, method, target, signPath string, payload []byte) (*http.Response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	if c.signer != nil {
		h, err := c.signer.Headers(method, signPath)
		if err != nil {
			return nil, err
		}
		for k, v := range h {
			req.Header[k] = v
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.http.Do(req)
}

func decode(resp *http.Response, method, path string, out any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("kalshi.do: %s %s: status %d: %s: %w", method, path, resp.StatusCode, string(body), ErrRejected)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("kalshi.do: %s %s: decode response: %w", method, path, err)
	}
	return nil
}

// sleep espera 2^attempt * retryWait, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := c.retryWait << attempt
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
