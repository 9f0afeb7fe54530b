package kalshi_test

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alejandrodnm/kalshibot/internal/adapters/kalshi"
	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
)

func privateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	keyOnce.Do(func() {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = k
	})
	return testKey
}

func newSigner(t *testing.T) *kalshi.Signer {
	t.Helper()
	block := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey(t)),
	})
	s, err := kalshi.NewSigner("key-id", block)
	require.NoError(t, err)
	return s
}

// verify comprueba que el request viene firmado para su método y path.
func verify(t *testing.T, r *http.Request) {
	t.Helper()
	assert.Equal(t, "key-id", r.Header.Get("KALSHI-ACCESS-KEY"))
	ts := r.Header.Get("KALSHI-ACCESS-TIMESTAMP")
	sig, err := base64.StdEncoding.DecodeString(r.Header.Get("KALSHI-ACCESS-SIGNATURE"))
	require.NoError(t, err)

	digest := sha256.Sum256([]byte(ts + r.Method + r.URL.Path))
	err = rsa.VerifyPSS(&privateKey(t).PublicKey, crypto.SHA256, digest[:], sig,
		&rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash})
	assert.NoError(t, err, "signature does not verify")
}

func newTestClient(t *testing.T, h http.HandlerFunc) *kalshi.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return kalshi.NewClient(srv.URL, newSigner(t), 1000, 2*time.Second).WithRetryWait(time.Millisecond)
}

func TestSigner_StripsQuery(t *testing.T) {
	s := newSigner(t)
	h, err := s.Headers(http.MethodGet, "/trade-api/v2/markets?limit=5")
	require.NoError(t, err)

	sig, err := base64.StdEncoding.DecodeString(h.Get("KALSHI-ACCESS-SIGNATURE"))
	require.NoError(t, err)
	digest := sha256.Sum256([]byte(h.Get("KALSHI-ACCESS-TIMESTAMP") + "GET/trade-api/v2/markets"))
	assert.NoError(t, rsa.VerifyPSS(&privateKey(t).PublicKey, crypto.SHA256, digest[:], sig,
		&rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash}))
}

func TestNewSigner_PKCS8(t *testing.T) {
	der, err := x509.MarshalPKCS8PrivateKey(privateKey(t))
	require.NoError(t, err)
	block := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	_, err = kalshi.NewSigner("key-id", block)
	assert.NoError(t, err)
}

func TestNewSigner_Invalid(t *testing.T) {
	_, err := kalshi.NewSigner("key-id", []byte("not a pem"))
	assert.Error(t, err)

	_, err = kalshi.LoadSigner("key-id", "", "")
	assert.Error(t, err)
}

func TestClient_Balance(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trade-api/v2/portfolio/balance", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		verify(t, r)
		w.Write([]byte(`{"balance": 12345}`))
	})

	bal, err := client.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12345, bal)
}

func TestClient_OpenMarkets(t *testing.T) {
	data, err := os.ReadFile("../../../testdata/fixtures/kalshi_markets.json")
	require.NoError(t, err)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trade-api/v2/markets", r.URL.Path)
		assert.Equal(t, "KXBTC15M", r.URL.Query().Get("series_ticker"))
		assert.Equal(t, "open", r.URL.Query().Get("status"))
		verify(t, r)
		w.Write(data)
	})

	markets, err := client.OpenMarkets(context.Background(), "KXBTC15M")
	require.NoError(t, err)
	require.Len(t, markets, 2)

	m := markets[0]
	assert.Equal(t, "KXBTC15M-26MAY041015-15", m.Ticker)
	assert.InDelta(t, 94250.12, m.FloorStrike.Unwrap(), 0.001)
	assert.Equal(t, time.Date(2026, 5, 4, 10, 15, 0, 0, time.UTC), m.CloseTime.Unwrap())
	assert.Equal(t, 47, m.LastPrice)

	assert.True(t, markets[1].FloorStrike.IsNone())
	assert.True(t, markets[1].ExpectedExpirationTime.IsNone())
	assert.InDelta(t, 94310.0, domain.ExtractStrike(markets[1]).Unwrap(), 0.001)
}

func TestClient_OrderBook_NullSide(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trade-api/v2/markets/T1/orderbook", r.URL.Path)
		w.Write([]byte(`{"orderbook": {"yes": [[40, 10], [42, 3]], "no": null}}`))
	})

	ob, err := client.OrderBook(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, "T1", ob.Ticker)
	assert.Equal(t, []domain.Level{{Price: 40, Qty: 10}, {Price: 42, Qty: 3}}, ob.Yes)
	assert.Empty(t, ob.No)
	assert.Equal(t, 42, ob.BestBid())
}

func TestClient_Positions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trade-api/v2/portfolio/positions", r.URL.Path)
		w.Write([]byte(`{"market_positions": [{"ticker": "T1", "position": -4, "market_exposure": 220}]}`))
	})

	pos, err := client.Positions(context.Background())
	require.NoError(t, err)
	require.Len(t, pos, 1)
	assert.Equal(t, domain.SideNo, pos[0].Side())
	assert.Equal(t, 4, pos[0].Qty())
	assert.Equal(t, 220, pos[0].MarketExposure)
}

func TestClient_PlaceOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trade-api/v2/portfolio/orders", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		verify(t, r)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "T1", body["ticker"])
		assert.Equal(t, "buy", body["action"])
		assert.Equal(t, "no", body["side"])
		assert.Equal(t, "limit", body["type"])
		assert.EqualValues(t, 38, body["no_price"])
		assert.NotContains(t, body, "yes_price")
		assert.EqualValues(t, 5, body["count"])
		assert.NotEmpty(t, body["client_order_id"])

		w.Write([]byte(`{"order": {"order_id": "o-1", "ticker": "T1", "side": "no", "action": "buy",
			"status": "resting", "no_price": 38, "filled_count": 2, "remaining_count": 3}}`))
	})

	o, err := client.PlaceOrder(context.Background(), domain.OrderRequest{
		Ticker: "T1", Action: domain.ActionBuy, Side: domain.SideNo, PriceCents: 38, Quantity: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, "o-1", o.ID)
	assert.Equal(t, domain.OrderResting, o.Status)
	assert.Equal(t, 38, o.PriceCents)
	assert.True(t, o.Resting())
}

func TestClient_RejectionIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"code": "insufficient_balance"}}`))
	})

	_, err := client.PlaceOrder(context.Background(), domain.OrderRequest{
		Ticker: "T1", Action: domain.ActionBuy, Side: domain.SideYes, PriceCents: 50, Quantity: 1,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, kalshi.ErrRejected)
	assert.Contains(t, err.Error(), "insufficient_balance")
	assert.EqualValues(t, 1, calls.Load())
}

func TestClient_RetriesDroppedConnections(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			conn, _, err := w.(http.Hijacker).Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		w.Write([]byte(`{"balance": 500}`))
	})

	bal, err := client.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 500, bal)
	assert.EqualValues(t, 3, calls.Load())
}

func TestClient_TransportExhausted(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client := kalshi.NewClient(srv.URL, newSigner(t), 1000, time.Second).WithRetryWait(time.Millisecond)

	_, err := client.Balance(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, kalshi.ErrTransport)
	assert.NotErrorIs(t, err, kalshi.ErrRejected)
}

func TestClient_CancelAll(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trade-api/v2/portfolio/orders/batched", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "cancel_all", body["action"])
		w.Write([]byte(`{}`))
	})

	assert.NoError(t, client.CancelAll(context.Background()))
}

func TestClient_CancelOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trade-api/v2/portfolio/orders/o-9", r.URL.Path)
		assert.Equal(t, http.MethodDelete, r.Method)
		verify(t, r)
		w.Write([]byte(`{"order": {"order_id": "o-9", "status": "canceled"}}`))
	})

	assert.NoError(t, client.CancelOrder(context.Background(), "o-9"))
}

func TestClient_GetMarketResult(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trade-api/v2/markets/T1", r.URL.Path)
		w.Write([]byte(`{"market": {"ticker": "T1", "status": "finalized", "result": "YES"}}`))
	})

	m, err := client.GetMarket(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, "yes", m.Result)
}

func TestClient_FillsPaginates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trade-api/v2/portfolio/fills", r.URL.Path)
		assert.Equal(t, "T1", r.URL.Query().Get("ticker"))
		switch r.URL.Query().Get("cursor") {
		case "":
			w.Write([]byte(`{"cursor": "c1", "fills": [
				{"trade_id": "f1", "order_id": "o1", "ticker": "T1", "side": "yes", "action": "buy",
				 "count": 3, "yes_price": 55, "no_price": 45, "created_time": "2026-05-04T10:01:00Z"}]}`))
		case "c1":
			w.Write([]byte(`{"cursor": "", "fills": [
				{"trade_id": "f2", "order_id": "o2", "ticker": "T1", "side": "no", "action": "sell",
				 "count": 1, "yes_price": 60, "no_price": 40}]}`))
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("cursor"))
		}
	})

	fills, err := client.Fills(context.Background(), "T1")
	require.NoError(t, err)
	require.Len(t, fills, 2)
	assert.Equal(t, 55, fills[0].Price())
	assert.Equal(t, time.Date(2026, 5, 4, 10, 1, 0, 0, time.UTC), fills[0].CreatedAt)
	assert.Equal(t, domain.ActionSell, fills[1].Action)
	assert.Equal(t, 40, fills[1].Price())
}
