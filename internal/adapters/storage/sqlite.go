package storage

// sqlite.go: persistencia del bot.
//
// Tablas:
//   - `trades`: una fila por orden (BUY) o salida. Las ventas se etiquetan con
//     su exit type (SL, TP, EDGE...) en la columna action.
//   - `agent_decisions`: cada decisión de la estrategia o de un override.
//   - `trade_snapshots`: contexto completo de mercado en cada entrada/salida,
//     para analítica. Una salida sin entrada previa no tiene P&L.
//   - `settings`: clave/valor. Tunables (config_*), estado de paper, env.
//   - `logs`: eventos relevantes para el dashboard. Prune al arrancar.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/alejandrodnm/kalshibot/internal/ports"
	"github.com/moznion/go-optional"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    ts        TEXT    NOT NULL,
    market_id TEXT    NOT NULL,
    side      TEXT    NOT NULL,
    action    TEXT    NOT NULL,
    price     REAL    NOT NULL,
    quantity  INTEGER NOT NULL,
    order_id  TEXT,
    status    TEXT DEFAULT 'placed'
);

CREATE TABLE IF NOT EXISTS logs (
    id      INTEGER PRIMARY KEY AUTOINCREMENT,
    ts      TEXT NOT NULL,
    level   TEXT NOT NULL,
    message TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS agent_decisions (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    ts         TEXT NOT NULL,
    market_id  TEXT,
    decision   TEXT NOT NULL,
    confidence REAL NOT NULL,
    reasoning  TEXT NOT NULL,
    executed   INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Contexto de mercado en cada entrada y salida
CREATE TABLE IF NOT EXISTS trade_snapshots (
    id                 INTEGER PRIMARY KEY AUTOINCREMENT,
    ts                 TEXT    NOT NULL,
    trade_id           TEXT    NOT NULL,
    market_id          TEXT    NOT NULL,
    action             TEXT    NOT NULL,
    side               TEXT    NOT NULL,
    price_cents        INTEGER NOT NULL,
    quantity           INTEGER NOT NULL,
    btc_price          REAL,
    strike_price       REAL,
    btc_vs_strike      REAL,
    secs_left          REAL,
    time_factor        REAL,
    best_bid           INTEGER,
    best_ask           INTEGER,
    spread             INTEGER,
    fair_yes_cents     INTEGER,
    fair_yes_prob      REAL,
    yes_edge           INTEGER,
    no_edge            INTEGER,
    vol_dollar_per_min REAL,
    vol_regime         TEXT,
    delta_momentum     REAL,
    velocity_1m        REAL,
    direction_1m       INTEGER,
    price_change_1m    REAL,
    decision           TEXT,
    confidence         REAL,
    trigger_type       TEXT,
    position_qty       INTEGER,
    balance            REAL,
    exposure           REAL,
    pnl_cents          REAL,
    hold_duration_s    REAL,
    entry_price_cents  INTEGER
);

CREATE INDEX IF NOT EXISTS idx_trades_market ON trades(market_id);
CREATE INDEX IF NOT EXISTS idx_snap_market   ON trade_snapshots(market_id, action);
`

const (
	retentionLogs = 30 * 24 * time.Hour
	tsLayout      = time.RFC3339Nano
)

// exitActions son las acciones de snapshot que cierran una entrada.
var exitActions = []string{"SELL", "SL", "TP", "SETTLE", "SETTLED", "EDGE"}

// SQLiteStorage implementa ports.Store usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db  *sql.DB
	sq  squirrel.StatementBuilderType
	now func() time.Time
}

var _ ports.Store = (*SQLiteStorage)(nil)

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada.
// Aplica el schema y limpia logs antiguos.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{
		db:  db,
		sq:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question).RunWith(db),
		now: time.Now,
	}
	s.pruneOld(context.Background())
	return s, nil
}

// RecordTrade guarda un trade. Las ventas y liquidaciones con exit type se
// guardan con el exit type como acción.
func (s *SQLiteStorage) RecordTrade(ctx context.Context, t domain.TradeRecord) (int64, error) {
	action := t.Action
	if (action == "SELL" || action == "SETTLED") && t.ExitType != "" {
		action = string(t.ExitType)
	}
	at := t.At
	if at.IsZero() {
		at = s.now()
	}

	res, err := s.sq.Insert("trades").
		Columns("ts", "market_id", "side", "action", "price", "quantity", "order_id").
		Values(formatTS(at), t.MarketID, string(t.Side), action, t.Price, t.Quantity, t.OrderID).
		ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("storage.RecordTrade: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("storage.RecordTrade: last id: %w", err)
	}
	return id, nil
}

// RecordDecision guarda una decisión.
func (s *SQLiteStorage) RecordDecision(ctx context.Context, d domain.DecisionRecord) error {
	at := d.At
	if at.IsZero() {
		at = s.now()
	}
	executed := 0
	if d.Executed {
		executed = 1
	}
	_, err := s.sq.Insert("agent_decisions").
		Columns("ts", "market_id", "decision", "confidence", "reasoning", "executed").
		Values(formatTS(at), d.MarketID, string(d.Decision), d.Confidence, d.Reasoning, executed).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("storage.RecordDecision: %w", err)
	}
	return nil
}

// RecordSnapshot guarda el contexto de una entrada o salida.
func (s *SQLiteStorage) RecordSnapshot(ctx context.Context, snap domain.Snapshot) error {
	at := snap.At
	if at.IsZero() {
		at = s.now()
	}
	_, err := s.sq.Insert("trade_snapshots").
		SetMap(map[string]any{
			"ts":                 formatTS(at),
			"trade_id":           snap.TradeID,
			"market_id":          snap.MarketID,
			"action":             snap.Action,
			"side":               string(snap.Side),
			"price_cents":        snap.PriceCents,
			"quantity":           snap.Quantity,
			"btc_price":          snap.BTCPrice,
			"strike_price":       snap.StrikePrice,
			"btc_vs_strike":      snap.BTCvsStrike,
			"secs_left":          snap.SecsLeft,
			"time_factor":        snap.TimeFactor,
			"best_bid":           snap.BestBid,
			"best_ask":           snap.BestAsk,
			"spread":             snap.Spread,
			"fair_yes_cents":     snap.FairYesCents,
			"fair_yes_prob":      snap.FairYesProb,
			"yes_edge":           snap.YesEdge,
			"no_edge":            snap.NoEdge,
			"vol_dollar_per_min": snap.VolDollarPerMin,
			"vol_regime":         string(snap.VolRegime),
			"delta_momentum":     snap.DeltaMomentum,
			"velocity_1m":        snap.Velocity1m,
			"direction_1m":       snap.Direction1m,
			"price_change_1m":    snap.PriceChange1m,
			"decision":           snap.Decision,
			"confidence":         snap.Confidence,
			"trigger_type":       snap.TriggerType,
			"position_qty":       snap.PositionQty,
			"balance":            snap.Balance,
			"exposure":           snap.Exposure,
			"pnl_cents":          nullable(snap.PnLCents),
			"hold_duration_s":    nullable(snap.HoldDuration),
			"entry_price_cents":  nullable(snap.EntryPrice),
		}).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("storage.RecordSnapshot: %s %s: %w", snap.Action, snap.MarketID, err)
	}
	return nil
}

// EntrySnapshot devuelve la última entrada BUY de un mercado.
func (s *SQLiteStorage) EntrySnapshot(ctx context.Context, marketID string) (optional.Option[domain.EntrySnapshot], error) {
	e, err := s.lastEntry(ctx, marketID)
	if err != nil {
		return optional.None[domain.EntrySnapshot](), fmt.Errorf("storage.EntrySnapshot: %w", err)
	}
	return e, nil
}

// UnsettledEntry devuelve la última entrada BUY solo si el mercado no tiene
// ninguna salida registrada.
func (s *SQLiteStorage) UnsettledEntry(ctx context.Context, marketID string) (optional.Option[domain.EntrySnapshot], error) {
	exited, err := s.hasExit(ctx, marketID)
	if err != nil {
		return optional.None[domain.EntrySnapshot](), fmt.Errorf("storage.UnsettledEntry: %w", err)
	}
	if exited {
		return optional.None[domain.EntrySnapshot](), nil
	}
	e, err := s.lastEntry(ctx, marketID)
	if err != nil {
		return optional.None[domain.EntrySnapshot](), fmt.Errorf("storage.UnsettledEntry: %w", err)
	}
	return e, nil
}

// UnsettledMarkets lista los mercados live con entrada y sin salida.
func (s *SQLiteStorage) UnsettledMarkets(ctx context.Context) ([]string, error) {
	rows, err := s.sq.Select("DISTINCT market_id").
		From("trade_snapshots").
		Where(squirrel.Eq{"action": "BUY"}).
		Where(squirrel.NotLike{"market_id": domain.PaperPrefix + "%"}).
		OrderBy("market_id").
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage.UnsettledMarkets: query: %w", err)
	}
	var markets []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			rows.Close()
			return nil, fmt.Errorf("storage.UnsettledMarkets: scan: %w", err)
		}
		markets = append(markets, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage.UnsettledMarkets: %w", err)
	}

	out := markets[:0]
	for _, m := range markets {
		exited, err := s.hasExit(ctx, m)
		if err != nil {
			return nil, fmt.Errorf("storage.UnsettledMarkets: %w", err)
		}
		if !exited {
			out = append(out, m)
		}
	}
	return out, nil
}

// RecentTrades devuelve los últimos trades, más recientes primero.
func (s *SQLiteStorage) RecentTrades(ctx context.Context, limit int) ([]domain.TradeRecord, error) {
	rows, err := s.sq.Select("ts", "market_id", "side", "action", "price", "quantity", "COALESCE(order_id, '')").
		From("trades").
		OrderBy("id DESC").
		Limit(uint64(max(limit, 1))).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage.RecentTrades: query: %w", err)
	}
	defer rows.Close()

	var trades []domain.TradeRecord
	for rows.Next() {
		var t domain.TradeRecord
		var ts, side string
		if err := rows.Scan(&ts, &t.MarketID, &side, &t.Action, &t.Price, &t.Quantity, &t.OrderID); err != nil {
			return nil, fmt.Errorf("storage.RecentTrades: scan row: %w", err)
		}
		t.At = parseTS(ts)
		t.Side = domain.Side(side)
		switch domain.ExitType(t.Action) {
		case domain.ExitStopLoss, domain.ExitEdge, domain.ExitTakeProfit, domain.ExitSettle:
			t.ExitType = domain.ExitType(t.Action)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// GetSetting devuelve el valor de un ajuste, None si no existe.
func (s *SQLiteStorage) GetSetting(ctx context.Context, key string) (optional.Option[string], error) {
	var value string
	err := s.sq.Select("value").From("settings").
		Where(squirrel.Eq{"key": key}).
		QueryRowContext(ctx).
		Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return optional.None[string](), nil
	}
	if err != nil {
		return optional.None[string](), fmt.Errorf("storage.GetSetting: %s: %w", key, err)
	}
	return optional.Some(value), nil
}

// SetSetting hace upsert de un ajuste.
func (s *SQLiteStorage) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.sq.Insert("settings").
		Columns("key", "value").
		Values(key, value).
		Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value").
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("storage.SetSetting: %s: %w", key, err)
	}
	return nil
}

// Log guarda un evento.
func (s *SQLiteStorage) Log(ctx context.Context, level, message string) error {
	_, err := s.sq.Insert("logs").
		Columns("ts", "level", "message").
		Values(formatTS(s.now()), level, message).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("storage.Log: %w", err)
	}
	return nil
}

// RecentLogs devuelve los últimos eventos, más recientes primero.
func (s *SQLiteStorage) RecentLogs(ctx context.Context, limit int) ([]domain.LogEntry, error) {
	rows, err := s.sq.Select("ts", "level", "message").
		From("logs").
		OrderBy("id DESC").
		Limit(uint64(max(limit, 1))).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage.RecentLogs: query: %w", err)
	}
	defer rows.Close()

	var out []domain.LogEntry
	for rows.Next() {
		var e domain.LogEntry
		var ts string
		if err := rows.Scan(&ts, &e.Level, &e.Message); err != nil {
			return nil, fmt.Errorf("storage.RecentLogs: scan row: %w", err)
		}
		e.At = parseTS(ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

func (s *SQLiteStorage) lastEntry(ctx context.Context, marketID string) (optional.Option[domain.EntrySnapshot], error) {
	var (
		e           domain.EntrySnapshot
		ts, side    string
		positionQty sql.NullInt64
	)
	err := s.sq.Select("ts", "price_cents", "side", "quantity", "position_qty").
		From("trade_snapshots").
		Where(squirrel.Eq{"market_id": marketID, "action": "BUY"}).
		OrderBy("id DESC").
		Limit(1).
		QueryRowContext(ctx).
		Scan(&ts, &e.PriceCents, &side, &e.Quantity, &positionQty)
	if errors.Is(err, sql.ErrNoRows) {
		return optional.None[domain.EntrySnapshot](), nil
	}
	if err != nil {
		return optional.None[domain.EntrySnapshot](), fmt.Errorf("entry %s: %w", marketID, err)
	}
	e.At = parseTS(ts)
	e.Side = domain.Side(side)
	e.PositionQty = int(positionQty.Int64)
	return optional.Some(e), nil
}

func (s *SQLiteStorage) hasExit(ctx context.Context, marketID string) (bool, error) {
	var one int
	err := s.sq.Select("1").
		From("trade_snapshots").
		Where(squirrel.Eq{"market_id": marketID, "action": exitActions}).
		Limit(1).
		QueryRowContext(ctx).
		Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exit %s: %w", marketID, err)
	}
	return true, nil
}

// pruneOld elimina logs antiguos para mantener la DB ligera.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := formatTS(s.now().Add(-retentionLogs))
	s.sq.Delete("logs").Where(squirrel.Lt{"ts": cutoff}).ExecContext(ctx)
}

func formatTS(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTS(s string) time.Time {
	t, _ := time.Parse(tsLayout, s)
	return t
}

func nullable[T any](o optional.Option[T]) any {
	if o.IsNone() {
		return nil
	}
	return o.Unwrap()
}
