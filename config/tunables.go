package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
)

var (
	// ErrUnknownTunable indica una key que no existe.
	ErrUnknownTunable = errors.New("unknown tunable")
	// ErrInvalidTunable indica un valor fuera de rango o mal formado.
	ErrInvalidTunable = errors.New("invalid tunable value")
)

// settingPrefix es el prefijo con el que se persisten los tunables.
const settingPrefix = "config_"

// Tunables son los parámetros de trading modificables en caliente.
// Los rangos de validate son los límites aceptados por Runtime.Update.
type Tunables struct {
	OrderSizePct        float64 `yaml:"order_size_pct" key:"ORDER_SIZE_PCT" validate:"gte=0.5,lte=50"`
	MaxPositionPct      float64 `yaml:"max_position_pct" key:"MAX_POSITION_PCT" validate:"gte=1,lte=100"`
	MaxTotalExposurePct float64 `yaml:"max_total_exposure_pct" key:"MAX_TOTAL_EXPOSURE_PCT" validate:"gte=1,lte=100"`
	MaxDailyLossPct     float64 `yaml:"max_daily_loss_pct" key:"MAX_DAILY_LOSS_PCT" validate:"gte=1,lte=100"`
	MinSecondsToClose   int     `yaml:"min_seconds_to_close" key:"MIN_SECONDS_TO_CLOSE" validate:"gte=30,lte=600"`
	MaxSpreadCents      int     `yaml:"max_spread_cents" key:"MAX_SPREAD_CENTS" validate:"gte=1,lte=100"`
	MinContractPrice    int     `yaml:"min_contract_price" key:"MIN_CONTRACT_PRICE" validate:"gte=1,lte=55,ltfield=MaxContractPrice"`
	MaxContractPrice    int     `yaml:"max_contract_price" key:"MAX_CONTRACT_PRICE" validate:"gte=50,lte=99"`

	// Salidas
	StopLossCents     int     `yaml:"stop_loss_cents" key:"STOP_LOSS_CENTS" validate:"gte=0,lte=99"`
	HitRunPct         float64 `yaml:"hit_run_pct" key:"HIT_RUN_PCT" validate:"gte=0,lte=500"`
	ProfitTakePct     float64 `yaml:"profit_take_pct" key:"PROFIT_TAKE_PCT" validate:"gte=5,lte=500"`
	FreeRollPrice     int     `yaml:"free_roll_price" key:"FREE_ROLL_PRICE" validate:"gte=75,lte=99"`
	ProfitTakeMinSecs int     `yaml:"profit_take_min_secs" key:"PROFIT_TAKE_MIN_SECS" validate:"gte=60,lte=600"`
	HoldExpirySecs    int     `yaml:"hold_expiry_secs" key:"HOLD_EXPIRY_SECS" validate:"gte=30,lte=300"`

	PollIntervalSeconds int `yaml:"poll_interval_seconds" key:"POLL_INTERVAL_SECONDS" validate:"gte=5,lte=120"`

	// Alpha
	DeltaThreshold         float64 `yaml:"delta_threshold" key:"DELTA_THRESHOLD" validate:"gte=5,lte=200"`
	ExtremeDeltaThreshold  float64 `yaml:"extreme_delta_threshold" key:"EXTREME_DELTA_THRESHOLD" validate:"gte=10,lte=500"`
	AnchorSecondsThreshold int     `yaml:"anchor_seconds_threshold" key:"ANCHOR_SECONDS_THRESHOLD" validate:"gte=15,lte=120"`
	LeadLagThreshold       float64 `yaml:"lead_lag_threshold" key:"LEAD_LAG_THRESHOLD" validate:"gte=10,lte=500"`
	LeadLagEnabled         bool    `yaml:"lead_lag_enabled" key:"LEAD_LAG_ENABLED"`
	VolHighThreshold       float64 `yaml:"vol_high_threshold" key:"VOL_HIGH_THRESHOLD" validate:"gte=50,lte=2000"`
	VolLowThreshold        float64 `yaml:"vol_low_threshold" key:"VOL_LOW_THRESHOLD" validate:"gte=20,lte=1000,ltfield=VolHighThreshold"`
	FairValueK             float64 `yaml:"fair_value_k" key:"FAIR_VALUE_K" validate:"gte=0.1,lte=3"`

	// Estrategia por reglas
	MinEdgeCents        int     `yaml:"min_edge_cents" key:"MIN_EDGE_CENTS" validate:"gte=1,lte=30"`
	TrendFollowVelocity float64 `yaml:"trend_follow_velocity" key:"TREND_FOLLOW_VELOCITY" validate:"gte=0.5,lte=20"`
	SitOutLowVol        bool    `yaml:"sit_out_low_vol" key:"RULE_SIT_OUT_LOW_VOL"`
	MinConfidence       float64 `yaml:"min_confidence" key:"RULE_MIN_CONFIDENCE" validate:"gte=0.3,lte=0.95"`

	// Edge exit
	EdgeExitEnabled        bool `yaml:"edge_exit_enabled" key:"EDGE_EXIT_ENABLED"`
	EdgeExitThresholdCents int  `yaml:"edge_exit_threshold_cents" key:"EDGE_EXIT_THRESHOLD_CENTS" validate:"gte=0,lte=15"`
	EdgeExitMinHoldSecs    int  `yaml:"edge_exit_min_hold_secs" key:"EDGE_EXIT_MIN_HOLD_SECS" validate:"gte=10,lte=120"`
	EdgeExitCooldownSecs   int  `yaml:"edge_exit_cooldown_secs" key:"EDGE_EXIT_COOLDOWN_SECS" validate:"gte=10,lte=120"`
	EdgeDecaySecs          int  `yaml:"edge_decay_secs" key:"EDGE_DECAY_SECS" validate:"gte=60,lte=3600"`
	ReentryEdgePremium     int  `yaml:"reentry_edge_premium" key:"REENTRY_EDGE_PREMIUM" validate:"gte=0,lte=15"`

	// Paper
	PaperStartingBalance float64 `yaml:"paper_starting_balance" key:"PAPER_STARTING_BALANCE" validate:"gte=10,lte=100000"`
	PaperFillFraction    float64 `yaml:"paper_fill_fraction" key:"PAPER_FILL_FRACTION" validate:"gte=0.05,lte=1"`

	TradingEnabled bool `yaml:"trading_enabled" key:"TRADING_ENABLED"`
}

// DefaultTunables devuelve los valores por defecto.
func DefaultTunables() Tunables {
	return Tunables{
		OrderSizePct:           5,
		MaxPositionPct:         15,
		MaxTotalExposurePct:    30,
		MaxDailyLossPct:        10,
		MinSecondsToClose:      90,
		MaxSpreadCents:         25,
		MinContractPrice:       5,
		MaxContractPrice:       85,
		StopLossCents:          15,
		HitRunPct:              0,
		ProfitTakePct:          50,
		FreeRollPrice:          90,
		ProfitTakeMinSecs:      300,
		HoldExpirySecs:         120,
		PollIntervalSeconds:    10,
		DeltaThreshold:         20,
		ExtremeDeltaThreshold:  50,
		AnchorSecondsThreshold: 60,
		LeadLagThreshold:       75,
		LeadLagEnabled:         false,
		VolHighThreshold:       400,
		VolLowThreshold:        200,
		FairValueK:             0.6,
		MinEdgeCents:           5,
		TrendFollowVelocity:    2.0,
		SitOutLowVol:           true,
		MinConfidence:          0.6,
		EdgeExitEnabled:        true,
		EdgeExitThresholdCents: 2,
		EdgeExitMinHoldSecs:    30,
		EdgeExitCooldownSecs:   30,
		EdgeDecaySecs:          900,
		ReentryEdgePremium:     3,
		PaperStartingBalance:   100,
		PaperFillFraction:      1.0,
		TradingEnabled:         false,
	}
}

var validate = validator.New()

// Validate comprueba rangos y reglas entre campos.
func Validate(t Tunables) error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTunable, err)
	}
	return nil
}

// Keys devuelve las keys de todos los tunables, ordenadas.
func Keys() []string {
	typ := reflect.TypeOf(Tunables{})
	keys := make([]string, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		if k := typ.Field(i).Tag.Get("key"); k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Get devuelve el valor de un tunable formateado como texto.
func (t Tunables) Get(key string) (string, error) {
	f, ok := fieldByKey(reflect.ValueOf(&t).Elem(), key)
	if !ok {
		return "", fmt.Errorf("config.Get: %q: %w", key, ErrUnknownTunable)
	}
	switch f.Kind() {
	case reflect.Float64:
		return strconv.FormatFloat(f.Float(), 'f', -1, 64), nil
	case reflect.Int:
		return strconv.FormatInt(f.Int(), 10), nil
	case reflect.Bool:
		return strconv.FormatBool(f.Bool()), nil
	}
	return "", fmt.Errorf("config.Get: %q: unsupported kind %s", key, f.Kind())
}

// With devuelve una copia con key=value aplicado, sin validar.
func (t Tunables) With(key, value string) (Tunables, error) {
	out := t
	f, ok := fieldByKey(reflect.ValueOf(&out).Elem(), strings.ToUpper(key))
	if !ok {
		return t, fmt.Errorf("config.With: %q: %w", key, ErrUnknownTunable)
	}
	value = strings.TrimSpace(value)
	switch f.Kind() {
	case reflect.Float64:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return t, fmt.Errorf("config.With: %s=%q: %w", key, value, ErrInvalidTunable)
		}
		f.SetFloat(v)
	case reflect.Int:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil || v != math.Trunc(v) {
			return t, fmt.Errorf("config.With: %s=%q: %w", key, value, ErrInvalidTunable)
		}
		f.SetInt(int64(v))
	case reflect.Bool:
		v, err := strconv.ParseBool(value)
		if err != nil {
			return t, fmt.Errorf("config.With: %s=%q: %w", key, value, ErrInvalidTunable)
		}
		f.SetBool(v)
	}
	return out, nil
}

func fieldByKey(v reflect.Value, key string) (reflect.Value, bool) {
	typ := v.Type()
	for i := 0; i < typ.NumField(); i++ {
		if typ.Field(i).Tag.Get("key") == key {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// Settings es el almacén donde se persisten los tunables.
type Settings interface {
	GetSetting(ctx context.Context, key string) (optional.Option[string], error)
	SetSetting(ctx context.Context, key, value string) error
}

// Runtime guarda los tunables vigentes. Update es el único punto de entrada
// para cambiarlos: parsea, valida la copia candidata, la publica y la
// persiste como config_<KEY>.
type Runtime struct {
	mu       sync.RWMutex
	current  Tunables
	settings Settings
}

// NewRuntime crea el runtime con los valores iniciales. settings puede ser
// nil (sin persistencia).
func NewRuntime(initial Tunables, settings Settings) (*Runtime, error) {
	if err := Validate(initial); err != nil {
		return nil, fmt.Errorf("config.NewRuntime: %w", err)
	}
	return &Runtime{current: initial, settings: settings}, nil
}

// Snapshot devuelve una copia de los tunables vigentes. El motor toma una
// por ciclo.
func (r *Runtime) Snapshot() Tunables {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Update aplica y persiste un cambio. Si el valor no es válido no cambia
// nada. La escritura se hace bajo el mutex para que el orden persistido sea
// el mismo que el aplicado en memoria.
func (r *Runtime) Update(ctx context.Context, key, value string) error {
	key = strings.ToUpper(strings.TrimSpace(key))

	r.mu.Lock()
	defer r.mu.Unlock()

	candidate, err := r.current.With(key, value)
	if err == nil {
		err = Validate(candidate)
	}
	if err != nil {
		return fmt.Errorf("config.Update: %w", err)
	}
	r.current = candidate

	slog.Info("config: tunable updated", "key", key, "value", value)

	if r.settings == nil {
		return nil
	}
	stored, _ := candidate.Get(key)
	if err := r.settings.SetSetting(ctx, settingPrefix+key, stored); err != nil {
		return fmt.Errorf("config.Update: persist %s: %w", key, err)
	}
	return nil
}

// Restore carga los tunables persistidos. Los valores inválidos se ignoran
// con un warning.
func (r *Runtime) Restore(ctx context.Context) error {
	if r.settings == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	restored := 0
	for _, key := range Keys() {
		saved, err := r.settings.GetSetting(ctx, settingPrefix+key)
		if err != nil {
			return fmt.Errorf("config.Restore: %s: %w", key, err)
		}
		if saved.IsNone() {
			continue
		}
		candidate, err := r.current.With(key, saved.Unwrap())
		if err == nil {
			err = Validate(candidate)
		}
		if err != nil {
			slog.Warn("config: ignoring persisted tunable", "key", key, "value", saved.Unwrap(), "err", err)
			continue
		}
		r.current = candidate
		restored++
	}
	if restored > 0 {
		slog.Info("config: tunables restored", "count", restored)
	}
	return nil
}
