package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del bot.
type Config struct {
	Kalshi  KalshiConfig  `yaml:"kalshi"`
	Feeds   FeedsConfig   `yaml:"feeds"`
	Trading Tunables      `yaml:"trading"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// KalshiConfig contiene credenciales y endpoints del broker.
// env=demo es paper trading contra la API real: datos de mercado reales,
// órdenes simuladas.
type KalshiConfig struct {
	Env            string  `yaml:"env"` // demo | live
	Host           string  `yaml:"host"`
	WSHost         string  `yaml:"ws_host"`
	APIKeyID       string  `yaml:"api_key_id"`
	PrivateKeyPath string  `yaml:"private_key_path"`
	PrivateKeyPEM  string  `yaml:"-"` // solo por env (KALSHI_PRIVATE_KEY)
	Series         string  `yaml:"series"`
	RatePerSecond  float64 `yaml:"rate_per_second"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// Paper reports whether orders are simulated.
func (k KalshiConfig) Paper() bool { return k.Env != "live" }

// FeedsConfig controla los websockets de precio.
type FeedsConfig struct {
	Venues          []string `yaml:"venues"` // vacío = todos
	ReconnectBaseMS int      `yaml:"reconnect_base_ms"`
	ReconnectMaxMS  int      `yaml:"reconnect_max_ms"`
	Jitter          float64  `yaml:"jitter"`
}

// ReconnectBase devuelve la espera base de reconexión.
func (f FeedsConfig) ReconnectBase() time.Duration {
	return time.Duration(f.ReconnectBaseMS) * time.Millisecond
}

// ReconnectMax devuelve el techo de la espera de reconexión.
func (f FeedsConfig) ReconnectMax() time.Duration {
	return time.Duration(f.ReconnectMaxMS) * time.Millisecond
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
// Un path vacío usa solo defaults y entorno.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Config{Trading: DefaultTunables()}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := Validate(cfg.Trading); err != nil {
		return nil, fmt.Errorf("config.Load: trading: %w", err)
	}
	return &cfg, nil
}

// PollInterval devuelve el intervalo entre ciclos del motor.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Trading.PollIntervalSeconds) * time.Second
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KALSHI_ENV"); v != "" {
		cfg.Kalshi.Env = strings.ToLower(v)
	}
	if v := os.Getenv("KALSHI_API_KEY_ID"); v != "" {
		cfg.Kalshi.APIKeyID = v
	}
	if v := os.Getenv("KALSHI_PRIVATE_KEY"); v != "" {
		// los .env suelen guardar el PEM en una línea con \n literales
		cfg.Kalshi.PrivateKeyPEM = strings.ReplaceAll(v, `\n`, "\n")
	}
	if v := os.Getenv("KALSHI_PRIVATE_KEY_PATH"); v != "" {
		cfg.Kalshi.PrivateKeyPath = v
	}
	if v := os.Getenv("TRADING_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Trading.TradingEnabled = b
		}
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Kalshi.Env != "live" {
		cfg.Kalshi.Env = "demo"
	}
	if cfg.Kalshi.Host == "" {
		cfg.Kalshi.Host = "https://api.elections.kalshi.com"
	}
	if cfg.Kalshi.WSHost == "" {
		cfg.Kalshi.WSHost = "wss://api.elections.kalshi.com"
	}
	if cfg.Kalshi.Series == "" {
		cfg.Kalshi.Series = "KXBTC15M"
	}
	if cfg.Kalshi.RatePerSecond <= 0 {
		cfg.Kalshi.RatePerSecond = 10
	}
	if cfg.Kalshi.TimeoutSeconds <= 0 {
		cfg.Kalshi.TimeoutSeconds = 10
	}
	if cfg.Feeds.ReconnectBaseMS <= 0 {
		cfg.Feeds.ReconnectBaseMS = 1000
	}
	if cfg.Feeds.ReconnectMaxMS <= 0 {
		cfg.Feeds.ReconnectMaxMS = 30000
	}
	if cfg.Feeds.Jitter <= 0 {
		cfg.Feeds.Jitter = 0.5
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "kalshibot.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
