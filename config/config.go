package config

import (
	"fmt"
	"os"
	"time"

	"github.com/alejandrodnm/orderflow/internal/domain"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del sweep.
type Config struct {
	Sweep    SweepConfig    `yaml:"sweep"`
	Grid     GridConfig     `yaml:"grid"`
	Baseline BaselineConfig `yaml:"baseline"`
	Feed     FeedConfig     `yaml:"feed"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
}

// SweepConfig controla el motor del sweep.
type SweepConfig struct {
	Workers            int     `yaml:"workers"`              // 0 = NumCPU
	EvalHorizonSeconds int     `yaml:"eval_horizon_seconds"` // look-ahead para puntuar señales
	BucketSize         float64 `yaml:"bucket_size"`          // ancho del bucket de precio del heat map
	Timezone           string  `yaml:"timezone"`             // zona para el split day/night
	OnRepeatSignal     string  `yaml:"on_repeat_signal"`     // ignore | update_take_profit
	OnInvalidated      string  `yaml:"on_invalidated"`       // tighten | skip
	ReopenOnReverse    *bool   `yaml:"reopen_on_reverse"`    // default true
	TopN               int     `yaml:"top_n"`                // filas en el ranking de consola
}

// GridConfig enumera los valores de cada knob. Ventanas en segundos.
type GridConfig struct {
	AbsorptionWindowSeconds []int     `yaml:"absorption_window_seconds"`
	PriceRangePct           []float64 `yaml:"price_range_pct"`
	MinLargeOrder           []float64 `yaml:"min_large_order"`
	VolumeWindowSeconds     []int     `yaml:"volume_window_seconds"`
	ConfirmThreshold        []float64 `yaml:"confirm_threshold"`
	StopLossPct             []float64 `yaml:"stop_loss_pct"`
	TakeProfitPct           []float64 `yaml:"take_profit_pct"`
	TrailingStopPct         []float64 `yaml:"trailing_stop_pct"`
	CooldownSeconds         []int     `yaml:"cooldown_seconds"`
}

// BaselineConfig configura la estrategia de referencia (cruce de medias).
type BaselineConfig struct {
	Enabled            bool    `yaml:"enabled"`
	BarIntervalSeconds int     `yaml:"bar_interval_seconds"`
	FastPeriod         int     `yaml:"fast_period"`
	SlowPeriod         int     `yaml:"slow_period"`
	TakeProfitPct      float64 `yaml:"take_profit_pct"`
	StopLossPct        float64 `yaml:"stop_loss_pct"`
}

// FeedConfig dice de dónde sale el tape.
type FeedConfig struct {
	Kind   string `yaml:"kind"` // sqlite | csv
	Path   string `yaml:"path"` // CSV path (kind=csv)
	Symbol string `yaml:"symbol"`

	// From y To en RFC3339; vacío = sin límite.
	From string `yaml:"from"`
	To   string `yaml:"to"`
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
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes and applies env overrides and defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	if _, _, err := cfg.Range(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// EvalHorizon devuelve el horizonte de evaluación como time.Duration.
func (c *Config) EvalHorizon() time.Duration {
	return time.Duration(c.Sweep.EvalHorizonSeconds) * time.Second
}

// ParameterGrid convierte el grid de config (segundos) al grid del dominio.
func (c *Config) ParameterGrid() domain.Grid {
	g := c.Grid
	return domain.Grid{
		AbsorptionWindow: seconds(g.AbsorptionWindowSeconds),
		PriceRangePct:    g.PriceRangePct,
		MinLargeOrder:    g.MinLargeOrder,
		VolumeWindow:     seconds(g.VolumeWindowSeconds),
		ConfirmThreshold: g.ConfirmThreshold,
		StopLossPct:      g.StopLossPct,
		TakeProfitPct:    g.TakeProfitPct,
		TrailingStopPct:  g.TrailingStopPct,
		Cooldown:         seconds(g.CooldownSeconds),
	}
}

func seconds(vs []int) []time.Duration {
	out := make([]time.Duration, len(vs))
	for i, v := range vs {
		out[i] = time.Duration(v) * time.Second
	}
	return out
}

// Location resolves the day/night timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Sweep.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Sweep.Timezone, err)
	}
	return loc, nil
}

// Range parses the feed time range; zero times mean unbounded.
func (c *Config) Range() (from, to time.Time, err error) {
	if c.Feed.From != "" {
		if from, err = time.Parse(time.RFC3339, c.Feed.From); err != nil {
			return from, to, fmt.Errorf("config: feed.from: %w", err)
		}
	}
	if c.Feed.To != "" {
		if to, err = time.Parse(time.RFC3339, c.Feed.To); err != nil {
			return from, to, fmt.Errorf("config: feed.to: %w", err)
		}
	}
	return from, to, nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("ABSORB_DB"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("ABSORB_SYMBOL"); v != "" {
		cfg.Feed.Symbol = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Sweep.EvalHorizonSeconds <= 0 {
		cfg.Sweep.EvalHorizonSeconds = 300
	}
	if cfg.Sweep.BucketSize <= 0 {
		cfg.Sweep.BucketSize = 1.0
	}
	if cfg.Sweep.Timezone == "" {
		cfg.Sweep.Timezone = "UTC"
	}
	if cfg.Sweep.ReopenOnReverse == nil {
		reopen := true
		cfg.Sweep.ReopenOnReverse = &reopen
	}
	if cfg.Sweep.TopN <= 0 {
		cfg.Sweep.TopN = 15
	}

	g := &cfg.Grid
	if len(g.AbsorptionWindowSeconds) == 0 {
		g.AbsorptionWindowSeconds = []int{5, 10, 30}
	}
	if len(g.PriceRangePct) == 0 {
		g.PriceRangePct = []float64{0.0005, 0.001}
	}
	if len(g.MinLargeOrder) == 0 {
		g.MinLargeOrder = []float64{5, 10}
	}
	if len(g.VolumeWindowSeconds) == 0 {
		g.VolumeWindowSeconds = []int{60, 300}
	}
	if len(g.ConfirmThreshold) == 0 {
		g.ConfirmThreshold = []float64{0.001, 0.002}
	}
	if len(g.StopLossPct) == 0 {
		g.StopLossPct = []float64{0.005}
	}
	if len(g.TakeProfitPct) == 0 {
		g.TakeProfitPct = []float64{0.01}
	}

	if cfg.Baseline.BarIntervalSeconds <= 0 {
		cfg.Baseline.BarIntervalSeconds = 60
	}

	if cfg.Feed.Kind == "" {
		cfg.Feed.Kind = "sqlite"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "absorb.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
