package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/ledger"
	"github.com/newthinker/tradesim/internal/risk"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config is the root configuration. Money and rate fields are strings so
// they decode to exact decimals.
type Config struct {
	InitialCash       string    `mapstructure:"initial_cash"`
	Fee               FeeConfig `mapstructure:"fee"`
	SlippageBps       string    `mapstructure:"slippage_bps"`
	AllowShort        bool      `mapstructure:"allow_short"`
	Leverage          string    `mapstructure:"leverage"`
	PricePrecision    int32     `mapstructure:"price_precision"`
	QuantityPrecision int32     `mapstructure:"quantity_precision"`
	PeriodsPerYear    float64   `mapstructure:"periods_per_year"`

	Risk       risk.Config               `mapstructure:"risk"`
	Strategies map[string]StrategyConfig `mapstructure:"strategies"`
	Sweep      SweepConfig               `mapstructure:"sweep"`
	Data       DataConfig                `mapstructure:"data"`
	Journal    JournalConfig             `mapstructure:"journal"`
	Storage    StorageConfig             `mapstructure:"storage"`
	Server     ServerConfig              `mapstructure:"server"`
	Metrics    MetricsConfig             `mapstructure:"metrics"`
	Notifiers  map[string]NotifierConfig `mapstructure:"notifiers"`
	Log        LogConfig                 `mapstructure:"log"`
}

// FeeConfig selects and parameterises the fee model.
type FeeConfig struct {
	Model     string `mapstructure:"model"` // "none", "flat", "percentage" or "maker_taker"
	Flat      string `mapstructure:"flat"`
	Rate      string `mapstructure:"rate"`
	Maker     string `mapstructure:"maker"`
	Taker     string `mapstructure:"taker"`
	Liquidity string `mapstructure:"liquidity"`
}

type StrategyConfig struct {
	Params map[string]any `mapstructure:"params"`
}

type SweepConfig struct {
	Parallelism int `mapstructure:"parallelism"`
}

// DataConfig locates historical bars.
type DataConfig struct {
	Format   string `mapstructure:"format"`   // "csv", "parquet" or "yahoo"
	Path     string `mapstructure:"path"`     // For csv and parquet
	URL      string `mapstructure:"url"`      // For yahoo; empty means the public endpoint
	Interval string `mapstructure:"interval"` // For yahoo, e.g. "1d"
}

// JournalConfig configures the SQLite run journal.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

type StorageConfig struct {
	Type string   `mapstructure:"type"` // "", "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	APIKey      string `mapstructure:"api_key"`
	JobTTLHours int    `mapstructure:"job_ttl_hours"`
	MaxJobs     int    `mapstructure:"max_jobs"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type NotifierConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
	Format      string `mapstructure:"format"` // "json" or "console"
}

// Load reads configuration from file over the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides, e.g. TRADESIM_SERVER_PORT
	v.SetEnvPrefix("tradesim")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("reading config: %w", err))
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unmarshaling config: %w", err))
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		InitialCash:       "10000",
		Fee:               FeeConfig{Model: "none", Liquidity: string(ledger.Taker)},
		SlippageBps:       "0",
		Leverage:          "1",
		PricePrecision:    8,
		QuantityPrecision: 8,
		PeriodsPerYear:    252,
		Risk:              risk.DefaultConfig(),
		Data:              DataConfig{Format: "csv", Path: "data"},
		Journal:           JournalConfig{DSN: "tradesim.db"},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			JobTTLHours: 1,
			MaxJobs:     100,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Log: LogConfig{Level: "info"},
	}
}

// LedgerConfig converts the account settings into a ledger configuration.
func (c *Config) LedgerConfig() (ledger.Config, error) {
	cash, err := parseDecimal("initial_cash", c.InitialCash, decimal.Zero)
	if err != nil {
		return ledger.Config{}, err
	}
	slippage, err := parseDecimal("slippage_bps", c.SlippageBps, decimal.Zero)
	if err != nil {
		return ledger.Config{}, err
	}
	leverage, err := parseDecimal("leverage", c.Leverage, decimal.NewFromInt(1))
	if err != nil {
		return ledger.Config{}, err
	}
	fee, err := c.Fee.model()
	if err != nil {
		return ledger.Config{}, err
	}

	cfg := ledger.Config{
		InitialCash:       cash,
		Fee:               fee,
		Liquidity:         ledger.Liquidity(c.Fee.Liquidity),
		SlippageBps:       slippage,
		AllowShort:        c.AllowShort,
		Leverage:          leverage,
		PricePrecision:    c.PricePrecision,
		QuantityPrecision: c.QuantityPrecision,
	}
	if err := cfg.Validate(); err != nil {
		return ledger.Config{}, err
	}
	return cfg, nil
}

// RiskConfig returns the risk engine configuration.
func (c *Config) RiskConfig() risk.Config {
	return c.Risk
}

func (f FeeConfig) model() (ledger.FeeModel, error) {
	switch strings.ToLower(f.Model) {
	case "", "none":
		return ledger.NoFee{}, nil
	case "flat":
		amount, err := parseDecimal("fee.flat", f.Flat, decimal.Zero)
		if err != nil {
			return nil, err
		}
		return ledger.FlatFee{Amount: amount}, nil
	case "percentage":
		rate, err := parseDecimal("fee.rate", f.Rate, decimal.Zero)
		if err != nil {
			return nil, err
		}
		return ledger.PercentageFee{Rate: rate}, nil
	case "maker_taker":
		maker, err := parseDecimal("fee.maker", f.Maker, decimal.Zero)
		if err != nil {
			return nil, err
		}
		taker, err := parseDecimal("fee.taker", f.Taker, decimal.Zero)
		if err != nil {
			return nil, err
		}
		return ledger.MakerTakerFee{MakerRate: maker, TakerRate: taker}, nil
	default:
		return nil, core.Errorf(core.ErrConfigInvalid, "unknown fee model %q", f.Model)
	}
}

func parseDecimal(key, val string, def decimal.Decimal) (decimal.Decimal, error) {
	if strings.TrimSpace(val) == "" {
		return def, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(val))
	if err != nil {
		return decimal.Zero, core.Errorf(core.ErrConfigInvalid, "%s: %q is not a decimal", key, val)
	}
	return d, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	if _, err := c.LedgerConfig(); err != nil {
		return err
	}
	if err := c.Risk.Validate(); err != nil {
		return err
	}

	if c.PeriodsPerYear < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("periods_per_year cannot be negative, got %g", c.PeriodsPerYear))
	}
	if c.Sweep.Parallelism < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("sweep parallelism cannot be negative, got %d", c.Sweep.Parallelism))
	}

	switch c.Data.Format {
	case "csv", "parquet", "yahoo":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("data format must be csv, parquet or yahoo, got %q", c.Data.Format))
	}

	switch c.Storage.Type {
	case "":
	case "localfs":
		if c.Storage.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("storage path required when type is localfs"))
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("s3 bucket required when type is s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown storage type %q", c.Storage.Type))
	}

	if c.Journal.Enabled && c.Journal.DSN == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("journal dsn required when journal is enabled"))
	}

	for name, n := range c.Notifiers {
		if n.Enabled && n.URL == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("notifier %s: url required", name))
		}
	}

	return nil
}
