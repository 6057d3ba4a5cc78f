// Package config builds the validated runtime configuration once at
// startup. Every threshold is parsed and range-checked eagerly so the
// trading loop never compares against an unset or malformed value.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Defaults mirror the values the bot shipped with.
const (
	DefaultMinLiquiditySOL       = 1.0
	DefaultMaxSellTaxPct         = 10.0
	DefaultMaxDevWalletSupplyPct = 5.0
	DefaultTrailDistancePct      = 10.0
	DefaultHardStopLossPct       = -20.0
	DefaultPollInterval          = 1 * time.Second
	DefaultPollBudget            = 50
	DefaultWSOLBudget            = 0.01
	DefaultFeeReserveSOL         = 0.001
	DefaultTipSOL                = 0.0001
	DefaultOpenTimeMargin        = 1500 * time.Millisecond
)

// Config holds all runtime parameters for the sniper.
type Config struct {
	// Chain access
	RPCEndpoint string
	WSEndpoint  string

	// Storage (empty DSNs with UseMemory=true run fully in-memory)
	PostgresDSN   string
	ClickhouseDSN string
	UseMemory     bool

	// Trading keypair, base58-encoded 64-byte secret key.
	PrivateKey string

	// Safety policy
	MinLiquiditySOL         float64
	MaxSellTaxPct           float64
	MaxDevWalletSupplyPct   float64
	RequireRevokedAuthority bool
	DevWalletRuleEnabled    bool

	// Entry sizing
	WSOLBudget    float64 // quote budget per snipe, SOL
	FeeReserveSOL float64 // held back from the budget for fees

	// Exit policy
	TPLevelPct1      float64
	TPLevelPct2      float64
	TPLevelPct3      float64
	TPSizePct1       float64 // fraction of live balance sold at tier 1, percent
	TPSizePct2       float64
	TrailDistancePct float64
	HardStopLossPct  float64 // negative threshold, e.g. -20

	// Polling
	PollInterval time.Duration
	PollBudget   int

	// Pool open-time gate safety margin.
	OpenTimeMargin time.Duration

	// Bundle relay
	TipSOL         float64
	RelayEndpoints []string

	// Observability
	MetricsAddr string
}

// DefaultRelayEndpoints are the redundant regional bundle endpoints.
var DefaultRelayEndpoints = []string{
	"https://mainnet.block-engine.jito.wtf/api/v1/bundles",
	"https://amsterdam.mainnet.block-engine.jito.wtf/api/v1/bundles",
	"https://frankfurt.mainnet.block-engine.jito.wtf/api/v1/bundles",
	"https://ny.mainnet.block-engine.jito.wtf/api/v1/bundles",
	"https://tokyo.mainnet.block-engine.jito.wtf/api/v1/bundles",
}

// Load builds a Config from the environment and validates it.
// getenv defaults to os.Getenv when nil.
func Load(getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	p := &parser{getenv: getenv}

	cfg := &Config{
		RPCEndpoint:   getenv("RPC_ENDPOINT"),
		WSEndpoint:    getenv("WS_ENDPOINT"),
		PostgresDSN:   getenv("POSTGRES_DSN"),
		ClickhouseDSN: getenv("CLICKHOUSE_DSN"),
		PrivateKey:    getenv("PRIVATE_KEY"),
		MetricsAddr:   getenv("METRICS_ADDR"),

		UseMemory: p.boolVar("USE_MEMORY", false),

		MinLiquiditySOL:         p.floatVar("MIN_LIQUIDITY_SOL", DefaultMinLiquiditySOL),
		MaxSellTaxPct:           p.floatVar("MAX_SELL_TAX_PCT", DefaultMaxSellTaxPct),
		MaxDevWalletSupplyPct:   p.floatVar("MAX_DEV_WALLET_SUPPLY_PCT", DefaultMaxDevWalletSupplyPct),
		RequireRevokedAuthority: p.boolVar("REQUIRE_REVOKED_AUTHORITY", true),
		DevWalletRuleEnabled:    p.boolVar("DEV_WALLET_RULE_ENABLED", false),

		WSOLBudget:    p.floatVar("WSOL_AMOUNT", DefaultWSOLBudget),
		FeeReserveSOL: p.floatVar("FEE_RESERVE_SOL", DefaultFeeReserveSOL),

		TPLevelPct1:      p.floatVar("TP_LEVELS_PCT1", 20),
		TPLevelPct2:      p.floatVar("TP_LEVELS_PCT2", 40),
		TPLevelPct3:      p.floatVar("TP_LEVELS_PCT3", 60),
		TPSizePct1:       p.floatVar("TP_SIZE_PCT1", 25),
		TPSizePct2:       p.floatVar("TP_SIZE_PCT2", 25),
		TrailDistancePct: p.floatVar("TRAIL_DISTANCE_PCT", DefaultTrailDistancePct),
		HardStopLossPct:  p.floatVar("HARD_STOP_LOSS_PCT", DefaultHardStopLossPct),

		PollInterval:   p.durationVar("POLL_INTERVAL", DefaultPollInterval),
		PollBudget:     p.intVar("POLL_BUDGET", DefaultPollBudget),
		OpenTimeMargin: p.durationVar("OPEN_TIME_MARGIN", DefaultOpenTimeMargin),

		TipSOL:         p.floatVar("TIP_SOL", DefaultTipSOL),
		RelayEndpoints: DefaultRelayEndpoints,
	}

	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = ":9090"
	}

	if len(p.errs) > 0 {
		return nil, errors.Join(p.errs...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate range-checks every threshold the trading loop depends on.
func (c *Config) Validate() error {
	var errs []error

	if c.MinLiquiditySOL < 0 {
		errs = append(errs, fmt.Errorf("MIN_LIQUIDITY_SOL must be >= 0, got %v", c.MinLiquiditySOL))
	}
	if c.MaxSellTaxPct < 0 || c.MaxSellTaxPct > 100 {
		errs = append(errs, fmt.Errorf("MAX_SELL_TAX_PCT must be within [0,100], got %v", c.MaxSellTaxPct))
	}
	if c.MaxDevWalletSupplyPct <= 0 || c.MaxDevWalletSupplyPct > 100 {
		errs = append(errs, fmt.Errorf("MAX_DEV_WALLET_SUPPLY_PCT must be within (0,100], got %v", c.MaxDevWalletSupplyPct))
	}
	if c.WSOLBudget <= c.FeeReserveSOL {
		errs = append(errs, fmt.Errorf("WSOL_AMOUNT (%v) must exceed FEE_RESERVE_SOL (%v)", c.WSOLBudget, c.FeeReserveSOL))
	}
	if !(c.TPLevelPct1 < c.TPLevelPct2 && c.TPLevelPct2 < c.TPLevelPct3) {
		errs = append(errs, fmt.Errorf("take-profit levels must be strictly increasing, got %v/%v/%v",
			c.TPLevelPct1, c.TPLevelPct2, c.TPLevelPct3))
	}
	if c.TPSizePct1 <= 0 || c.TPSizePct1 >= 100 {
		errs = append(errs, fmt.Errorf("TP_SIZE_PCT1 must be within (0,100), got %v", c.TPSizePct1))
	}
	if c.TPSizePct2 <= 0 || c.TPSizePct2 >= 100 {
		errs = append(errs, fmt.Errorf("TP_SIZE_PCT2 must be within (0,100), got %v", c.TPSizePct2))
	}
	if c.TPSizePct1+c.TPSizePct2 >= 100 {
		errs = append(errs, fmt.Errorf("partial take-profit sizes must sum below 100, got %v", c.TPSizePct1+c.TPSizePct2))
	}
	if c.TrailDistancePct <= 0 {
		errs = append(errs, fmt.Errorf("TRAIL_DISTANCE_PCT must be positive, got %v", c.TrailDistancePct))
	}
	if c.HardStopLossPct >= 0 {
		errs = append(errs, fmt.Errorf("HARD_STOP_LOSS_PCT must be negative, got %v", c.HardStopLossPct))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("POLL_INTERVAL must be positive, got %v", c.PollInterval))
	}
	if c.PollBudget <= 0 {
		errs = append(errs, fmt.Errorf("POLL_BUDGET must be positive, got %d", c.PollBudget))
	}
	if c.TipSOL <= 0 {
		errs = append(errs, fmt.Errorf("TIP_SOL must be positive, got %v", c.TipSOL))
	}
	if len(c.RelayEndpoints) == 0 {
		errs = append(errs, errors.New("at least one relay endpoint is required"))
	}

	return errors.Join(errs...)
}

// parser accumulates parse errors so Load can report them all at once.
type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) floatVar(name string, def float64) float64 {
	raw := p.getenv(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", name, err))
		return def
	}
	return v
}

func (p *parser) intVar(name string, def int) int {
	raw := p.getenv(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", name, err))
		return def
	}
	return v
}

func (p *parser) boolVar(name string, def bool) bool {
	raw := p.getenv(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", name, err))
		return def
	}
	return v
}

func (p *parser) durationVar(name string, def time.Duration) time.Duration {
	raw := p.getenv(name)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", name, err))
		return def
	}
	return v
}
