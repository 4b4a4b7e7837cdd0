// Package config holds the engine's construction-time configuration
// (spec.md §6): starting capital, account currency, commission rate, and
// the rollover rate source path. Values default safely when unset, the way
// the teacher's collaborator configs load-or-default rather than fail.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ejlayer/backtest-exec/internal/money"
)

// Config is the engine's full construction-time configuration.
type Config struct {
	StartingCapital          money.Decimal `json:"starting_capital"`
	AccountCurrency          string        `json:"account_currency"`
	FrozenAccount            bool          `json:"frozen_account"`
	CommissionRateBp         float64       `json:"commission_rate_bp"`
	ShortTermInterestCSVPath string        `json:"short_term_interest_csv_path"`
	RolloverSpread           float64       `json:"rollover_spread"`
	PricePrecision           int32         `json:"price_precision"`
}

// Default returns a safe, zero-risk configuration: no starting capital, USD
// account, zero commission, no rollover CSV configured.
func Default() Config {
	return Config{
		StartingCapital:  money.Zero,
		AccountCurrency:  "USD",
		FrozenAccount:    false,
		CommissionRateBp: 0,
		RolloverSpread:   0,
		PricePrecision:   4,
	}
}

// Load reads a JSON configuration file, falling back to Default when path
// is empty or the file does not exist, so a run can start without a config
// file present.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: invalid %q: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration is internally consistent.
func (c Config) Validate() error {
	if c.AccountCurrency == "" {
		return fmt.Errorf("config: account_currency must not be empty")
	}
	if c.CommissionRateBp < 0 {
		return fmt.Errorf("config: commission_rate_bp must be >= 0, got %v", c.CommissionRateBp)
	}
	if c.PricePrecision < 0 {
		return fmt.Errorf("config: price_precision must be >= 0, got %d", c.PricePrecision)
	}
	return nil
}
