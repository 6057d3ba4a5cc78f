package position

import (
	"context"
	"fmt"
	"log"

	"cpmm-sniper/internal/config"
	"cpmm-sniper/internal/domain"
	"cpmm-sniper/internal/observability"
)

// PriceSource yields the current quote-per-base price of a pool.
type PriceSource interface {
	PriceInQuote(ctx context.Context, pool, baseMint string) (float64, error)
}

// Trader sells a fraction of the live position balance.
type Trader interface {
	Sell(ctx context.Context, p *domain.Position, fraction float64) (*domain.TradeResult, error)
}

// Recorder persists trade events. Failures are logged, never allowed to
// stall the exit loop.
type Recorder interface {
	Record(ctx context.Context, e *domain.TradeEvent)
}

// Monitor runs the exit state machine over an open position: partial
// take-profit tiers, a trailing stop armed at the trail distance, a
// hard stop loss, and a poll budget that force-closes stale positions.
type Monitor struct {
	prices   PriceSource
	trader   Trader
	recorder Recorder
	clock    Clock
	metrics  *observability.Metrics
	cfg      *config.Config
}

// NewMonitor creates a monitor. metrics may be nil.
func NewMonitor(prices PriceSource, trader Trader, recorder Recorder, clock Clock, metrics *observability.Metrics, cfg *config.Config) *Monitor {
	return &Monitor{prices: prices, trader: trader, recorder: recorder, clock: clock, metrics: metrics, cfg: cfg}
}

// Run polls the pool price until the position reaches a terminal state
// and returns the exit reason. Each tick consumes poll budget whether or
// not a price was available. When the budget runs out with the position
// still open, the remainder is force-sold.
func (m *Monitor) Run(ctx context.Context, p *domain.Position) (string, error) {
	for p.PollCount < p.PollBudget && !p.Terminal() {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		p.PollCount++
		if m.metrics != nil {
			m.metrics.PollTicks.Inc()
		}

		price, err := m.prices.PriceInQuote(ctx, p.Pool, p.BaseMint)
		if err != nil {
			// The tick is spent even when no price came back.
			log.Printf("[monitor] pool=%s poll=%d price unavailable: %v", p.Pool, p.PollCount, err)
		} else {
			reason := m.evaluate(ctx, p, price)
			if reason != "" {
				return reason, nil
			}
		}

		if p.PollCount >= p.PollBudget {
			break
		}
		if err := m.clock.Sleep(ctx, m.cfg.PollInterval); err != nil {
			return "", err
		}
	}

	if p.Terminal() {
		return p.ExitReason, nil
	}

	log.Printf("[monitor] pool=%s poll budget exhausted, force closing", p.Pool)
	if err := m.sellAll(ctx, p, domain.ExitReasonBudget, 0, 0); err != nil {
		return "", fmt.Errorf("force close: %w", err)
	}
	return domain.ExitReasonBudget, nil
}

// evaluate applies the exit rules to one price observation, in fixed
// order: trailing stop, tier 1, tier 2, tier 3, hard stop. Returns a
// non-empty reason once the position fully exits.
func (m *Monitor) evaluate(ctx context.Context, p *domain.Position, price float64) string {
	profitPct := (price/p.EntryPrice - 1) * 100
	log.Printf("[monitor] pool=%s poll=%d price=%g profit=%.2f%%", p.Pool, p.PollCount, price, profitPct)

	if profitPct >= m.cfg.TrailDistancePct {
		p.TrailArmed = true
	}
	if p.TrailArmed && profitPct < m.cfg.TrailDistancePct {
		if err := m.sellAll(ctx, p, domain.ExitReasonTrailingStop, price, profitPct); err != nil {
			log.Printf("[monitor] pool=%s trailing stop sell failed: %v", p.Pool, err)
		}
	}

	if !p.Tier1Done && profitPct >= m.cfg.TPLevelPct1 && profitPct <= m.cfg.TPLevelPct2 {
		if m.sellPartial(ctx, p, m.cfg.TPSizePct1, domain.ExitReasonTier1, price, profitPct) {
			p.Tier1Done = true
		}
	}

	if !p.Tier2Done && profitPct >= m.cfg.TPLevelPct2 && profitPct <= m.cfg.TPLevelPct3 {
		if m.sellPartial(ctx, p, m.cfg.TPSizePct2, domain.ExitReasonTier2, price, profitPct) {
			p.Tier2Done = true
		}
	}

	if profitPct >= m.cfg.TPLevelPct3 {
		if err := m.sellAll(ctx, p, domain.ExitReasonTier3, price, profitPct); err != nil {
			log.Printf("[monitor] pool=%s tier 3 sell failed: %v", p.Pool, err)
		}
	}

	if profitPct < m.cfg.HardStopLossPct {
		if err := m.sellAll(ctx, p, domain.ExitReasonHardStop, price, profitPct); err != nil {
			log.Printf("[monitor] pool=%s hard stop sell failed: %v", p.Pool, err)
		}
	}

	if p.Terminal() {
		return p.ExitReason
	}
	return ""
}

// sellPartial sells a percentage of the live balance. Reports success so
// the caller can latch the tier flag; a failed sell leaves the tier
// re-armed for the next tick. The terminal flag is re-checked right
// before selling so a tier firing after a full exit on the same tick
// cannot sell again.
func (m *Monitor) sellPartial(ctx context.Context, p *domain.Position, sizePct float64, reason string, price, profitPct float64) bool {
	if p.Terminal() {
		return false
	}

	result, err := m.trader.Sell(ctx, p, sizePct/100)
	if err != nil {
		log.Printf("[monitor] pool=%s partial sell (%s) failed: %v", p.Pool, reason, err)
		return false
	}

	p.RemainingFraction *= 1 - sizePct/100
	m.record(ctx, p, result, reason, price, profitPct)
	log.Printf("[monitor] pool=%s %s sold %.0f%% sig=%s", p.Pool, reason, sizePct, result.Signature)
	return true
}

// sellAll closes the whole position. The terminal flag is re-checked
// right before selling so rules firing on the same tick cannot double
// sell.
func (m *Monitor) sellAll(ctx context.Context, p *domain.Position, reason string, price, profitPct float64) error {
	if p.Terminal() {
		return nil
	}

	result, err := m.trader.Sell(ctx, p, 1)
	if err != nil {
		return err
	}

	p.FullExitDone = true
	p.ExitReason = reason
	p.RemainingFraction = 0
	m.record(ctx, p, result, reason, price, profitPct)
	log.Printf("[monitor] pool=%s closed (%s) sig=%s", p.Pool, reason, result.Signature)
	return nil
}

func (m *Monitor) record(ctx context.Context, p *domain.Position, result *domain.TradeResult, reason string, price, profitPct float64) {
	if m.recorder == nil {
		return
	}
	m.recorder.Record(ctx, &domain.TradeEvent{
		Pool:        p.Pool,
		Mint:        p.BaseMint,
		Side:        domain.TradeSideSell,
		Reason:      reason,
		Amount:      result.Amount,
		Price:       price,
		ProfitPct:   profitPct,
		Signature:   result.Signature,
		TimestampMs: m.clock.Now().UnixMilli(),
	})
}
