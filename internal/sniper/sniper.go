// Package sniper runs the trading cycle: one candidate at a time moves
// through safety validation, the open-time gate, the entry buy and the
// exit state machine. A busy gate turns new candidates away instead of
// queueing them.
package sniper

import (
	"context"
	"log"
	"time"

	"cpmm-sniper/internal/config"
	"cpmm-sniper/internal/domain"
	"cpmm-sniper/internal/observability"
	"cpmm-sniper/internal/position"
)

// Validator decides whether a candidate is safe to enter.
type Validator interface {
	Validate(ctx context.Context, c *domain.PoolCandidate) *domain.SafetyVerdict
}

// PriceSource yields the entry price used for sizing.
type PriceSource interface {
	PriceInQuote(ctx context.Context, pool, baseMint string) (float64, error)
}

// Trader executes the entry buy.
type Trader interface {
	Buy(ctx context.Context, c *domain.PoolCandidate, tokenAmount float64) (*domain.TradeResult, error)
}

// Monitor drives an open position to a terminal state.
type Monitor interface {
	Run(ctx context.Context, p *domain.Position) (string, error)
}

// Sniper owns the cycle gate and the full candidate pipeline.
type Sniper struct {
	gate      *position.CycleGate
	validator Validator
	prices    PriceSource
	trader    Trader
	monitor   Monitor
	recorder  position.Recorder
	clock     position.Clock
	metrics   *observability.Metrics
	cfg       *config.Config
}

// New creates a sniper.
func New(validator Validator, prices PriceSource, trader Trader, monitor Monitor, recorder position.Recorder, clock position.Clock, metrics *observability.Metrics, cfg *config.Config) *Sniper {
	return &Sniper{
		gate:      position.NewCycleGate(),
		validator: validator,
		prices:    prices,
		trader:    trader,
		monitor:   monitor,
		recorder:  recorder,
		clock:     clock,
		metrics:   metrics,
		cfg:       cfg,
	}
}

// Busy reports whether a cycle currently holds the gate.
func (s *Sniper) Busy() bool {
	return s.gate.Busy()
}

// HandleCandidate runs one trading cycle and returns its terminal
// status. Exactly one position can be open at a time: candidates
// arriving while the gate is held are dropped, not queued.
func (s *Sniper) HandleCandidate(ctx context.Context, c *domain.PoolCandidate) string {
	if !s.gate.TryAcquire() {
		log.Printf("[sniper] gate busy, dropping candidate %s", c.BaseMint)
		return s.finish(domain.CycleStatusBusy)
	}
	s.metrics.GateBusy.Set(1)
	defer func() {
		s.gate.Release()
		s.metrics.GateBusy.Set(0)
	}()

	verdict := s.validator.Validate(ctx, c)
	if !verdict.Accept {
		for _, reason := range verdict.Reasons {
			s.metrics.CandidatesRejected.WithLabelValues(reason).Inc()
		}
		log.Printf("[sniper] candidate %s rejected: %v", c.BaseMint, verdict.Reasons)
		return s.finish(domain.CycleStatusRejected)
	}

	if err := s.awaitOpenTime(ctx, c); err != nil {
		log.Printf("[sniper] candidate %s: open-time wait aborted: %v", c.BaseMint, err)
		return s.finish(domain.CycleStatusEntryFailed)
	}

	entryPrice, err := s.prices.PriceInQuote(ctx, c.Pool, c.BaseMint)
	if err != nil {
		log.Printf("[sniper] candidate %s: entry price unavailable: %v", c.BaseMint, err)
		return s.finish(domain.CycleStatusEntryFailed)
	}

	tokenAmount := (s.cfg.WSOLBudget - s.cfg.FeeReserveSOL) / entryPrice
	log.Printf("[sniper] entering %s pool=%s price=%g size=%f", c.BaseMint, c.Pool, entryPrice, tokenAmount)

	result, err := s.trader.Buy(ctx, c, tokenAmount)
	if err != nil {
		log.Printf("[sniper] candidate %s: entry buy failed: %v", c.BaseMint, err)
		return s.finish(domain.CycleStatusEntryFailed)
	}

	now := s.clock.Now()
	if s.recorder != nil {
		s.recorder.Record(ctx, &domain.TradeEvent{
			Pool:        c.Pool,
			Mint:        c.BaseMint,
			Side:        domain.TradeSideBuy,
			Amount:      result.Amount,
			Price:       entryPrice,
			Signature:   result.Signature,
			TimestampMs: now.UnixMilli(),
		})
	}

	p := &domain.Position{
		Pool:              c.Pool,
		BaseMint:          c.BaseMint,
		QuoteMint:         c.QuoteMint,
		AmmConfig:         c.AmmConfig,
		EntryPrice:        entryPrice,
		EntryAmount:       result.Amount,
		RemainingFraction: 1,
		PollBudget:        s.cfg.PollBudget,
		EnteredAt:         now.UnixMilli(),
	}

	reason, err := s.monitor.Run(ctx, p)
	if err != nil {
		log.Printf("[sniper] position %s: exit loop aborted: %v", p.Pool, err)
		return s.finish(domain.CycleStatusForceClosed)
	}

	log.Printf("[sniper] position %s closed: %s", p.Pool, reason)
	if reason == domain.ExitReasonBudget {
		return s.finish(domain.CycleStatusForceClosed)
	}
	return s.finish(domain.CycleStatusExited)
}

// awaitOpenTime blocks until the pool's configured trading-open time
// plus the safety margin. Pools with no open time trade immediately.
func (s *Sniper) awaitOpenTime(ctx context.Context, c *domain.PoolCandidate) error {
	if c.OpenTime <= 0 {
		return nil
	}

	openAt := time.Unix(c.OpenTime, 0).Add(s.cfg.OpenTimeMargin)
	wait := openAt.Sub(s.clock.Now())
	if wait <= 0 {
		return nil
	}

	log.Printf("[sniper] pool %s opens in %v, waiting", c.Pool, wait)
	return s.clock.Sleep(ctx, wait)
}

func (s *Sniper) finish(status string) string {
	s.metrics.CyclesTotal.WithLabelValues(status).Inc()
	return status
}
