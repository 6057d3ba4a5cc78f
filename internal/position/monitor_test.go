package position

import (
	"context"
	"errors"
	"testing"
	"time"

	"cpmm-sniper/internal/config"
	"cpmm-sniper/internal/domain"
)

// observation scripts one poll tick: either a price or an error.
type observation struct {
	price float64
	err   error
}

type fakePrices struct {
	script []observation
	calls  int
}

func (f *fakePrices) PriceInQuote(_ context.Context, _, _ string) (float64, error) {
	if f.calls >= len(f.script) {
		return 0, errors.New("script exhausted")
	}
	obs := f.script[f.calls]
	f.calls++
	return obs.price, obs.err
}

type fakeTrader struct {
	fractions []float64
	errs      []error // consumed in order, nil entries succeed
	calls     int
}

func (f *fakeTrader) Sell(_ context.Context, p *domain.Position, fraction float64) (*domain.TradeResult, error) {
	call := f.calls
	f.calls++
	if call < len(f.errs) && f.errs[call] != nil {
		return nil, f.errs[call]
	}
	f.fractions = append(f.fractions, fraction)
	return &domain.TradeResult{Signature: "sig", Amount: fraction, Pool: p.Pool}, nil
}

type fakeRecorder struct {
	events []*domain.TradeEvent
}

func (f *fakeRecorder) Record(_ context.Context, e *domain.TradeEvent) {
	f.events = append(f.events, e)
}

func testExitConfig() *config.Config {
	return &config.Config{
		TPLevelPct1:      20,
		TPLevelPct2:      40,
		TPLevelPct3:      60,
		TPSizePct1:       25,
		TPSizePct2:       25,
		TrailDistancePct: 10,
		HardStopLossPct:  -20,
		PollInterval:     time.Second,
	}
}

func testPosition(budget int) *domain.Position {
	return &domain.Position{
		Pool:              "pool",
		BaseMint:          "mint",
		EntryPrice:        1.0,
		EntryAmount:       100,
		RemainingFraction: 1,
		PollBudget:        budget,
	}
}

func newTestMonitor(prices *fakePrices, trader *fakeTrader, recorder *fakeRecorder) *Monitor {
	clock := NewManualClock(time.Unix(1700000000, 0))
	return NewMonitor(prices, trader, recorder, clock, nil, testExitConfig())
}

func TestMonitor_TierProgression(t *testing.T) {
	prices := &fakePrices{script: []observation{{price: 1.25}, {price: 1.45}, {price: 1.65}}}
	trader := &fakeTrader{}
	recorder := &fakeRecorder{}
	m := newTestMonitor(prices, trader, recorder)
	p := testPosition(10)

	reason, err := m.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if reason != domain.ExitReasonTier3 {
		t.Errorf("expected %s, got %s", domain.ExitReasonTier3, reason)
	}

	expected := []float64{0.25, 0.25, 1}
	if len(trader.fractions) != len(expected) {
		t.Fatalf("expected %d sells, got %d: %v", len(expected), len(trader.fractions), trader.fractions)
	}
	for i, f := range expected {
		if trader.fractions[i] != f {
			t.Errorf("sell %d: expected fraction %v, got %v", i, f, trader.fractions[i])
		}
	}

	if !p.Tier1Done || !p.Tier2Done || !p.FullExitDone {
		t.Errorf("expected all tiers done, got tier1=%v tier2=%v full=%v", p.Tier1Done, p.Tier2Done, p.FullExitDone)
	}
	if p.RemainingFraction != 0 {
		t.Errorf("expected remaining fraction 0, got %v", p.RemainingFraction)
	}
	if len(recorder.events) != 3 {
		t.Errorf("expected 3 trade events, got %d", len(recorder.events))
	}
}

func TestMonitor_TrailingStop(t *testing.T) {
	// 15% profit arms the trail without hitting tier 1; dropping back
	// under the trail distance closes the position.
	prices := &fakePrices{script: []observation{{price: 1.15}, {price: 1.05}}}
	trader := &fakeTrader{}
	m := newTestMonitor(prices, trader, &fakeRecorder{})
	p := testPosition(10)

	reason, err := m.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if reason != domain.ExitReasonTrailingStop {
		t.Errorf("expected %s, got %s", domain.ExitReasonTrailingStop, reason)
	}
	if len(trader.fractions) != 1 || trader.fractions[0] != 1 {
		t.Errorf("expected single full sell, got %v", trader.fractions)
	}
	if !p.TrailArmed {
		t.Error("expected trail to be armed")
	}
}

func TestMonitor_HardStopLoss(t *testing.T) {
	prices := &fakePrices{script: []observation{{price: 0.7}}}
	trader := &fakeTrader{}
	m := newTestMonitor(prices, trader, &fakeRecorder{})
	p := testPosition(10)

	reason, err := m.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if reason != domain.ExitReasonHardStop {
		t.Errorf("expected %s, got %s", domain.ExitReasonHardStop, reason)
	}
	if len(trader.fractions) != 1 || trader.fractions[0] != 1 {
		t.Errorf("expected single full sell, got %v", trader.fractions)
	}
}

func TestMonitor_BudgetForceClose(t *testing.T) {
	prices := &fakePrices{script: []observation{{price: 1.0}, {price: 1.0}, {price: 1.0}}}
	trader := &fakeTrader{}
	m := newTestMonitor(prices, trader, &fakeRecorder{})
	p := testPosition(3)

	reason, err := m.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if reason != domain.ExitReasonBudget {
		t.Errorf("expected %s, got %s", domain.ExitReasonBudget, reason)
	}
	if len(trader.fractions) != 1 || trader.fractions[0] != 1 {
		t.Errorf("expected single full sell, got %v", trader.fractions)
	}
	if p.PollCount != 3 {
		t.Errorf("expected 3 polls, got %d", p.PollCount)
	}
}

func TestMonitor_PriceErrorConsumesBudget(t *testing.T) {
	unavailable := errors.New("node down")
	prices := &fakePrices{script: []observation{{err: unavailable}, {err: unavailable}}}
	trader := &fakeTrader{}
	m := newTestMonitor(prices, trader, &fakeRecorder{})
	p := testPosition(2)

	reason, err := m.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if reason != domain.ExitReasonBudget {
		t.Errorf("expected %s, got %s", domain.ExitReasonBudget, reason)
	}
	// Two failed reads consumed the whole budget; only the force close
	// touched the trader.
	if trader.calls != 1 {
		t.Errorf("expected 1 trader call, got %d", trader.calls)
	}
}

func TestMonitor_SingleFullExitPerTick(t *testing.T) {
	// The second tick satisfies both the trailing stop and the hard stop;
	// only the first rule in order sells.
	prices := &fakePrices{script: []observation{{price: 1.15}, {price: 0.5}}}
	trader := &fakeTrader{}
	m := newTestMonitor(prices, trader, &fakeRecorder{})
	p := testPosition(10)

	reason, err := m.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if reason != domain.ExitReasonTrailingStop {
		t.Errorf("expected %s, got %s", domain.ExitReasonTrailingStop, reason)
	}
	if trader.calls != 1 {
		t.Errorf("expected 1 sell, got %d", trader.calls)
	}
}

func TestMonitor_NoPartialSellAfterFullExit(t *testing.T) {
	// With the trail distance above tier 1, the first tick arms the trail
	// and fills tier 2; the second tick triggers the trailing stop while
	// tier 1's window is satisfied. The unlatched tier must not sell
	// after the position has fully exited.
	cfg := testExitConfig()
	cfg.TrailDistancePct = 30
	prices := &fakePrices{script: []observation{{price: 1.45}, {price: 1.25}}}
	trader := &fakeTrader{}
	recorder := &fakeRecorder{}
	clock := NewManualClock(time.Unix(1700000000, 0))
	m := NewMonitor(prices, trader, recorder, clock, nil, cfg)
	p := testPosition(10)

	reason, err := m.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if reason != domain.ExitReasonTrailingStop {
		t.Errorf("expected %s, got %s", domain.ExitReasonTrailingStop, reason)
	}

	// Tier 2 partial on tick one, the full exit on tick two, nothing after.
	expected := []float64{0.25, 1}
	if len(trader.fractions) != len(expected) {
		t.Fatalf("expected fractions %v, got %v", expected, trader.fractions)
	}
	for i, f := range expected {
		if trader.fractions[i] != f {
			t.Errorf("sell %d: expected fraction %v, got %v", i, f, trader.fractions[i])
		}
	}
	if p.Tier1Done {
		t.Error("tier 1 must not latch after the full exit")
	}
	if len(recorder.events) != 2 {
		t.Errorf("expected 2 trade events, got %d", len(recorder.events))
	}
}

func TestMonitor_FailedPartialSellRearms(t *testing.T) {
	prices := &fakePrices{script: []observation{{price: 1.25}, {price: 1.25}}}
	trader := &fakeTrader{errs: []error{errors.New("relay timeout")}}
	m := newTestMonitor(prices, trader, &fakeRecorder{})
	p := testPosition(2)

	reason, err := m.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if reason != domain.ExitReasonBudget {
		t.Errorf("expected %s, got %s", domain.ExitReasonBudget, reason)
	}
	if !p.Tier1Done {
		t.Error("expected tier 1 to latch after the retry succeeded")
	}
	// First call failed, second sold the tier, third was the force close.
	if trader.calls != 3 {
		t.Errorf("expected 3 trader calls, got %d", trader.calls)
	}
	expected := []float64{0.25, 1}
	if len(trader.fractions) != len(expected) {
		t.Fatalf("expected fractions %v, got %v", expected, trader.fractions)
	}
}

func TestMonitor_ContextCancellation(t *testing.T) {
	prices := &fakePrices{script: []observation{{price: 1.0}}}
	trader := &fakeTrader{}
	m := newTestMonitor(prices, trader, &fakeRecorder{})
	p := testPosition(10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Run(ctx, p)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if trader.calls != 0 {
		t.Errorf("expected no sells after cancellation, got %d", trader.calls)
	}
}
