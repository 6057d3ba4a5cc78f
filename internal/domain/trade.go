package domain

// Exit reason codes recorded when the state machine sells.
const (
	ExitReasonTier1        = "TAKE_PROFIT_1"
	ExitReasonTier2        = "TAKE_PROFIT_2"
	ExitReasonTier3        = "TAKE_PROFIT_3"
	ExitReasonTrailingStop = "TRAILING_STOP"
	ExitReasonHardStop     = "HARD_STOP_LOSS"
	ExitReasonBudget       = "POLL_BUDGET_EXHAUSTED"
)

// Cycle terminal status codes reported by the sniper pipeline.
const (
	CycleStatusRejected    = "REJECTED"
	CycleStatusEntryFailed = "ENTRY_FAILED"
	CycleStatusExited      = "EXITED"
	CycleStatusForceClosed = "FORCE_CLOSED"
	CycleStatusBusy        = "GATE_BUSY"
)

// TradeSide distinguishes entry buys from exit sells.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

// TradeResult is a confirmed swap.
type TradeResult struct {
	Signature string
	Amount    float64 // echoed request amount, UI units
	Pool      string
}

// TradeEvent is the record written to the trade-event sink at each
// decision point: entry confirmed, each exit tier, forced close.
type TradeEvent struct {
	Pool        string
	Mint        string
	Side        TradeSide
	Reason      string // exit reason code, empty for entry
	Amount      float64
	Price       float64
	ProfitPct   float64
	Signature   string
	TimestampMs int64
}
