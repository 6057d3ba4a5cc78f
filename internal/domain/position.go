package domain

// Position is an open trade being managed by the exit state machine.
// It is mutated once per poll tick and becomes terminal when FullExitDone
// is set; after that no further exits may be issued.
type Position struct {
	Pool      string
	BaseMint  string
	QuoteMint string
	AmmConfig string

	// EntryPrice is the quote-per-base price observed at entry. All exit
	// comparisons use the same orientation.
	EntryPrice float64

	// EntryAmount is the base-token amount bought at entry (UI units).
	EntryAmount float64

	// RemainingFraction starts at 1.0 and is monotonically non-increasing
	// as partial exits fill; full exit drives it to 0.
	RemainingFraction float64

	Tier1Done    bool
	Tier2Done    bool
	FullExitDone bool
	TrailArmed   bool

	// ExitReason is the code of the full exit, set with FullExitDone.
	ExitReason string

	PollCount  int
	PollBudget int

	EnteredAt int64 // unix ms
}

// Terminal reports whether the position has fully exited.
func (p *Position) Terminal() bool {
	return p.FullExitDone
}
