package domain

// TokenProgramKind identifies which token program owns a mint.
type TokenProgramKind string

const (
	// TokenProgramSPL is the standard SPL token program.
	TokenProgramSPL TokenProgramKind = "SPL_TOKEN"
	// TokenProgramToken2022 is the extended (fee-bearing) token program.
	TokenProgramToken2022 TokenProgramKind = "TOKEN_2022"
)

// PoolCandidate represents a newly created CPMM pool that may be sniped.
// Constructed once per detected pool-creation event and immutable after;
// consumed by the validator and the entry buy, never persisted past the
// start of a cycle.
type PoolCandidate struct {
	BaseMint  string // token being bought
	QuoteMint string // WSOL side
	Pool      string // pool state account
	AmmConfig string
	Creator   string
	LPMint    string

	// QuoteLiquidity is the quote-side liquidity added at pool creation,
	// in UI units of the quote token (SOL for WSOL pools).
	QuoteLiquidity float64

	// BaseLiquidity is the base-side amount added at creation, used by the
	// dev-wallet concentration rule as the reference supply.
	BaseLiquidity float64

	// TokenProgram is the program owning the base mint.
	TokenProgram TokenProgramKind

	// OpenTime is the pool's configured trading-open time (unix seconds).
	// Zero means trading is open immediately.
	OpenTime int64

	TxSignature  string // pool-creation transaction signature
	Slot         int64
	DiscoveredAt int64 // unix ms
}
