package domain

// Rejection reason codes reported by the safety validator.
const (
	RejectReasonLowLiquidity  = "LOW_LIQUIDITY"
	RejectReasonSellTax       = "SELL_TAX_TOO_HIGH"
	RejectReasonAuthority     = "AUTHORITY_NOT_REVOKED"
	RejectReasonDevWallet     = "DEV_WALLET_CONCENTRATION"
	RejectReasonMigrationPair = "MIGRATION_MARKER_PAIR"
)

// SafetyVerdict is the outcome of pre-trade validation.
// Accept is true iff every enabled rule passed; a rule whose required
// chain data could not be read counts as failed, never as an error.
type SafetyVerdict struct {
	LiquidityOK bool
	SellTaxOK   bool
	AuthorityOK bool
	DevWalletOK bool

	Accept bool

	// Reasons lists the reason codes of the rules that failed,
	// in evaluation order.
	Reasons []string
}
