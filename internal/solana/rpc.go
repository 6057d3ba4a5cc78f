package solana

import "context"

// Reader is the read-only chain state interface consumed by the
// validator, the price oracle and the executor. Every implementation
// must surface transient failures as errors; callers treat them as
// "unavailable", never as fatal.
type Reader interface {
	// GetAccountInfo retrieves raw account data. Returns (nil, nil) when
	// the account does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetTokenAccountBalance retrieves a token account balance.
	GetTokenAccountBalance(ctx context.Context, account string) (*TokenAmount, error)
}

// Broadcaster is the transaction submission interface consumed by the
// executor and the bundle relay.
type Broadcaster interface {
	// GetLatestBlockhash retrieves a recent blockhash for tx assembly.
	GetLatestBlockhash(ctx context.Context) (*Blockhash, error)

	// SimulateTransaction simulates a signed transaction without
	// broadcasting it.
	SimulateTransaction(ctx context.Context, tx *Transaction) (*SimulationResult, error)

	// SendTransaction broadcasts a signed transaction and returns its
	// signature.
	SendTransaction(ctx context.Context, tx *Transaction) (string, error)

	// GetSignatureStatuses retrieves confirmation status for signatures.
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error)
}

// TransactionFetcher retrieves parsed transactions, used by discovery to
// extract pool-creation accounts.
type TransactionFetcher interface {
	GetParsedTransaction(ctx context.Context, signature string) (*ParsedTransaction, error)
}
