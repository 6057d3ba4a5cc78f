// Package cpmm implements the Raydium CPMM venue codec: account layout
// decoding, program derived addresses and instruction builders.
package cpmm

// Well-known program and mint addresses.
const (
	// ProgramID is the Raydium CPMM swap program.
	ProgramID = "CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C"

	TokenProgramID      = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	Token2022ProgramID  = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"
	AssociatedTokenID   = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
	SystemProgramID     = "11111111111111111111111111111111"
	ComputeBudgetID     = "ComputeBudget111111111111111111111111111111"
	SysvarRentID        = "SysvarRent111111111111111111111111111111111"

	// WSOLMint is the native SOL wrapper mint.
	WSOLMint = "So11111111111111111111111111111111111111112"

	// MigrationMarkerMint marks launchpad migration pools. Pools pairing
	// it are not organic creations and are skipped at discovery.
	MigrationMarkerMint = "pSoL47GE52V2bgUUyQvs9LSdWQZsokarp2yNsWQaLYy"
)

// PDA seeds of the CPMM program.
const (
	poolAuthSeed   = "vault_and_lp_mint_auth_seed"
	poolVaultSeed  = "pool_vault"
	observationSeed = "observation"
)

// LamportsPerSOL is the lamport denomination of one SOL.
const LamportsPerSOL = 1_000_000_000
