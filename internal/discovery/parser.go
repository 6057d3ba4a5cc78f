// Package discovery watches the CPMM program log stream for pool
// creations and turns them into pool candidates.
package discovery

import (
	"errors"
	"fmt"
	"strings"

	"cpmm-sniper/internal/cpmm"
	"cpmm-sniper/internal/domain"
	"cpmm-sniper/internal/solana"
)

// ErrMigrationMarker is returned when the pool pairs the launchpad
// migration marker mint on either side.
var ErrMigrationMarker = errors.New("pool pairs the migration marker mint")

// ErrNoPoolInstruction is returned when the transaction carries no CPMM
// initialize instruction with the expected account shape.
var ErrNoPoolInstruction = errors.New("no pool initialize instruction found")

// Initialize instruction account positions.
const (
	ixAccountCreator   = 0
	ixAccountAmmConfig = 1
	ixAccountPool      = 3
	ixAccountQuote     = 4
	ixAccountBase      = 5
	ixAccountLPMint    = 6
)

// ExtractCandidate builds a PoolCandidate from a parsed pool-creation
// transaction. The initialize instruction may sit at the top level or
// inside an inner instruction group (launchpad migrations CPI into the
// pool program). The candidate comes out quote-normalized: QuoteMint is
// always WSOL.
func ExtractCandidate(tx *solana.ParsedTransaction, signature string) (*domain.PoolCandidate, error) {
	c := &domain.PoolCandidate{
		TxSignature: signature,
		Slot:        tx.Slot,
	}

	found := false
	for _, ix := range allInstructions(tx) {
		if ix.ProgramID != cpmm.ProgramID || len(ix.Accounts) <= ixAccountLPMint {
			continue
		}

		c.Creator = ix.Accounts[ixAccountCreator]
		c.AmmConfig = ix.Accounts[ixAccountAmmConfig]
		c.Pool = ix.Accounts[ixAccountPool]
		c.QuoteMint = ix.Accounts[ixAccountQuote]
		c.BaseMint = ix.Accounts[ixAccountBase]
		c.LPMint = ix.Accounts[ixAccountLPMint]
		found = true
	}
	if !found {
		return nil, ErrNoPoolInstruction
	}

	if c.BaseMint == cpmm.MigrationMarkerMint || c.QuoteMint == cpmm.MigrationMarkerMint {
		return nil, ErrMigrationMarker
	}

	// Normalize orientation: the tracked token is the base, WSOL the
	// quote, regardless of vault order in the pool.
	if c.BaseMint == cpmm.WSOLMint {
		c.BaseMint, c.QuoteMint = c.QuoteMint, cpmm.WSOLMint
	}
	if c.QuoteMint != cpmm.WSOLMint {
		return nil, fmt.Errorf("pool %s has no WSOL side (mints %s/%s)", c.Pool, c.BaseMint, c.QuoteMint)
	}
	if c.BaseMint == c.QuoteMint {
		return nil, fmt.Errorf("pool %s pairs a mint with itself", c.Pool)
	}

	// Initial deposits arrive as transferChecked inner instructions, one
	// per side.
	for _, group := range tx.Inner {
		for _, ix := range group.Instructions {
			if ix.Parsed == nil || ix.Parsed.Type != "transferChecked" || ix.Parsed.Info.TokenAmount == nil {
				continue
			}
			switch ix.Parsed.Info.Mint {
			case c.BaseMint:
				c.BaseLiquidity = ix.Parsed.Info.TokenAmount.UIAmount
			case c.QuoteMint:
				c.QuoteLiquidity = ix.Parsed.Info.TokenAmount.UIAmount
			}
		}
	}

	return c, nil
}

// allInstructions yields top-level then inner instructions.
func allInstructions(tx *solana.ParsedTransaction) []solana.ParsedInstruction {
	out := make([]solana.ParsedInstruction, 0, len(tx.Instructions))
	out = append(out, tx.Instructions...)
	for _, group := range tx.Inner {
		out = append(out, group.Instructions...)
	}
	return out
}

// isInitializeLog reports whether a log line announces a pool
// initialize instruction.
func isInitializeLog(line string) bool {
	return strings.Contains(line, "Instruction: Initialize")
}
