// Package safety evaluates a discovered pool candidate against the
// entry policy. Every rule is evaluated so the verdict reports the full
// picture; the candidate is accepted only when all enabled rules pass.
package safety

import (
	"context"
	"fmt"
	"log"

	"cpmm-sniper/internal/config"
	"cpmm-sniper/internal/cpmm"
	"cpmm-sniper/internal/domain"
	"cpmm-sniper/internal/solana"
)

// Validator applies the safety policy to pool candidates. Chain lookups
// that fail are treated as rule failures, never as passes.
type Validator struct {
	reader solana.Reader
	cfg    *config.Config
}

// NewValidator creates a validator bound to the given policy.
func NewValidator(reader solana.Reader, cfg *config.Config) *Validator {
	return &Validator{reader: reader, cfg: cfg}
}

// Validate runs all rules against the candidate.
func (v *Validator) Validate(ctx context.Context, c *domain.PoolCandidate) *domain.SafetyVerdict {
	verdict := &domain.SafetyVerdict{}

	verdict.LiquidityOK = c.QuoteLiquidity >= v.cfg.MinLiquiditySOL
	if !verdict.LiquidityOK {
		verdict.Reasons = append(verdict.Reasons, domain.RejectReasonLowLiquidity)
		log.Printf("[safety] %s: liquidity %.4f below floor %.4f", c.BaseMint, c.QuoteLiquidity, v.cfg.MinLiquiditySOL)
	}

	mint, err := v.fetchMint(ctx, c.BaseMint)
	if err != nil {
		log.Printf("[safety] %s: mint lookup failed: %v", c.BaseMint, err)
	}

	verdict.SellTaxOK = v.checkSellTax(ctx, c, mint)
	if !verdict.SellTaxOK {
		verdict.Reasons = append(verdict.Reasons, domain.RejectReasonSellTax)
	}

	verdict.AuthorityOK = v.checkAuthority(mint.decoded)
	if !verdict.AuthorityOK {
		verdict.Reasons = append(verdict.Reasons, domain.RejectReasonAuthority)
	}

	verdict.DevWalletOK = true
	if v.cfg.DevWalletRuleEnabled {
		verdict.DevWalletOK = v.checkDevWallet(ctx, c, mint.decoded)
		if !verdict.DevWalletOK {
			verdict.Reasons = append(verdict.Reasons, domain.RejectReasonDevWallet)
		}
	}

	verdict.Accept = verdict.LiquidityOK && verdict.SellTaxOK && verdict.AuthorityOK && verdict.DevWalletOK
	return verdict
}

// mintAccount bundles the raw account with its decoded base layout. A
// nil decoded mint means the lookup failed and dependent rules fail.
type mintAccount struct {
	raw     *solana.AccountInfo
	decoded *cpmm.Mint
}

func (v *Validator) fetchMint(ctx context.Context, mint string) (mintAccount, error) {
	info, err := v.reader.GetAccountInfo(ctx, mint)
	if err != nil {
		return mintAccount{}, fmt.Errorf("get mint account: %w", err)
	}
	if info == nil {
		return mintAccount{}, fmt.Errorf("mint account %s not found", mint)
	}

	decoded, err := cpmm.DecodeMint(info.Data)
	if err != nil {
		return mintAccount{raw: info}, err
	}
	return mintAccount{raw: info, decoded: decoded}, nil
}

// checkSellTax enforces the transfer-fee ceiling. Only Token-2022 mints
// can carry a transfer fee; classic SPL mints pass the rule outright.
// A fee of exactly the ceiling passes.
func (v *Validator) checkSellTax(_ context.Context, c *domain.PoolCandidate, mint mintAccount) bool {
	if c.TokenProgram != domain.TokenProgramToken2022 {
		return true
	}
	if mint.raw == nil {
		return false
	}

	feeCfg, ok, err := cpmm.DecodeTransferFeeConfig(mint.raw.Data)
	if err != nil {
		log.Printf("[safety] %s: transfer fee decode failed: %v", c.BaseMint, err)
		return false
	}
	if !ok {
		return true
	}

	tax := feeCfg.SellTaxPct()
	if tax > v.cfg.MaxSellTaxPct {
		log.Printf("[safety] %s: sell tax %.2f%% above ceiling %.2f%%", c.BaseMint, tax, v.cfg.MaxSellTaxPct)
		return false
	}
	return true
}

// checkAuthority applies the revocation rule symmetrically: with
// RequireRevokedAuthority set, both authorities must be unset; with it
// cleared, at least one must remain.
func (v *Validator) checkAuthority(mint *cpmm.Mint) bool {
	if mint == nil {
		return false
	}
	if v.cfg.RequireRevokedAuthority {
		return mint.AuthoritiesRevoked()
	}
	return !mint.AuthoritiesRevoked()
}

// checkDevWallet bounds the creator's share of the initial base
// deposit. Exactly the ceiling fails.
func (v *Validator) checkDevWallet(ctx context.Context, c *domain.PoolCandidate, mint *cpmm.Mint) bool {
	if mint == nil {
		return false
	}
	if c.BaseLiquidity <= 0 {
		return false
	}

	tokenProgram := cpmm.TokenProgramID
	if c.TokenProgram == domain.TokenProgramToken2022 {
		tokenProgram = cpmm.Token2022ProgramID
	}

	ata, err := cpmm.AssociatedTokenAddress(c.Creator, c.BaseMint, tokenProgram)
	if err != nil {
		log.Printf("[safety] %s: creator ata derivation failed: %v", c.BaseMint, err)
		return false
	}

	balance, err := v.reader.GetTokenAccountBalance(ctx, ata)
	if err != nil {
		log.Printf("[safety] %s: creator balance lookup failed: %v", c.BaseMint, err)
		return false
	}

	percent := balance.UIAmount / c.BaseLiquidity * 100
	if percent >= v.cfg.MaxDevWalletSupplyPct {
		log.Printf("[safety] %s: creator holds %.2f%% of the deposit, ceiling %.2f%%", c.BaseMint, percent, v.cfg.MaxDevWalletSupplyPct)
		return false
	}
	return true
}
