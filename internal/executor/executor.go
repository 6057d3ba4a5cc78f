// Package executor assembles, signs and lands swap transactions. Buys
// ride a tip bundle through the relay; sells broadcast directly. Every
// transaction is simulated before it leaves the process.
package executor

import (
	"context"
	"fmt"
	"log"
	"math"
	"strconv"
	"time"

	"cpmm-sniper/internal/config"
	"cpmm-sniper/internal/cpmm"
	"cpmm-sniper/internal/domain"
	"cpmm-sniper/internal/relay"
	"cpmm-sniper/internal/solana"
)

// maxQuoteIn is the swap_base_output input ceiling. Slippage control
// comes from sizing against the freshly read entry price, not from this
// bound.
const maxQuoteIn = 1_000_000_000_000

// computeUnitLimit covers ATA creation plus the swap with headroom.
// Sells add a priority fee since they broadcast without a tip bundle.
const (
	computeUnitLimit     = 400_000
	priorityMicroLamport = 100_000
)

// Executor executes buys and sells for the trading keypair.
type Executor struct {
	reader      solana.Reader
	broadcaster solana.Broadcaster
	relay       *relay.Relay
	keypair     *solana.Keypair
	cfg         *config.Config

	confirmInterval time.Duration
	confirmTimeout  time.Duration
}

// New creates an executor.
func New(reader solana.Reader, broadcaster solana.Broadcaster, r *relay.Relay, keypair *solana.Keypair, cfg *config.Config) *Executor {
	return &Executor{
		reader:          reader,
		broadcaster:     broadcaster,
		relay:           r,
		keypair:         keypair,
		cfg:             cfg,
		confirmInterval: 500 * time.Millisecond,
		confirmTimeout:  45 * time.Second,
	}
}

// Buy wraps the configured WSOL budget and swaps it for exactly
// tokenAmount of the candidate's base token, submitted as a tip bundle.
func (e *Executor) Buy(ctx context.Context, c *domain.PoolCandidate, tokenAmount float64) (*domain.TradeResult, error) {
	owner := e.keypair.PublicKey()

	baseProgram, err := e.resolveTokenProgram(ctx, c.BaseMint)
	if err != nil {
		return nil, fmt.Errorf("resolve token program: %w", err)
	}
	decimals, err := e.mintDecimals(ctx, c.BaseMint)
	if err != nil {
		return nil, fmt.Errorf("read mint decimals: %w", err)
	}

	wsolATA, err := cpmm.AssociatedTokenAddress(owner, cpmm.WSOLMint, cpmm.TokenProgramID)
	if err != nil {
		return nil, fmt.Errorf("derive wsol ata: %w", err)
	}
	tokenATA, err := cpmm.AssociatedTokenAddress(owner, c.BaseMint, baseProgram)
	if err != nil {
		return nil, fmt.Errorf("derive token ata: %w", err)
	}

	swapAccounts, err := e.swapAccounts(c.Pool, c.AmmConfig, cpmm.WSOLMint, wsolATA, cpmm.TokenProgramID, c.BaseMint, tokenATA, baseProgram)
	if err != nil {
		return nil, err
	}

	tokenOutRaw := uiToRaw(tokenAmount, decimals)
	if tokenOutRaw == 0 {
		return nil, fmt.Errorf("buy amount %f rounds to zero at %d decimals", tokenAmount, decimals)
	}
	swapIx, err := cpmm.SwapBaseOutput(swapAccounts, maxQuoteIn, tokenOutRaw)
	if err != nil {
		return nil, fmt.Errorf("build swap: %w", err)
	}

	wrapLamports := uint64(math.Floor(e.cfg.WSOLBudget * cpmm.LamportsPerSOL))
	instructions := []solana.Instruction{
		cpmm.SetComputeUnitLimit(computeUnitLimit),
		cpmm.CreateATAIdempotent(owner, wsolATA, owner, cpmm.WSOLMint, cpmm.TokenProgramID),
		cpmm.SystemTransfer(owner, wsolATA, wrapLamports),
		cpmm.SyncNative(wsolATA),
		cpmm.CreateATAIdempotent(owner, tokenATA, owner, c.BaseMint, baseProgram),
		swapIx,
	}

	blockhash, err := e.broadcaster.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("get blockhash: %w", err)
	}

	buyTx := solana.NewTransaction(owner, blockhash.Blockhash, instructions...)
	if err := buyTx.Sign(e.keypair); err != nil {
		return nil, fmt.Errorf("sign buy: %w", err)
	}
	if err := e.simulate(ctx, buyTx); err != nil {
		return nil, fmt.Errorf("buy simulation: %w", err)
	}

	tipLamports := uint64(math.Floor(e.cfg.TipSOL * cpmm.LamportsPerSOL))
	tipTx := solana.NewTransaction(owner, blockhash.Blockhash,
		cpmm.SystemTransfer(owner, relay.TipAccount(), tipLamports))
	if err := tipTx.Sign(e.keypair); err != nil {
		return nil, fmt.Errorf("sign tip: %w", err)
	}
	if err := e.simulate(ctx, tipTx); err != nil {
		return nil, fmt.Errorf("tip simulation: %w", err)
	}

	if err := e.relay.SendBundle(ctx, []*solana.Transaction{tipTx, buyTx}); err != nil {
		return nil, fmt.Errorf("send bundle: %w", err)
	}

	signature, err := buyTx.Signature()
	if err != nil {
		return nil, err
	}
	if err := e.awaitConfirmation(ctx, signature); err != nil {
		return nil, fmt.Errorf("confirm buy %s: %w", signature, err)
	}

	log.Printf("[executor] buy confirmed sig=%s pool=%s amount=%f", signature, c.Pool, tokenAmount)
	return &domain.TradeResult{Signature: signature, Amount: tokenAmount, Pool: c.Pool}, nil
}

// Sell swaps fraction of the live token balance back to WSOL and
// unwraps the proceeds. A full-size sell also reclaims the token
// account rent.
func (e *Executor) Sell(ctx context.Context, p *domain.Position, fraction float64) (*domain.TradeResult, error) {
	if fraction <= 0 || fraction > 1 {
		return nil, fmt.Errorf("sell fraction %f out of range", fraction)
	}
	owner := e.keypair.PublicKey()

	baseProgram, err := e.resolveTokenProgram(ctx, p.BaseMint)
	if err != nil {
		return nil, fmt.Errorf("resolve token program: %w", err)
	}

	tokenATA, err := cpmm.AssociatedTokenAddress(owner, p.BaseMint, baseProgram)
	if err != nil {
		return nil, fmt.Errorf("derive token ata: %w", err)
	}
	wsolATA, err := cpmm.AssociatedTokenAddress(owner, cpmm.WSOLMint, cpmm.TokenProgramID)
	if err != nil {
		return nil, fmt.Errorf("derive wsol ata: %w", err)
	}

	balance, err := e.reader.GetTokenAccountBalance(ctx, tokenATA)
	if err != nil {
		return nil, fmt.Errorf("read token balance: %w", err)
	}
	rawBalance, err := strconv.ParseUint(balance.Amount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse token balance %q: %w", balance.Amount, err)
	}

	sellRaw := rawBalance
	if fraction < 1 {
		sellRaw = uint64(math.Floor(float64(rawBalance) * fraction))
	}
	if sellRaw == 0 {
		return nil, fmt.Errorf("nothing to sell: balance=%d fraction=%f", rawBalance, fraction)
	}

	swapAccounts, err := e.swapAccounts(p.Pool, p.AmmConfig, p.BaseMint, tokenATA, baseProgram, cpmm.WSOLMint, wsolATA, cpmm.TokenProgramID)
	if err != nil {
		return nil, err
	}
	swapIx, err := cpmm.SwapBaseInput(swapAccounts, sellRaw, 0)
	if err != nil {
		return nil, fmt.Errorf("build swap: %w", err)
	}

	instructions := []solana.Instruction{
		cpmm.SetComputeUnitLimit(computeUnitLimit),
		cpmm.SetComputeUnitPrice(priorityMicroLamport),
		cpmm.CreateATAIdempotent(owner, wsolATA, owner, cpmm.WSOLMint, cpmm.TokenProgramID),
		swapIx,
		cpmm.CloseTokenAccount(wsolATA, owner, owner, cpmm.TokenProgramID),
	}
	if fraction == 1 {
		instructions = append(instructions, cpmm.CloseTokenAccount(tokenATA, owner, owner, baseProgram))
	}

	blockhash, err := e.broadcaster.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("get blockhash: %w", err)
	}

	tx := solana.NewTransaction(owner, blockhash.Blockhash, instructions...)
	if err := tx.Sign(e.keypair); err != nil {
		return nil, fmt.Errorf("sign sell: %w", err)
	}
	if err := e.simulate(ctx, tx); err != nil {
		return nil, fmt.Errorf("sell simulation: %w", err)
	}

	signature, err := e.broadcaster.SendTransaction(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("send sell: %w", err)
	}
	if err := e.awaitConfirmation(ctx, signature); err != nil {
		return nil, fmt.Errorf("confirm sell %s: %w", signature, err)
	}

	soldUI := float64(sellRaw) / math.Pow(10, float64(balance.Decimals))
	log.Printf("[executor] sell confirmed sig=%s pool=%s fraction=%.2f amount=%f", signature, p.Pool, fraction, soldUI)
	return &domain.TradeResult{Signature: signature, Amount: soldUI, Pool: p.Pool}, nil
}

// TokenBalance returns the keypair's live balance of a mint in UI units.
func (e *Executor) TokenBalance(ctx context.Context, mint string) (float64, error) {
	baseProgram, err := e.resolveTokenProgram(ctx, mint)
	if err != nil {
		return 0, fmt.Errorf("resolve token program: %w", err)
	}
	ata, err := cpmm.AssociatedTokenAddress(e.keypair.PublicKey(), mint, baseProgram)
	if err != nil {
		return 0, fmt.Errorf("derive token ata: %w", err)
	}
	balance, err := e.reader.GetTokenAccountBalance(ctx, ata)
	if err != nil {
		return 0, fmt.Errorf("read token balance: %w", err)
	}
	return balance.UIAmount, nil
}

func (e *Executor) swapAccounts(pool, ammConfig, inputMint, inputATA, inputProgram, outputMint, outputATA, outputProgram string) (cpmm.SwapAccounts, error) {
	inputVault, err := cpmm.VaultAddress(pool, inputMint)
	if err != nil {
		return cpmm.SwapAccounts{}, fmt.Errorf("derive input vault: %w", err)
	}
	outputVault, err := cpmm.VaultAddress(pool, outputMint)
	if err != nil {
		return cpmm.SwapAccounts{}, fmt.Errorf("derive output vault: %w", err)
	}
	observation, err := cpmm.ObservationAddress(pool)
	if err != nil {
		return cpmm.SwapAccounts{}, fmt.Errorf("derive observation: %w", err)
	}

	return cpmm.SwapAccounts{
		Payer:              e.keypair.PublicKey(),
		AmmConfig:          ammConfig,
		Pool:               pool,
		InputTokenAccount:  inputATA,
		OutputTokenAccount: outputATA,
		InputVault:         inputVault,
		OutputVault:        outputVault,
		InputTokenProgram:  inputProgram,
		OutputTokenProgram: outputProgram,
		InputMint:          inputMint,
		OutputMint:         outputMint,
		Observation:        observation,
	}, nil
}

// resolveTokenProgram reads the mint account owner to pick between the
// classic and 2022 token programs.
func (e *Executor) resolveTokenProgram(ctx context.Context, mint string) (string, error) {
	info, err := e.reader.GetAccountInfo(ctx, mint)
	if err != nil {
		return "", err
	}
	if info == nil {
		return "", fmt.Errorf("mint %s not found", mint)
	}
	switch info.Owner {
	case cpmm.TokenProgramID, cpmm.Token2022ProgramID:
		return info.Owner, nil
	default:
		return "", fmt.Errorf("mint %s owned by unexpected program %s", mint, info.Owner)
	}
}

func (e *Executor) mintDecimals(ctx context.Context, mint string) (uint8, error) {
	info, err := e.reader.GetAccountInfo(ctx, mint)
	if err != nil {
		return 0, err
	}
	if info == nil {
		return 0, fmt.Errorf("mint %s not found", mint)
	}
	decoded, err := cpmm.DecodeMint(info.Data)
	if err != nil {
		return 0, err
	}
	return decoded.Decimals, nil
}

// simulate refuses to broadcast a transaction the chain would reject.
func (e *Executor) simulate(ctx context.Context, tx *solana.Transaction) error {
	result, err := e.broadcaster.SimulateTransaction(ctx, tx)
	if err != nil {
		return err
	}
	if result.Err != nil {
		return fmt.Errorf("simulation failed: %v (logs: %v)", result.Err, result.Logs)
	}
	return nil
}

// awaitConfirmation polls signature status until the transaction is
// confirmed or the timeout passes.
func (e *Executor) awaitConfirmation(ctx context.Context, signature string) error {
	deadline := time.Now().Add(e.confirmTimeout)
	for {
		statuses, err := e.broadcaster.GetSignatureStatuses(ctx, []string{signature})
		if err == nil && len(statuses) > 0 && statuses[0] != nil {
			status := statuses[0]
			if status.Err != nil {
				return fmt.Errorf("transaction failed on chain: %v", status.Err)
			}
			if status.ConfirmationStatus == "confirmed" || status.ConfirmationStatus == "finalized" {
				return nil
			}
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("confirmation timeout after %v", e.confirmTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.confirmInterval):
		}
	}
}

func uiToRaw(amount float64, decimals uint8) uint64 {
	return uint64(math.Floor(amount * math.Pow(10, float64(decimals))))
}
