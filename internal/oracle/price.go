// Package oracle derives spot prices from CPMM pool vault reserves.
// Every call performs fresh chain reads; nothing is cached, so two
// consecutive quotes can differ.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"cpmm-sniper/internal/cpmm"
	"cpmm-sniper/internal/solana"
)

// ErrUnavailable is returned when a quote cannot be produced this
// instant. Callers treat it as transient, not fatal.
var ErrUnavailable = errors.New("price unavailable")

// Quote is a two-sided pool price snapshot.
type Quote struct {
	Token0Mint string
	Token1Mint string

	// Price is token1 per token0; PriceInverted the reverse.
	Price         float64
	PriceInverted float64

	Status uint8
}

// PoolPriceSource computes vault-ratio prices via the chain reader.
type PoolPriceSource struct {
	reader solana.Reader
}

// NewPoolPriceSource creates a price source over the given reader.
func NewPoolPriceSource(reader solana.Reader) *PoolPriceSource {
	return &PoolPriceSource{reader: reader}
}

// PoolPrice reads the pool state and both vault balances and returns
// the decimal-adjusted reserve ratio in both orientations.
func (o *PoolPriceSource) PoolPrice(ctx context.Context, pool string) (*Quote, error) {
	info, err := o.reader.GetAccountInfo(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("%w: read pool state: %v", ErrUnavailable, err)
	}
	if info == nil {
		return nil, fmt.Errorf("%w: pool account %s not found", ErrUnavailable, pool)
	}

	state, err := cpmm.DecodePoolState(info.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	reserve0, err := o.vaultReserve(ctx, state.Token0Vault)
	if err != nil {
		return nil, err
	}
	reserve1, err := o.vaultReserve(ctx, state.Token1Vault)
	if err != nil {
		return nil, err
	}

	if reserve0 <= 0 || reserve1 <= 0 {
		return nil, fmt.Errorf("%w: empty reserves %f/%f", ErrUnavailable, reserve0, reserve1)
	}

	return &Quote{
		Token0Mint:    state.Token0Mint,
		Token1Mint:    state.Token1Mint,
		Price:         reserve1 / reserve0,
		PriceInverted: reserve0 / reserve1,
		Status:        state.Status,
	}, nil
}

// PriceInQuote returns how much quote token one base token trades for.
func (o *PoolPriceSource) PriceInQuote(ctx context.Context, pool, baseMint string) (float64, error) {
	quote, err := o.PoolPrice(ctx, pool)
	if err != nil {
		return 0, err
	}

	switch baseMint {
	case quote.Token0Mint:
		return quote.Price, nil
	case quote.Token1Mint:
		return quote.PriceInverted, nil
	default:
		return 0, fmt.Errorf("%w: mint %s is not in pool %s", ErrUnavailable, baseMint, pool)
	}
}

func (o *PoolPriceSource) vaultReserve(ctx context.Context, vault string) (float64, error) {
	balance, err := o.reader.GetTokenAccountBalance(ctx, vault)
	if err != nil {
		return 0, fmt.Errorf("%w: read vault %s: %v", ErrUnavailable, vault, err)
	}
	return balance.UIAmount, nil
}
