package cpmm

import (
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"
)

// decoder is a cursor over raw account data. Every read is bounds
// checked; the first failure sticks and subsequent reads return zero
// values, so callers check err once after declaring the full layout.
type decoder struct {
	data []byte
	off  int
	err  error
}

func newDecoder(data []byte) *decoder {
	return &decoder{data: data}
}

func (d *decoder) need(n int) bool {
	if d.err != nil {
		return false
	}
	if d.off+n > len(d.data) {
		d.err = fmt.Errorf("account data truncated: need %d bytes at offset %d, have %d", n, d.off, len(d.data))
		return false
	}
	return true
}

func (d *decoder) pubkey() string {
	if !d.need(32) {
		return ""
	}
	key := base58.Encode(d.data[d.off : d.off+32])
	d.off += 32
	return key
}

func (d *decoder) u8() uint8 {
	if !d.need(1) {
		return 0
	}
	v := d.data[d.off]
	d.off++
	return v
}

func (d *decoder) u16() uint16 {
	if !d.need(2) {
		return 0
	}
	v := binary.LittleEndian.Uint16(d.data[d.off:])
	d.off += 2
	return v
}

func (d *decoder) u32() uint32 {
	if !d.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(d.data[d.off:])
	d.off += 4
	return v
}

func (d *decoder) u64() uint64 {
	if !d.need(8) {
		return 0
	}
	v := binary.LittleEndian.Uint64(d.data[d.off:])
	d.off += 8
	return v
}

func (d *decoder) skip(n int) {
	if d.need(n) {
		d.off += n
	}
}

// PoolState is the CPMM pool account.
type PoolState struct {
	AmmConfig      string
	PoolCreator    string
	Token0Vault    string
	Token1Vault    string
	LPMint         string
	Token0Mint     string
	Token1Mint     string
	Token0Program  string
	Token1Program  string
	ObservationKey string

	AuthBump       uint8
	Status         uint8
	LPMintDecimals uint8
	Mint0Decimals  uint8
	Mint1Decimals  uint8

	LPSupply           uint64
	ProtocolFeesToken0 uint64
	ProtocolFeesToken1 uint64
	FundFeesToken0     uint64
	FundFeesToken1     uint64
	OpenTime           uint64
	RecentEpoch        uint64
}

// SwapsEnabled reports whether the swap status bit is clear.
func (p *PoolState) SwapsEnabled() bool { return p.Status&4 == 0 }

// DecodePoolState decodes a CPMM pool account.
func DecodePoolState(data []byte) (*PoolState, error) {
	d := newDecoder(data)
	d.skip(8) // anchor discriminator

	p := &PoolState{
		AmmConfig:      d.pubkey(),
		PoolCreator:    d.pubkey(),
		Token0Vault:    d.pubkey(),
		Token1Vault:    d.pubkey(),
		LPMint:         d.pubkey(),
		Token0Mint:     d.pubkey(),
		Token1Mint:     d.pubkey(),
		Token0Program:  d.pubkey(),
		Token1Program:  d.pubkey(),
		ObservationKey: d.pubkey(),
	}
	p.AuthBump = d.u8()
	p.Status = d.u8()
	p.LPMintDecimals = d.u8()
	p.Mint0Decimals = d.u8()
	p.Mint1Decimals = d.u8()
	p.LPSupply = d.u64()
	p.ProtocolFeesToken0 = d.u64()
	p.ProtocolFeesToken1 = d.u64()
	p.FundFeesToken0 = d.u64()
	p.FundFeesToken1 = d.u64()
	p.OpenTime = d.u64()
	p.RecentEpoch = d.u64()

	if d.err != nil {
		return nil, fmt.Errorf("decode pool state: %w", d.err)
	}
	return p, nil
}

// Mint is the token mint account shared by SPL Token and Token-2022.
type Mint struct {
	MintAuthority   string // empty when revoked
	Supply          uint64
	Decimals        uint8
	Initialized     bool
	FreezeAuthority string // empty when revoked
}

// AuthoritiesRevoked reports whether both mint and freeze authority are
// unset.
func (m *Mint) AuthoritiesRevoked() bool {
	return m.MintAuthority == "" && m.FreezeAuthority == ""
}

const mintBaseLen = 82

// DecodeMint decodes the 82-byte base mint layout. Token-2022 mints
// carry the same base layout followed by extension data.
func DecodeMint(data []byte) (*Mint, error) {
	d := newDecoder(data)

	m := &Mint{}
	mintAuthOpt := d.u32()
	mintAuth := d.pubkey()
	m.Supply = d.u64()
	m.Decimals = d.u8()
	m.Initialized = d.u8() == 1
	freezeAuthOpt := d.u32()
	freezeAuth := d.pubkey()

	if d.err != nil {
		return nil, fmt.Errorf("decode mint: %w", d.err)
	}
	if mintAuthOpt == 1 {
		m.MintAuthority = mintAuth
	}
	if freezeAuthOpt == 1 {
		m.FreezeAuthority = freezeAuth
	}
	return m, nil
}

// TransferFee is one epoch-scheduled transfer fee of a Token-2022
// TransferFeeConfig extension.
type TransferFee struct {
	Epoch       uint64
	MaximumFee  uint64
	BasisPoints uint16
}

// TransferFeeConfig is the Token-2022 transfer fee extension. The newer
// fee governs upcoming transfers.
type TransferFeeConfig struct {
	Older TransferFee
	Newer TransferFee
}

// SellTaxPct converts the effective fee to percent.
func (c *TransferFeeConfig) SellTaxPct() float64 {
	return float64(c.Newer.BasisPoints) / 100
}

// Token-2022 extension framing.
const (
	accountTypeOffset    = 165
	accountTypeMint      = 1
	extensionTransferFee = 1
)

// DecodeTransferFeeConfig walks the Token-2022 extension TLV of a mint
// account. The second return is false when the mint carries no transfer
// fee extension.
func DecodeTransferFeeConfig(data []byte) (*TransferFeeConfig, bool, error) {
	if len(data) <= accountTypeOffset {
		return nil, false, nil
	}
	if data[accountTypeOffset] != accountTypeMint {
		return nil, false, fmt.Errorf("account type %d is not a mint", data[accountTypeOffset])
	}

	d := newDecoder(data)
	d.skip(accountTypeOffset + 1)

	for d.err == nil && d.off+4 <= len(data) {
		extType := d.u16()
		extLen := int(d.u16())
		if !d.need(extLen) {
			break
		}

		if extType != extensionTransferFee {
			d.skip(extLen)
			continue
		}

		ext := newDecoder(data[d.off : d.off+extLen])
		ext.skip(32) // transfer fee config authority
		ext.skip(32) // withdraw withheld authority
		ext.u64()    // withheld amount

		cfg := &TransferFeeConfig{}
		cfg.Older.Epoch = ext.u64()
		cfg.Older.MaximumFee = ext.u64()
		cfg.Older.BasisPoints = ext.u16()
		cfg.Newer.Epoch = ext.u64()
		cfg.Newer.MaximumFee = ext.u64()
		cfg.Newer.BasisPoints = ext.u16()

		if ext.err != nil {
			return nil, false, fmt.Errorf("decode transfer fee config: %w", ext.err)
		}
		return cfg, true, nil
	}

	if d.err != nil {
		return nil, false, fmt.Errorf("walk mint extensions: %w", d.err)
	}
	return nil, false, nil
}
