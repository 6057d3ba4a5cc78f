package safety

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/mr-tron/base58"

	"cpmm-sniper/internal/config"
	"cpmm-sniper/internal/cpmm"
	"cpmm-sniper/internal/domain"
	"cpmm-sniper/internal/solana"
)

type stubReader struct {
	accounts map[string]*solana.AccountInfo
	balances map[string]*solana.TokenAmount
}

func (s *stubReader) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	return s.accounts[pubkey], nil
}

func (s *stubReader) GetTokenAccountBalance(_ context.Context, account string) (*solana.TokenAmount, error) {
	if b, ok := s.balances[account]; ok {
		return b, nil
	}
	return nil, errors.New("account not found")
}

func policyConfig() *config.Config {
	return &config.Config{
		MinLiquiditySOL:         1,
		MaxSellTaxPct:           10,
		MaxDevWalletSupplyPct:   5,
		RequireRevokedAuthority: true,
	}
}

func testAddr(fill byte) string {
	var raw [32]byte
	for i := range raw {
		raw[i] = fill
	}
	return base58.Encode(raw[:])
}

// mintData encodes the 82-byte base mint layout.
func mintData(mintAuthSet, freezeAuthSet bool) []byte {
	var buf bytes.Buffer
	opt := func(set bool) {
		if set {
			binary.Write(&buf, binary.LittleEndian, uint32(1))
		} else {
			binary.Write(&buf, binary.LittleEndian, uint32(0))
		}
	}

	opt(mintAuthSet)
	buf.Write(make([]byte, 32))
	binary.Write(&buf, binary.LittleEndian, uint64(1_000_000_000))
	buf.WriteByte(6)
	buf.WriteByte(1)
	opt(freezeAuthSet)
	buf.Write(make([]byte, 32))
	return buf.Bytes()
}

// mint2022Data appends a transfer fee extension with the given fee.
func mint2022Data(basisPoints uint16) []byte {
	data := mintData(false, false)
	data = append(data, make([]byte, 165-len(data))...)
	data = append(data, 1) // mint account type

	var ext bytes.Buffer
	ext.Write(make([]byte, 72)) // authorities + withheld amount
	ext.Write(make([]byte, 18)) // older fee
	binary.Write(&ext, binary.LittleEndian, uint64(1))
	binary.Write(&ext, binary.LittleEndian, uint64(0))
	binary.Write(&ext, binary.LittleEndian, basisPoints)

	var tlv bytes.Buffer
	binary.Write(&tlv, binary.LittleEndian, uint16(1)) // transfer fee extension
	binary.Write(&tlv, binary.LittleEndian, uint16(ext.Len()))
	tlv.Write(ext.Bytes())
	return append(data, tlv.Bytes()...)
}

func splCandidate() *domain.PoolCandidate {
	return &domain.PoolCandidate{
		BaseMint:       testAddr(1),
		QuoteMint:      cpmm.WSOLMint,
		Pool:           testAddr(2),
		Creator:        testAddr(3),
		QuoteLiquidity: 5,
		BaseLiquidity:  1000,
		TokenProgram:   domain.TokenProgramSPL,
	}
}

func hasReason(verdict *domain.SafetyVerdict, reason string) bool {
	for _, r := range verdict.Reasons {
		if r == reason {
			return true
		}
	}
	return false
}

func TestValidate_Accept(t *testing.T) {
	c := splCandidate()
	reader := &stubReader{accounts: map[string]*solana.AccountInfo{
		c.BaseMint: {Owner: cpmm.TokenProgramID, Data: mintData(false, false)},
	}}

	verdict := NewValidator(reader, policyConfig()).Validate(context.Background(), c)
	if !verdict.Accept {
		t.Fatalf("expected accept, got reasons %v", verdict.Reasons)
	}
	if len(verdict.Reasons) != 0 {
		t.Errorf("expected no reasons, got %v", verdict.Reasons)
	}
}

func TestValidate_LowLiquidity(t *testing.T) {
	c := splCandidate()
	c.QuoteLiquidity = 0.5
	reader := &stubReader{accounts: map[string]*solana.AccountInfo{
		c.BaseMint: {Owner: cpmm.TokenProgramID, Data: mintData(false, false)},
	}}

	verdict := NewValidator(reader, policyConfig()).Validate(context.Background(), c)
	if verdict.Accept {
		t.Fatal("expected rejection")
	}
	if !hasReason(verdict, domain.RejectReasonLowLiquidity) {
		t.Errorf("expected %s, got %v", domain.RejectReasonLowLiquidity, verdict.Reasons)
	}
	// The remaining rules still ran and passed.
	if !verdict.AuthorityOK || !verdict.SellTaxOK {
		t.Error("expected other rules to pass independently")
	}
}

func TestValidate_AuthorityNotRevoked(t *testing.T) {
	c := splCandidate()
	reader := &stubReader{accounts: map[string]*solana.AccountInfo{
		c.BaseMint: {Owner: cpmm.TokenProgramID, Data: mintData(true, false)},
	}}

	verdict := NewValidator(reader, policyConfig()).Validate(context.Background(), c)
	if verdict.Accept || !hasReason(verdict, domain.RejectReasonAuthority) {
		t.Errorf("expected authority rejection, got accept=%v reasons=%v", verdict.Accept, verdict.Reasons)
	}
}

func TestValidate_AuthorityRuleSymmetric(t *testing.T) {
	c := splCandidate()
	cfg := policyConfig()
	cfg.RequireRevokedAuthority = false

	// With the requirement inverted, a fully revoked mint fails.
	reader := &stubReader{accounts: map[string]*solana.AccountInfo{
		c.BaseMint: {Owner: cpmm.TokenProgramID, Data: mintData(false, false)},
	}}
	verdict := NewValidator(reader, cfg).Validate(context.Background(), c)
	if verdict.AuthorityOK {
		t.Error("expected revoked mint to fail the inverted rule")
	}

	reader.accounts[c.BaseMint].Data = mintData(true, true)
	verdict = NewValidator(reader, cfg).Validate(context.Background(), c)
	if !verdict.AuthorityOK {
		t.Error("expected retained authority to pass the inverted rule")
	}
}

func TestValidate_MissingMintFailsClosed(t *testing.T) {
	c := splCandidate()
	reader := &stubReader{accounts: map[string]*solana.AccountInfo{}}

	verdict := NewValidator(reader, policyConfig()).Validate(context.Background(), c)
	if verdict.Accept {
		t.Fatal("expected rejection when the mint cannot be read")
	}
	if verdict.AuthorityOK {
		t.Error("expected authority rule to fail closed")
	}
}

func TestValidate_SellTax(t *testing.T) {
	c := splCandidate()
	c.TokenProgram = domain.TokenProgramToken2022

	cases := []struct {
		name string
		bps  uint16
		ok   bool
	}{
		{"above ceiling", 1500, false},
		{"exactly at ceiling", 1000, true},
		{"below ceiling", 200, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reader := &stubReader{accounts: map[string]*solana.AccountInfo{
				c.BaseMint: {Owner: cpmm.Token2022ProgramID, Data: mint2022Data(tc.bps)},
			}}

			verdict := NewValidator(reader, policyConfig()).Validate(context.Background(), c)
			if verdict.SellTaxOK != tc.ok {
				t.Errorf("bps %d: expected SellTaxOK=%v, got %v", tc.bps, tc.ok, verdict.SellTaxOK)
			}
			if !tc.ok && !hasReason(verdict, domain.RejectReasonSellTax) {
				t.Errorf("expected %s in reasons, got %v", domain.RejectReasonSellTax, verdict.Reasons)
			}
		})
	}
}

func TestValidate_SellTaxNoExtension(t *testing.T) {
	c := splCandidate()
	c.TokenProgram = domain.TokenProgramToken2022

	// A Token-2022 mint without the transfer fee extension has no tax.
	reader := &stubReader{accounts: map[string]*solana.AccountInfo{
		c.BaseMint: {Owner: cpmm.Token2022ProgramID, Data: mintData(false, false)},
	}}

	verdict := NewValidator(reader, policyConfig()).Validate(context.Background(), c)
	if !verdict.SellTaxOK {
		t.Error("expected fee-less Token-2022 mint to pass")
	}
}

func TestValidate_DevWallet(t *testing.T) {
	c := splCandidate()
	cfg := policyConfig()
	cfg.DevWalletRuleEnabled = true

	ata, err := cpmm.AssociatedTokenAddress(c.Creator, c.BaseMint, cpmm.TokenProgramID)
	if err != nil {
		t.Fatalf("derive creator ata: %v", err)
	}

	reader := &stubReader{
		accounts: map[string]*solana.AccountInfo{
			c.BaseMint: {Owner: cpmm.TokenProgramID, Data: mintData(false, false)},
		},
		balances: map[string]*solana.TokenAmount{
			ata: {UIAmount: 100}, // 10% of the 1000-token deposit
		},
	}

	verdict := NewValidator(reader, cfg).Validate(context.Background(), c)
	if verdict.DevWalletOK || !hasReason(verdict, domain.RejectReasonDevWallet) {
		t.Errorf("expected dev wallet rejection, got ok=%v reasons=%v", verdict.DevWalletOK, verdict.Reasons)
	}

	reader.balances[ata] = &solana.TokenAmount{UIAmount: 10} // 1%
	verdict = NewValidator(reader, cfg).Validate(context.Background(), c)
	if !verdict.DevWalletOK {
		t.Error("expected 1% creator share to pass")
	}
}

func TestValidate_DevWalletFailsClosed(t *testing.T) {
	c := splCandidate()
	cfg := policyConfig()
	cfg.DevWalletRuleEnabled = true

	// No balance entry: the lookup errors and the rule fails.
	reader := &stubReader{accounts: map[string]*solana.AccountInfo{
		c.BaseMint: {Owner: cpmm.TokenProgramID, Data: mintData(false, false)},
	}}

	verdict := NewValidator(reader, cfg).Validate(context.Background(), c)
	if verdict.DevWalletOK {
		t.Error("expected unreadable creator balance to fail closed")
	}
}

func TestValidate_DevWalletDisabledByDefault(t *testing.T) {
	c := splCandidate()
	reader := &stubReader{accounts: map[string]*solana.AccountInfo{
		c.BaseMint: {Owner: cpmm.TokenProgramID, Data: mintData(false, false)},
	}}

	verdict := NewValidator(reader, policyConfig()).Validate(context.Background(), c)
	if !verdict.DevWalletOK {
		t.Error("expected dev wallet rule to pass when disabled")
	}
}
