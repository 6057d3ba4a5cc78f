package cpmm

import (
	"testing"

	"github.com/mr-tron/base58"
)

func TestFindProgramAddress_Deterministic(t *testing.T) {
	seeds := [][]byte{[]byte("pool_vault"), make([]byte, 32)}

	addr1, err := FindProgramAddress(seeds, ProgramID)
	if err != nil {
		t.Fatalf("FindProgramAddress failed: %v", err)
	}
	addr2, err := FindProgramAddress(seeds, ProgramID)
	if err != nil {
		t.Fatalf("FindProgramAddress failed: %v", err)
	}
	if addr1 != addr2 {
		t.Errorf("same seeds produced different addresses: %s / %s", addr1, addr2)
	}

	raw, err := base58.Decode(addr1)
	if err != nil {
		t.Fatalf("derived address is not base58: %v", err)
	}
	if len(raw) != 32 {
		t.Errorf("derived address is %d bytes, want 32", len(raw))
	}

	// A derived address must sit off the ed25519 curve.
	if isOnCurve(raw) {
		t.Error("derived address lies on the curve")
	}
}

func TestFindProgramAddress_SeedsMatter(t *testing.T) {
	a, err := FindProgramAddress([][]byte{[]byte("observation")}, ProgramID)
	if err != nil {
		t.Fatalf("FindProgramAddress failed: %v", err)
	}
	b, err := FindProgramAddress([][]byte{[]byte("pool_vault")}, ProgramID)
	if err != nil {
		t.Fatalf("FindProgramAddress failed: %v", err)
	}
	if a == b {
		t.Error("different seeds produced the same address")
	}

	c, err := FindProgramAddress([][]byte{[]byte("observation")}, TokenProgramID)
	if err != nil {
		t.Fatalf("FindProgramAddress failed: %v", err)
	}
	if a == c {
		t.Error("different programs produced the same address")
	}
}

func TestDerivedAddresses(t *testing.T) {
	pool := testKey(42)
	mint := testKey(43)

	authority, err := AuthorityAddress()
	if err != nil {
		t.Fatalf("AuthorityAddress failed: %v", err)
	}
	expected, err := FindProgramAddress([][]byte{[]byte("vault_and_lp_mint_auth_seed")}, ProgramID)
	if err != nil {
		t.Fatalf("FindProgramAddress failed: %v", err)
	}
	if authority != expected {
		t.Errorf("AuthorityAddress: expected %s, got %s", expected, authority)
	}

	vault0, err := VaultAddress(pool, mint)
	if err != nil {
		t.Fatalf("VaultAddress failed: %v", err)
	}
	vault1, err := VaultAddress(pool, testKey(44))
	if err != nil {
		t.Fatalf("VaultAddress failed: %v", err)
	}
	if vault0 == vault1 {
		t.Error("different mints produced the same vault address")
	}

	obs, err := ObservationAddress(pool)
	if err != nil {
		t.Fatalf("ObservationAddress failed: %v", err)
	}
	if obs == vault0 || obs == authority {
		t.Error("observation address collides with another PDA")
	}
}

func TestAssociatedTokenAddress(t *testing.T) {
	owner := testKey(7)

	classic, err := AssociatedTokenAddress(owner, WSOLMint, TokenProgramID)
	if err != nil {
		t.Fatalf("AssociatedTokenAddress failed: %v", err)
	}
	fee, err := AssociatedTokenAddress(owner, WSOLMint, Token2022ProgramID)
	if err != nil {
		t.Fatalf("AssociatedTokenAddress failed: %v", err)
	}
	if classic == fee {
		t.Error("token program must be part of the ATA derivation")
	}

	if _, err := AssociatedTokenAddress("not-an-address", WSOLMint, TokenProgramID); err == nil {
		t.Error("expected invalid owner to be rejected")
	}
}
