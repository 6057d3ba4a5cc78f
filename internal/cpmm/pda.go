package cpmm

import (
	"crypto/sha256"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// FindProgramAddress derives a program address from seeds, walking the
// bump down from 255 until the hash falls off the ed25519 curve.
func FindProgramAddress(seeds [][]byte, programID string) (string, error) {
	program, err := decodeKey(programID)
	if err != nil {
		return "", fmt.Errorf("program id: %w", err)
	}

	for bump := byte(255); bump > 0; bump-- {
		data := make([]byte, 0, 128)
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, bump)
		data = append(data, program...)
		data = append(data, []byte("ProgramDerivedAddress")...)

		hash := sha256.Sum256(data)
		if !isOnCurve(hash[:]) {
			return base58.Encode(hash[:]), nil
		}
	}

	return "", fmt.Errorf("no valid program address for seeds")
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

func decodeKey(address string) ([]byte, error) {
	raw, err := base58.Decode(address)
	if err != nil {
		return nil, err
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("address %s is %d bytes, want 32", address, len(raw))
	}
	return raw, nil
}

// AuthorityAddress derives the shared vault and LP mint authority.
func AuthorityAddress() (string, error) {
	return FindProgramAddress([][]byte{[]byte(poolAuthSeed)}, ProgramID)
}

// VaultAddress derives the pool vault for one of the pool's mints.
func VaultAddress(pool, mint string) (string, error) {
	poolRaw, err := decodeKey(pool)
	if err != nil {
		return "", fmt.Errorf("pool: %w", err)
	}
	mintRaw, err := decodeKey(mint)
	if err != nil {
		return "", fmt.Errorf("mint: %w", err)
	}
	return FindProgramAddress([][]byte{[]byte(poolVaultSeed), poolRaw, mintRaw}, ProgramID)
}

// ObservationAddress derives the pool's price observation account.
func ObservationAddress(pool string) (string, error) {
	poolRaw, err := decodeKey(pool)
	if err != nil {
		return "", fmt.Errorf("pool: %w", err)
	}
	return FindProgramAddress([][]byte{[]byte(observationSeed), poolRaw}, ProgramID)
}

// AssociatedTokenAddress derives the owner's associated token account
// for a mint under the given token program.
func AssociatedTokenAddress(owner, mint, tokenProgram string) (string, error) {
	ownerRaw, err := decodeKey(owner)
	if err != nil {
		return "", fmt.Errorf("owner: %w", err)
	}
	programRaw, err := decodeKey(tokenProgram)
	if err != nil {
		return "", fmt.Errorf("token program: %w", err)
	}
	mintRaw, err := decodeKey(mint)
	if err != nil {
		return "", fmt.Errorf("mint: %w", err)
	}
	return FindProgramAddress([][]byte{ownerRaw, programRaw, mintRaw}, AssociatedTokenID)
}
