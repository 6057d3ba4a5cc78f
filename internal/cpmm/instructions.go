package cpmm

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"cpmm-sniper/internal/solana"
)

// anchorDiscriminator computes the 8-byte anchor method discriminator.
func anchorDiscriminator(method string) []byte {
	hash := sha256.Sum256([]byte("global:" + method))
	return hash[:8]
}

func appendU64(data []byte, v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return append(data, buf[:]...)
}

// SwapAccounts are the account addresses a swap instruction touches, in
// input/output orientation.
type SwapAccounts struct {
	Payer              string
	AmmConfig          string
	Pool               string
	InputTokenAccount  string
	OutputTokenAccount string
	InputVault         string
	OutputVault        string
	InputTokenProgram  string
	OutputTokenProgram string
	InputMint          string
	OutputMint         string
	Observation        string
}

func swapMetas(authority string, a SwapAccounts) []solana.AccountMeta {
	return []solana.AccountMeta{
		{PubKey: a.Payer, IsSigner: true, IsWritable: true},
		{PubKey: authority},
		{PubKey: a.AmmConfig},
		{PubKey: a.Pool, IsWritable: true},
		{PubKey: a.InputTokenAccount, IsWritable: true},
		{PubKey: a.OutputTokenAccount, IsWritable: true},
		{PubKey: a.InputVault, IsWritable: true},
		{PubKey: a.OutputVault, IsWritable: true},
		{PubKey: a.InputTokenProgram},
		{PubKey: a.OutputTokenProgram},
		{PubKey: a.InputMint},
		{PubKey: a.OutputMint},
		{PubKey: a.Observation, IsWritable: true},
	}
}

// SwapBaseInput builds a swap_base_input instruction: spend exactly
// amountIn of the input token for at least minAmountOut of the output.
func SwapBaseInput(accounts SwapAccounts, amountIn, minAmountOut uint64) (solana.Instruction, error) {
	authority, err := AuthorityAddress()
	if err != nil {
		return solana.Instruction{}, fmt.Errorf("derive authority: %w", err)
	}

	data := anchorDiscriminator("swap_base_input")
	data = appendU64(data, amountIn)
	data = appendU64(data, minAmountOut)

	return solana.Instruction{
		ProgramID: ProgramID,
		Accounts:  swapMetas(authority, accounts),
		Data:      data,
	}, nil
}

// SwapBaseOutput builds a swap_base_output instruction: receive exactly
// amountOut of the output token for at most maxAmountIn of the input.
func SwapBaseOutput(accounts SwapAccounts, maxAmountIn, amountOut uint64) (solana.Instruction, error) {
	authority, err := AuthorityAddress()
	if err != nil {
		return solana.Instruction{}, fmt.Errorf("derive authority: %w", err)
	}

	data := anchorDiscriminator("swap_base_output")
	data = appendU64(data, maxAmountIn)
	data = appendU64(data, amountOut)

	return solana.Instruction{
		ProgramID: ProgramID,
		Accounts:  swapMetas(authority, accounts),
		Data:      data,
	}, nil
}

// CreateATAIdempotent builds an associated token account create
// instruction that succeeds when the account already exists.
func CreateATAIdempotent(payer, ata, owner, mint, tokenProgram string) solana.Instruction {
	return solana.Instruction{
		ProgramID: AssociatedTokenID,
		Accounts: []solana.AccountMeta{
			{PubKey: payer, IsSigner: true, IsWritable: true},
			{PubKey: ata, IsWritable: true},
			{PubKey: owner},
			{PubKey: mint},
			{PubKey: SystemProgramID},
			{PubKey: tokenProgram},
		},
		Data: []byte{1}, // CreateIdempotent
	}
}

// SystemTransfer builds a native SOL transfer.
func SystemTransfer(from, to string, lamports uint64) solana.Instruction {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, 2) // Transfer
	data = appendU64(data, lamports)

	return solana.Instruction{
		ProgramID: SystemProgramID,
		Accounts: []solana.AccountMeta{
			{PubKey: from, IsSigner: true, IsWritable: true},
			{PubKey: to, IsWritable: true},
		},
		Data: data,
	}
}

// SyncNative updates a WSOL token account balance after a lamport
// deposit.
func SyncNative(account string) solana.Instruction {
	return solana.Instruction{
		ProgramID: TokenProgramID,
		Accounts: []solana.AccountMeta{
			{PubKey: account, IsWritable: true},
		},
		Data: []byte{17}, // SyncNative
	}
}

// CloseTokenAccount reclaims a token account's rent to the destination.
func CloseTokenAccount(account, destination, owner, tokenProgram string) solana.Instruction {
	return solana.Instruction{
		ProgramID: tokenProgram,
		Accounts: []solana.AccountMeta{
			{PubKey: account, IsWritable: true},
			{PubKey: destination, IsWritable: true},
			{PubKey: owner, IsSigner: true},
		},
		Data: []byte{9}, // CloseAccount
	}
}

// SetComputeUnitLimit caps the transaction compute budget.
func SetComputeUnitLimit(units uint32) solana.Instruction {
	data := make([]byte, 5)
	data[0] = 2 // SetComputeUnitLimit
	binary.LittleEndian.PutUint32(data[1:], units)
	return solana.Instruction{ProgramID: ComputeBudgetID, Data: data}
}

// SetComputeUnitPrice sets the priority fee in micro-lamports per unit.
func SetComputeUnitPrice(microLamports uint64) solana.Instruction {
	data := []byte{3} // SetComputeUnitPrice
	data = appendU64(data, microLamports)
	return solana.Instruction{ProgramID: ComputeBudgetID, Data: data}
}
