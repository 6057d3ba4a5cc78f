package solana

// AccountInfo represents Solana account information with decoded data.
type AccountInfo struct {
	Lamports   uint64
	Owner      string
	Data       []byte
	Executable bool
	RentEpoch  uint64
}

// TokenAmount is a token account balance.
type TokenAmount struct {
	Amount   string // raw amount, base-10 string
	Decimals uint8
	UIAmount float64
}

// Blockhash is a recent blockhash with its validity horizon.
type Blockhash struct {
	Blockhash            string
	LastValidBlockHeight uint64
}

// SimulationResult is the outcome of simulateTransaction.
type SimulationResult struct {
	Err  interface{} // non-nil when the transaction would fail
	Logs []string
}

// SignatureStatus is a single entry from getSignatureStatuses.
type SignatureStatus struct {
	Slot               int64
	Confirmations      *uint64
	ConfirmationStatus string // "processed" | "confirmed" | "finalized"
	Err                interface{}
}

// ParsedTransaction is a jsonParsed transaction, trimmed to the fields
// discovery needs: top-level and inner instructions with account keys
// and parsed token-transfer payloads.
type ParsedTransaction struct {
	Slot         int64
	BlockTime    int64 // unix seconds, 0 when unavailable
	Instructions []ParsedInstruction
	Inner        []InnerInstructions
}

// InnerInstructions groups the inner instructions of one top-level call.
type InnerInstructions struct {
	Index        int
	Instructions []ParsedInstruction
}

// ParsedInstruction is one instruction in jsonParsed form. Accounts is
// populated for partially-decoded instructions; Parsed for instructions
// the RPC node understands (token program transfers, mints).
type ParsedInstruction struct {
	ProgramID string
	Accounts  []string
	Parsed    *ParsedInfo
}

// ParsedInfo is the decoded payload of a parsed instruction.
type ParsedInfo struct {
	Type string
	Info ParsedInstructionInfo
}

// ParsedInstructionInfo carries the fields used for liquidity
// accounting at pool creation.
type ParsedInstructionInfo struct {
	Mint        string
	Amount      string
	TokenAmount *UITokenAmount
}

// UITokenAmount is the amount block of a transferChecked instruction.
type UITokenAmount struct {
	Amount   string  `json:"amount"`
	Decimals uint8   `json:"decimals"`
	UIAmount float64 `json:"uiAmount"`
}
