package solana

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	"github.com/mr-tron/base58"
)

// Keypair wraps an ed25519 signing key. Solana secret keys are the
// 64-byte seed||pubkey form, which matches ed25519.PrivateKey directly.
type Keypair struct {
	priv ed25519.PrivateKey
	pub  string
}

// NewKeypairFromBase58 builds a Keypair from a base58-encoded 64-byte
// secret key.
func NewKeypairFromBase58(secret string) (*Keypair, error) {
	raw, err := base58.Decode(secret)
	if err != nil {
		return nil, fmt.Errorf("decode secret key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("secret key must be %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	priv := ed25519.PrivateKey(raw)
	return &Keypair{
		priv: priv,
		pub:  base58.Encode(priv.Public().(ed25519.PublicKey)),
	}, nil
}

// NewKeypair generates a throwaway keypair, used in tests.
func NewKeypair() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, err
	}
	return &Keypair{
		priv: priv,
		pub:  base58.Encode(priv.Public().(ed25519.PublicKey)),
	}, nil
}

// PublicKey returns the base58 public key.
func (k *Keypair) PublicKey() string { return k.pub }

func (k *Keypair) sign(msg []byte) []byte {
	return ed25519.Sign(k.priv, msg)
}

// AccountMeta describes one account an instruction touches.
type AccountMeta struct {
	PubKey     string
	IsSigner   bool
	IsWritable bool
}

// Instruction is an uncompiled instruction.
type Instruction struct {
	ProgramID string
	Accounts  []AccountMeta
	Data      []byte
}

// Transaction is a legacy-format transaction. Instructions are compiled
// into a message at signing time.
type Transaction struct {
	payer        string
	blockhash    string
	instructions []Instruction

	accountKeys []string
	message     []byte
	signatures  [][]byte
}

// NewTransaction creates an unsigned transaction.
func NewTransaction(payer, blockhash string, instructions ...Instruction) *Transaction {
	return &Transaction{
		payer:        payer,
		blockhash:    blockhash,
		instructions: instructions,
	}
}

// compiledMeta accumulates signer/writable flags across instructions.
type compiledMeta struct {
	pubKey     string
	isSigner   bool
	isWritable bool
}

// compile builds the legacy message: header, account table ordered as
// (writable signers, readonly signers, writable non-signers, readonly
// non-signers), blockhash, then compiled instructions.
func (t *Transaction) compile() error {
	if t.message != nil {
		return nil
	}
	if t.payer == "" || t.blockhash == "" {
		return fmt.Errorf("transaction requires payer and blockhash")
	}
	if len(t.instructions) == 0 {
		return fmt.Errorf("transaction requires at least one instruction")
	}

	order := []string{t.payer}
	metas := map[string]*compiledMeta{
		t.payer: {pubKey: t.payer, isSigner: true, isWritable: true},
	}
	upsert := func(pubKey string, signer, writable bool) {
		m, ok := metas[pubKey]
		if !ok {
			m = &compiledMeta{pubKey: pubKey}
			metas[pubKey] = m
			order = append(order, pubKey)
		}
		m.isSigner = m.isSigner || signer
		m.isWritable = m.isWritable || writable
	}

	for _, ix := range t.instructions {
		for _, acc := range ix.Accounts {
			upsert(acc.PubKey, acc.IsSigner, acc.IsWritable)
		}
		upsert(ix.ProgramID, false, false)
	}

	var writableSigners, readonlySigners, writableOthers, readonlyOthers []string
	for _, key := range order {
		m := metas[key]
		switch {
		case m.isSigner && m.isWritable:
			writableSigners = append(writableSigners, key)
		case m.isSigner:
			readonlySigners = append(readonlySigners, key)
		case m.isWritable:
			writableOthers = append(writableOthers, key)
		default:
			readonlyOthers = append(readonlyOthers, key)
		}
	}

	keys := make([]string, 0, len(order))
	keys = append(keys, writableSigners...)
	keys = append(keys, readonlySigners...)
	keys = append(keys, writableOthers...)
	keys = append(keys, readonlyOthers...)

	index := make(map[string]int, len(keys))
	for i, key := range keys {
		index[key] = i
	}

	numRequiredSignatures := len(writableSigners) + len(readonlySigners)

	var buf bytes.Buffer
	buf.WriteByte(byte(numRequiredSignatures))
	buf.WriteByte(byte(len(readonlySigners)))
	buf.WriteByte(byte(len(readonlyOthers)))

	writeCompactU16(&buf, len(keys))
	for _, key := range keys {
		raw, err := base58.Decode(key)
		if err != nil {
			return fmt.Errorf("decode account key %s: %w", key, err)
		}
		if len(raw) != 32 {
			return fmt.Errorf("account key %s is %d bytes, want 32", key, len(raw))
		}
		buf.Write(raw)
	}

	hash, err := base58.Decode(t.blockhash)
	if err != nil {
		return fmt.Errorf("decode blockhash: %w", err)
	}
	if len(hash) != 32 {
		return fmt.Errorf("blockhash is %d bytes, want 32", len(hash))
	}
	buf.Write(hash)

	writeCompactU16(&buf, len(t.instructions))
	for _, ix := range t.instructions {
		buf.WriteByte(byte(index[ix.ProgramID]))
		writeCompactU16(&buf, len(ix.Accounts))
		for _, acc := range ix.Accounts {
			buf.WriteByte(byte(index[acc.PubKey]))
		}
		writeCompactU16(&buf, len(ix.Data))
		buf.Write(ix.Data)
	}

	t.accountKeys = keys
	t.message = buf.Bytes()
	t.signatures = make([][]byte, numRequiredSignatures)
	return nil
}

// Sign compiles the message and fills the signature slots belonging to
// the given keypairs. Every required signer must be covered before the
// transaction is serialized.
func (t *Transaction) Sign(signers ...*Keypair) error {
	if err := t.compile(); err != nil {
		return err
	}
	for _, kp := range signers {
		signed := false
		for i := 0; i < len(t.signatures); i++ {
			if t.accountKeys[i] == kp.PublicKey() {
				t.signatures[i] = kp.sign(t.message)
				signed = true
				break
			}
		}
		if !signed {
			return fmt.Errorf("keypair %s is not a required signer", kp.PublicKey())
		}
	}
	return nil
}

// Signature returns the base58 transaction signature (the fee payer's).
func (t *Transaction) Signature() (string, error) {
	if len(t.signatures) == 0 || t.signatures[0] == nil {
		return "", fmt.Errorf("transaction is not signed")
	}
	return base58.Encode(t.signatures[0]), nil
}

// Serialize returns the wire form: signature count, signatures, message.
func (t *Transaction) Serialize() ([]byte, error) {
	if err := t.compile(); err != nil {
		return nil, err
	}
	for i, sig := range t.signatures {
		if sig == nil {
			return nil, fmt.Errorf("missing signature for account %s", t.accountKeys[i])
		}
	}

	var buf bytes.Buffer
	writeCompactU16(&buf, len(t.signatures))
	for _, sig := range t.signatures {
		buf.Write(sig)
	}
	buf.Write(t.message)
	return buf.Bytes(), nil
}

// ToBase64 serializes and base64-encodes the transaction for RPC submission.
func (t *Transaction) ToBase64() (string, error) {
	raw, err := t.Serialize()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// ToBase58 serializes and base58-encodes the transaction for bundle relays.
func (t *Transaction) ToBase58() (string, error) {
	raw, err := t.Serialize()
	if err != nil {
		return "", err
	}
	return base58.Encode(raw), nil
}

// writeCompactU16 writes the compact-u16 (shortvec) length prefix.
func writeCompactU16(buf *bytes.Buffer, v int) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			buf.WriteByte(b)
			return
		}
		buf.WriteByte(b | 0x80)
	}
}
