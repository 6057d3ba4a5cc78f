package discovery

import (
	"context"
	"testing"
	"time"

	"cpmm-sniper/internal/cpmm"
	"cpmm-sniper/internal/domain"
	"cpmm-sniper/internal/observability"
	"cpmm-sniper/internal/solana"
	"cpmm-sniper/internal/storage/memory"
)

// Shared across tests: promauto registers against the default registry,
// which rejects duplicate registration.
var testMetrics = observability.NewMetrics("discovery_test")

type fakeStream struct {
	ch chan solana.LogNotification
}

func newFakeStream() *fakeStream {
	return &fakeStream{ch: make(chan solana.LogNotification, 16)}
}

func (f *fakeStream) Events() <-chan solana.LogNotification { return f.ch }
func (f *fakeStream) Close() error                          { close(f.ch); return nil }

type fakeFetcher struct {
	txs map[string]*solana.ParsedTransaction
}

func (f *fakeFetcher) GetParsedTransaction(_ context.Context, signature string) (*solana.ParsedTransaction, error) {
	return f.txs[signature], nil
}

type fakeReader struct {
	accounts map[string]*solana.AccountInfo
}

func (f *fakeReader) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	return f.accounts[pubkey], nil
}

func (f *fakeReader) GetTokenAccountBalance(_ context.Context, _ string) (*solana.TokenAmount, error) {
	return &solana.TokenAmount{}, nil
}

func runDetector(t *testing.T, d *Detector, stream *fakeStream, events ...solana.LogNotification) {
	t.Helper()

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	for _, event := range events {
		stream.ch <- event
	}
	stream.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("detector did not stop after stream close")
	}
}

func TestDetector_HandlesCandidate(t *testing.T) {
	stream := newFakeStream()
	fetcher := &fakeFetcher{txs: map[string]*solana.ParsedTransaction{
		"sig1": initializeTx(cpmm.WSOLMint, testBaseMint, 1_000_000, 5),
	}}
	reader := &fakeReader{accounts: map[string]*solana.AccountInfo{
		testBaseMint: {Owner: cpmm.TokenProgramID},
		testPool:     {Owner: cpmm.ProgramID, Data: make([]byte, 400)},
	}}

	var handled []*domain.PoolCandidate
	d := NewDetector(stream, fetcher, reader, memory.NewSeenTokenStore(), testMetrics,
		func(_ context.Context, c *domain.PoolCandidate) {
			handled = append(handled, c)
		})

	runDetector(t, d, stream, solana.LogNotification{
		Signature: "sig1",
		Slot:      100,
		Logs:      []string{"Program log: Instruction: Initialize"},
	})

	if len(handled) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(handled))
	}
	c := handled[0]
	if c.BaseMint != testBaseMint {
		t.Errorf("BaseMint: expected %s, got %s", testBaseMint, c.BaseMint)
	}
	if c.TokenProgram != domain.TokenProgramSPL {
		t.Errorf("TokenProgram: expected SPL, got %s", c.TokenProgram)
	}
	if c.DiscoveredAt == 0 {
		t.Error("expected DiscoveredAt to be stamped")
	}
}

func TestDetector_DedupesBaseMint(t *testing.T) {
	stream := newFakeStream()
	fetcher := &fakeFetcher{txs: map[string]*solana.ParsedTransaction{
		"sig1": initializeTx(cpmm.WSOLMint, testBaseMint, 1_000_000, 5),
		"sig2": initializeTx(cpmm.WSOLMint, testBaseMint, 2_000_000, 7),
	}}
	reader := &fakeReader{accounts: map[string]*solana.AccountInfo{
		testBaseMint: {Owner: cpmm.Token2022ProgramID},
		testPool:     {Owner: cpmm.ProgramID, Data: make([]byte, 400)},
	}}

	handled := 0
	d := NewDetector(stream, fetcher, reader, memory.NewSeenTokenStore(), testMetrics,
		func(_ context.Context, _ *domain.PoolCandidate) { handled++ })

	logs := []string{"Program log: Instruction: Initialize"}
	runDetector(t, d, stream,
		solana.LogNotification{Signature: "sig1", Logs: logs},
		solana.LogNotification{Signature: "sig2", Logs: logs},
	)

	if handled != 1 {
		t.Errorf("expected second pool for the same mint to be skipped, handled %d", handled)
	}
}

func TestDetector_IgnoresNonInitializeAndFailed(t *testing.T) {
	stream := newFakeStream()
	fetcher := &fakeFetcher{txs: map[string]*solana.ParsedTransaction{}}
	reader := &fakeReader{}

	handled := 0
	d := NewDetector(stream, fetcher, reader, memory.NewSeenTokenStore(), testMetrics,
		func(_ context.Context, _ *domain.PoolCandidate) { handled++ })

	runDetector(t, d, stream,
		solana.LogNotification{Signature: "swap", Logs: []string{"Program log: Instruction: SwapBaseInput"}},
		solana.LogNotification{Signature: "failed", Logs: []string{"Program log: Instruction: Initialize"}, Err: map[string]interface{}{"InstructionError": []interface{}{}}},
	)

	if handled != 0 {
		t.Errorf("expected no candidates, handled %d", handled)
	}
}
