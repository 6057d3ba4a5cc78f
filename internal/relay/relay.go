// Package relay submits transaction bundles to redundant regional block
// engine endpoints. A bundle rides with a tip transfer; landing is
// confirmed separately by polling the chain for the trade signature.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"time"

	"cpmm-sniper/internal/solana"
)

// tipAccounts are the block engine tip wallets; one is picked at random
// per bundle.
var tipAccounts = []string{
	"Cw8CFyM9FkoMi7K7Crf6HNQqf4uEMzpKw6QNghXLvLkY",
	"DttWaMuVvTiduZRnguLF7jNxTgiMBZ1hyAumKUiL2KRL",
	"96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5",
	"3AVi9Tg9Uo68tJfuvoKvqKNWKkC5wPdSSdeBnizKZ6jT",
	"HFqU5x63VTqvQss8hp11i4wVV8bD44PvwucfZ2bU7gRe",
	"ADaUMid9yfUytqMBgopwjb2DTLSokTSzL1zt6iGPaS49",
	"ADuUkR4vqLUMWXxW9gh6D6L8pMSawimctcNZ5pGwDcEt",
	"DfXygSm4jCyNCybVYYK6DwvWqjKee8pbDmJGcLWNDXjh",
}

// TipAccount returns a random tip wallet address.
func TipAccount() string {
	return tipAccounts[rand.Intn(len(tipAccounts))]
}

// ErrNoAcknowledgment is returned when every endpoint rejected the
// bundle or was unreachable.
var ErrNoAcknowledgment = errors.New("no relay endpoint acknowledged the bundle")

// Relay fans bundles out to its endpoints.
type Relay struct {
	endpoints []string
	client    *http.Client
	latency   solana.LatencyObserver
}

// Option configures a Relay.
type Option func(*Relay)

// WithLatencyObserver records the duration of every bundle submission.
func WithLatencyObserver(o solana.LatencyObserver) Option {
	return func(r *Relay) {
		r.latency = o
	}
}

// New creates a relay over the given bundle endpoints.
func New(endpoints []string, opts ...Option) *Relay {
	r := &Relay{
		endpoints: endpoints,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type bundleRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type bundleResponse struct {
	Result string `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SendBundle submits the signed transactions to every endpoint
// concurrently. The first acknowledgment wins; it proves acceptance
// into the relay, not inclusion in a block.
func (r *Relay) SendBundle(ctx context.Context, txs []*solana.Transaction) error {
	if len(txs) == 0 {
		return fmt.Errorf("empty bundle")
	}
	if r.latency != nil {
		start := time.Now()
		defer func() { r.latency.Observe(time.Since(start).Seconds()) }()
	}

	encoded := make([]string, 0, len(txs))
	for i, tx := range txs {
		raw, err := tx.ToBase58()
		if err != nil {
			return fmt.Errorf("encode bundle tx %d: %w", i, err)
		}
		encoded = append(encoded, raw)
	}

	body, err := json.Marshal(bundleRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "sendBundle",
		Params:  []interface{}{encoded},
	})
	if err != nil {
		return fmt.Errorf("marshal bundle request: %w", err)
	}

	results := make(chan error, len(r.endpoints))
	for _, endpoint := range r.endpoints {
		go func(url string) {
			results <- r.post(ctx, url, body)
		}(endpoint)
	}

	var lastErr error
	for range r.endpoints {
		err := <-results
		if err == nil {
			return nil
		}
		lastErr = err
	}

	return fmt.Errorf("%w: %v", ErrNoAcknowledgment, lastErr)
}

func (r *Relay) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response from %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("endpoint %s returned status %d", url, resp.StatusCode)
	}

	var parsed bundleResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return fmt.Errorf("decode response from %s: %w", url, err)
	}
	if parsed.Error != nil {
		return fmt.Errorf("endpoint %s rejected bundle: code=%d msg=%s", url, parsed.Error.Code, parsed.Error.Message)
	}

	log.Printf("[relay] bundle accepted by %s id=%s", url, parsed.Result)
	return nil
}
