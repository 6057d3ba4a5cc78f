package solana

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// LatencyObserver records call durations in seconds. Satisfied by
// prometheus histograms and summaries.
type LatencyObserver interface {
	Observe(float64)
}

// HTTPClient implements Reader, Broadcaster and TransactionFetcher
// using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	latency     LatencyObserver
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// WithLatencyObserver records the duration of every RPC call, retries
// included.
func WithLatencyObserver(o LatencyObserver) ClientOption {
	return func(c *HTTPClient) {
		c.latency = o
	}
}

// NewHTTPClient creates a new Solana RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var (
	_ Reader             = (*HTTPClient)(nil)
	_ Broadcaster        = (*HTTPClient)(nil)
	_ TransactionFetcher = (*HTTPClient)(nil)
)

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call with retries and exponential backoff.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	if c.latency != nil {
		start := time.Now()
		defer func() { c.latency.Observe(time.Since(start).Seconds()) }()
	}

	reqID := c.requestID.Add(1)
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		// Handle rate limiting
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			// RPC errors are not retried
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// GetAccountInfo retrieves account info by public key.
// Returns nil if the account does not exist.
func (c *HTTPClient) GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error) {
	params := []interface{}{
		pubkey,
		map[string]interface{}{
			"encoding": "base64",
		},
	}

	var result getAccountInfoResult
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}

	if result.Value == nil {
		return nil, nil
	}

	info := &AccountInfo{
		Lamports:   result.Value.Lamports,
		Owner:      result.Value.Owner,
		Executable: result.Value.Executable,
		RentEpoch:  result.Value.RentEpoch,
	}

	if len(result.Value.Data) >= 1 {
		data, err := base64.StdEncoding.DecodeString(result.Value.Data[0])
		if err != nil {
			return nil, fmt.Errorf("decode account data: %w", err)
		}
		info.Data = data
	}

	return info, nil
}

type getAccountInfoResult struct {
	Value *getAccountInfoValue `json:"value"`
}

type getAccountInfoValue struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Data       []string `json:"data"` // [base64_data, encoding]
	Executable bool     `json:"executable"`
	RentEpoch  uint64   `json:"rentEpoch"`
}

// GetTokenAccountBalance retrieves a token account balance.
func (c *HTTPClient) GetTokenAccountBalance(ctx context.Context, account string) (*TokenAmount, error) {
	params := []interface{}{account}

	var result getTokenBalanceResult
	if err := c.call(ctx, "getTokenAccountBalance", params, &result); err != nil {
		return nil, err
	}
	if result.Value == nil {
		return nil, fmt.Errorf("token account %s not found", account)
	}

	amount := &TokenAmount{
		Amount:   result.Value.Amount,
		Decimals: result.Value.Decimals,
	}
	if result.Value.UIAmountString != "" {
		ui, err := strconv.ParseFloat(result.Value.UIAmountString, 64)
		if err != nil {
			return nil, fmt.Errorf("parse uiAmountString: %w", err)
		}
		amount.UIAmount = ui
	}
	return amount, nil
}

type getTokenBalanceResult struct {
	Value *getTokenBalanceValue `json:"value"`
}

type getTokenBalanceValue struct {
	Amount         string `json:"amount"`
	Decimals       uint8  `json:"decimals"`
	UIAmountString string `json:"uiAmountString"`
}

// GetLatestBlockhash retrieves a recent blockhash.
func (c *HTTPClient) GetLatestBlockhash(ctx context.Context) (*Blockhash, error) {
	params := []interface{}{
		map[string]interface{}{"commitment": "confirmed"},
	}

	var result getBlockhashResult
	if err := c.call(ctx, "getLatestBlockhash", params, &result); err != nil {
		return nil, err
	}
	if result.Value == nil {
		return nil, fmt.Errorf("empty blockhash response")
	}
	return &Blockhash{
		Blockhash:            result.Value.Blockhash,
		LastValidBlockHeight: result.Value.LastValidBlockHeight,
	}, nil
}

type getBlockhashResult struct {
	Value *getBlockhashValue `json:"value"`
}

type getBlockhashValue struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// SimulateTransaction simulates a signed transaction without broadcasting.
func (c *HTTPClient) SimulateTransaction(ctx context.Context, tx *Transaction) (*SimulationResult, error) {
	encoded, err := tx.ToBase64()
	if err != nil {
		return nil, fmt.Errorf("encode transaction: %w", err)
	}

	params := []interface{}{
		encoded,
		map[string]interface{}{
			"encoding":   "base64",
			"commitment": "confirmed",
		},
	}

	var result simulateResult
	if err := c.call(ctx, "simulateTransaction", params, &result); err != nil {
		return nil, err
	}
	if result.Value == nil {
		return nil, fmt.Errorf("empty simulation response")
	}
	return &SimulationResult{
		Err:  result.Value.Err,
		Logs: result.Value.Logs,
	}, nil
}

type simulateResult struct {
	Value *simulateValue `json:"value"`
}

type simulateValue struct {
	Err  interface{} `json:"err"`
	Logs []string    `json:"logs"`
}

// SendTransaction broadcasts a signed transaction.
// Preflight is skipped: callers simulate explicitly before sending.
func (c *HTTPClient) SendTransaction(ctx context.Context, tx *Transaction) (string, error) {
	encoded, err := tx.ToBase64()
	if err != nil {
		return "", fmt.Errorf("encode transaction: %w", err)
	}

	params := []interface{}{
		encoded,
		map[string]interface{}{
			"encoding":      "base64",
			"skipPreflight": true,
		},
	}

	var signature string
	if err := c.call(ctx, "sendTransaction", params, &signature); err != nil {
		return "", err
	}
	return signature, nil
}

// GetSignatureStatuses retrieves confirmation status for signatures.
// Entries are nil for unknown signatures.
func (c *HTTPClient) GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error) {
	params := []interface{}{
		signatures,
		map[string]interface{}{"searchTransactionHistory": false},
	}

	var result signatureStatusesResult
	if err := c.call(ctx, "getSignatureStatuses", params, &result); err != nil {
		return nil, err
	}

	statuses := make([]*SignatureStatus, len(result.Value))
	for i, v := range result.Value {
		if v == nil {
			continue
		}
		statuses[i] = &SignatureStatus{
			Slot:               v.Slot,
			Confirmations:      v.Confirmations,
			ConfirmationStatus: v.ConfirmationStatus,
			Err:                v.Err,
		}
	}
	return statuses, nil
}

type signatureStatusesResult struct {
	Value []*signatureStatusValue `json:"value"`
}

type signatureStatusValue struct {
	Slot               int64       `json:"slot"`
	Confirmations      *uint64     `json:"confirmations"`
	ConfirmationStatus string      `json:"confirmationStatus"`
	Err                interface{} `json:"err"`
}

// GetParsedTransaction retrieves a transaction in jsonParsed encoding.
// Returns (nil, nil) if the transaction is not found.
func (c *HTTPClient) GetParsedTransaction(ctx context.Context, signature string) (*ParsedTransaction, error) {
	params := []interface{}{
		signature,
		map[string]interface{}{
			"encoding":                       "jsonParsed",
			"commitment":                     "confirmed",
			"maxSupportedTransactionVersion": 0,
		},
	}

	var result parsedTxResult
	if err := c.call(ctx, "getTransaction", params, &result); err != nil {
		return nil, err
	}
	if result.Transaction == nil {
		return nil, nil
	}

	tx := &ParsedTransaction{Slot: result.Slot}
	if result.BlockTime != nil {
		tx.BlockTime = *result.BlockTime
	}

	if result.Transaction.Message != nil {
		for _, ix := range result.Transaction.Message.Instructions {
			tx.Instructions = append(tx.Instructions, ix.toDomain())
		}
	}
	if result.Meta != nil {
		for _, inner := range result.Meta.InnerInstructions {
			group := InnerInstructions{Index: inner.Index}
			for _, ix := range inner.Instructions {
				group.Instructions = append(group.Instructions, ix.toDomain())
			}
			tx.Inner = append(tx.Inner, group)
		}
	}
	return tx, nil
}

type parsedTxResult struct {
	Slot        int64         `json:"slot"`
	BlockTime   *int64        `json:"blockTime"`
	Meta        *parsedTxMeta `json:"meta"`
	Transaction *parsedTxBody `json:"transaction"`
}

type parsedTxMeta struct {
	Err               interface{}        `json:"err"`
	InnerInstructions []parsedInnerGroup `json:"innerInstructions"`
}

type parsedInnerGroup struct {
	Index        int                  `json:"index"`
	Instructions []parsedTxInstrction `json:"instructions"`
}

type parsedTxBody struct {
	Message *parsedTxMessage `json:"message"`
}

type parsedTxMessage struct {
	Instructions []parsedTxInstrction `json:"instructions"`
}

type parsedTxInstrction struct {
	ProgramID string          `json:"programId"`
	Accounts  []string        `json:"accounts"`
	Parsed    json.RawMessage `json:"parsed"`
}

func (ix parsedTxInstrction) toDomain() ParsedInstruction {
	out := ParsedInstruction{
		ProgramID: ix.ProgramID,
		Accounts:  ix.Accounts,
	}
	if len(ix.Parsed) == 0 {
		return out
	}
	// parsed may be a bare string for memo-style programs; only decode
	// the object form.
	var payload struct {
		Type string `json:"type"`
		Info struct {
			Mint        string         `json:"mint"`
			Amount      string         `json:"amount"`
			TokenAmount *UITokenAmount `json:"tokenAmount"`
		} `json:"info"`
	}
	if err := json.Unmarshal(ix.Parsed, &payload); err != nil {
		return out
	}
	if payload.Type == "" {
		return out
	}
	out.Parsed = &ParsedInfo{
		Type: payload.Type,
		Info: ParsedInstructionInfo{
			Mint:        payload.Info.Mint,
			Amount:      payload.Info.Amount,
			TokenAmount: payload.Info.TokenAmount,
		},
	}
	return out
}
