package discovery

import (
	"context"
	"errors"
	"log"
	"time"

	"cpmm-sniper/internal/cpmm"
	"cpmm-sniper/internal/domain"
	"cpmm-sniper/internal/observability"
	"cpmm-sniper/internal/solana"
	"cpmm-sniper/internal/storage"
)

// CandidateHandler receives each deduplicated pool candidate. It blocks
// the detector, which is intentional: while a cycle runs, newly detected
// pools are evaluated one at a time against the busy gate.
type CandidateHandler func(ctx context.Context, c *domain.PoolCandidate)

// Detector consumes the program log stream, detects pool initialize
// events, resolves them to candidates and dedupes by base mint.
type Detector struct {
	stream  solana.LogStreamer
	fetcher solana.TransactionFetcher
	reader  solana.Reader
	seen    storage.SeenTokenStore
	metrics *observability.Metrics
	handle  CandidateHandler
}

// NewDetector creates a detector.
func NewDetector(stream solana.LogStreamer, fetcher solana.TransactionFetcher, reader solana.Reader, seen storage.SeenTokenStore, metrics *observability.Metrics, handle CandidateHandler) *Detector {
	return &Detector{
		stream:  stream,
		fetcher: fetcher,
		reader:  reader,
		seen:    seen,
		metrics: metrics,
		handle:  handle,
	}
}

// Run processes the stream until the context is canceled or the stream
// closes.
func (d *Detector) Run(ctx context.Context) error {
	log.Printf("[discovery] watching %s for pool creations", cpmm.ProgramID)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-d.stream.Events():
			if !ok {
				return nil
			}
			d.processEvent(ctx, event)
		}
	}
}

func (d *Detector) processEvent(ctx context.Context, event solana.LogNotification) {
	if event.Err != nil {
		return
	}

	initialize := false
	for _, line := range event.Logs {
		if isInitializeLog(line) {
			initialize = true
			break
		}
	}
	if !initialize {
		return
	}

	d.metrics.PoolsDetected.Inc()
	log.Printf("[discovery] pool creation detected sig=%s slot=%d", event.Signature, event.Slot)

	tx, err := d.fetcher.GetParsedTransaction(ctx, event.Signature)
	if err != nil {
		d.metrics.CandidatesSkipped.WithLabelValues("FETCH_FAILED").Inc()
		log.Printf("[discovery] fetch transaction %s failed: %v", event.Signature, err)
		return
	}
	if tx == nil {
		d.metrics.CandidatesSkipped.WithLabelValues("FETCH_FAILED").Inc()
		log.Printf("[discovery] transaction %s not found", event.Signature)
		return
	}

	candidate, err := ExtractCandidate(tx, event.Signature)
	if err != nil {
		switch {
		case errors.Is(err, ErrMigrationMarker):
			d.metrics.CandidatesSkipped.WithLabelValues(domain.RejectReasonMigrationPair).Inc()
		case errors.Is(err, ErrNoPoolInstruction):
			d.metrics.CandidatesSkipped.WithLabelValues("NO_INITIALIZE").Inc()
		default:
			d.metrics.CandidatesSkipped.WithLabelValues("PARSE_FAILED").Inc()
		}
		log.Printf("[discovery] extract candidate from %s failed: %v", event.Signature, err)
		return
	}

	if err := d.resolveCandidate(ctx, candidate); err != nil {
		d.metrics.CandidatesSkipped.WithLabelValues("RESOLVE_FAILED").Inc()
		log.Printf("[discovery] resolve candidate %s failed: %v", candidate.BaseMint, err)
		return
	}

	err = d.seen.MarkSeen(ctx, candidate.BaseMint, time.Now())
	if errors.Is(err, storage.ErrDuplicateKey) {
		d.metrics.CandidatesSkipped.WithLabelValues("ALREADY_SEEN").Inc()
		return
	}
	if err != nil {
		// Dedup store down: trade anyway rather than stall discovery.
		log.Printf("[discovery] mark seen %s failed: %v", candidate.BaseMint, err)
	}

	candidate.DiscoveredAt = time.Now().UnixMilli()
	d.metrics.CandidatesExtracted.Inc()
	log.Printf("[discovery] candidate base=%s pool=%s liquidity=%.4f", candidate.BaseMint, candidate.Pool, candidate.QuoteLiquidity)

	d.handle(ctx, candidate)
}

// resolveCandidate fills the fields that need chain reads: the token
// program owning the base mint and the pool's trading open time.
func (d *Detector) resolveCandidate(ctx context.Context, c *domain.PoolCandidate) error {
	mintInfo, err := d.reader.GetAccountInfo(ctx, c.BaseMint)
	if err != nil {
		return err
	}
	if mintInfo == nil {
		return errors.New("base mint account not found")
	}
	switch mintInfo.Owner {
	case cpmm.TokenProgramID:
		c.TokenProgram = domain.TokenProgramSPL
	case cpmm.Token2022ProgramID:
		c.TokenProgram = domain.TokenProgramToken2022
	default:
		return errors.New("base mint owned by unexpected program " + mintInfo.Owner)
	}

	poolInfo, err := d.reader.GetAccountInfo(ctx, c.Pool)
	if err != nil {
		return err
	}
	if poolInfo == nil {
		return errors.New("pool account not found")
	}
	state, err := cpmm.DecodePoolState(poolInfo.Data)
	if err != nil {
		return err
	}
	c.OpenTime = int64(state.OpenTime)
	return nil
}
