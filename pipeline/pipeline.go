// Package pipeline validates, de-duplicates and writes exported catalog
// entries.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/anime-corsair/config"
	"github.com/aluiziolira/anime-corsair/models"
	"github.com/aluiziolira/anime-corsair/parser"
)

var (
	// ErrPipelineClosed is returned when Process is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
	// ErrPipelineCloseTimeout is returned when workers fail to drain in time.
	ErrPipelineCloseTimeout = errors.New("pipeline: close timed out")
)

// drainTimeout bounds how long Close waits for workers to flush.
var drainTimeout = 30 * time.Second

// Rejection reasons recorded in Stats.
const (
	rejectInvalid   = "invalid_record"
	rejectDuplicate = "duplicate_id"
)

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(items []*models.Anime) error
	Close() error
	Validate() error
}

// Stats is a snapshot of the pipeline counters.
type Stats struct {
	Processed int64          `json:"processed"`
	Rejected  map[string]int `json:"rejected"`
}

// Pipeline coordinates validation, de-duplication, and output writing.
type Pipeline struct {
	ctx       context.Context
	writer    OutputWriter
	itemCh    chan *models.Anime
	batchSize int
	logger    *slog.Logger

	wg sync.WaitGroup

	// Rankings shift between page fetches, so the same entry can appear on
	// two consecutive pages.
	seen *lru.Cache[int, struct{}]

	statsMu sync.Mutex
	stats   Stats

	mu     sync.Mutex // guards closed/err
	closed bool
	err    error

	closeOnce    sync.Once
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewPipeline builds a pipeline sized from cfg. Workers stop early when ctx
// is cancelled.
func NewPipeline(ctx context.Context, writer OutputWriter, cfg *config.Config) *Pipeline {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	buffer := max(cfg.PipelineBufferSize, 1)
	batch := max(cfg.BatchSize, 1)
	seen, err := lru.New[int, struct{}](max(cfg.DedupeMaxSize, 1))
	if err != nil {
		// Only reachable with a non-positive size, which is clamped above.
		panic(fmt.Sprintf("pipeline: dedupe cache: %v", err))
	}

	return &Pipeline{
		ctx:       ctx,
		writer:    writer,
		itemCh:    make(chan *models.Anime, buffer),
		batchSize: batch,
		logger:    slog.Default().With(slog.String("component", "pipeline")),
		seen:      seen,
		stats:     Stats{Rejected: make(map[string]int)},
		shutdown:  make(chan struct{}),
	}
}

// Start launches worker goroutines.
func (p *Pipeline) Start(workers int) {
	if workers <= 0 {
		workers = 1
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Process enqueues entries for downstream processing. Nil entries are skipped.
func (p *Pipeline) Process(items ...*models.Anime) error {
	if len(items) == 0 {
		return nil
	}

	closed, err := p.state()
	if err != nil {
		return err
	}
	if closed {
		return ErrPipelineClosed
	}

	for _, item := range items {
		if item == nil {
			continue
		}
		if err := p.enqueue(item); err != nil {
			return err
		}
	}
	return nil
}

// Close stops submissions and waits up to drainTimeout for workers to flush.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.closeOnce.Do(func() {
		close(p.itemCh)
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(drainTimeout)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		p.signalShutdown()
		return fmt.Errorf("%w after %s", ErrPipelineCloseTimeout, drainTimeout)
	}

	p.signalShutdown()
	return p.Err()
}

// Err returns the first error encountered during processing.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Stats returns a copy of the counters.
func (p *Pipeline) Stats() Stats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()

	rejected := make(map[string]int, len(p.stats.Rejected))
	for k, v := range p.stats.Rejected {
		rejected[k] = v
	}
	return Stats{Processed: p.stats.Processed, Rejected: rejected}
}

// StartMetricsReporting emits periodic progress logs until Close.
func (p *Pipeline) StartMetricsReporting(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				stats := p.Stats()
				p.logger.Info("export progress",
					slog.Int64("processed", stats.Processed),
					slog.Any("rejected", stats.Rejected),
				)
			case <-p.shutdown:
				return
			}
		}
	}()
}

func (p *Pipeline) worker() {
	defer p.wg.Done()

	batch := make([]*models.Anime, 0, p.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.writer.Write(batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for {
		select {
		case <-p.ctx.Done():
			if err := flush(); err != nil {
				p.setErr(fmt.Errorf("write batch: %w", err))
			}
			return
		case item, ok := <-p.itemCh:
			if !ok {
				if err := flush(); err != nil {
					p.setErr(fmt.Errorf("write batch: %w", err))
				}
				return
			}
			prepared := p.prepare(item)
			if prepared == nil {
				continue
			}
			batch = append(batch, prepared)
			if len(batch) >= p.batchSize {
				if err := flush(); err != nil {
					p.setErr(fmt.Errorf("write batch: %w", err))
					return
				}
			}
		}
	}
}

func (p *Pipeline) prepare(item *models.Anime) *models.Anime {
	if err := parser.ValidateAnime(item); err != nil {
		p.reject(rejectInvalid)
		p.logger.Debug("rejecting entry", slog.Any("error", err))
		return nil
	}

	// ContainsOrAdd is atomic across workers.
	if found, _ := p.seen.ContainsOrAdd(item.ID, struct{}{}); found {
		p.reject(rejectDuplicate)
		return nil
	}

	out := *item
	parser.NormalizeAnime(&out)

	p.statsMu.Lock()
	p.stats.Processed++
	p.statsMu.Unlock()
	return &out
}

func (p *Pipeline) reject(reason string) {
	p.statsMu.Lock()
	p.stats.Rejected[reason]++
	p.statsMu.Unlock()
}

func (p *Pipeline) enqueue(item *models.Anime) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrPipelineClosed
		}
	}()

	select {
	case <-p.shutdown:
		return ErrPipelineClosed
	case <-p.ctx.Done():
		return p.ctx.Err()
	case p.itemCh <- item:
		return nil
	}
}

func (p *Pipeline) setErr(err error) {
	if err == nil {
		return
	}

	p.mu.Lock()
	if p.err != nil {
		p.mu.Unlock()
		return
	}
	p.err = err
	p.closed = true
	p.mu.Unlock()

	p.signalShutdown()
}

func (p *Pipeline) state() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed, p.err
}

func (p *Pipeline) signalShutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
}
