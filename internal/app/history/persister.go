package history

import (
	"context"
	"sync"
	"time"

	"coderoom/internal/metrics"

	"go.uber.org/zap"
)

const saveTimeout = 10 * time.Second

// Persister writes snapshots to a Repository on a single background worker.
// Schedule never blocks on I/O. Snapshots scheduled while a save is running
// collapse into one pending write of the newest snapshot.
type Persister struct {
	repo   Repository
	logger *zap.SugaredLogger

	mu      sync.Mutex
	pending []Message
	dirty   bool
	closed  bool

	signal chan struct{}
	stop   chan struct{}
	done   chan struct{}
}

func NewPersister(repo Repository, logger *zap.Logger) *Persister {
	p := &Persister{
		repo:   repo,
		logger: logger.Sugar(),
		signal: make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *Persister) Schedule(snapshot []Message) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.logger.Warnw("History save requested after shutdown; dropped", "messages", len(snapshot))
		return
	}
	p.pending = snapshot
	p.dirty = true
	p.mu.Unlock()

	select {
	case p.signal <- struct{}{}:
	default:
	}
}

func (p *Persister) run() {
	defer close(p.done)

	for {
		select {
		case <-p.signal:
			p.flush()
		case <-p.stop:
			p.flush()
			return
		}
	}
}

func (p *Persister) flush() {
	p.mu.Lock()
	if !p.dirty {
		p.mu.Unlock()
		return
	}
	snapshot := p.pending
	p.pending = nil
	p.dirty = false
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	start := time.Now()
	if err := p.repo.Save(ctx, snapshot); err != nil {
		metrics.HistorySaves.WithLabelValues("error").Inc()
		p.logger.Errorw("Failed to save history",
			"store", p.repo.Name(),
			"messages", len(snapshot),
			"error", err,
		)
		return
	}
	metrics.HistorySaves.WithLabelValues("ok").Inc()
	p.logger.Debugw("History saved",
		"store", p.repo.Name(),
		"messages", len(snapshot),
		"duration", time.Since(start).String(),
	)
}

// Close writes any pending snapshot and stops the worker.
func (p *Persister) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.stop)

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
