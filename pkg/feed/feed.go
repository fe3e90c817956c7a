package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"tracklog/pkg/model"
	"tracklog/pkg/sparsify"
)

// ErrRunning is returned by Start on a feed that is already running.
var ErrRunning = errors.New("feed: already running")

// Stream is a push-based position producer. The channel is closed when
// the stream ends.
type Stream interface {
	Positions() <-chan model.Position
	Close() error
}

// Source is a pull-based position producer, used as the periodic poll
// fallback. Get may block on I/O and must honor ctx cancellation.
type Source interface {
	Get(ctx context.Context) (model.Position, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) (model.Position, error)

func (f SourceFunc) Get(ctx context.Context) (model.Position, error) {
	return f(ctx)
}

// Sink consumes the serialized candidate sequence.
type Sink interface {
	Submit(ctx context.Context, p model.Position) (sparsify.Decision, error)
}

// Feed merges a push stream and a periodic poll into one ordered intake
// consumed by a single goroutine, so concurrent producers can never have
// two candidates evaluated against the same decision baseline. The poll
// runs even when the stream is healthy; duplicate fixes are cheap for
// the sink to reject.
type Feed struct {
	stream   Stream
	source   Source
	sink     Sink
	interval time.Duration
	log      *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a feed. stream or source may be nil; interval applies to
// the poll producer.
func New(stream Stream, source Source, sink Sink, pollInterval time.Duration) *Feed {
	return &Feed{
		stream:   stream,
		source:   source,
		sink:     sink,
		interval: pollInterval,
		log:      slog.With("component", "feed"),
	}
}

// Start launches the producers and the single consumer.
func (f *Feed) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel

	intake := make(chan model.Position, 16)

	var producers sync.WaitGroup
	if f.stream != nil {
		producers.Add(1)
		f.wg.Add(1)
		go func() {
			defer producers.Done()
			defer f.wg.Done()
			f.runStream(ctx, intake)
		}()
	}
	if f.source != nil && f.interval > 0 {
		producers.Add(1)
		f.wg.Add(1)
		go func() {
			defer producers.Done()
			defer f.wg.Done()
			f.runPoll(ctx, intake)
		}()
	}

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		producers.Wait()
		close(intake)
	}()

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.consume(ctx, intake)
	}()

	return nil
}

// Stop cancels both producers and waits until the consumer has drained.
// After Stop returns, no further candidate reaches the sink.
func (f *Feed) Stop() {
	f.mu.Lock()
	cancel := f.cancel
	f.cancel = nil
	f.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	f.wg.Wait()
}

func (f *Feed) runStream(ctx context.Context, intake chan<- model.Position) {
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-f.stream.Positions():
			if !ok {
				f.log.Info("push stream ended")
				return
			}
			select {
			case intake <- p:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (f *Feed) runPoll(ctx context.Context, intake chan<- model.Position) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p, err := f.source.Get(ctx)
			if err != nil {
				if ctx.Err() == nil {
					f.log.Warn("poll failed", "error", err)
				}
				continue
			}
			select {
			case intake <- p:
			case <-ctx.Done():
				return
			}
		}
	}
}

// consume is the serialization point: the only goroutine that talks to
// the sink.
func (f *Feed) consume(ctx context.Context, intake <-chan model.Position) {
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-intake:
			if !ok {
				return
			}
			if ctx.Err() != nil {
				// Cancelled while this candidate was in flight; drop it.
				return
			}
			if _, err := f.sink.Submit(ctx, p); err != nil {
				f.log.Warn("submit failed", "error", err)
			}
		}
	}
}
