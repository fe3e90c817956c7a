package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracklog/pkg/model"
	"tracklog/pkg/sparsify"
)

// chanStream is a test Stream backed by a plain channel.
type chanStream struct {
	ch chan model.Position
}

func (c *chanStream) Positions() <-chan model.Position { return c.ch }
func (c *chanStream) Close() error                     { close(c.ch); return nil }

// recordingSink records every submitted candidate and detects any
// concurrent Submit calls.
type recordingSink struct {
	mu       sync.Mutex
	got      []model.Position
	inFlight atomic.Int32
	overlaps atomic.Int32
}

func (r *recordingSink) Submit(ctx context.Context, p model.Position) (sparsify.Decision, error) {
	if r.inFlight.Add(1) > 1 {
		r.overlaps.Add(1)
	}
	time.Sleep(time.Millisecond) // widen any race window
	r.mu.Lock()
	r.got = append(r.got, p)
	r.mu.Unlock()
	r.inFlight.Add(-1)
	return sparsify.Decision{}, nil
}

func (r *recordingSink) positions() []model.Position {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Position, len(r.got))
	copy(out, r.got)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestFeedForwardsStream(t *testing.T) {
	stream := &chanStream{ch: make(chan model.Position, 4)}
	sink := &recordingSink{}
	f := New(stream, nil, sink, 0)

	require.NoError(t, f.Start(context.Background()))

	stream.ch <- model.Position{Lat: 1}
	stream.ch <- model.Position{Lat: 2}

	waitFor(t, func() bool { return len(sink.positions()) == 2 })
	f.Stop()

	got := sink.positions()
	assert.Equal(t, 1.0, got[0].Lat)
	assert.Equal(t, 2.0, got[1].Lat)
}

func TestFeedPollsSource(t *testing.T) {
	var polls atomic.Int32
	source := SourceFunc(func(ctx context.Context) (model.Position, error) {
		n := polls.Add(1)
		return model.Position{Lat: float64(n)}, nil
	})
	sink := &recordingSink{}
	f := New(nil, source, sink, 10*time.Millisecond)

	require.NoError(t, f.Start(context.Background()))
	waitFor(t, func() bool { return len(sink.positions()) >= 2 })
	f.Stop()

	assert.GreaterOrEqual(t, polls.Load(), int32(2))
}

func TestFeedSerializesBothProducers(t *testing.T) {
	stream := &chanStream{ch: make(chan model.Position, 64)}
	source := SourceFunc(func(ctx context.Context) (model.Position, error) {
		return model.Position{Lon: 1}, nil
	})
	sink := &recordingSink{}
	f := New(stream, source, sink, time.Millisecond)

	require.NoError(t, f.Start(context.Background()))
	for i := 0; i < 30; i++ {
		stream.ch <- model.Position{Lat: float64(i)}
	}
	waitFor(t, func() bool { return len(sink.positions()) >= 40 })
	f.Stop()

	// The single-consumer intake must never let two candidates reach the
	// sink at once, no matter how the producers interleave.
	assert.Zero(t, sink.overlaps.Load(), "sink saw concurrent Submit calls")
}

func TestFeedStopHaltsDelivery(t *testing.T) {
	stream := &chanStream{ch: make(chan model.Position, 64)}
	sink := &recordingSink{}
	f := New(stream, nil, sink, 0)

	require.NoError(t, f.Start(context.Background()))
	stream.ch <- model.Position{Lat: 1}
	waitFor(t, func() bool { return len(sink.positions()) == 1 })

	f.Stop()
	seen := len(sink.positions())

	// Candidates arriving after cancellation are never processed.
	select {
	case stream.ch <- model.Position{Lat: 99}:
	default:
	}
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, seen, len(sink.positions()))

	// Stop is idempotent.
	f.Stop()
}

func TestFeedDoubleStart(t *testing.T) {
	stream := &chanStream{ch: make(chan model.Position)}
	f := New(stream, nil, &recordingSink{}, 0)

	require.NoError(t, f.Start(context.Background()))
	assert.ErrorIs(t, f.Start(context.Background()), ErrRunning)
	f.Stop()
}

func TestFeedStreamEndStopsForwarding(t *testing.T) {
	stream := &chanStream{ch: make(chan model.Position, 4)}
	sink := &recordingSink{}
	f := New(stream, nil, sink, 0)

	require.NoError(t, f.Start(context.Background()))
	stream.ch <- model.Position{Lat: 1}
	waitFor(t, func() bool { return len(sink.positions()) == 1 })

	// A closed stream ends the push producer; Stop still returns cleanly.
	require.NoError(t, stream.Close())
	f.Stop()
}

func TestHTTPSourceGet(t *testing.T) {
	alt := 12.5
	fixTime := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(wireFix{
			Lat: 52.52, Lon: 13.405, Alt: &alt, Speed: 3.5, Time: fixTime,
		})
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL)
	p, err := src.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 52.52, p.Lat)
	assert.Equal(t, 12.5, p.Altitude)
	assert.False(t, p.HasHeading(), "absent heading must come back unknown")
	assert.True(t, p.Timestamp.Equal(fixTime))
}

func TestHTTPSourceBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := NewHTTPSource(srv.URL).Get(context.Background()); err == nil {
		t.Error("non-200 poll must fail")
	}
}

func TestWireFixDefaultsTimestamp(t *testing.T) {
	p := wireFix{Lat: 1, Lon: 2}.position()
	assert.False(t, p.Timestamp.IsZero(), "zero wire time should default to now")
	assert.False(t, p.HasAltitude())
	assert.False(t, p.HasHeading())
}
