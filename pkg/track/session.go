package track

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tracklog/pkg/export"
	"tracklog/pkg/gpx"
	"tracklog/pkg/model"
	"tracklog/pkg/probe"
	"tracklog/pkg/sparsify"
	"tracklog/pkg/store"
)

var (
	// ErrAlreadyActive is returned by Start while recording.
	ErrAlreadyActive = errors.New("track: session already active")
	// ErrNotActive is returned by Submit/Stop outside Recording.
	ErrNotActive = errors.New("track: session not active")
	// ErrFinalized is returned by Start on a finished session; construct a
	// new session to record again.
	ErrFinalized = errors.New("track: session finalized")
	// ErrPersistence wraps file write/delete failures at finalize.
	ErrPersistence = errors.New("track: persistence failure")
)

// Status is the session lifecycle state.
type Status int

const (
	StatusIdle Status = iota
	StatusRecording
	StatusFinalized
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRecording:
		return "recording"
	case StatusFinalized:
		return "finalized"
	}
	return "unknown"
}

// Listener receives every accepted position, synchronously with its
// acceptance and exactly once. It must not call back into the session.
type Listener func(p model.Position)

// Options configures a Session.
type Options struct {
	Thresholds  sparsify.Thresholds
	OutputDir   string
	Name        string        // Metadata name for the track document
	Environment []probe.Probe // Checked during Start; a critical failure aborts
	Exporter    export.Exporter
	Journal     store.JournalStore // Optional crash-recovery journal
	State       store.StateStore   // Optional active-session bookkeeping
	Listener    Listener
	Now         func() time.Time // Test hook, defaults to time.Now
}

// Session accumulates sparsified track points from Start to Stop and
// finalizes them into a track file. All methods are safe for concurrent
// use; candidate evaluation and the decision-memory update happen under
// one lock so no two accepts can ever observe the same stale baseline.
type Session struct {
	mu        sync.Mutex
	id        string
	status    Status
	decider   *sparsify.Decider
	mem       sparsify.Memory
	points    []model.TrackPoint
	startedAt time.Time
	file      *os.File
	filePath  string
	counters  counters
	opts      Options
	log       *slog.Logger
}

// NewSession creates an idle session.
func NewSession(opts Options) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Name == "" {
		opts.Name = "tracklog"
	}
	id := uuid.NewString()
	return &Session{
		id:      id,
		status:  StatusIdle,
		decider: sparsify.New(opts.Thresholds),
		opts:    opts,
		log:     slog.With("component", "session", "session_id", id),
	}
}

// ID returns the session identity used in logs and the journal.
func (s *Session) ID() string { return s.id }

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Points returns a copy of the accepted points so far.
func (s *Session) Points() []model.TrackPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.TrackPoint, len(s.points))
	copy(out, s.points)
	return out
}

// FilePath returns the output file path, empty before Start.
func (s *Session) FilePath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filePath
}

// Stats returns a snapshot of the accept/reject counters.
func (s *Session) Stats() Stats {
	return s.counters.snapshot()
}

// Start transitions Idle -> Recording: runs the environment checks,
// opens a fresh output file named from the start time, and resets the
// decision memory. A failed start leaves no artifacts and the session
// stays Idle.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case StatusRecording:
		return ErrAlreadyActive
	case StatusFinalized:
		return ErrFinalized
	}

	if len(s.opts.Environment) > 0 {
		if err := probe.Analyze(probe.Run(ctx, s.opts.Environment)); err != nil {
			return fmt.Errorf("environment not ready: %w", err)
		}
	}

	now := s.opts.Now()
	if err := os.MkdirAll(s.opts.OutputDir, 0o755); err != nil {
		return fmt.Errorf("%w: create output dir: %v", ErrPersistence, err)
	}
	path := filepath.Join(s.opts.OutputDir, FileName(now))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: create track file: %v", ErrPersistence, err)
	}

	s.startedAt = now
	s.file = file
	s.filePath = path
	s.mem.Reset()
	s.points = nil

	if s.opts.State != nil {
		if err := s.opts.State.SetState(ctx, activeSessionKey, s.id); err != nil {
			s.log.Warn("failed to record active session", "error", err)
		}
	}

	s.status = StatusRecording
	s.log.Info("session started", "file", path)
	return nil
}

// Submit evaluates one candidate. On accept it appends a point, advances
// the decision memory, journals the point and notifies the listener; on
// reject nothing observable changes. Valid only while Recording.
func (s *Session) Submit(ctx context.Context, p model.Position) (sparsify.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusRecording {
		return sparsify.Decision{}, ErrNotActive
	}

	dec := s.decider.Decide(&s.mem, p)
	if !dec.Accept {
		s.counters.rejected.Add(1)
		s.log.Debug("candidate rejected",
			"distance_m", dec.Distance, "turn_deg", dec.TurnAngle, "elapsed", dec.Elapsed)
		return dec, nil
	}

	tp := model.TrackPoint{
		Position:   p,
		Reason:     dec.Reason,
		AcceptedAt: s.opts.Now(),
		Distance:   dec.Distance,
		TurnAngle:  dec.TurnAngle,
		Elapsed:    dec.Elapsed,
	}
	s.points = append(s.points, tp)
	s.mem.Update(p)
	s.counters.accepted(dec.Reason)

	if s.opts.Journal != nil {
		if err := s.opts.Journal.AppendPoint(ctx, s.id, len(s.points)-1, tp); err != nil {
			// The in-memory point stands; only crash recovery degrades.
			s.log.Warn("journal append failed", "error", err)
		}
	}

	s.log.Info("point logged", "reason", dec.Reason.String(),
		"lat", p.Lat, "lon", p.Lon, "distance_m", dec.Distance)

	if s.opts.Listener != nil {
		s.opts.Listener(p)
	}
	return dec, nil
}

// Stop transitions Recording -> Finalized: builds the track document from
// the points as they stand, writes it, hands it to the exporter, and
// deletes the local file only after the handoff succeeds. An empty
// session produces no file and no export. A second call returns
// ErrNotActive. On persistence or export failure the points stay
// retained and the file (if written) is kept for inspection.
//
// The returned path is where the document was written. After a
// successful export the local copy has already been removed, so the
// path names a file that no longer exists.
func (s *Session) Stop(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusRecording {
		return "", ErrNotActive
	}
	// Finalized before any I/O: the transition is monotonic even when the
	// flush below fails, and no late candidate can slip in.
	s.status = StatusFinalized

	file := s.file
	s.file = nil

	if len(s.points) == 0 {
		_ = file.Close()
		if err := os.Remove(s.filePath); err != nil {
			return "", fmt.Errorf("%w: remove empty track file: %v", ErrPersistence, err)
		}
		s.clearBookkeeping(ctx)
		s.log.Info("session stopped with no points, no track written")
		return "", nil
	}

	name := strings.TrimSuffix(filepath.Base(s.filePath), ".gpx")
	doc := gpx.Build(name, fmt.Sprintf("recorded by %s", s.opts.Name), s.startedAt, s.points)
	if err := doc.Encode(file); err != nil {
		_ = file.Close()
		return s.filePath, fmt.Errorf("%w: write track file: %v", ErrPersistence, err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return s.filePath, fmt.Errorf("%w: sync track file: %v", ErrPersistence, err)
	}
	if err := file.Close(); err != nil {
		return s.filePath, fmt.Errorf("%w: close track file: %v", ErrPersistence, err)
	}

	stats := s.counters.snapshot()
	s.log.Info("session finalized", "file", s.filePath,
		"points", len(s.points), "rejected", stats.Rejected)

	if s.opts.Exporter != nil {
		subject := fmt.Sprintf("%s %s (%d points)", s.opts.Name, name, len(s.points))
		if err := s.opts.Exporter.Export(ctx, s.filePath, subject); err != nil {
			// Keep the local file: deleting on a failed handoff would lose
			// the only copy of the track.
			return s.filePath, err
		}
		if err := os.Remove(s.filePath); err != nil {
			return s.filePath, fmt.Errorf("%w: remove exported track file: %v", ErrPersistence, err)
		}
	}

	s.clearBookkeeping(ctx)
	return s.filePath, nil
}

func (s *Session) clearBookkeeping(ctx context.Context) {
	if s.opts.Journal != nil {
		if err := s.opts.Journal.ClearSession(ctx, s.id); err != nil {
			s.log.Warn("failed to clear journal", "error", err)
		}
	}
	if s.opts.State != nil {
		if err := s.opts.State.DeleteState(ctx, activeSessionKey); err != nil {
			s.log.Warn("failed to clear active session", "error", err)
		}
	}
}

// FileName derives the output file name from the session start time:
// RFC3339 truncated to seconds with colons replaced by dashes.
func FileName(start time.Time) string {
	ts := start.UTC().Truncate(time.Second).Format(time.RFC3339)
	return "track_" + strings.ReplaceAll(ts, ":", "-") + ".gpx"
}
