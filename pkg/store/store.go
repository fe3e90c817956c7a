package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"tracklog/pkg/db"
	"tracklog/pkg/model"
)

// StateStore handles persistent application state.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
}

// JournalStore persists accepted points while a session is recording, so
// an interrupted run remains recoverable.
type JournalStore interface {
	AppendPoint(ctx context.Context, sessionID string, seq int, p model.TrackPoint) error
	LoadPoints(ctx context.Context, sessionID string) ([]model.TrackPoint, error)
	ClearSession(ctx context.Context, sessionID string) error
}

// Store composes the sub-interfaces for full store access. Consumers
// should depend on specific sub-interfaces when possible.
type Store interface {
	StateStore
	JournalStore

	// Close closes the store connection.
	Close() error
}

// SQLiteStore implements Store.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(db *db.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- State ---

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key)
	var val string
	if err := row.Scan(&val); err != nil {
		return "", false
	}
	return val, true
}

func (s *SQLiteStore) SetState(ctx context.Context, key, val string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO state (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, val)
	return err
}

func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM state WHERE key = ?`, key)
	return err
}

// --- Journal ---

// journalPoint is the JSON shape of a journaled point. Optional floats
// use pointers because JSON has no NaN.
type journalPoint struct {
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	Altitude   *float64  `json:"alt,omitempty"`
	Heading    *float64  `json:"heading,omitempty"`
	Speed      float64   `json:"speed"`
	Accuracy   float64   `json:"accuracy,omitempty"`
	Timestamp  time.Time `json:"ts"`
	Reason     string    `json:"reason"`
	AcceptedAt time.Time `json:"accepted_at"`
	Distance   float64   `json:"distance,omitempty"`
	TurnAngle  float64   `json:"turn_angle,omitempty"`
	ElapsedSec float64   `json:"elapsed_sec,omitempty"`
}

func toJournalPoint(p model.TrackPoint) journalPoint {
	jp := journalPoint{
		Lat:        p.Lat,
		Lon:        p.Lon,
		Speed:      p.Speed,
		Accuracy:   p.Accuracy,
		Timestamp:  p.Timestamp,
		Reason:     p.Reason.String(),
		AcceptedAt: p.AcceptedAt,
		Distance:   p.Distance,
		TurnAngle:  p.TurnAngle,
		ElapsedSec: p.Elapsed.Seconds(),
	}
	if p.HasAltitude() {
		alt := p.Altitude
		jp.Altitude = &alt
	}
	if p.HasHeading() {
		hdg := p.Heading
		jp.Heading = &hdg
	}
	return jp
}

func (jp journalPoint) trackPoint() model.TrackPoint {
	tp := model.TrackPoint{
		Position: model.Position{
			Lat:       jp.Lat,
			Lon:       jp.Lon,
			Altitude:  math.NaN(),
			Heading:   math.NaN(),
			Speed:     jp.Speed,
			Accuracy:  jp.Accuracy,
			Timestamp: jp.Timestamp,
		},
		Reason:     parseReason(jp.Reason),
		AcceptedAt: jp.AcceptedAt,
		Distance:   jp.Distance,
		TurnAngle:  jp.TurnAngle,
		Elapsed:    time.Duration(jp.ElapsedSec * float64(time.Second)),
	}
	if jp.Altitude != nil {
		tp.Altitude = *jp.Altitude
	}
	if jp.Heading != nil {
		tp.Heading = *jp.Heading
	}
	return tp
}

func parseReason(s string) model.Reason {
	switch s {
	case "distance":
		return model.ReasonDistance
	case "turn":
		return model.ReasonTurn
	case "time":
		return model.ReasonTime
	}
	return model.ReasonStart
}

func (s *SQLiteStore) AppendPoint(ctx context.Context, sessionID string, seq int, p model.TrackPoint) error {
	data, err := json.Marshal(toJournalPoint(p))
	if err != nil {
		return fmt.Errorf("marshal journal point: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO journal (session_id, seq, point) VALUES (?, ?, ?)`,
		sessionID, seq, string(data))
	return err
}

func (s *SQLiteStore) LoadPoints(ctx context.Context, sessionID string) ([]model.TrackPoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT point FROM journal WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []model.TrackPoint
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var jp journalPoint
		if err := json.Unmarshal([]byte(data), &jp); err != nil {
			return nil, fmt.Errorf("unmarshal journal point: %w", err)
		}
		points = append(points, jp.trackPoint())
	}
	return points, rows.Err()
}

func (s *SQLiteStore) ClearSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM journal WHERE session_id = ?`, sessionID)
	return err
}
