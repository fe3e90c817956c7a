package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"tracklog/pkg/model"
)

// wireFix is the JSON shape of one fix on the wire, shared by the
// websocket stream and the HTTP poll endpoint. Optional fields use
// pointers; absent ones become Unknown.
type wireFix struct {
	Lat      float64   `json:"lat"`
	Lon      float64   `json:"lon"`
	Alt      *float64  `json:"alt"`
	Heading  *float64  `json:"heading"`
	Speed    float64   `json:"speed"`
	Accuracy float64   `json:"accuracy"`
	Time     time.Time `json:"time"`
}

func (w wireFix) position() model.Position {
	p := model.Position{
		Lat:       w.Lat,
		Lon:       w.Lon,
		Altitude:  model.Unknown,
		Heading:   model.Unknown,
		Speed:     w.Speed,
		Accuracy:  w.Accuracy,
		Timestamp: w.Time,
	}
	if w.Alt != nil {
		p.Altitude = *w.Alt
	}
	if w.Heading != nil {
		p.Heading = *w.Heading
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now()
	}
	return p
}

// WSStream subscribes to a websocket position stream, the push-based
// producer of the feed.
type WSStream struct {
	conn *websocket.Conn
	out  chan model.Position
	log  *slog.Logger
}

// DialWS connects to a websocket position stream and starts reading.
func DialWS(ctx context.Context, url string) (*WSStream, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: dial %s: %w", url, err)
	}
	s := &WSStream{
		conn: conn,
		out:  make(chan model.Position, 8),
		log:  slog.With("component", "ws_stream"),
	}
	go s.readLoop()
	return s, nil
}

func (s *WSStream) readLoop() {
	defer close(s.out)
	for {
		var wf wireFix
		if err := s.conn.ReadJSON(&wf); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("stream read failed", "error", err)
			}
			return
		}
		select {
		case s.out <- wf.position():
		default:
			// Consumer is behind; a dropped push fix is covered by the poll.
			s.log.Debug("dropping fix, intake full")
		}
	}
}

// Positions implements Stream.
func (s *WSStream) Positions() <-chan model.Position {
	return s.out
}

// Close tears down the connection; the read loop ends and the channel
// closes.
func (s *WSStream) Close() error {
	return s.conn.Close()
}
