package track

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"tracklog/pkg/gpx"
	"tracklog/pkg/store"
)

// activeSessionKey is the state key naming the session currently recording.
const activeSessionKey = "active_session"

// Rescue checks for a journaled session left behind by a crashed run and,
// if one exists, writes its points out as a recovered track file so the
// recording is not lost. It returns the written path, or "" when there
// was nothing to recover. The journal is cleared once the file is safely
// on disk.
func Rescue(ctx context.Context, st store.Store, outputDir, name string) (string, error) {
	id, found := st.GetState(ctx, activeSessionKey)
	if !found || id == "" {
		return "", nil
	}

	points, err := st.LoadPoints(ctx, id)
	if err != nil {
		return "", fmt.Errorf("load journal for session %s: %w", id, err)
	}
	if len(points) == 0 {
		// A session was active but never logged a point; just tidy up.
		clearRescued(ctx, st, id)
		return "", nil
	}

	started := points[0].AcceptedAt
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create output dir: %v", ErrPersistence, err)
	}
	base := strings.TrimSuffix(FileName(started), ".gpx") + "_recovered.gpx"
	path := filepath.Join(outputDir, base)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("%w: create recovery file: %v", ErrPersistence, err)
	}

	docName := strings.TrimSuffix(base, ".gpx")
	doc := gpx.Build(docName, fmt.Sprintf("recovered by %s", name), started, points)
	if err := doc.Encode(file); err != nil {
		_ = file.Close()
		return "", fmt.Errorf("%w: write recovery file: %v", ErrPersistence, err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("%w: close recovery file: %v", ErrPersistence, err)
	}

	clearRescued(ctx, st, id)
	slog.Info("recovered interrupted session", "session_id", id, "points", len(points), "file", path)
	return path, nil
}

func clearRescued(ctx context.Context, st store.Store, id string) {
	if err := st.ClearSession(ctx, id); err != nil {
		slog.Warn("failed to clear rescued journal", "session_id", id, "error", err)
	}
	if err := st.DeleteState(ctx, activeSessionKey); err != nil {
		slog.Warn("failed to clear active session marker", "error", err)
	}
}
