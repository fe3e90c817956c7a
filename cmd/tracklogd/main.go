package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tracklog/pkg/config"
	"tracklog/pkg/db"
	"tracklog/pkg/export"
	"tracklog/pkg/feed"
	"tracklog/pkg/gridsnap"
	"tracklog/pkg/logging"
	"tracklog/pkg/model"
	"tracklog/pkg/probe"
	"tracklog/pkg/sparsify"
	"tracklog/pkg/store"
	"tracklog/pkg/track"
	"tracklog/pkg/version"
)

var (
	configPath = flag.String("config", "configs/tracklog.yaml", "Path to config file")
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
)

func main() {
	flag.Parse()

	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated:", *configPath)
		return
	}

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// .env carries per-deployment overrides; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("Tracklog Started", "version", version.Version)

	dbConn, err := db.Init(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbConn.Close()
	st := store.NewSQLiteStore(dbConn)

	// A journal left by a crashed run becomes a recovered track file
	// before anything new starts writing.
	if _, err := track.Rescue(ctx, st, cfg.Track.OutputDir, cfg.Track.Name); err != nil {
		slog.Warn("Recovery of previous session failed", "error", err)
	}

	session := track.NewSession(track.Options{
		Thresholds:  thresholds(cfg),
		OutputDir:   cfg.Track.OutputDir,
		Name:        cfg.Track.Name,
		Environment: environmentProbes(cfg),
		Exporter:    newExporter(cfg),
		Journal:     st,
		State:       st,
		Listener:    newListener(cfg),
	})

	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	// A failure between here and the feed going live must still finalize
	// the session, or the pre-created track file and the active-session
	// marker would leak. Stopping an empty session removes both.
	abortSession := func(err error) error {
		if _, stopErr := session.Stop(context.Background()); stopErr != nil {
			slog.Warn("Cleanup of unused session failed", "error", stopErr)
		}
		return err
	}

	var stream feed.Stream
	ws, err := feed.DialWS(ctx, cfg.Feed.WSURL)
	if err != nil {
		// The poll fallback can still feed the session; without either
		// the daemon is useless.
		if cfg.Feed.PollURL == "" {
			return abortSession(fmt.Errorf("failed to connect to position stream: %w", err))
		}
		slog.Warn("Position stream unavailable, relying on poll fallback", "url", cfg.Feed.WSURL, "error", err)
	} else {
		stream = ws
	}

	var source feed.Source
	if cfg.Feed.PollURL != "" {
		source = feed.NewHTTPSource(cfg.Feed.PollURL)
	}

	fd := feed.New(stream, source, session, cfg.PollInterval())
	if err := fd.Start(ctx); err != nil {
		if stream != nil {
			_ = stream.Close()
		}
		return abortSession(fmt.Errorf("failed to start feed: %w", err))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-quit:
		slog.Info("Shutting down", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down")
	}

	// Producers first, so no candidate lands after the finalize.
	fd.Stop()
	if stream != nil {
		_ = stream.Close()
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	path, err := session.Stop(stopCtx)
	if err != nil {
		return fmt.Errorf("failed to finalize session: %w", err)
	}
	stats := session.Stats()
	switch {
	case path == "":
		slog.Info("Session finished with no points, nothing written", "rejected", stats.Rejected)
	case cfg.Export.Enabled && cfg.Export.Command != "":
		// On export success the local copy is already gone.
		slog.Info("Session exported", "track", path, "accepted", stats.Accepted(), "rejected", stats.Rejected)
	default:
		slog.Info("Session finalized", "file", path, "accepted", stats.Accepted(), "rejected", stats.Rejected)
	}
	return nil
}

func thresholds(cfg *config.Config) sparsify.Thresholds {
	return sparsify.Thresholds{
		Distance:     float64(cfg.Track.Distance),
		TurnAngle:    cfg.Track.TurnAngleDeg,
		TurnMinSpeed: cfg.Track.TurnMinSpeedKmh / 3.6,
		MinTime:      time.Duration(cfg.Track.MinTime),
	}
}

// environmentProbes builds the pre-flight checks Start runs before any
// file is created: the output directory must be writable and the feed
// endpoint must resolve.
func environmentProbes(cfg *config.Config) []probe.Probe {
	outputDir := cfg.Track.OutputDir
	wsURL := cfg.Feed.WSURL

	return []probe.Probe{
		probe.Permission(func(ctx context.Context) (bool, error) {
			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return false, err
			}
			f, err := os.CreateTemp(outputDir, ".probe-*")
			if err != nil {
				return false, nil
			}
			name := f.Name()
			f.Close()
			os.Remove(name)
			return true, nil
		}),
		probe.Service(func(ctx context.Context) (bool, error) {
			u, err := url.Parse(wsURL)
			if err != nil || u.Host == "" {
				return false, fmt.Errorf("invalid stream url %q", wsURL)
			}
			host := u.Host
			if u.Port() == "" {
				port := "80"
				if u.Scheme == "wss" {
					port = "443"
				}
				host = net.JoinHostPort(u.Hostname(), port)
			}
			var d net.Dialer
			conn, err := d.DialContext(ctx, "tcp", host)
			if err != nil {
				return false, nil
			}
			conn.Close()
			return true, nil
		}),
	}
}

func newExporter(cfg *config.Config) export.Exporter {
	if !cfg.Export.Enabled || cfg.Export.Command == "" {
		return nil
	}
	return export.NewCommand(cfg.Export.Command)
}

// newListener returns the accepted-point hook: when grid diagnostics are
// enabled it logs each accepted fix snapped to its cell.
func newListener(cfg *config.Config) track.Listener {
	cell := cfg.Track.GridCellDeg
	if cell <= 0 {
		return nil
	}
	return func(p model.Position) {
		snapped, err := gridsnap.Snap(p, cell)
		if err != nil {
			return
		}
		slog.Debug("Accepted point cell",
			"lat", snapped.Lat, "lon", snapped.Lon, "cell_deg", cell)
	}
}
