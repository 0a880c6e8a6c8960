package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mariadb"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/database/sqlite"
	"github.com/kozaktomas/face-attendance/internal/enrollment"
	"github.com/kozaktomas/face-attendance/internal/facedetect"
	"github.com/kozaktomas/face-attendance/internal/gallery"
)

// openRepository opens the storage backend named by cfg.Database.Driver.
func openRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (database.Repository, error) {
	switch cfg.Database.Driver {
	case "", "sqlite":
		loc, err := cfg.Attendance.Location()
		if err != nil {
			return nil, fmt.Errorf("attendance timezone: %w", err)
		}
		store, err := sqlite.Open(cfg.Database.URL, loc)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database: %w", err)
		}
		logger.Info("using SQLite backend", "path", cfg.Database.URL)
		return store, nil
	case "postgres":
		store, err := postgres.Open(ctx, &cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		logger.Info("using PostgreSQL backend")
		return store, nil
	case "mariadb", "mysql":
		pool, err := mariadb.Open(ctx, &cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MariaDB: %w", err)
		}
		logger.Info("using MariaDB backend")
		return pool, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q (want sqlite, postgres or mariadb)", cfg.Database.Driver)
	}
}

// app bundles the services shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	repo     database.Repository
	gallery  *gallery.Store
	detector facedetect.Detector
	enroller *enrollment.Service
	reporter *attendance.Reporter
	ledger   *attendance.Ledger
}

// newApp opens storage and loads the gallery. withDetector controls whether the
// face detector and enrollment service are built.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, withDetector bool) (*app, error) {
	loc, err := cfg.Attendance.Location()
	if err != nil {
		return nil, fmt.Errorf("attendance timezone: %w", err)
	}

	repo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		repo:     repo,
		reporter: attendance.NewReporter(repo, loc),
		ledger:   attendance.NewLedger(repo, loc),
	}
	a.gallery = gallery.NewStore(repo, gallery.Options{
		Dim:   cfg.Embedding.Dim,
		Index: cfg.Recognition.Index,
	}, logger)

	if !withDetector {
		return a, nil
	}

	a.detector, err = facedetect.New(&cfg.Embedding)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("face detector: %w", err)
	}

	var archive enrollment.Archive
	if cfg.Archive.Endpoint != "" {
		minioArchive, err := enrollment.NewMinioArchive(ctx, &cfg.Archive)
		if err != nil {
			// Archiving is optional; enrollment works without it.
			logger.Warn("photo archive unavailable", "endpoint", cfg.Archive.Endpoint, "error", err)
		} else {
			archive = minioArchive
			logger.Info("archiving enrollment photos", "endpoint", cfg.Archive.Endpoint, "bucket", cfg.Archive.Bucket)
		}
	}
	a.enroller = enrollment.NewService(repo, a.detector, a.gallery, archive, cfg.Embedding.Dim, logger)
	return a, nil
}

// Close releases the storage backend.
func (a *app) Close() {
	if err := a.repo.Close(); err != nil {
		a.logger.Warn("failed to close database", "error", err)
	}
}

// detectorBuild lists the detector kinds compiled into this binary.
func detectorBuild() string {
	if facedetect.DlibCompiled {
		return facedetect.KindHTTP + ", " + facedetect.KindDlib
	}
	return facedetect.KindHTTP
}
