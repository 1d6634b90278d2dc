package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/JakeFAU/tenderwatch/internal/clock/system"
	"github.com/JakeFAU/tenderwatch/internal/config"
	"github.com/JakeFAU/tenderwatch/internal/hash/sha256"
	"github.com/JakeFAU/tenderwatch/internal/id/uuid"
	"github.com/JakeFAU/tenderwatch/internal/idstore"
	"github.com/JakeFAU/tenderwatch/internal/idstore/postgres"
	"github.com/JakeFAU/tenderwatch/internal/metrics"
	"github.com/JakeFAU/tenderwatch/internal/notify/email"
	tenderpubsub "github.com/JakeFAU/tenderwatch/internal/notify/pubsub"
	"github.com/JakeFAU/tenderwatch/internal/portal"
	"github.com/JakeFAU/tenderwatch/internal/storage/gcs"
	"github.com/JakeFAU/tenderwatch/internal/storage/local"
	"github.com/JakeFAU/tenderwatch/internal/tender"
)

// Build wires a Runner from cfg. Setup failures of the identifier store and
// the portal are fatal; optional outputs that cannot be reached are logged
// and left out of the run. The returned func releases every opened client.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Runner, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	ids, closeIDs, err := buildIDStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if closeIDs != nil {
		closers = append(closers, closeIDs)
	}

	browser, err := portal.NewChromedp(portal.Config{
		SearchURL:         cfg.Portal.SearchURL,
		SearchInput:       cfg.Portal.SearchInput,
		SubmitButton:      cfg.Portal.SubmitButton,
		ResultsTable:      cfg.Portal.ResultsTable,
		UserAgent:         cfg.Portal.UserAgent,
		Headless:          cfg.Portal.Headless,
		NavigationTimeout: cfg.Portal.NavigationTimeout,
		RenderTimeout:     cfg.Portal.RenderTimeout,
		PollInterval:      cfg.Portal.PollInterval,
		Settle:            cfg.Portal.Settle,
		SearchesPerSecond: cfg.Portal.SearchesPerSecond,
	}, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("configure portal: %w", err)
	}

	resultsDir, resultsName, err := splitResultsPath(cfg.Paths.ResultsFile)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	artifacts, err := local.New(local.Config{BaseDir: resultsDir})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("configure results store: %w", err)
	}

	deps := Deps{
		Logger:    logger,
		IDs:       ids,
		Portal:    browser,
		Artifacts: artifacts,
		Clock:     system.New(),
		IDGen:     uuid.New(),
		Metrics:   metrics.NewRun(),
	}

	if cfg.Storage.GCSBucket != "" {
		archive, err := gcs.Dial(ctx, gcs.Config{Bucket: cfg.Storage.GCSBucket, Prefix: cfg.Storage.GCSPrefix})
		if err != nil {
			logger.Error("Results archive unavailable", zap.String("bucket", cfg.Storage.GCSBucket), zap.Error(err))
		} else {
			deps.Archive = archive
			deps.Hasher = sha256.New()
			closers = append(closers, closeLogged(logger, "gcs", archive.Close))
		}
	}

	if cfg.Mail.Enabled {
		mailer, err := email.New(email.Config{
			Host:          cfg.Mail.Host,
			Port:          cfg.Mail.Port,
			Username:      cfg.Mail.Username,
			Password:      cfg.Mail.Password,
			To:            cfg.Mail.To,
			SubjectPrefix: cfg.Mail.SubjectPrefix,
			Timeout:       cfg.Mail.Timeout,
		})
		if err != nil {
			logger.Error("Email notifier unavailable", zap.Error(err))
		} else {
			deps.Notifiers = append(deps.Notifiers, mailer)
		}
	}

	if cfg.PubSub.ProjectID != "" && cfg.PubSub.Topic != "" {
		publisher, err := tenderpubsub.Dial(ctx, cfg.PubSub.ProjectID, cfg.PubSub.Topic)
		if err != nil {
			logger.Error("Pub/Sub notifier unavailable", zap.String("topic", cfg.PubSub.Topic), zap.Error(err))
		} else {
			deps.Notifiers = append(deps.Notifiers, publisher)
			closers = append(closers, closeLogged(logger, "pubsub", publisher.Close))
		}
	}

	runner, err := New(Options{
		Phrases:         cfg.Portal.Phrases,
		LinkPrefix:      cfg.Portal.DetailURLPrefix,
		ResultsPath:     resultsName,
		LogFile:         cfg.StatePath(cfg.Paths.LogFile),
		StatusFile:      cfg.StatePath(cfg.Paths.StatusFile),
		MetricsTextfile: cfg.Metrics.Textfile,
	}, deps)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return runner, cleanup, nil
}

func buildIDStore(ctx context.Context, cfg config.Config) (tender.IDStore, func(), error) {
	switch cfg.Storage.IDsBackend {
	case config.BackendFile:
		store, err := idstore.NewFileStore(cfg.StatePath(cfg.Paths.IDsFile))
		if err != nil {
			return nil, nil, fmt.Errorf("configure identifier file: %w", err)
		}
		return store, nil, nil
	case config.BackendPostgres:
		store, err := postgres.New(ctx, postgres.Config{
			DSN:      cfg.DB.DSN,
			Table:    cfg.DB.Table,
			MaxConns: cfg.DB.MaxConns,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect identifier database: %w", err)
		}
		return store, store.Close, nil
	default:
		return nil, nil, errors.New("unknown identifier backend: " + cfg.Storage.IDsBackend)
	}
}

// splitResultsPath anchors the results file at its own directory; relative
// paths resolve against the working directory.
func splitResultsPath(path string) (string, string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", "", fmt.Errorf("resolve results path %q: %w", path, err)
	}
	return filepath.Dir(abs), filepath.Base(abs), nil
}

func closeLogged(logger *zap.Logger, name string, fn func() error) func() {
	return func() {
		if err := fn(); err != nil {
			logger.Warn("Error closing client", zap.String("client", name), zap.Error(err))
		}
	}
}
