// Package app runs one tender sweep: search, deduplicate, persist, notify and report health.
package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/tenderwatch/internal/health"
	"github.com/JakeFAU/tenderwatch/internal/metrics"
	"github.com/JakeFAU/tenderwatch/internal/results"
	"github.com/JakeFAU/tenderwatch/internal/telemetry"
	"github.com/JakeFAU/tenderwatch/internal/tender"
)

const (
	startBanner  = "---------------------------- Starting script ----------------------------"
	finishBanner = "---------------------------- Script Finished ----------------------------"
)

// Archive is an ArtifactStore that also names archived objects.
type Archive interface {
	tender.ArtifactStore
	ObjectPath(day time.Time, digest string) string
}

// Options holds the values a run needs besides its collaborators.
type Options struct {
	Phrases         []string
	LinkPrefix      string
	ResultsPath     string
	LogFile         string
	StatusFile      string
	MetricsTextfile string
}

// Deps groups the collaborators of a Runner.
// Archive, Hasher, Metrics, Notifiers and Tracer are optional.
type Deps struct {
	Logger    *zap.Logger
	IDs       tender.IDStore
	Portal    tender.Portal
	Artifacts tender.ArtifactStore
	Archive   Archive
	Hasher    tender.Hasher
	Notifiers []tender.Notifier
	Clock     tender.Clock
	IDGen     tender.IDGenerator
	Metrics   *metrics.Run
	Tracer    trace.Tracer
}

// Report summarizes a finished run.
type Report struct {
	RunID         string
	Batch         tender.Batch
	PhrasesFailed int
	ArtifactURI   string
	ArchiveURI    string
	Status        health.Status
}

// Runner executes the sweep. A Runner is not safe for concurrent use.
type Runner struct {
	opts Options
	deps Deps
}

// New validates the required collaborators.
func New(opts Options, deps Deps) (*Runner, error) {
	switch {
	case deps.IDs == nil:
		return nil, errors.New("identifier store is required")
	case deps.Portal == nil:
		return nil, errors.New("portal is required")
	case deps.Artifacts == nil:
		return nil, errors.New("artifact store is required")
	case deps.Clock == nil:
		return nil, errors.New("clock is required")
	case deps.IDGen == nil:
		return nil, errors.New("id generator is required")
	case deps.Archive != nil && deps.Hasher == nil:
		return nil, errors.New("hasher is required when archiving")
	}
	if len(opts.Phrases) == 0 {
		return nil, errors.New("at least one phrase is required")
	}
	if opts.ResultsPath == "" || opts.StatusFile == "" {
		return nil, errors.New("results path and status file are required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer(telemetry.TracerName)
	}
	return &Runner{opts: opts, deps: deps}, nil
}

// Run performs one sweep. The status file is written on every path that gets
// past setup; the returned error is non-nil only for fatal failures.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	start := r.deps.Clock.Now()

	runID, err := r.deps.IDGen.NewID()
	if err != nil {
		r.deps.Logger.Error("Failed to generate run id", zap.Error(err))
	}
	logger := r.deps.Logger.With(zap.String("run_id", runID))
	logger.Info(startBanner)

	ctx, span := r.deps.Tracer.Start(ctx, "tenderwatch.run", trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()

	report := Report{RunID: runID}
	batch, runErr := r.collect(ctx, logger, &report)
	if runErr == nil {
		report.Batch = batch
		if batch.Empty() {
			logger.Info("No new entries for eZamowienia found.")
		} else {
			r.publish(ctx, logger, start, &report)
		}
	}

	report.Status = r.reportHealth(logger, start)
	r.recordMetrics(logger, report, start)

	span.SetAttributes(
		attribute.Int("records", report.Batch.Count()),
		attribute.Int("phrases_failed", report.PhrasesFailed),
		attribute.Int("status", report.Status.Status),
	)
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	}
	logger.Info(finishBanner)
	return report, runErr
}

// collect loads the known identifiers, opens the portal and searches every phrase.
func (r *Runner) collect(ctx context.Context, logger *zap.Logger, report *Report) (tender.Batch, error) {
	known, err := r.deps.IDs.Load(ctx)
	if err != nil {
		logger.Error("An error occured while loading known identifiers", zap.Error(err))
		return nil, fmt.Errorf("load identifiers: %w", err)
	}
	logger.Info("Loaded known identifiers", zap.Int("count", len(known)))

	session, err := r.deps.Portal.Open(ctx)
	if err != nil {
		logger.Error("An error occured while trying to access URL", zap.Error(err))
		return nil, fmt.Errorf("open portal: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("Failed to close browser session", zap.Error(err))
		}
	}()
	logger.Info("Search page loaded")

	collector := tender.NewCollector(known, r.opts.LinkPrefix, logger)
	for _, phrase := range r.opts.Phrases {
		if err := ctx.Err(); err != nil {
			logger.Error("Run interrupted before all phrases were searched", zap.Error(err))
			break
		}
		if !r.search(ctx, logger, session, collector, phrase) {
			report.PhrasesFailed++
		}
	}
	return collector.Batch(), nil
}

func (r *Runner) search(ctx context.Context, logger *zap.Logger, session tender.Session, collector *tender.Collector, phrase string) bool {
	ctx, span := r.deps.Tracer.Start(ctx, "tenderwatch.search", trace.WithAttributes(attribute.String("phrase", phrase)))
	defer span.End()

	rows, err := session.Search(ctx, phrase)
	if err != nil {
		logger.Error("An error occured while trying to find elements",
			zap.String("phrase", phrase), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.observePhrase(false)
		return false
	}
	r.observePhrase(true)
	added, skipped := collector.Add(phrase, rows)
	span.SetAttributes(attribute.Int("rows", len(rows)), attribute.Int("added", added))
	if r.deps.Metrics != nil {
		r.deps.Metrics.ObserveRows(added, skipped)
	}
	return true
}

// publish runs the terminal steps in order; each failure is logged and the next step still runs.
func (r *Runner) publish(ctx context.Context, logger *zap.Logger, start time.Time, report *Report) {
	ctx, span := r.deps.Tracer.Start(ctx, "tenderwatch.publish")
	defer span.End()

	batch := report.Batch
	body, err := results.Encode(batch)
	if err != nil {
		logger.Error("An error occured while encoding results", zap.Error(err))
		return
	}

	uri, err := r.deps.Artifacts.PutObject(ctx, r.opts.ResultsPath, results.ContentType, bytes.NewReader(body))
	if err != nil {
		logger.Error("An error occurred while trying to save data to JSON",
			zap.String("path", r.opts.ResultsPath), zap.Error(err))
	} else {
		report.ArtifactURI = uri
		logger.Info("Data saved to JSON", zap.String("uri", uri), zap.Int("records", batch.Count()))
	}

	if r.deps.Archive != nil {
		report.ArchiveURI = r.archive(ctx, logger, start, body)
	}

	if err := r.deps.IDs.Append(ctx, batch.Identifiers()); err != nil {
		logger.Error("An error occured while saving identifiers", zap.Error(err))
	} else {
		logger.Info("Saved new identifiers", zap.Int("count", batch.Count()))
	}

	note := tender.Notification{
		RunID:        report.RunID,
		Date:         start,
		Body:         body,
		ArtifactName: filepath.Base(r.opts.ResultsPath),
		ArtifactPath: report.ArtifactURI,
		Records:      batch.Count(),
	}
	for _, n := range r.deps.Notifiers {
		err := n.Notify(ctx, note)
		if r.deps.Metrics != nil {
			r.deps.Metrics.ObserveNotification(n.Name(), err)
		}
		if err != nil {
			logger.Error("An error occured while sending notification",
				zap.String("notifier", n.Name()), zap.Error(err))
			continue
		}
		logger.Info("Notification sent", zap.String("notifier", n.Name()))
	}
}

func (r *Runner) archive(ctx context.Context, logger *zap.Logger, day time.Time, body []byte) string {
	digest, err := r.deps.Hasher.Hash(body)
	if err != nil {
		logger.Error("An error occured while hashing results", zap.Error(err))
		return ""
	}
	path := r.deps.Archive.ObjectPath(day, digest)
	uri, err := r.deps.Archive.PutObject(ctx, path, results.ContentType, bytes.NewReader(body))
	if err != nil {
		logger.Error("An error occured while archiving results", zap.String("path", path), zap.Error(err))
		return ""
	}
	logger.Info("Results archived", zap.String("uri", uri))
	return uri
}

// reportHealth scans today's log lines and writes the status record stamped
// with the run's start.
func (r *Runner) reportHealth(logger *zap.Logger, start time.Time) health.Status {
	_ = logger.Sync() //nolint:errcheck // stderr sync fails on some terminals

	now := r.deps.Clock.Now()
	found := false
	if r.opts.LogFile != "" {
		var err error
		found, err = health.ScanFile(r.opts.LogFile, now)
		if err != nil {
			logger.Error("An error occured while reading the run log", zap.Error(err))
			found = true
		}
	}

	status := health.Derive(found, start)
	if status.OK() {
		logger.Info(status.LastMessage)
	} else {
		logger.Warn(status.LastMessage)
	}

	if err := health.WriteStatus(r.opts.StatusFile, status); err != nil {
		logger.Error("An error occured while writing status", zap.String("path", r.opts.StatusFile), zap.Error(err))
	} else {
		logger.Info("Added status details", zap.String("path", r.opts.StatusFile), zap.Int("status", status.Status))
	}
	return status
}

func (r *Runner) recordMetrics(logger *zap.Logger, report Report, start time.Time) {
	if r.deps.Metrics == nil {
		return
	}
	finished := r.deps.Clock.Now()
	r.deps.Metrics.ObserveRun(report.Status.Status, report.Batch.Count(), finished, finished.Sub(start))
	if err := r.deps.Metrics.WriteTextfile(r.opts.MetricsTextfile); err != nil {
		logger.Error("An error occured while writing metrics", zap.String("path", r.opts.MetricsTextfile), zap.Error(err))
	}
}

func (r *Runner) observePhrase(ok bool) {
	if r.deps.Metrics != nil {
		r.deps.Metrics.ObservePhrase(ok)
	}
}
