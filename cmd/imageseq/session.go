package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"imageseq/internal/catalog"
	"imageseq/internal/config"
	"imageseq/internal/framestore"
	"imageseq/internal/logging"
	"imageseq/internal/metrics"
	"imageseq/internal/sequence"
	"imageseq/internal/task"
)

const tickInterval = 10 * time.Millisecond

// session is one controller plus the host pieces around it: the completion
// loop, the catalog and the optional metrics listener.
type session struct {
	cfg         *config.Config
	logger      *slog.Logger
	ctl         *sequence.Controller
	loop        *task.Loop
	catalog     *catalog.Store
	metrics     *metrics.Recorder
	server      *http.Server
	metricsAddr string
	progress    io.Writer
}

func newSession(cmdCtx *commandContext, uploader framestore.Uploader, progress io.Writer) (*session, error) {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := cmdCtx.ensureLogger()
	if err != nil {
		return nil, err
	}
	opts, err := sequence.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s := &session{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "cli"),
		loop:     task.NewLoop(),
		metrics:  metrics.New(registry),
		progress: progress,
	}
	s.ctl = sequence.New(opts, sequence.Deps{
		Uploader:  uploader,
		Scheduler: s.loop,
		Logger:    logger,
		Metrics:   s.metrics,
	})

	store, err := catalog.Open(cfg)
	if err != nil {
		logging.WarnWithContext(s.logger, "run catalog unavailable", "catalog_open_failed",
			logging.Error(err),
			logging.String(logging.FieldPath, cfg.Paths.CatalogPath),
			logging.String(logging.FieldImpact, "this run will not appear in history"),
		)
	} else {
		s.catalog = store
	}

	if err := s.serveMetrics(cfg.Metrics.Addr); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *session) serveMetrics(addr string) error {
	if addr == "" {
		return nil
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("metrics server stopped", logging.Error(err))
		}
	}()
	s.metricsAddr = listener.Addr().String()
	s.logger.Info("serving metrics", logging.String("addr", s.metricsAddr))
	return nil
}

// run starts an operation and ticks the loop until its event arrives. When ctx
// is canceled the worker is canceled and joined; the canceled event is still
// awaited so it can be recorded.
func (s *session) run(ctx context.Context, kind sequence.EventKind, start func(context.Context) error) (sequence.Event, error) {
	done := s.ctl.Await(kind)
	// The worker gets its own context; interruption goes through Cancel so
	// the join happens before this function returns.
	if err := start(context.WithoutCancel(ctx)); err != nil {
		select {
		case ev := <-done:
			s.record(ev)
			return ev, err
		default:
			return sequence.Event{}, err
		}
	}

	sampler := logging.NewProgressSampler(25)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	interrupted := false
	for {
		select {
		case ev := <-done:
			s.record(ev)
			if interrupted {
				return ev, ctx.Err()
			}
			return ev, nil
		case <-ctx.Done():
			if !interrupted {
				interrupted = true
				s.cancel(kind)
			}
			s.loop.Tick()
		case <-ticker.C:
			s.loop.Tick()
			s.reportProgress(sampler, kind)
		}
	}
}

func (s *session) cancel(kind sequence.EventKind) {
	var err error
	switch kind {
	case sequence.EventImportComplete:
		err = s.ctl.CancelImport()
	case sequence.EventExportComplete:
		err = s.ctl.CancelExport()
	}
	if err != nil && !errors.Is(err, sequence.ErrNoActiveTask) {
		s.logger.Warn("cancel failed", logging.String(logging.FieldOperation, kind.Operation()), logging.Error(err))
	}
}

func (s *session) reportProgress(sampler *logging.ProgressSampler, kind sequence.EventKind) {
	if s.progress == nil {
		return
	}
	var fraction float64
	switch kind {
	case sequence.EventImportComplete:
		fraction = s.ctl.PercentImported()
	case sequence.EventExportComplete:
		fraction = s.ctl.PercentExported()
	default:
		return
	}
	percent := fraction * 100
	if sampler.ShouldLog(percent, kind.Operation()) {
		fmt.Fprintf(s.progress, "%s %3.0f%%\n", operationLabel(kind), percent)
	}
}

// record appends ev to the catalog. Failures only warn.
func (s *session) record(ev sequence.Event) {
	if s.catalog == nil || ev.RunID == "" {
		return
	}
	run := catalog.Run{
		ID:        ev.RunID,
		Operation: ev.Kind.Operation(),
		Outcome:   catalog.Outcome(ev.Outcome()),
		Folder:    ev.Folder,
		Frames:    ev.Frames,
		Failed:    ev.Failed,
		Skipped:   ev.Skipped,
		Width:     s.ctl.Width(),
		Height:    s.ctl.Height(),
		Elapsed:   ev.Elapsed,
	}
	if ev.Err != nil {
		run.Error = ev.Err.Error()
	}
	if ev.Kind == sequence.EventExportComplete {
		run.ExportDir = s.ctl.ExportDir()
	}

	var frames []catalog.Frame
	if ev.Kind != sequence.EventExportComplete {
		for i, slot := range s.ctl.Frames() {
			frames = append(frames, catalog.Frame{Index: i, Identifier: slot.Identifier, Path: slot.Path, Failed: slot.Failed})
		}
	}
	if err := s.catalog.Record(context.Background(), run, frames); err != nil {
		logging.WarnWithContext(s.logger, "failed to record run", "catalog_record_failed",
			logging.String(logging.FieldRunID, ev.RunID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "run missing from history"),
		)
	}
}

func (s *session) close() {
	if s.ctl != nil {
		s.ctl.Close()
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = s.server.Shutdown(shutdownCtx)
		cancel()
	}
	if s.catalog != nil {
		_ = s.catalog.Close()
	}
}
