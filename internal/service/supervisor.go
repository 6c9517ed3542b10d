package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync"

	gocron "github.com/go-co-op/gocron/v2"

	"github.com/CZERTAINLY/netcheck/internal/log"
	"github.com/CZERTAINLY/netcheck/internal/model"
	"github.com/CZERTAINLY/netcheck/internal/report"
	"github.com/CZERTAINLY/netcheck/internal/store"
)

// output binds a sink to the formats it receives
type output struct {
	formats []string
	sink    Sink
}

type Supervisor struct {
	scanner Scanner
	outputs []output
	summary io.Writer
	oneshot bool
	job     gocron.JobDefinition
	startAt bool // run immediately when the scheduler starts
	history *sql.DB
	mx      sync.Mutex // one run at a time
}

func NewSupervisor(ctx context.Context, cfg model.Config) (*Supervisor, error) {
	scanner, err := NewScanner(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s := &Supervisor{
		scanner: scanner,
		oneshot: cfg.Service.Mode != model.ServiceModeTimer,
	}

	if !s.oneshot {
		s.job, s.startAt, err = jobDefinition(ctx, cfg.Service.Schedule)
		if err != nil {
			return nil, fmt.Errorf("timer mode failed: %w", err)
		}
	}

	s.outputs, err = outputs(cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing sinks: %w", err)
	}

	if cfg.History.Path != "" {
		s.history, err = store.Open(ctx, cfg.History.Path)
		if err != nil {
			s.closeSinks(ctx)
			return nil, fmt.Errorf("opening history %s: %w", cfg.History.Path, err)
		}
	}

	return s, nil
}

// WithSinks replaces all configured sinks by sinks receiving formats.
// This method exists for a unit testing only.
func (s *Supervisor) WithSinks(ctx context.Context, formats []string, sinks ...Sink) *Supervisor {
	s.closeSinks(ctx)
	s.outputs = nil
	for _, sink := range sinks {
		s.outputs = append(s.outputs, output{formats: formats, sink: sink})
	}
	return s
}

// WithSummary makes each run print a plain text summary to w.
func (s *Supervisor) WithSummary(w io.Writer) *Supervisor {
	s.summary = w
	return s
}

// Do runs the supervisor.
//
// Modes:
//   - Oneshot (manual): a single run, its error is returned. A target list
//     without any host is only logged.
//   - Timer: runs are scheduled until ctx is canceled, errors are logged.
//
// Sinks and the history database are closed once Do returns.
func (s *Supervisor) Do(ctx context.Context) error {
	slog.DebugContext(ctx, "starting a supervisor", "oneshot", s.oneshot)
	defer s.close(ctx)

	if s.oneshot {
		_, err := s.RunOnce(ctx)
		if errors.Is(err, model.ErrNoTargets) {
			slog.WarnContext(ctx, "no targets found to scan: please check the targets file", "error", err)
			return nil
		}
		return err
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("initializing gocron scheduler: %w", err)
	}
	options := []gocron.JobOption{
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
	if s.startAt {
		options = append(options, gocron.WithStartAt(gocron.WithStartImmediately()))
	}
	_, err = scheduler.NewJob(
		s.job,
		gocron.NewTask(func() {
			if _, err := s.RunOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "scheduled run failed", "error", err)
			}
		}),
		options...,
	)
	if err != nil {
		return fmt.Errorf("initializing gocron job: %w", err)
	}

	scheduler.Start()
	<-ctx.Done()
	if err := scheduler.Shutdown(); err != nil {
		slog.ErrorContext(ctx, "shutting down gocron has failed", "error", err)
	}
	return nil
}

// RunOnce checks all targets, publishes the report to every sink and
// stores it in the history. Publishing errors are joined together.
func (s *Supervisor) RunOnce(ctx context.Context) (model.Report, error) {
	s.mx.Lock()
	defer s.mx.Unlock()

	r, err := s.scanner.Do(ctx)
	if err != nil {
		return model.Report{}, err
	}
	ctx = log.ContextAttrs(ctx, slog.String("run", r.ID.String()))

	var errs []error
	if err := s.publish(ctx, r); err != nil {
		errs = append(errs, err)
	}
	if s.history != nil {
		if err := store.SaveReport(ctx, s.history, r); err != nil {
			errs = append(errs, fmt.Errorf("saving history: %w", err))
		}
	}
	if s.summary != nil {
		if err := report.Summary(s.summary, r); err != nil {
			slog.WarnContext(ctx, "writing summary failed", "error", err)
		}
	}
	return r, errors.Join(errs...)
}

func (s *Supervisor) publish(ctx context.Context, r model.Report) error {
	rendered := make(map[string]Artifact)
	var errs []error
	for _, o := range s.outputs {
		for _, format := range o.formats {
			a, ok := rendered[format]
			if !ok {
				var err error
				a, err = render(format, r)
				if err != nil {
					return err
				}
				rendered[format] = a
			}
			if err := o.sink.Publish(ctx, a); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func render(format string, r model.Report) (Artifact, error) {
	name, err := report.FileName(format, r.Finished)
	if err != nil {
		return Artifact{}, err
	}
	var buf bytes.Buffer
	if err := report.Render(&buf, format, r); err != nil {
		return Artifact{}, err
	}
	return Artifact{Format: format, Name: name, Data: buf.Bytes()}, nil
}

func (s *Supervisor) close(ctx context.Context) {
	s.closeSinks(ctx)
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			slog.ErrorContext(ctx, "closing history have failed", "error", err)
		}
		s.history = nil
	}
}

func (s *Supervisor) closeSinks(ctx context.Context) {
	for _, o := range s.outputs {
		if closer, ok := o.sink.(SinkCloser); ok {
			if err := closer.Close(); err != nil {
				slog.ErrorContext(ctx, "closing sink have failed", "error", err)
			}
		}
	}
}

func jobDefinition(ctx context.Context, cfgp *model.Schedule) (gocron.JobDefinition, bool, error) {
	if cfgp == nil {
		return nil, false, errors.New("service.schedule is nil")
	}
	cfg := *cfgp
	switch {
	case cfg.Cron != "":
		if _, err := model.ParseCron(cfg.Cron); err != nil {
			return nil, false, fmt.Errorf("parsing service.schedule.cron: %w", err)
		}
		slog.DebugContext(ctx, "successfully parsed", "cron", cfg.Cron)
		return gocron.CronJob(cfg.Cron, false), false, nil
	case cfg.Duration != "":
		d, err := model.ParseISODuration(cfg.Duration)
		if err != nil {
			return nil, false, fmt.Errorf("parsing service.schedule.duration: %w", err)
		}
		if d <= 0 {
			return nil, false, fmt.Errorf("service.schedule.duration must be positive: %s", cfg.Duration)
		}
		slog.DebugContext(ctx, "successfully parsed", "duration", d.String())
		return gocron.DurationJob(d), true, nil
	default:
		return nil, false, errors.New("both cron and duration are empty")
	}
}

func outputs(cfg model.Config) ([]output, error) {
	formats := cfg.Report.Formats
	if len(formats) == 0 {
		formats = []string{model.FormatHTML}
	}
	formats = slices.Compact(slices.Clone(formats))

	var ret []output
	if cfg.Service.Dir == "" {
		ret = append(ret, output{formats: formats, sink: NewWriteSink(os.Stdout)})
	} else {
		sink, err := NewDirSink(cfg.Service.Dir)
		if err != nil {
			return nil, err
		}
		ret = append(ret, output{formats: formats, sink: sink})
	}

	if repo := cfg.Report.Repository; repo != nil && repo.Enabled {
		sink, err := NewRepoSink(repo.URL)
		if err != nil {
			for _, o := range ret {
				if closer, ok := o.sink.(SinkCloser); ok {
					_ = closer.Close()
				}
			}
			return nil, err
		}
		ret = append(ret, output{formats: []string{model.FormatBOM}, sink: sink})
	}
	return ret, nil
}
