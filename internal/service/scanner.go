package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/CZERTAINLY/netcheck/internal/log"
	"github.com/CZERTAINLY/netcheck/internal/model"
	"github.com/CZERTAINLY/netcheck/internal/probe"
	"github.com/CZERTAINLY/netcheck/internal/targets"
)

// Scanner is a component, which encapsulates the check of a target list.
type Scanner struct {
	targetsPath string
	checker     probe.Checker
}

func NewScanner(ctx context.Context, cfg model.Config) (Scanner, error) {
	if cfg.Version != 0 {
		return Scanner{}, fmt.Errorf("config version %d is not supported, expected 0", cfg.Version)
	}

	checker := probe.NewChecker(cfg.PortList()...).
		WithPortTimeout(cfg.PortTimeoutDuration()).
		WithConcurrency(cfg.Concurrency)

	pinger, err := newPinger(cfg.Ping)
	if err != nil {
		return Scanner{}, err
	}
	if pinger != nil {
		checker = checker.WithPinger(pinger)
	} else {
		slog.DebugContext(ctx, "ping disabled: hosts are up only with an open port")
	}

	return Scanner{
		targetsPath: cfg.Targets,
		checker:     checker,
	}, nil
}

func newPinger(cfg model.Ping) (probe.Pinger, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Method {
	case model.PingMethodExec, "":
		p := probe.NewExecPinger().
			WithTimeout(cfg.TimeoutDuration()).
			WithCommandTimeout(cfg.CommandTimeoutDuration())
		if cfg.Binary != "" {
			p = p.WithBinary(cfg.Binary)
		}
		return p, nil
	case model.PingMethodICMP:
		return probe.NewICMPPinger().
			WithTimeout(cfg.TimeoutDuration()).
			WithPrivileged(cfg.Privileged), nil
	default:
		return nil, fmt.Errorf("unsupported ping method %q", cfg.Method)
	}
}

// Do reads the targets and checks all of them. A target list without any
// host returns model.ErrNoTargets.
func (s Scanner) Do(ctx context.Context) (model.Report, error) {
	hosts, err := targets.ReadFile(s.targetsPath)
	if err != nil {
		return model.Report{}, fmt.Errorf("reading targets: %w", err)
	}
	if len(hosts) == 0 {
		return model.Report{}, fmt.Errorf("%s: %w", s.targetsPath, model.ErrNoTargets)
	}

	r := model.NewReport(time.Now(), s.checker.Ports())
	ctx = log.ContextAttrs(ctx, slog.String("run", r.ID.String()))
	slog.InfoContext(ctx, "starting scan", "targets", len(hosts), "file", s.targetsPath, "ports", r.Ports)

	results, err := s.checker.CheckAll(ctx, hosts)
	if err != nil {
		return model.Report{}, fmt.Errorf("checking hosts: %w", err)
	}
	r.Hosts = results
	r.Finished = time.Now()
	slog.InfoContext(ctx, "scan finished", "up", r.UpCount(), "total", len(r.Hosts), "elapsed", r.Finished.Sub(r.Started).String())
	return r, nil
}
