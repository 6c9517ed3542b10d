// Package probe checks reachability of hosts. A host is pinged and then
// every configured TCP port is probed with a connect attempt. A host whose
// ping fails but which has an open port is reported UP, since ICMP is often
// filtered.
package probe

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/CZERTAINLY/netcheck/internal/log"
	"github.com/CZERTAINLY/netcheck/internal/model"
	"github.com/CZERTAINLY/netcheck/internal/parallel"
)

type Checker struct {
	pinger      Pinger // nil disables ping
	ports       []uint16
	portTimeout time.Duration
	concurrency int
	pingWarned  *atomic.Bool
}

// NewChecker creates a Checker probing ports in the given order.
func NewChecker(ports ...uint16) Checker {
	return Checker{
		ports:       append([]uint16(nil), ports...),
		portTimeout: time.Second,
		concurrency: 1,
		pingWarned:  &atomic.Bool{},
	}
}

func (c Checker) WithPinger(pinger Pinger) Checker {
	c.pinger = pinger
	return c
}

func (c Checker) WithPortTimeout(d time.Duration) Checker {
	c.portTimeout = d
	return c
}

// WithConcurrency sets how many hosts are checked at once, 1 checks them
// one after another.
func (c Checker) WithConcurrency(n int) Checker {
	c.concurrency = max(n, 1)
	return c
}

func (c Checker) Ports() []uint16 {
	return append([]uint16(nil), c.ports...)
}

// Check pings the target, probes all ports and applies the override rule.
func (c Checker) Check(ctx context.Context, target model.Target) model.HostResult {
	ctx = log.ContextAttrs(ctx, slog.String("target", target.Host))
	started := time.Now()

	pingUp := c.ping(ctx, target.Host)

	ports := make([]model.PortState, 0, len(c.ports))
	for _, port := range c.ports {
		open := DialPort(ctx, target.Host, port, c.portTimeout)
		slog.DebugContext(ctx, "port probed", "port", port, "open", open)
		ports = append(ports, model.PortState{Port: port, Open: open})
	}

	result := model.NewHostResult(target, pingUp, ports)
	result.Started = started
	result.Elapsed = time.Since(started)

	if result.Overridden {
		slog.InfoContext(ctx, "ping failed, but an open port was found: overriding status")
	}
	slog.InfoContext(ctx, "host checked",
		"ping", result.PingStatus(),
		"status", result.Status(),
		"open_ports", result.OpenPorts(),
		"elapsed", result.Elapsed.String(),
	)
	return result
}

func (c Checker) ping(ctx context.Context, host string) bool {
	if c.pinger == nil {
		return false
	}
	up, err := c.pinger.Ping(ctx, host)
	if err == nil {
		return up
	}
	if errors.Is(err, model.ErrPingUnavailable) {
		if c.pingWarned != nil && c.pingWarned.CompareAndSwap(false, true) {
			slog.WarnContext(ctx, "ping is not available: treating hosts as not answering", "error", err)
		}
	} else {
		slog.WarnContext(ctx, "ping failed", "error", err)
	}
	return false
}

// CheckAll checks every target with at most concurrency hosts in flight.
// Results are in the order of targets. A canceled ctx returns its error.
func (c Checker) CheckAll(ctx context.Context, targets []model.Target) ([]model.HostResult, error) {
	check := func(ctx context.Context, t parallel.Indexed[model.Target]) (parallel.Indexed[model.HostResult], error) {
		return parallel.Indexed[model.HostResult]{Index: t.Index, Value: c.Check(ctx, t.Value)}, nil
	}

	results := make([]model.HostResult, len(targets))
	done := 0
	for r, err := range parallel.NewMap(ctx, c.concurrency, check).Iter(parallel.Enumerate(targets)) {
		if err != nil {
			continue
		}
		results[r.Index] = r.Value
		done++
		slog.DebugContext(ctx, "progress", "done", done, "total", len(targets))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
