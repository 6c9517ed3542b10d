package service_test

import (
	"bytes"
	"context"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/CZERTAINLY/netcheck/internal/model"
	"github.com/CZERTAINLY/netcheck/internal/service"
	"github.com/CZERTAINLY/netcheck/internal/store"
)

// countingSink records published artifacts
type countingSink struct {
	mx        sync.Mutex
	artifacts []service.Artifact
	notify    chan struct{}
}

func newCountingSink() *countingSink {
	return &countingSink{notify: make(chan struct{}, 64)}
}

func (s *countingSink) Publish(_ context.Context, a service.Artifact) error {
	s.mx.Lock()
	s.artifacts = append(s.artifacts, a)
	s.mx.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
	return nil
}

func (s *countingSink) count() int {
	s.mx.Lock()
	defer s.mx.Unlock()
	return len(s.artifacts)
}

func listen(t *testing.T) (uint16, func()) {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = ln.Close()
	})
	return netip.MustParseAddrPort(ln.Addr().String()).Port(), func() { _ = ln.Close() }
}

// testConfig returns a config checking 127.0.0.1 on one open and one closed port
func testConfig(t *testing.T, lines ...string) model.Config {
	t.Helper()
	dir := t.TempDir()
	targets := filepath.Join(dir, "targets.txt")
	require.NoError(t, os.WriteFile(targets, []byte(strings.Join(lines, "\n")), 0o644))

	open, _ := listen(t)
	closed, closeIt := listen(t)
	closeIt()

	cfg := model.DefaultConfig()
	cfg.Targets = targets
	cfg.Ports = []int{int(open), int(closed)}
	cfg.PortTimeout = "500ms"
	cfg.Ping.Enabled = false
	cfg.Service.Dir = filepath.Join(dir, "out")
	return cfg
}

func TestSupervisor_Manual(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t, "# loopback", "127.0.0.1", "")
	cfg.Report.Formats = []string{model.FormatHTML, model.FormatBOM}
	cfg.History.Path = filepath.Join(t.TempDir(), "history.db")

	var summary bytes.Buffer
	sup, err := service.NewSupervisor(t.Context(), cfg)
	require.NoError(t, err)
	sup = sup.WithSummary(&summary)

	require.NoError(t, sup.Do(t.Context()))

	entries, err := os.ReadDir(cfg.Service.Dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.Condition(t, func() bool {
		var html, bom bool
		for _, n := range names {
			html = html || strings.HasSuffix(n, ".html")
			bom = bom || strings.HasSuffix(n, ".cdx.json")
		}
		return html && bom
	}, "got %v", names)

	for _, n := range names {
		if !strings.HasSuffix(n, ".html") {
			continue
		}
		require.True(t, strings.HasPrefix(n, "network_health_report_"))
		b, err := os.ReadFile(filepath.Join(cfg.Service.Dir, n))
		require.NoError(t, err)
		require.Contains(t, string(b), "127.0.0.1")
		require.Contains(t, string(b), "ping failed, open port found")
	}

	require.Contains(t, summary.String(), "1/1 hosts up")

	db, err := store.Open(t.Context(), cfg.History.Path)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	runs, err := store.Runs(t.Context(), db, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, 1, runs[0].Hosts)
	require.Equal(t, 1, runs[0].Up)
}

func TestSupervisor_RunOnce(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t, "127.0.0.1", "localhost.invalid")
	cfg.Concurrency = 2
	cfg.Report.Formats = []string{model.FormatHTML, model.FormatBOM}

	sup, err := service.NewSupervisor(t.Context(), cfg)
	require.NoError(t, err)
	sink := newCountingSink()
	sup = sup.WithSinks(t.Context(), []string{model.FormatHTML}, sink)

	r, err := sup.RunOnce(t.Context())
	require.NoError(t, err)
	require.Len(t, r.Hosts, 2)
	require.Equal(t, "127.0.0.1", r.Hosts[0].Target.Host)
	require.True(t, r.Hosts[0].Up)
	require.True(t, r.Hosts[0].Overridden)
	require.Equal(t, "localhost.invalid", r.Hosts[1].Target.Host)
	require.False(t, r.Hosts[1].Up)

	require.Equal(t, 1, sink.count())
	require.Equal(t, model.FormatHTML, sink.artifacts[0].Format)
}

func TestSupervisor_Errors(t *testing.T) {
	t.Parallel()

	t.Run("no targets", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig(t, "# nothing here", "   ")
		sup, err := service.NewSupervisor(t.Context(), cfg)
		require.NoError(t, err)
		sink := newCountingSink()
		sup = sup.WithSinks(t.Context(), []string{model.FormatHTML}, sink)

		_, err = sup.RunOnce(t.Context())
		require.ErrorIs(t, err, model.ErrNoTargets)
		// manual mode only warns
		require.NoError(t, sup.Do(t.Context()))
		require.Zero(t, sink.count())
	})

	t.Run("missing targets file", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig(t, "127.0.0.1")
		cfg.Targets = filepath.Join(t.TempDir(), "missing.txt")
		sup, err := service.NewSupervisor(t.Context(), cfg)
		require.NoError(t, err)
		sup = sup.WithSinks(t.Context(), []string{model.FormatHTML}, newCountingSink())
		err = sup.Do(t.Context())
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("unsupported version", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig(t, "127.0.0.1")
		cfg.Version = 1
		_, err := service.NewSupervisor(t.Context(), cfg)
		require.Error(t, err)
	})

	t.Run("timer without schedule", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig(t, "127.0.0.1")
		cfg.Service.Mode = model.ServiceModeTimer
		cfg.Service.Schedule = nil
		_, err := service.NewSupervisor(t.Context(), cfg)
		require.Error(t, err)
	})

	t.Run("timer with invalid cron", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig(t, "127.0.0.1")
		cfg.Service.Mode = model.ServiceModeTimer
		cfg.Service.Schedule = &model.Schedule{Cron: "* * *"}
		_, err := service.NewSupervisor(t.Context(), cfg)
		require.Error(t, err)
	})
}

func TestSupervisor_Timer(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t, "127.0.0.1")
	cfg.Service.Mode = model.ServiceModeTimer
	cfg.Service.Schedule = &model.Schedule{Duration: "PT0.1S"}

	sup, err := service.NewSupervisor(t.Context(), cfg)
	require.NoError(t, err)
	sink := newCountingSink()
	sup = sup.WithSinks(t.Context(), []string{model.FormatHTML}, sink)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		errCh <- sup.Do(ctx)
	}()

	for i := range 2 {
		select {
		case <-sink.notify:
		case <-time.After(10 * time.Second):
			t.Fatalf("timed out waiting for run %d", i+1)
		}
	}
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("supervisor did not stop")
	}
	require.GreaterOrEqual(t, sink.count(), 2)
}
