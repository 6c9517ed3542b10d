package model_test

import (
	"testing"
	"time"

	"github.com/CZERTAINLY/netcheck/internal/model"

	"github.com/stretchr/testify/require"
)

func TestNewHostResult(t *testing.T) {
	t.Parallel()
	target := model.Target{Line: 1, Host: "192.0.2.1"}

	type given struct {
		ping  bool
		ports []model.PortState
	}
	type then struct {
		up         bool
		overridden bool
		open       []uint16
		status     string
	}

	var testCases = []struct {
		scenario string
		given    given
		then     then
	}{
		{
			scenario: "ping up, no ports",
			given:    given{ping: true},
			then:     then{up: true, status: model.StatusUp},
		},
		{
			scenario: "ping down, all closed",
			given:    given{ping: false, ports: []model.PortState{{Port: 80}, {Port: 443}}},
			then:     then{up: false, status: model.StatusDown},
		},
		{
			scenario: "ping down, open port overrides",
			given:    given{ping: false, ports: []model.PortState{{Port: 80}, {Port: 443, Open: true}}},
			then:     then{up: true, overridden: true, open: []uint16{443}, status: model.StatusUp},
		},
		{
			scenario: "ping up, open port is not an override",
			given:    given{ping: true, ports: []model.PortState{{Port: 22, Open: true}, {Port: 21, Open: true}}},
			then:     then{up: true, open: []uint16{22, 21}, status: model.StatusUp},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			r := model.NewHostResult(target, tc.given.ping, tc.given.ports)
			require.Equal(t, tc.then.up, r.Up)
			require.Equal(t, tc.then.overridden, r.Overridden)
			require.Equal(t, tc.then.open, r.OpenPorts())
			require.Equal(t, tc.then.status, r.Status())
			require.Equal(t, target, r.Target)
		})
	}
}

func TestReport(t *testing.T) {
	t.Parallel()
	ports := []uint16{80, 443}
	r := model.NewReport(time.Now(), ports)
	ports[0] = 8080
	require.Equal(t, []uint16{80, 443}, r.Ports)
	require.NotZero(t, r.ID)

	r.Hosts = []model.HostResult{
		model.NewHostResult(model.Target{Host: "a"}, true, nil),
		model.NewHostResult(model.Target{Host: "b"}, false, nil),
		model.NewHostResult(model.Target{Host: "c"}, false, []model.PortState{{Port: 80, Open: true}}),
	}
	require.Equal(t, 2, r.UpCount())
}
