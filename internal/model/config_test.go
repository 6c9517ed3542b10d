package model_test

import (
	"strings"
	"testing"
	"time"

	"github.com/CZERTAINLY/netcheck/internal/model"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	yml := `
version: 0
targets: hosts.txt
ports: [8080, 8443]
port_timeout: 250ms
concurrency: 4
ping:
  method: icmp
  timeout: 500ms
report:
  formats: [html, bom]
  repository:
    url: https://cbom.example.com
service:
  mode: timer
  dir: /var/lib/netcheck
  schedule:
    duration: PT5M
history:
  path: history.db
`
	cfg, err := model.LoadConfig(strings.NewReader(yml))
	require.NoError(t, err)
	require.Equal(t, "hosts.txt", cfg.Targets)
	require.Equal(t, []uint16{8080, 8443}, cfg.PortList())
	require.Equal(t, 250*time.Millisecond, cfg.PortTimeoutDuration())
	require.Equal(t, 4, cfg.Concurrency)
	require.True(t, cfg.Ping.Enabled)
	require.Equal(t, model.PingMethodICMP, cfg.Ping.Method)
	require.Equal(t, 500*time.Millisecond, cfg.Ping.TimeoutDuration())
	require.Equal(t, 2*time.Second, cfg.Ping.CommandTimeoutDuration())
	require.Equal(t, []string{model.FormatHTML, model.FormatBOM}, cfg.Report.Formats)
	require.NotNil(t, cfg.Report.Repository)
	require.True(t, cfg.Report.Repository.Enabled)
	require.Equal(t, "https://cbom.example.com", cfg.Report.Repository.URL)
	require.Equal(t, model.ServiceModeTimer, cfg.Service.Mode)
	require.Equal(t, "/var/lib/netcheck", cfg.Service.Dir)
	require.NotNil(t, cfg.Service.Schedule)
	require.Equal(t, "PT5M", cfg.Service.Schedule.Duration)
	require.Equal(t, "history.db", cfg.History.Path)
}

func TestDefaultConfig(t *testing.T) {
	cfg := model.DefaultConfig()
	require.Equal(t, 0, cfg.Version)
	require.Equal(t, "targets.txt", cfg.Targets)
	require.Equal(t, []uint16{80, 443, 22, 3389, 21}, cfg.PortList())
	require.Equal(t, time.Second, cfg.PortTimeoutDuration())
	require.Equal(t, 1, cfg.Concurrency)
	require.True(t, cfg.Ping.Enabled)
	require.Equal(t, model.PingMethodExec, cfg.Ping.Method)
	require.Equal(t, "ping", cfg.Ping.Binary)
	require.Equal(t, []string{model.FormatHTML}, cfg.Report.Formats)
	require.Nil(t, cfg.Report.Repository)
	require.Equal(t, model.ServiceModeManual, cfg.Service.Mode)
	require.Equal(t, ".", cfg.Service.Dir)
	require.Nil(t, cfg.Service.Schedule)
	require.Empty(t, cfg.History.Path)
}

func TestLoadConfig_Fail(t *testing.T) {
	var testCases = []struct {
		scenario string
		given    string
		then     string
	}{
		{
			scenario: "unknown ping method",
			given:    "version: 0\nping:\n  method: raw\n",
			then:     "method",
		},
		{
			scenario: "port out of range",
			given:    "version: 0\nports: [0]\n",
			then:     "ports",
		},
		{
			scenario: "unknown field",
			given:    "version: 0\nfilesystem:\n  enabled: true\n",
			then:     "filesystem",
		},
		{
			scenario: "bad duration",
			given:    "version: 0\nport_timeout: soon\n",
			then:     "port_timeout",
		},
		{
			scenario: "repository without scheme",
			given:    "version: 0\nreport:\n  repository:\n    url: cbom.example.com\n",
			then:     "url",
		},
		{
			scenario: "unsupported version",
			given:    "version: 1\n",
			then:     "version",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			_, err := model.LoadConfig(strings.NewReader(tc.given))
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.then)
		})
	}
}

func TestConfigErrDetails(t *testing.T) {
	require.Nil(t, model.ConfigErrDetails(nil))

	_, err := model.LoadConfig(strings.NewReader("version: 0\nservice:\n  mode: daemon\n"))
	require.Error(t, err)
	for _, d := range model.ConfigErrDetails(err) {
		require.NotEmpty(t, d.Code)
		require.NotEmpty(t, d.Message)
	}
}
