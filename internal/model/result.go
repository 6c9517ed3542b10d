package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusUp   = "UP"
	StatusDown = "DOWN"
)

// DefaultPorts are probed when the configuration does not list any.
var DefaultPorts = []uint16{80, 443, 22, 3389, 21}

// Target is a single host name or IP address read from a target list.
type Target struct {
	Line int    // 1-based line in the source file, 0 if unknown
	Host string // verbatim host name or IP
}

type PortState struct {
	Port uint16
	Open bool
}

// HostResult is the outcome of checking one Target. Use NewHostResult
// so Up and Overridden stay consistent with PingUp and Ports.
type HostResult struct {
	Target     Target
	PingUp     bool
	Ports      []PortState
	Up         bool
	Overridden bool // ping failed, but an open port proved the host reachable
	Started    time.Time
	Elapsed    time.Duration
}

func NewHostResult(target Target, pingUp bool, ports []PortState) HostResult {
	r := HostResult{
		Target: target,
		PingUp: pingUp,
		Ports:  ports,
	}
	r.Up = pingUp || len(r.OpenPorts()) > 0
	r.Overridden = r.Up && !pingUp
	return r
}

func (r HostResult) OpenPorts() []uint16 {
	var open []uint16
	for _, p := range r.Ports {
		if p.Open {
			open = append(open, p.Port)
		}
	}
	return open
}

func (r HostResult) Status() string {
	return status(r.Up)
}

func (r HostResult) PingStatus() string {
	return status(r.PingUp)
}

func status(up bool) string {
	if up {
		return StatusUp
	}
	return StatusDown
}

// Report is a single check run over the whole target list.
type Report struct {
	ID       uuid.UUID
	Started  time.Time
	Finished time.Time
	Ports    []uint16
	Hosts    []HostResult // in target list order
}

func NewReport(started time.Time, ports []uint16) Report {
	return Report{
		ID:      uuid.New(),
		Started: started,
		Ports:   append([]uint16(nil), ports...),
	}
}

// UpCount returns the number of hosts with an overall UP status.
func (r Report) UpCount() int {
	var n int
	for _, h := range r.Hosts {
		if h.Up {
			n++
		}
	}
	return n
}
