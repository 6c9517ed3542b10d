package probe

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"
	"time"

	"github.com/CZERTAINLY/netcheck/internal/model"
)

// Pinger reports whether a host answers an ICMP echo request. A host which
// does not answer is a negative result, not an error. Errors are reserved
// for a ping facility which is not available at all.
type Pinger interface {
	Ping(ctx context.Context, host string) (bool, error)
}

// ExecPinger runs the operating system ping utility once per host and
// considers exit code 0 as a reply.
type ExecPinger struct {
	binary         string
	goos           string
	timeout        time.Duration
	commandTimeout time.Duration
}

func NewExecPinger() ExecPinger {
	return ExecPinger{
		binary:         "ping",
		goos:           runtime.GOOS,
		timeout:        time.Second,
		commandTimeout: 2 * time.Second,
	}
}

func (p ExecPinger) WithBinary(binary string) ExecPinger {
	p.binary = binary
	return p
}

// WithTimeout sets how long a single echo reply is awaited.
func (p ExecPinger) WithTimeout(d time.Duration) ExecPinger {
	p.timeout = d
	return p
}

// WithCommandTimeout bounds the runtime of the whole ping process.
func (p ExecPinger) WithCommandTimeout(d time.Duration) ExecPinger {
	p.commandTimeout = d
	return p
}

// WithGOOS selects the argument dialect, runtime.GOOS is the default.
func (p ExecPinger) WithGOOS(goos string) ExecPinger {
	p.goos = goos
	return p
}

func (p ExecPinger) Ping(ctx context.Context, host string) (bool, error) {
	if p.commandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.commandTimeout)
		defer cancel()
	}

	args := p.Args(host)
	cmd := exec.CommandContext(ctx, p.binary, args...)
	// do not wait for grandchildren holding the output pipe after a kill
	cmd.WaitDelay = 100 * time.Millisecond
	out, err := cmd.CombinedOutput()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		return false, fmt.Errorf("%w: %s: %w", model.ErrPingUnavailable, p.binary, err)
	case ctx.Err() != nil:
		slog.DebugContext(ctx, "ping timed out", "binary", p.binary, "args", args)
		return false, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		slog.DebugContext(ctx, "ping failed", "exit_code", exitErr.ExitCode(), "output", string(out))
		return false, nil
	}
	return false, fmt.Errorf("running %s: %w", p.binary, err)
}

// Args returns the arguments for a single echo request with a reply timeout.
func (p ExecPinger) Args(host string) []string {
	switch p.goos {
	case "windows":
		return []string{"-n", "1", "-w", millis(p.timeout), host}
	case "darwin", "freebsd":
		return []string{"-c", "1", "-W", millis(p.timeout), host}
	default:
		// iputils and busybox take whole seconds
		secs := max(int64((p.timeout+time.Second-1)/time.Second), 1)
		return []string{"-c", "1", "-W", strconv.FormatInt(secs, 10), host}
	}
}

func millis(d time.Duration) string {
	return strconv.FormatInt(max(d.Milliseconds(), 1), 10)
}
