package probe

import (
	"context"
	"net"
	"strconv"
	"time"
)

// DialPort reports whether a TCP connection to host:port can be established
// within timeout. Resolution failures, refusals and timeouts report false.
func DialPort(ctx context.Context, host string, port uint16, timeout time.Duration) bool {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(int(port))))
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
