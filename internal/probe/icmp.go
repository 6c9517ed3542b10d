package probe

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/CZERTAINLY/netcheck/internal/model"
)

const (
	protocolICMP     = 1
	protocolIPv6ICMP = 58
)

var icmpSeq atomic.Uint32

// ICMPPinger sends a single echo request without an external binary.
// The unprivileged mode uses datagram ICMP sockets (Linux ping_group_range,
// macOS), the privileged one raw sockets.
type ICMPPinger struct {
	timeout    time.Duration
	privileged bool
}

func NewICMPPinger() ICMPPinger {
	return ICMPPinger{timeout: time.Second}
}

func (p ICMPPinger) WithTimeout(d time.Duration) ICMPPinger {
	p.timeout = d
	return p
}

func (p ICMPPinger) WithPrivileged(privileged bool) ICMPPinger {
	p.privileged = privileged
	return p
}

func (p ICMPPinger) Ping(ctx context.Context, host string) (bool, error) {
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil || len(addrs) == 0 {
		slog.DebugContext(ctx, "icmp: resolve failed", "error", err)
		return false, nil
	}
	ip := addrs[0].IP

	network, listen, proto := "udp4", "0.0.0.0", protocolICMP
	var echoType, replyType icmp.Type = ipv4.ICMPTypeEcho, ipv4.ICMPTypeEchoReply
	if ip.To4() == nil {
		network, listen, proto = "udp6", "::", protocolIPv6ICMP
		echoType, replyType = ipv6.ICMPTypeEchoRequest, ipv6.ICMPTypeEchoReply
	}
	if p.privileged {
		if proto == protocolICMP {
			network = "ip4:icmp"
		} else {
			network = "ip6:ipv6-icmp"
		}
	}

	conn, err := icmp.ListenPacket(network, listen)
	if err != nil {
		return false, fmt.Errorf("%w: listen %s: %w", model.ErrPingUnavailable, network, err)
	}
	defer func() {
		_ = conn.Close()
	}()

	deadline := time.Now().Add(p.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return false, fmt.Errorf("icmp: set deadline: %w", err)
	}

	id := os.Getpid() & 0xffff
	seq := int(icmpSeq.Add(1) & 0xffff)
	msg := icmp.Message{
		Type: echoType,
		Code: 0,
		Body: &icmp.Echo{
			ID:   id,
			Seq:  seq,
			Data: []byte("netcheck"),
		},
	}
	b, err := msg.Marshal(nil)
	if err != nil {
		return false, fmt.Errorf("icmp: marshal echo: %w", err)
	}

	var dst net.Addr = &net.UDPAddr{IP: ip}
	if p.privileged {
		dst = &net.IPAddr{IP: ip}
	}
	if _, err := conn.WriteTo(b, dst); err != nil {
		slog.DebugContext(ctx, "icmp: send failed", "error", err)
		return false, nil
	}

	buf := make([]byte, 1500)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			// deadline exceeded
			return false, nil
		}
		reply, err := icmp.ParseMessage(proto, buf[:n])
		if err != nil || reply.Type != replyType {
			continue
		}
		echo, ok := reply.Body.(*icmp.Echo)
		if !ok || echo.Seq != seq {
			continue
		}
		// datagram sockets get the ID rewritten by the kernel
		if p.privileged && echo.ID != id {
			continue
		}
		return true, nil
	}
}
