// Package resolver implements the iterative recursion engine and the
// single-exchange UDP client it uses to contact each nameserver along a
// delegation chain.
package resolver

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jrecursive/resolvd/internal/dns/packet"
)

// ErrNetwork covers every socket-level failure a hop can produce: dial
// failure, write failure, read failure or timeout. No retry is attempted --
// the caller decides whether to try another nameserver.
var ErrNetwork = errors.New("resolver: network error")

// DefaultExchangeTimeout bounds how long a single send/receive against one
// nameserver may take before it is treated as a network error.
const DefaultExchangeTimeout = 5 * time.Second

// UdpClient performs one query/response exchange against a single
// nameserver over a freshly dialed UDP socket, scoped to that hop and
// closed before the caller moves on.
type UdpClient struct {
	Timeout time.Duration
}

// NewUdpClient returns a client with the default exchange timeout.
func NewUdpClient() *UdpClient {
	return &UdpClient{Timeout: DefaultExchangeTimeout}
}

// Exchange binds an ephemeral local port, sends query to serverAddr, and
// reads a single reply datagram into a 512-byte buffer. Any socket failure
// is wrapped in ErrNetwork.
func (c *UdpClient) Exchange(serverAddr string, query []byte) ([]byte, error) {
	conn, err := net.DialTimeout("udp", serverAddr, c.timeout())
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrNetwork, serverAddr, err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.Write(query); err != nil {
		return nil, fmt.Errorf("%w: write to %s: %v", ErrNetwork, serverAddr, err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(c.timeout())); err != nil {
		return nil, fmt.Errorf("%w: set deadline: %v", ErrNetwork, err)
	}

	resp := make([]byte, packet.PacketSize)
	n, err := conn.Read(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: read from %s: %v", ErrNetwork, serverAddr, err)
	}
	return resp[:n], nil
}

func (c *UdpClient) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultExchangeTimeout
	}
	return c.Timeout
}
