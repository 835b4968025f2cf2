package resolver

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/jrecursive/resolvd/internal/dns/packet"
)

// DefaultRootNS is the single hard-coded root hint this resolver starts
// every lookup from. No hints file is consulted.
const DefaultRootNS = "198.41.0.4:53"

// DefaultMaxDepth bounds both the outer delegation walk and the nested
// resolution of an unglued nameserver, guarding against pathological or
// cyclic delegations.
const DefaultMaxDepth = 16

// ErrMaxDepthExceeded is returned when a lookup has not terminated within
// MaxDepth hops.
var ErrMaxDepthExceeded = errors.New("resolver: max recursion depth exceeded")

type queryFunc func(server, qname string, qtype packet.QueryType) (*packet.Packet, error)

// RecursionEngine walks the DNS delegation hierarchy iteratively, starting
// from a single root nameserver. It recurses only to resolve an unglued
// nameserver host to an address; that nesting is bounded by MaxDepth.
type RecursionEngine struct {
	RootNS   string
	MaxDepth int
	Client   *UdpClient
	Logger   *slog.Logger

	queryFn queryFunc
}

// Option configures a RecursionEngine at construction time.
type Option func(*RecursionEngine)

// WithRootNS overrides the root nameserver address (host:port).
func WithRootNS(addr string) Option {
	return func(e *RecursionEngine) { e.RootNS = addr }
}

// WithMaxDepth overrides the hop/recursion depth bound.
func WithMaxDepth(n int) Option {
	return func(e *RecursionEngine) { e.MaxDepth = n }
}

// WithClient overrides the UdpClient used to contact each nameserver.
func WithClient(c *UdpClient) Option {
	return func(e *RecursionEngine) { e.Client = c }
}

// WithLogger overrides the structured logger used for per-hop tracing.
func WithLogger(l *slog.Logger) Option {
	return func(e *RecursionEngine) { e.Logger = l }
}

// NewRecursionEngine returns an engine ready to resolve queries, defaulting
// to the single a.root-servers.net hint and a depth bound of 16.
func NewRecursionEngine(opts ...Option) *RecursionEngine {
	e := &RecursionEngine{
		RootNS:   DefaultRootNS,
		MaxDepth: DefaultMaxDepth,
		Client:   NewUdpClient(),
		Logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.queryFn = e.sendQuery
	return e
}

// Resolve walks the delegation hierarchy for (qname, qtype) starting at the
// engine's root nameserver and returns the final response packet.
func (e *RecursionEngine) Resolve(qname string, qtype packet.QueryType) (*packet.Packet, error) {
	return e.resolve(qname, qtype, e.RootNS, 0)
}

// resolve performs the outer iterative walk. depth counts how many times
// this call has been entered via the one level of true recursion used to
// resolve an unglued nameserver; it is separate from, but bounded by the
// same MaxDepth as, the inner hop loop.
func (e *RecursionEngine) resolve(qname string, qtype packet.QueryType, startNS string, depth int) (*packet.Packet, error) {
	if depth >= e.MaxDepth {
		return nil, fmt.Errorf("%w: resolving %s", ErrMaxDepthExceeded, qname)
	}

	current := startNS
	var lastResp *packet.Packet

	for hop := 0; hop < e.MaxDepth; hop++ {
		e.Logger.Debug("recursive lookup",
			"qname", qname, "qtype", qtype.String(), "ns", current, "depth", depth, "hop", hop)

		resp, err := e.queryFn(current, qname, qtype)
		if err != nil {
			e.Logger.Warn("hop failed", "ns", current, "error", err)
			return nil, err
		}
		lastResp = resp

		if len(resp.Answers) > 0 && resp.Header.ResCode == packet.NOERROR {
			e.Logger.Debug("resolved", "qname", qname, "ns", current)
			return resp, nil
		}
		if resp.Header.ResCode == packet.NXDOMAIN {
			return resp, nil
		}

		if nextNS, ok := resp.GetResolvedNS(qname); ok {
			current = net.JoinHostPort(nextNS, "53")
			continue
		}

		nsName, ok := resp.GetUnresolvedNS(qname)
		if !ok {
			return resp, nil
		}

		nsResp, err := e.resolve(nsName, packet.QTypeA, e.RootNS, depth+1)
		if err != nil {
			return resp, nil
		}
		ip, ok := nsResp.GetRandomA()
		if !ok {
			return resp, nil
		}
		current = net.JoinHostPort(ip, "53")
	}

	if lastResp != nil {
		return lastResp, nil
	}
	return nil, fmt.Errorf("%w: resolving %s", ErrMaxDepthExceeded, qname)
}

// sendQuery builds an iterative (RD=0) query with a random transaction id,
// exchanges it with server via the UdpClient, and decodes the response.
// A response whose id does not match the query is treated as a network
// error for this hop.
func (e *RecursionEngine) sendQuery(server, qname string, qtype packet.QueryType) (*packet.Packet, error) {
	id, err := randomTransactionID()
	if err != nil {
		return nil, fmt.Errorf("%w: generating transaction id: %v", ErrNetwork, err)
	}

	req := packet.NewPacket()
	req.Header.ID = id
	req.Header.RecursionDesired = false
	req.Questions = []packet.Question{{Name: qname, QType: qtype}}

	reqBuf := packet.GetBuffer()
	defer packet.PutBuffer(reqBuf)
	if err := req.Encode(reqBuf); err != nil {
		return nil, err
	}

	respBytes, err := e.Client.Exchange(server, reqBuf.Buf[:reqBuf.Position()])
	if err != nil {
		return nil, err
	}

	respBuf := packet.GetBuffer()
	defer packet.PutBuffer(respBuf)
	respBuf.Load(respBytes)

	resp, err := packet.Decode(respBuf)
	if err != nil {
		return nil, err
	}

	if resp.Header.ID != req.Header.ID {
		return nil, fmt.Errorf("%w: transaction id mismatch: sent %d, got %d", ErrNetwork, req.Header.ID, resp.Header.ID)
	}
	return resp, nil
}

func randomTransactionID() (uint16, error) {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}
