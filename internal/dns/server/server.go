// Package server implements the UDP accept loop that funnels client
// queries through a RecursionEngine and replies with the result.
package server

import (
	"context"
	"log/slog"
	"net"
	"syscall"

	"github.com/google/uuid"

	"github.com/jrecursive/resolvd/internal/dns/packet"
	"github.com/jrecursive/resolvd/internal/dns/resolver"
)

// DefaultListenAddr is where the resolver accepts client queries.
const DefaultListenAddr = "0.0.0.0:2053"

// Engine is the subset of RecursionEngine the server depends on, letting
// tests substitute a stub without spinning up a real delegation chain.
type Engine interface {
	Resolve(qname string, qtype packet.QueryType) (*packet.Packet, error)
}

// UdpServer accepts DNS queries over UDP, resolves each one via an Engine,
// and replies to the client. Handling is single-threaded: one datagram is
// decoded, resolved and replied to before the next is read.
type UdpServer struct {
	Addr   string
	Engine Engine
	Logger *slog.Logger

	limiter *rateLimiter
}

// NewUdpServer returns a server listening on addr (defaulting to
// DefaultListenAddr if empty) that resolves queries through engine.
func NewUdpServer(addr string, engine Engine, logger *slog.Logger) *UdpServer {
	if addr == "" {
		addr = DefaultListenAddr
	}
	if logger == nil {
		logger = slog.Default()
	}
	if engine == nil {
		engine = resolver.NewRecursionEngine(resolver.WithLogger(logger))
	}
	return &UdpServer{
		Addr:    addr,
		Engine:  engine,
		Logger:  logger,
		limiter: newRateLimiter(2000, 1000),
	}
}

// ListenAndServe binds the listening socket and runs the accept loop. It
// returns an error only if the socket cannot be set up; once listening, the
// loop is infinite -- read and handling errors are logged and the loop
// continues -- so it never returns nil.
func (s *UdpServer) ListenAndServe() error {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var ctrlErr error
			err := c.Control(func(fd uintptr) {
				ctrlErr = setReuseAddr(fd)
			})
			if err != nil {
				return err
			}
			return ctrlErr
		},
	}

	conn, err := lc.ListenPacket(context.Background(), "udp", s.Addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	udpConn, ok := conn.(*net.UDPConn)
	if !ok {
		return net.UnknownNetworkError("expected a UDP connection")
	}

	s.Logger.Info("listening", "addr", s.Addr)

	buf := make([]byte, packet.PacketSize)
	for {
		n, addr, err := udpConn.ReadFromUDP(buf)
		if err != nil {
			s.Logger.Error("read failed", "error", err)
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		if err := s.handleDatagram(udpConn, addr, data); err != nil {
			s.Logger.Error("failed to handle datagram", "src", addr, "error", err)
		}
	}
}

// handleDatagram decodes one client datagram, resolves the embedded
// question through the engine, and writes back a reply. Any error is
// returned to the caller for logging; the accept loop is never aborted
// because of it.
func (s *UdpServer) handleDatagram(conn *net.UDPConn, addr *net.UDPAddr, data []byte) error {
	corrID := uuid.New()
	log := s.Logger.With("correlation_id", corrID.String(), "src", addr.String())

	if !s.limiter.Allow(addr.IP.String()) {
		log.Warn("rate limit exceeded, dropping datagram")
		return nil
	}

	reqBuf := packet.GetBuffer()
	defer packet.PutBuffer(reqBuf)
	reqBuf.Load(data)

	request, err := packet.Decode(reqBuf)
	if err != nil {
		log.Error("failed to decode request", "error", err)
		return err
	}

	response := packet.NewPacket()
	response.Header.ID = request.Header.ID
	response.Header.Response = true
	response.Header.RecursionDesired = true
	response.Header.RecursionAvailable = true

	if len(request.Questions) == 0 {
		log.Warn("request carried no question")
		response.Header.ResCode = packet.FORMERR
		return s.reply(conn, addr, response)
	}

	q := request.Questions[0]
	response.Questions = []packet.Question{q}

	log.Debug("resolving", "qname", q.Name, "qtype", q.QType.String())
	resolved, err := s.Engine.Resolve(q.Name, q.QType)
	if err != nil {
		log.Error("resolution failed", "qname", q.Name, "error", err)
		response.Header.ResCode = packet.SERVFAIL
		return s.reply(conn, addr, response)
	}

	response.Header.ResCode = resolved.Header.ResCode
	response.Answers = resolved.Answers
	response.Authorities = resolved.Authorities
	response.Resources = resolved.Resources

	log.Info("query resolved", "qname", q.Name, "qtype", q.QType.String(), "answers", len(response.Answers))
	return s.reply(conn, addr, response)
}

func (s *UdpServer) reply(conn *net.UDPConn, addr *net.UDPAddr, response *packet.Packet) error {
	buf := packet.GetBuffer()
	defer packet.PutBuffer(buf)

	if err := response.Encode(buf); err != nil {
		return err
	}
	_, err := conn.WriteToUDP(buf.Buf[:buf.Position()], addr)
	return err
}
