package resolver

import (
	"net"
	"strings"
	"testing"

	"github.com/jrecursive/resolvd/internal/dns/packet"
)

// TestResolveGluedDelegation matches spec scenario S4: the root refers to a
// glued NS, the engine follows the glue IP directly, and the final hop
// returns the answer.
func TestResolveGluedDelegation(t *testing.T) {
	e := NewRecursionEngine(WithRootNS("198.41.0.4:53"))
	e.queryFn = func(server, qname string, qtype packet.QueryType) (*packet.Packet, error) {
		resp := packet.NewPacket()
		resp.Header.Response = true

		if strings.HasPrefix(server, "198.41.0.4") {
			resp.Authorities = append(resp.Authorities, packet.Record{
				Name: "com", Type: packet.QTypeNS, Host: "a.gtld-servers.net",
			})
			resp.Resources = append(resp.Resources, packet.Record{
				Name: "a.gtld-servers.net", Type: packet.QTypeA, IP: net.ParseIP("192.5.6.30"),
			})
			return resp, nil
		}

		resp.Answers = append(resp.Answers, packet.Record{
			Name: qname, Type: packet.QTypeA, TTL: 300, IP: net.ParseIP("93.184.216.34"),
		})
		return resp, nil
	}

	resp, err := e.Resolve("www.example.com", packet.QTypeA)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(resp.Answers) == 0 {
		t.Fatalf("expected an answer")
	}
	if !resp.Answers[0].IP.Equal(net.ParseIP("93.184.216.34")) {
		t.Errorf("expected 93.184.216.34, got %s", resp.Answers[0].IP)
	}
}

// TestResolveUnglued matches spec scenario S5: a referral names an NS host
// with no glue record, so the engine recurses once to resolve that host's
// A record before resuming the outer walk.
func TestResolveUnglued(t *testing.T) {
	e := NewRecursionEngine(WithRootNS("198.41.0.4:53"))
	e.queryFn = func(server, qname string, qtype packet.QueryType) (*packet.Packet, error) {
		resp := packet.NewPacket()
		resp.Header.Response = true

		switch {
		case qname == "ns1.external.net":
			resp.Answers = append(resp.Answers, packet.Record{
				Name: qname, Type: packet.QTypeA, TTL: 300, IP: net.ParseIP("203.0.113.5"),
			})
			return resp, nil
		case strings.HasPrefix(server, "198.41.0.4"):
			resp.Authorities = append(resp.Authorities, packet.Record{
				Name: "example.com", Type: packet.QTypeNS, Host: "ns1.external.net",
			})
			return resp, nil
		case strings.HasPrefix(server, "203.0.113.5"):
			resp.Answers = append(resp.Answers, packet.Record{
				Name: qname, Type: packet.QTypeA, TTL: 300, IP: net.ParseIP("198.51.100.7"),
			})
			return resp, nil
		}
		return resp, nil
	}

	resp, err := e.Resolve("www.example.com", packet.QTypeA)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(resp.Answers) == 0 || !resp.Answers[0].IP.Equal(net.ParseIP("198.51.100.7")) {
		t.Fatalf("expected the final answer 198.51.100.7, got %+v", resp.Answers)
	}
}

func TestResolveNXDOMAINStopsImmediately(t *testing.T) {
	e := NewRecursionEngine()
	calls := 0
	e.queryFn = func(server, qname string, qtype packet.QueryType) (*packet.Packet, error) {
		calls++
		resp := packet.NewPacket()
		resp.Header.Response = true
		resp.Header.ResCode = packet.NXDOMAIN
		return resp, nil
	}

	resp, err := e.Resolve("nonexistent.invalid", packet.QTypeA)
	if err != nil {
		t.Fatalf("expected no error on NXDOMAIN, got %v", err)
	}
	if resp.Header.ResCode != packet.NXDOMAIN {
		t.Errorf("expected NXDOMAIN, got %v", resp.Header.ResCode)
	}
	if calls != 1 {
		t.Errorf("expected exactly one query on NXDOMAIN, got %d", calls)
	}
}

func TestResolveDeadEndReturnsBestEffort(t *testing.T) {
	e := NewRecursionEngine()
	e.queryFn = func(server, qname string, qtype packet.QueryType) (*packet.Packet, error) {
		resp := packet.NewPacket()
		resp.Header.Response = true
		// No answers, no authorities, no resources: nowhere left to go.
		return resp, nil
	}

	resp, err := e.Resolve("deadend.invalid", packet.QTypeA)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(resp.Answers) != 0 {
		t.Errorf("expected no answers for a dead end, got %+v", resp.Answers)
	}
}

func TestResolveHopErrorPropagates(t *testing.T) {
	e := NewRecursionEngine()
	e.queryFn = func(server, qname string, qtype packet.QueryType) (*packet.Packet, error) {
		return nil, ErrNetwork
	}

	_, err := e.Resolve("example.com", packet.QTypeA)
	if err == nil {
		t.Fatalf("expected a network error to propagate")
	}
}

// TestResolveTerminatesOnCyclicDelegation matches spec invariant 5 and
// scenario coverage for bounded termination: a referral that always points
// back to itself must still terminate within MaxDepth hops.
func TestResolveTerminatesOnCyclicDelegation(t *testing.T) {
	e := NewRecursionEngine(WithMaxDepth(4))
	calls := 0
	e.queryFn = func(server, qname string, qtype packet.QueryType) (*packet.Packet, error) {
		calls++
		resp := packet.NewPacket()
		resp.Header.Response = true
		resp.Authorities = append(resp.Authorities, packet.Record{
			Name: "example.com", Type: packet.QTypeNS, Host: "ns.example.com",
		})
		resp.Resources = append(resp.Resources, packet.Record{
			Name: "ns.example.com", Type: packet.QTypeA, IP: net.ParseIP("198.41.0.4"),
		})
		return resp, nil
	}

	_, err := e.Resolve("cyclic.example.com", packet.QTypeA)
	if err != nil {
		t.Fatalf("expected a best-effort return rather than an error, got %v", err)
	}
	if calls > 4 {
		t.Errorf("expected the walk to stop within the depth bound, got %d calls", calls)
	}
}

func TestSendQueryTransactionIDMismatch(t *testing.T) {
	addr, err := net.ResolveUDPAddr("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ResolveUDPAddr failed: %v", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		t.Fatalf("ListenUDP failed: %v", err)
	}
	defer conn.Close()

	go func() {
		buf := make([]byte, packet.PacketSize)
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}

		reqBuf := packet.GetBuffer()
		defer packet.PutBuffer(reqBuf)
		reqBuf.Load(buf[:n])
		req, err := packet.Decode(reqBuf)
		if err != nil {
			return
		}

		resp := packet.NewPacket()
		resp.Header.ID = req.Header.ID + 1 // deliberately wrong
		resp.Header.Response = true

		respBuf := packet.GetBuffer()
		defer packet.PutBuffer(respBuf)
		_ = resp.Encode(respBuf)
		_, _ = conn.WriteToUDP(respBuf.Buf[:respBuf.Position()], from)
	}()

	e := NewRecursionEngine()
	_, err = e.sendQuery(conn.LocalAddr().String(), "example.com", packet.QTypeA)
	if err == nil {
		t.Fatalf("expected a transaction id mismatch error")
	}
}
