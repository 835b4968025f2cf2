package resolver

import (
	"net"
	"testing"
	"time"
)

func TestUdpClientExchange(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatalf("ListenUDP failed: %v", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 512)
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		if string(buf[:n]) != "ping" {
			t.Errorf("server received %q, want %q", buf[:n], "ping")
		}
		_, _ = conn.WriteToUDP([]byte("pong"), addr)
	}()

	client := NewUdpClient()
	resp, err := client.Exchange(conn.LocalAddr().String(), []byte("ping"))
	if err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}
	if string(resp) != "pong" {
		t.Errorf("got %q, want %q", resp, "pong")
	}
	<-done
}

func TestUdpClientExchangeNoResponder(t *testing.T) {
	// Nothing is listening on this port; the exchange should fail rather
	// than hang, since there is no retry and a read deadline is set.
	client := &UdpClient{Timeout: 200 * time.Millisecond}
	_, err := client.Exchange("127.0.0.1:1", []byte("ping"))
	if err == nil {
		t.Fatalf("expected an error when nothing responds")
	}
}

func TestUdpClientDefaultTimeout(t *testing.T) {
	c := &UdpClient{}
	if c.timeout() != DefaultExchangeTimeout {
		t.Errorf("expected default timeout %v, got %v", DefaultExchangeTimeout, c.timeout())
	}
}
