package proxychannel

import (
	"bufio"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeDialer lets tests control dial outcomes without touching a real
// port 4242 anywhere on the host.
type fakeDialer struct {
	delay    map[string]time.Duration
	fail     map[string]bool
	conns    map[string]net.Conn
	fallback net.Conn
}

func (f *fakeDialer) DialTimeout(network, address string, timeout time.Duration) (net.Conn, error) {
	if d, ok := f.delay[address]; ok {
		time.Sleep(d)
	}
	if f.fail[address] {
		return nil, &net.OpError{Op: "dial", Err: net.ErrClosed}
	}
	if c, ok := f.conns[address]; ok {
		return c, nil
	}
	if f.fallback != nil {
		return f.fallback, nil
	}
	return nil, &net.OpError{Op: "dial", Err: net.ErrClosed}
}

// rawDo opens a plain TCP connection to addr, writes req verbatim, and
// returns a bufio.Reader positioned after the status line for further
// reads (either more header lines or tunnelled bytes).
func rawDo(t *testing.T, addr, req string) (net.Conn, *bufio.Reader, string) {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	_, err = conn.Write([]byte(req))
	require.NoError(t, err)
	r := bufio.NewReader(conn)
	status, err := r.ReadString('\n')
	require.NoError(t, err)
	return conn, r, strings.TrimSpace(status)
}

func TestHandlerRejectsNonConnectMethod(t *testing.T) {
	h := NewHandler()
	srv := httptest.NewServer(h)
	defer srv.Close()

	addr := strings.TrimPrefix(srv.URL, "http://")
	conn, _, status := rawDo(t, addr, "GET / HTTP/1.0\r\n\r\n")
	defer conn.Close()
	require.Contains(t, status, "403")
}

func TestHandlerRejectsForbiddenPort(t *testing.T) {
	h := NewHandler()
	srv := httptest.NewServer(h)
	defer srv.Close()

	addr := strings.TrimPrefix(srv.URL, "http://")
	conn, _, status := rawDo(t, addr, "CONNECT evil.example:22 HTTP/1.0\r\n\r\n")
	defer conn.Close()
	require.Contains(t, status, "403")
}

func TestHandlerTunnelsBytesOnSuccess(t *testing.T) {
	upstreamServer, upstreamClient := net.Pipe()
	defer upstreamServer.Close()

	h := NewHandler()
	h.Dialer = &fakeDialer{conns: map[string]net.Conn{"peer.example:4242": upstreamClient}}
	h.IdleTimeout = time.Second

	srv := httptest.NewServer(h)
	defer srv.Close()
	addr := strings.TrimPrefix(srv.URL, "http://")

	conn, r, status := rawDo(t, addr, "CONNECT peer.example:4242 HTTP/1.0\r\n\r\n")
	defer conn.Close()
	require.Contains(t, status, "200")

	// Drain the two trailing header lines (Proxy-Agent, X-Convergence-Notary)
	// plus the blank line before raw tunnel bytes begin.
	for i := 0; i < 3; i++ {
		_, err := r.ReadString('\n')
		require.NoError(t, err)
	}

	go func() {
		buf := make([]byte, 5)
		n, _ := upstreamServer.Read(buf)
		upstreamServer.Write(buf[:n])
	}()

	_, err := conn.Write([]byte("hello"))
	require.NoError(t, err)

	echoed := make([]byte, 5)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = r.Read(echoed)
	require.NoError(t, err)
	require.Equal(t, "hello", string(echoed))
}

func TestHandlerReturns404WhenAllDialsFail(t *testing.T) {
	h := NewHandler()
	h.Dialer = &fakeDialer{fail: map[string]bool{"peer.example:4242": true}}

	srv := httptest.NewServer(h)
	defer srv.Close()
	addr := strings.TrimPrefix(srv.URL, "http://")

	conn, r, status := rawDo(t, addr, "CONNECT peer.example:4242 HTTP/1.0\r\n\r\n")
	defer conn.Close()
	require.Contains(t, status, "404")
	body, _ := r.ReadString('\n')
	_ = body
}

func TestGatherDestinationsIncludesHeaders(t *testing.T) {
	upstreamServer, upstreamClient := net.Pipe()
	defer upstreamServer.Close()
	defer upstreamClient.Close()

	h := NewHandler()
	h.Dialer = &fakeDialer{
		delay: map[string]time.Duration{"slow.example:4242": 200 * time.Millisecond},
		conns: map[string]net.Conn{"fast.example:4242": upstreamClient},
	}

	srv := httptest.NewServer(h)
	defer srv.Close()
	addr := strings.TrimPrefix(srv.URL, "http://")

	req := "CONNECT slow.example:4242 HTTP/1.0\r\nX-Convergence-Notary: fast.example\r\n\r\n"
	conn, _, status := rawDo(t, addr, req)
	defer conn.Close()
	require.Contains(t, status, "200", "first-connected-wins should pick fast.example")
}
