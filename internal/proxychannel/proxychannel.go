// Package proxychannel implements the CONNECT proxy channel from spec.md
// §4.6: a minimal HTTP listener that only understands CONNECT to port
// 4242, races outbound dials to every named destination, and then
// switches to raw byte tunnelling between the two connections.
//
// There's no teacher analog for a server-side CONNECT tunnel in the
// retrieval pack, so this package follows the teacher's general shape
// (a small http.Handler, zerolog logging, promauto counters) rather than
// any one file's algorithm.
package proxychannel

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mk-fg/convergence/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const forbiddenBody = `<html><body><h1>403 Access Denied</h1></body></html>`
const unreachableBody = `Unable to connect to notary!`

// Dialer abstracts outbound TCP dialing so tests can substitute a fake
// without touching the network.
type Dialer interface {
	DialTimeout(network, address string, timeout time.Duration) (net.Conn, error)
}

type netDialer struct{}

func (netDialer) DialTimeout(network, address string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout(network, address, timeout)
}

// Handler implements http.Handler for the plaintext proxy listener.
// It must be the only handler on that listener: spec.md §6 describes the
// proxy port as "plain HTTP speaking only CONNECT".
type Handler struct {
	Dialer      Dialer
	DialTimeout time.Duration
	IdleTimeout time.Duration
}

// NewHandler builds a Handler with the spec's default idle timeout (10s)
// and a 5s per-destination dial timeout.
func NewHandler() *Handler {
	return &Handler{
		Dialer:      netDialer{},
		DialTimeout: 5 * time.Second,
		IdleTimeout: 10 * time.Second,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tunnelID := uuid.NewString()
	logger := log.With().Str("tunnel", tunnelID).Logger()

	if r.Method != http.MethodConnect {
		logger.Info().Str("method", r.Method).Msg("non-CONNECT request on proxy port")
		metrics.ConnectTunnelsTotal.WithLabelValues("forbidden_method").Inc()
		writeForbidden(w)
		return
	}

	dests, err := gatherDestinations(r)
	if err != nil {
		logger.Info().Err(err).Msg("rejecting CONNECT, invalid destination")
		metrics.ConnectTunnelsTotal.WithLabelValues("forbidden_port").Inc()
		writeForbidden(w)
		return
	}

	hj, ok := w.(http.Hijacker)
	if !ok {
		logger.Error().Msg("response writer does not support hijacking")
		metrics.ConnectTunnelsTotal.WithLabelValues("error").Inc()
		http.Error(w, "hijack unsupported", http.StatusInternalServerError)
		return
	}

	upstream, winner, err := h.raceDial(dests)
	if err != nil {
		logger.Info().Strs("destinations", destHosts(dests)).Msg("all upstream dials failed")
		metrics.ConnectTunnelsTotal.WithLabelValues("unreachable").Inc()
		writeUnreachable(w, hj, logger)
		return
	}
	defer upstream.Close()

	client, bufrw, err := hj.Hijack()
	if err != nil {
		logger.Error().Err(err).Msg("hijack failed")
		metrics.ConnectTunnelsTotal.WithLabelValues("error").Inc()
		return
	}
	defer client.Close()

	fmt.Fprintf(bufrw, "HTTP/1.0 200 Connection Established\r\nProxy-Agent: Convergence\r\nX-Convergence-Notary: %s\r\n\r\n", winner.host)
	if err := bufrw.Flush(); err != nil {
		logger.Debug().Err(err).Msg("client gone before tunnel established")
		metrics.ConnectTunnelsTotal.WithLabelValues("client_gone").Inc()
		return
	}

	metrics.ConnectTunnelsTotal.WithLabelValues("established").Inc()
	logger.Debug().Str("upstream", winner.host).Msg("tunnel established")
	pumpTunnel(client, bufrw.Reader, upstream, h.IdleTimeout, logger)
}

// gatherDestinations collects candidate destinations from the CONNECT
// request line and any X-Convergence-Notary headers, per spec.md §4.6.
// A destination with an explicit, non-4242 port anywhere in the set is a
// hard validation failure for the whole request.
func gatherDestinations(r *http.Request) ([]destination, error) {
	var raws []string
	if r.URL != nil && r.URL.Host != "" {
		raws = append(raws, r.URL.Host)
	} else if r.RequestURI != "" {
		raws = append(raws, r.RequestURI)
	}
	raws = append(raws, r.Header.Values("X-Convergence-Notary")...)

	if len(raws) == 0 {
		return nil, fmt.Errorf("no destination supplied")
	}

	dests := make([]destination, 0, len(raws))
	for _, raw := range raws {
		d, err := parseDestination(raw)
		if err != nil {
			return nil, err
		}
		dests = append(dests, d)
	}
	return dests, nil
}

func destHosts(dests []destination) []string {
	hosts := make([]string, len(dests))
	for i, d := range dests {
		hosts[i] = d.host
	}
	return hosts
}

// raceDial opens one dial per destination concurrently and returns the
// first to succeed, cancelling the rest, per spec.md §4.6 "Tunnel setup".
func (h *Handler) raceDial(dests []destination) (net.Conn, destination, error) {
	type result struct {
		conn net.Conn
		dest destination
		err  error
	}

	resultsCh := make(chan result, len(dests))
	for _, d := range dests {
		go func(d destination) {
			conn, err := h.Dialer.DialTimeout("tcp", d.addr(), h.DialTimeout)
			resultsCh <- result{conn: conn, dest: d, err: err}
		}(d)
	}

	var firstErr error
	var losers []net.Conn
	for i := 0; i < len(dests); i++ {
		res := <-resultsCh
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		// Winner found; drain remaining dials in the background and close
		// whatever they produce.
		go func(remaining int) {
			for j := 0; j < remaining; j++ {
				if late := <-resultsCh; late.conn != nil {
					late.conn.Close()
				}
			}
		}(len(dests) - i - 1)
		for _, l := range losers {
			l.Close()
		}
		return res.conn, res.dest, nil
	}

	if firstErr == nil {
		firstErr = fmt.Errorf("no destinations attempted")
	}
	return nil, destination{}, firstErr
}

// pumpTunnel relays bytes between the client and upstream connections
// until either side closes, resetting an idle deadline on every
// successful transfer per SPEC_FULL.md's supplemented idle-timeout
// behaviour (grounded on original_source/server/convergence/
// ConnectChannel.py).
func pumpTunnel(client net.Conn, clientBuffered io.Reader, upstream net.Conn, idleTimeout time.Duration, logger zerolog.Logger) {
	done := make(chan struct{}, 2)

	copyFn := func(dst net.Conn, src io.Reader, srcConn net.Conn, label string) {
		defer func() { done <- struct{}{} }()
		buf := make([]byte, 32*1024)
		for {
			if idleTimeout > 0 {
				// Refresh both connections' deadlines, so traffic in either
				// direction keeps the whole tunnel alive.
				deadline := time.Now().Add(idleTimeout)
				dst.SetDeadline(deadline)
				srcConn.SetDeadline(deadline)
			}
			n, err := src.Read(buf)
			if n > 0 {
				if _, werr := dst.Write(buf[:n]); werr != nil {
					return
				}
			}
			if err != nil {
				return
			}
		}
	}

	go copyFn(upstream, clientBuffered, client, "client->upstream")
	go copyFn(client, upstream, upstream, "upstream->client")

	<-done
	client.Close()
	upstream.Close()
	<-done
	logger.Debug().Msg("tunnel closed")
}

func writeForbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	io.WriteString(w, forbiddenBody)
}

func writeUnreachable(w http.ResponseWriter, hj http.Hijacker, logger zerolog.Logger) {
	conn, bufrw, err := hj.Hijack()
	if err != nil {
		// Fall back to the normal response path if hijacking isn't possible
		// at this point (headers already written, etc).
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, unreachableBody)
		return
	}
	defer conn.Close()
	fmt.Fprintf(bufrw, "HTTP/1.0 404 Not Found\r\nContent-Type: text/plain\r\nContent-Length: %d\r\n\r\n%s", len(unreachableBody), unreachableBody)
	if err := bufrw.Flush(); err != nil {
		logger.Debug().Err(err).Msg("client gone before 404 written")
	}
}
