// Package server composes the notary's three listeners from spec.md §6,
// following the Start/Stop-with-http.Server shape of
// cmd/pulse-sensor-proxy/http_server.go.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/mk-fg/convergence/internal/config"
	"github.com/mk-fg/convergence/internal/proxychannel"
	"github.com/rs/zerolog/log"
)

// Server owns the proxy, TLS, and optional proxied-TLS listeners.
type Server struct {
	cfg *config.Config

	proxySrv   *http.Server
	tlsSrv     *http.Server
	proxiedSrv *http.Server
}

// New builds a Server. apiHandler serves "/" and "/target/..." (and
// "/metrics"); it is shared, unwrapped, by both the TLS port and the
// plaintext proxied-TLS port, per spec.md §6 ("same content as the TLS
// port but plaintext").
func New(cfg *config.Config, apiHandler http.Handler) *Server {
	s := &Server{cfg: cfg}

	proxyHandler := proxychannel.NewHandler()
	if cfg.ProxyIdleTimeout > 0 {
		proxyHandler.IdleTimeout = cfg.ProxyIdleTimeout
	}
	s.proxySrv = &http.Server{
		Addr:              cfg.ProxyAddr,
		Handler:           proxyHandler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		IdleTimeout:       cfg.ProxyIdleTimeout,
	}

	s.tlsSrv = &http.Server{
		Addr:              cfg.TLSAddr,
		Handler:           apiHandler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		TLSConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	if !cfg.DisableProxyTLS {
		s.proxiedSrv = &http.Server{
			Addr:              cfg.ProxiedTLSAddr,
			Handler:           apiHandler,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		}
	}

	return s
}

// Start binds all configured listeners and serves them in the
// background. It returns once listeners are bound; serve errors other
// than http.ErrServerClosed are logged.
func (s *Server) Start() error {
	proxyLn, err := net.Listen("tcp", s.cfg.ProxyAddr)
	if err != nil {
		return fmt.Errorf("proxy listener: %w", err)
	}
	go func() {
		log.Info().Str("addr", s.cfg.ProxyAddr).Msg("starting CONNECT proxy channel")
		if err := s.proxySrv.Serve(proxyLn); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("proxy channel server failed")
		}
	}()

	tlsLn, err := net.Listen("tcp", s.cfg.TLSAddr)
	if err != nil {
		return fmt.Errorf("tls listener: %w", err)
	}
	go func() {
		log.Info().Str("addr", s.cfg.TLSAddr).Msg("starting TLS API listener")
		if err := s.tlsSrv.ServeTLS(tlsLn, s.cfg.TLSCertFile, s.cfg.TLSKeyFile); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("TLS API server failed")
		}
	}()

	if s.proxiedSrv != nil {
		proxiedLn, err := net.Listen("tcp", s.cfg.ProxiedTLSAddr)
		if err != nil {
			return fmt.Errorf("proxied-tls listener: %w", err)
		}
		go func() {
			log.Info().Str("addr", s.cfg.ProxiedTLSAddr).Msg("starting plaintext API listener behind reverse proxy")
			if err := s.proxiedSrv.Serve(proxiedLn); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("proxied-TLS API server failed")
			}
		}()
	}

	return nil
}

// Stop gracefully shuts every listener down, each bounded by timeout.
func (s *Server) Stop(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for name, srv := range map[string]*http.Server{
		"proxy": s.proxySrv,
		"tls":   s.tlsSrv,
		"proxied-tls": s.proxiedSrv,
	} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Str("listener", name).Msg("graceful shutdown failed")
		}
	}
}
