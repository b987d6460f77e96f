package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mk-fg/convergence/internal/config"
	"github.com/mk-fg/convergence/internal/httpapi"
	"github.com/mk-fg/convergence/internal/server"
	"github.com/mk-fg/convergence/internal/signing"
	"github.com/mk-fg/convergence/internal/store"
	"github.com/mk-fg/convergence/internal/verifier"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// runNotary loads configuration, wires the store/verifier/signer/httpapi
// stack together, and serves until an interrupt or SIGTERM arrives, the
// same load-then-serve-until-signal shape as runProxy in
// cmd/pulse-sensor-proxy/main.go.
func runNotary(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	v, err := verifier.New(cfg.VerifierBackend, cfg.VerifierOptions, log.Logger)
	if err != nil {
		return fmt.Errorf("constructing verifier: %w", err)
	}

	signer, err := signing.LoadSigner(cfg.SigningKeyFile)
	if err != nil {
		return fmt.Errorf("loading signing key: %w", err)
	}

	target := httpapi.NewTargetHandler(st, v, signer, cfg.VerifyTimeout, cfg.VerifierBackend)
	info := &httpapi.InfoHandler{Verifier: v}
	mux := httpapi.NewMux(info, target)

	srv := server.New(cfg, mux)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("starting listeners: %w", err)
	}

	log.Info().
		Str("name", cfg.Name).
		Str("proxy_addr", cfg.ProxyAddr).
		Str("tls_addr", cfg.TLSAddr).
		Str("verifier", cfg.VerifierBackend).
		Msg("notary started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down notary")
	srv.Stop(10 * time.Second)
	return nil
}
