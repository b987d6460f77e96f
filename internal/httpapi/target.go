// Package httpapi implements the target and info HTTP endpoints from
// spec.md §4.4 and §4.7, wired to the fingerprint store, verifier, and
// coalescer the way cmd/pulse-sensor-proxy/http_server.go wires its own
// handlers to proxy state: small flat mux.Handle registrations with no
// middleware around them.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mk-fg/convergence/internal/coalesce"
	"github.com/mk-fg/convergence/internal/metrics"
	"github.com/mk-fg/convergence/internal/signing"
	"github.com/mk-fg/convergence/internal/store"
	"github.com/mk-fg/convergence/internal/verifier"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// resolution is the shared (code, records) pair the coalescer computes
// once per RequestKey and replays to every waiter, per spec.md §4.4 step 8.
type resolution struct {
	code    int
	records []store.Record
}

// TargetHandler implements GET/POST /target/<host>+<port>[/<address>].
type TargetHandler struct {
	Store         store.Store
	Verifier      verifier.Verifier
	Signer        *signing.Signer
	VerifyTimeout time.Duration
	BackendName   string // for metrics labels

	group coalesce.Group[resolution]
	now   func() int64
}

// NewTargetHandler wires a TargetHandler with the real wall clock; now is
// a field so that a fixed clock can be substituted within the package.
func NewTargetHandler(st store.Store, v verifier.Verifier, signer *signing.Signer, verifyTimeout time.Duration, backendName string) *TargetHandler {
	return &TargetHandler{
		Store:         st,
		Verifier:      v,
		Signer:        signer,
		VerifyTimeout: verifyTimeout,
		BackendName:   backendName,
		now:           func() int64 { return time.Now().Unix() },
	}
}

const targetPathPrefix = "/target/"

func (h *TargetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tag := requestTag()
	logger := log.With().Str("req", tag).Str("path", r.URL.Path).Logger()

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		metrics.TargetRequestsTotal.WithLabelValues(r.Method, "405").Inc()
		w.Header().Set("Allow", "GET, POST")
		writeHTMLError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	tail := strings.TrimPrefix(r.URL.Path, targetPathPrefix)
	host, port, address, err := parseTargetPath(tail)
	if err != nil {
		logger.Info().Err(err).Msg("malformed target URI")
		metrics.TargetRequestsTotal.WithLabelValues(r.Method, "400").Inc()
		writeHTMLError(w, http.StatusBadRequest, "malformed target URI")
		return
	}

	var submittedFP string
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			metrics.TargetRequestsTotal.WithLabelValues(r.Method, "400").Inc()
			writeHTMLError(w, http.StatusBadRequest, "malformed form body")
			return
		}
		submittedFP = r.PostForm.Get("fingerprint")
		if submittedFP == "" {
			metrics.TargetRequestsTotal.WithLabelValues(r.Method, "400").Inc()
			writeHTMLError(w, http.StatusBadRequest, "missing fingerprint parameter")
			return
		}
	}

	key := coalesce.Key(host, port, address, submittedFP)

	// Resolution runs on an independent background context: per spec.md
	// §5, losing the original requester's connection must not cancel an
	// in-flight verification that other coalesced waiters still need.
	res, shared, err := h.group.Do(key, func() (resolution, error) {
		ctx, cancel := context.WithTimeout(context.Background(), h.VerifyTimeout)
		defer cancel()
		return h.resolve(ctx, host, port, address, submittedFP, logger)
	})
	if shared {
		metrics.CoalesceJoinsTotal.Inc()
	}

	if err != nil {
		logger.Warn().Err(err).Str("host", host).Str("port", port).Msg("verification failed")
		metrics.TargetRequestsTotal.WithLabelValues(r.Method, "503").Inc()
		writeHTMLError(w, http.StatusServiceUnavailable, "verification unavailable")
		return
	}

	if r.Context().Err() != nil {
		// Client already gone; per spec.md §4.4 "Waiters whose underlying
		// connection has been lost before writing are silently dropped."
		logger.Debug().Msg("dropping response, client connection lost")
		return
	}

	metrics.TargetRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(res.code)).Inc()
	h.writeSigned(w, res.code, res.records, logger)
}

// resolve is the core algorithm from spec.md §4.4 steps 4-6, executed at
// most once per RequestKey by the coalescer.
func (h *TargetHandler) resolve(ctx context.Context, host, port, address, submittedFP string, logger zerolog.Logger) (resolution, error) {
	records, err := h.Store.GetRecords(ctx, host, port)
	if err != nil {
		metrics.StoreOpsTotal.WithLabelValues("get_records", "error").Inc()
		return resolution{}, err
	}
	metrics.StoreOpsTotal.WithLabelValues("get_records", "ok").Inc()

	if cacheHit(records, submittedFP) {
		return resolution{code: verifier.CodeMatch, records: records}, nil
	}

	start := time.Now()
	outcome, err := h.Verifier.Verify(ctx, host, port, address, submittedFP)
	metrics.VerifyDuration.WithLabelValues(h.BackendName).Observe(time.Since(start).Seconds())
	if err != nil {
		return resolution{}, err
	}

	if !outcome.HasObserved {
		return resolution{code: outcome.Code}, nil
	}

	updated, err := h.Store.Upsert(ctx, host, port, outcome.ObservedFP, h.now())
	if err != nil {
		metrics.StoreOpsTotal.WithLabelValues("upsert", "error").Inc()
		return resolution{}, err
	}
	metrics.StoreOpsTotal.WithLabelValues("upsert", "ok").Inc()
	return resolution{code: outcome.Code, records: updated}, nil
}

// cacheHit implements spec.md §4.4 step 5: a hit iff records is non-empty
// and either no fingerprint was submitted or some row matches it exactly.
func cacheHit(records []store.Record, submittedFP string) bool {
	if len(records) == 0 {
		return false
	}
	if submittedFP == "" {
		return true
	}
	for _, r := range records {
		if r.Fingerprint == submittedFP {
			return true
		}
	}
	return false
}

func (h *TargetHandler) writeSigned(w http.ResponseWriter, code int, records []store.Record, logger zerolog.Logger) {
	body, err := h.Signer.Sign(records)
	if err != nil {
		logger.Error().Err(err).Msg("failed to sign response")
		writeHTMLError(w, http.StatusServiceUnavailable, "signing failure")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(body); err != nil {
		logger.Debug().Err(err).Msg("failed writing response body, client likely gone")
	}
}
