// Package verifier implements the verifier capability from spec.md §4.2:
// a pluggable "is this the fingerprint this host shows?" check, with a
// real network-perspective backend plus DNS and fixture backends for
// testing, grounded on the teacher's habit of hiding a real network
// operation (cmd/pulse-sensor-proxy's SSH-backed temperature fetch) behind
// a narrow interface that the HTTP layer calls without caring how the
// answer was obtained.
package verifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Outcome is spec.md's VerificationOutcome: the HTTP status code the
// endpoint should use, and the fingerprint this notary actually observed
// (absent when unknown).
type Outcome struct {
	Code        int
	ObservedFP  string // empty means "unknown", per spec.md §3
	HasObserved bool
}

const (
	CodeMatch    = 200
	CodeConflict = 409
)

// OptionsError is raised by a backend constructor when its options string
// fails to parse (spec.md §4.2).
type OptionsError struct {
	Backend string
	Options string
	Err     error
}

func (e *OptionsError) Error() string {
	return fmt.Sprintf("verifier %s: bad options %q: %v", e.Backend, e.Options, e.Err)
}
func (e *OptionsError) Unwrap() error { return e.Err }

// Verifier is the capability spec.md §4.2 describes.
type Verifier interface {
	// Verify performs one verification attempt. A non-nil error means the
	// attempt could not be completed at all (connection failure, lost
	// connection, internal fault) — the caller maps that to a 503. A
	// returned Outcome with Code == CodeConflict is a conclusive negative
	// result, not a failure.
	Verify(ctx context.Context, host, port, address, submittedFP string) (Outcome, error)

	Description() string
	OptionsDescription() string
	HTMLDescription() string
}

// splitOptions tokenizes a backend options string on whitespace and
// commas, per spec.md §4.3 ("key[=value]", "-key" to disable,
// whitespace/comma separated").
func splitOptions(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	out := fields[:0:0]
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// namedLogger attaches a component field the way the teacher's handlers
// attach req/node/client_ip fields before logging (see
// cmd/pulse-sensor-proxy/http_server.go).
func namedLogger(base zerolog.Logger, backend string) zerolog.Logger {
	return base.With().Str("verifier", backend).Logger()
}
