package verifier

import (
	"fmt"

	"github.com/rs/zerolog"
)

// New constructs the configured backend, mirroring how
// cmd/pulse-sensor-proxy wires a single concrete implementation behind an
// interface at startup and never touches the selection logic again.
func New(backend, options string, logger zerolog.Logger) (Verifier, error) {
	switch backend {
	case "network":
		return NewNetworkPerspective(options, logger)
	case "dns":
		return NewDNS(options, logger)
	case "always-true":
		return NewAlwaysTrue(options)
	case "always-false":
		return NewAlwaysFalse(options)
	default:
		return nil, fmt.Errorf("verifier: unknown backend %q", backend)
	}
}
