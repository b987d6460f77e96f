package proxychannel

import (
	"fmt"
	"net"
	"strings"
)

// requiredPort is the hard-coded notary-to-notary port spec.md §4.6 binds
// the CONNECT tunnel to.
const requiredPort = "4242"

// destination is one candidate upstream notary host extracted from either
// the CONNECT request target or an X-Convergence-Notary header.
type destination struct {
	host string
}

// parseDestination accepts "host:4242", "host+4242", or a bare "host" (no
// port part at all, treated as already-4242 per the header grammar in
// spec.md §4.6: "X-Convergence-Notary: <host>[:4242|+4242]" — the port
// suffix is optional there). Any other explicit port is rejected.
func parseDestination(raw string) (destination, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return destination{}, fmt.Errorf("empty destination")
	}

	if i := strings.LastIndexByte(raw, '+'); i >= 0 {
		host, port := raw[:i], raw[i+1:]
		return validateHostPort(host, port)
	}
	if i := strings.LastIndexByte(raw, ':'); i >= 0 {
		host, port := raw[:i], raw[i+1:]
		return validateHostPort(host, port)
	}
	return validateHostPort(raw, requiredPort)
}

func validateHostPort(host, port string) (destination, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return destination{}, fmt.Errorf("empty host")
	}
	if port != requiredPort {
		return destination{}, fmt.Errorf("port %q is not %s", port, requiredPort)
	}
	return destination{host: host}, nil
}

func (d destination) addr() string {
	return net.JoinHostPort(d.host, requiredPort)
}
