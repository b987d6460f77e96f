package verifier

import (
	"net"
	"strings"

	wildcard "github.com/IGLOU-EU/go-wildcard/v2"
)

// matchDNSName implements spec.md §4.3's wildcard matching rules: a DNS
// pattern is split on ".". A lone "*" fragment matches exactly one
// non-empty dotless label; a "*" embedded in a fragment matches any
// (possibly empty) dotless substring. Matching is case-insensitive and
// anchored (every label must correspond, same label count on both sides).
//
// Per-label matching is delegated to github.com/IGLOU-EU/go-wildcard,
// which implements exactly the glob semantics spec.md wants for an
// embedded "*" — because we feed it one already-split label at a time, it
// never has the opportunity to let a "*" cross a "." boundary the way a
// naive whole-string glob match would.
func matchDNSName(pattern, host string) bool {
	patternLabels := strings.Split(strings.ToLower(pattern), ".")
	hostLabels := strings.Split(strings.ToLower(host), ".")
	if len(patternLabels) != len(hostLabels) {
		return false
	}
	for i, pl := range patternLabels {
		hl := hostLabels[i]
		switch {
		case pl == "*":
			if hl == "" {
				return false
			}
		case strings.Contains(pl, "*"):
			if !wildcard.Match(pl, hl) {
				return false
			}
		default:
			if pl != hl {
				return false
			}
		}
	}
	return true
}

// isDottedQuad reports whether s parses as an IPv4 literal, the only
// address form spec.md §4.3 supports for IP-based matching (IPv6 is
// explicitly out of scope, see spec.md §9 "IPv6").
func isDottedQuad(s string) bool {
	if strings.Contains(s, ":") {
		return false
	}
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil
}
