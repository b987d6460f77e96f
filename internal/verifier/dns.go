package verifier

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/rs/zerolog"
)

// DNS is the "DNS" verifier backend from spec.md §4.2: it queries a DNS
// TXT record of a configured shape and returns its value as the observed
// fingerprint, under the same response contract as every other backend.
//
// The TXT record name shape isn't pinned down by spec.md, so this follows
// the convention of prefixing a fixed label onto the subject host (e.g.
// "_notary-fp.example.com"), configurable via the "prefix" option, the
// same way NetworkPerspective's options are key[=value] tokens.
type DNS struct {
	prefix   string
	resolver *net.Resolver
	logger   zerolog.Logger
}

const defaultDNSPrefix = "_notary-fp"

func NewDNS(options string, logger zerolog.Logger) (*DNS, error) {
	d := &DNS{prefix: defaultDNSPrefix, resolver: net.DefaultResolver, logger: namedLogger(logger, "dns")}
	for _, tok := range splitOptions(options) {
		if idx := strings.IndexByte(tok, '='); idx >= 0 && tok[:idx] == "prefix" {
			d.prefix = tok[idx+1:]
			continue
		}
		return nil, &OptionsError{Backend: "dns", Options: options, Err: fmt.Errorf("unsupported option %q", tok)}
	}
	if d.prefix == "" {
		return nil, &OptionsError{Backend: "dns", Options: options, Err: fmt.Errorf("prefix must not be empty")}
	}
	return d, nil
}

func (d *DNS) Description() string {
	return fmt.Sprintf("Looks up a TXT record (%s.<host>) and trusts its value as the observed fingerprint.", d.prefix)
}

func (d *DNS) OptionsDescription() string {
	return `Options: prefix=<label> (default "_notary-fp"), the TXT record label queried as "<prefix>.<host>".`
}

func (d *DNS) HTMLDescription() string {
	return `<p>This notary uses the DNS verifier: it trusts a TXT record published by the domain owner.</p>`
}

func (d *DNS) Verify(ctx context.Context, host, _, _, submittedFP string) (Outcome, error) {
	name := d.prefix + "." + host
	records, err := d.resolver.LookupTXT(ctx, name)
	if err != nil {
		return Outcome{}, fmt.Errorf("dns verifier lookup %s: %w", name, err)
	}
	if len(records) == 0 {
		return Outcome{Code: CodeConflict}, nil
	}
	observed := strings.ToUpper(strings.TrimSpace(records[0]))
	if observed != "" && observed == submittedFP {
		return Outcome{Code: CodeMatch, ObservedFP: observed, HasObserved: true}, nil
	}
	return Outcome{Code: CodeConflict, ObservedFP: observed, HasObserved: observed != ""}, nil
}
