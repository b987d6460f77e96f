package proxychannel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDestinationAcceptedForms(t *testing.T) {
	cases := []struct {
		raw  string
		host string
	}{
		{"peer.example:4242", "peer.example"},
		{"peer.example+4242", "peer.example"},
		{"peer.example", "peer.example"},
	}
	for _, c := range cases {
		d, err := parseDestination(c.raw)
		require.NoError(t, err, c.raw)
		require.Equal(t, c.host, d.host)
	}
}

func TestParseDestinationRejectsWrongPort(t *testing.T) {
	for _, raw := range []string{"evil.example:22", "evil.example+8080", ":4242", ""} {
		_, err := parseDestination(raw)
		require.Error(t, err, raw)
	}
}
