package verifier

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewDNSDefaultsPrefix(t *testing.T) {
	d, err := NewDNS("", zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, defaultDNSPrefix, d.prefix)
}

func TestNewDNSCustomPrefix(t *testing.T) {
	d, err := NewDNS("prefix=_myfp", zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, "_myfp", d.prefix)
}

func TestNewDNSRejectsEmptyPrefix(t *testing.T) {
	_, err := NewDNS("prefix=", zerolog.Nop())
	require.Error(t, err)
}

func TestNewDNSRejectsUnknownOption(t *testing.T) {
	_, err := NewDNS("bogus", zerolog.Nop())
	require.Error(t, err)
}
