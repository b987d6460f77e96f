package verifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAlwaysTrueEchoesSubmittedFingerprint(t *testing.T) {
	v, err := NewAlwaysTrue("")
	require.NoError(t, err)

	outcome, err := v.Verify(context.Background(), "h", "443", "", "AA:BB")
	require.NoError(t, err)
	require.Equal(t, CodeMatch, outcome.Code)
	require.Equal(t, "AA:BB", outcome.ObservedFP)
}

func TestAlwaysFalseReportsConflictWithNoObservation(t *testing.T) {
	v, err := NewAlwaysFalse("")
	require.NoError(t, err)

	outcome, err := v.Verify(context.Background(), "h", "443", "", "AA:BB")
	require.NoError(t, err)
	require.Equal(t, CodeConflict, outcome.Code)
	require.False(t, outcome.HasObserved)
}

func TestFixturesRejectOptions(t *testing.T) {
	_, err := NewAlwaysTrue("verify_ca")
	require.Error(t, err)

	_, err = NewAlwaysFalse("verify_ca")
	require.Error(t, err)
}
