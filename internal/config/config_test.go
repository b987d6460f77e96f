package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsAndYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: test-notary
signing_key: /tmp/key.pem
database_path: /tmp/notary.db
verifier_backend: always-true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "test-notary", cfg.Name)
	require.Equal(t, ":80", cfg.ProxyAddr, "unset fields keep their default")
	require.Equal(t, 10*time.Second, cfg.ProxyIdleTimeout)
}

func TestLoadRejectsMissingSigningKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`database_path: /tmp/notary.db`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsUnknownVerifierBackend(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
signing_key: /tmp/key.pem
database_path: /tmp/notary.db
verifier_backend: not-a-real-backend
`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverridesApplyAfterYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
signing_key: /tmp/key.pem
database_path: /tmp/notary.db
verifier_backend: always-true
`), 0o644))

	t.Setenv("NOTARY_PROXY_ADDR", "127.0.0.1:8080")
	t.Setenv("NOTARY_VERIFIER_BACKEND", "always-false")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:8080", cfg.ProxyAddr)
	require.Equal(t, "always-false", cfg.VerifierBackend)
}
