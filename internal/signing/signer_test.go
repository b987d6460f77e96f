package signing

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/mk-fg/convergence/internal/store"
	"github.com/stretchr/testify/require"
)

func writeTestKey(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	path := filepath.Join(t.TempDir(), "notary.pem")
	require.NoError(t, os.WriteFile(path, keyPEM, 0o600))
	return path
}

func TestSignProducesVerifiableSignature(t *testing.T) {
	path := writeTestKey(t)
	signer, err := LoadSigner(path)
	require.NoError(t, err)

	records := []store.Record{{Fingerprint: "AA:BB:CC", Start: 100, Finish: 200}}
	out, err := signer.Sign(records)
	require.NoError(t, err)

	var doc struct {
		Signature string          `json:"signature"`
		Response  json.RawMessage `json:"response"`
	}
	require.NoError(t, json.Unmarshal(out, &doc))

	sig, err := base64.StdEncoding.DecodeString(doc.Signature)
	require.NoError(t, err)

	sum := sha1.Sum(doc.Response) //nolint:gosec
	err = rsa.VerifyPKCS1v15(signer.PublicKey(), crypto.SHA1, sum[:], sig)
	require.NoError(t, err, "signature must verify against the canonical response bytes")

	require.JSONEq(t, `{"fingerprintList":[{"timestamp":{"start":100,"finish":200},"fingerprint":"AA:BB:CC"}]}`, string(doc.Response))
}

func TestSignEmptyRecordsProducesEmptyList(t *testing.T) {
	path := writeTestKey(t)
	signer, err := LoadSigner(path)
	require.NoError(t, err)

	out, err := signer.Sign(nil)
	require.NoError(t, err)
	require.JSONEq(t, `{"fingerprintList":[]}`, string(extractResponse(t, out)))
}

func extractResponse(t *testing.T, doc []byte) json.RawMessage {
	t.Helper()
	var parsed struct {
		Response json.RawMessage `json:"response"`
	}
	require.NoError(t, json.Unmarshal(doc, &parsed))
	return parsed.Response
}

func TestLoadSignerRejectsFileWithoutKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.pem")
	require.NoError(t, os.WriteFile(path, []byte("not a pem file"), 0o600))
	_, err := LoadSigner(path)
	require.Error(t, err)
}
