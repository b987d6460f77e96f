// Package signing implements the signed-response encoder from spec.md
// §4.5/§6: a canonical JSON payload, RSA-PKCS1v15/SHA-1 signed, with the
// base64 signature embedded as a sibling field. The notary's private key
// loading follows spec.md §9 ("the same file may contain both cert and
// key... the loader reads the file once and extracts the private key for
// signing; no rotation").
package signing

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // PKCS1v15/SHA-1 signing is the wire format spec.md mandates
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/mk-fg/convergence/internal/store"
)

// Signer holds the notary's long-lived RSA private key and produces
// signed response documents.
type Signer struct {
	key *rsa.PrivateKey
}

// LoadSigner reads path once, scanning every PEM block for a private key
// (PKCS#1 or PKCS#8; a certificate block in the same file is ignored).
func LoadSigner(path string) (*Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("signing: reading key file %s: %w", path, err)
	}

	var key *rsa.PrivateKey
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		switch block.Type {
		case "RSA PRIVATE KEY":
			k, err := x509.ParsePKCS1PrivateKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("signing: parsing PKCS1 key in %s: %w", path, err)
			}
			key = k
		case "PRIVATE KEY":
			parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("signing: parsing PKCS8 key in %s: %w", path, err)
			}
			rsaKey, ok := parsed.(*rsa.PrivateKey)
			if !ok {
				return nil, fmt.Errorf("signing: key in %s is not RSA", path)
			}
			key = rsaKey
		}
		if key != nil {
			break
		}
	}
	if key == nil {
		return nil, fmt.Errorf("signing: no private key found in %s", path)
	}
	return &Signer{key: key}, nil
}

// timestamp mirrors spec.md §6's field order: start before finish.
type timestamp struct {
	Start  int64 `json:"start"`
	Finish int64 `json:"finish"`
}

// fingerprintEntry mirrors spec.md §6's field order: timestamp before
// fingerprint.
type fingerprintEntry struct {
	Timestamp   timestamp `json:"timestamp"`
	Fingerprint string    `json:"fingerprint"`
}

type responseBody struct {
	FingerprintList []fingerprintEntry `json:"fingerprintList"`
}

type document struct {
	Signature string          `json:"signature"`
	Response  json.RawMessage `json:"response"`
}

// Sign builds the canonical "response" payload from records, signs its
// exact serialized bytes, and returns the full document ready to write as
// the HTTP body (Content-Type application/json, per spec.md §4.5).
func (s *Signer) Sign(records []store.Record) ([]byte, error) {
	entries := make([]fingerprintEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, fingerprintEntry{
			Timestamp:   timestamp{Start: r.Start, Finish: r.Finish},
			Fingerprint: r.Fingerprint,
		})
	}

	canonical, err := json.Marshal(responseBody{FingerprintList: entries})
	if err != nil {
		return nil, fmt.Errorf("signing: marshal response body: %w", err)
	}

	sum := sha1.Sum(canonical) //nolint:gosec
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA1, sum[:])
	if err != nil {
		return nil, fmt.Errorf("signing: rsa sign: %w", err)
	}

	doc := document{
		Signature: base64.StdEncoding.EncodeToString(sig),
		Response:  canonical,
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("signing: marshal document: %w", err)
	}
	return out, nil
}

// PublicKey exposes the notary's public key, e.g. for the bundle
// subcommand to embed in a .notary import file.
func (s *Signer) PublicKey() *rsa.PublicKey {
	return &s.key.PublicKey
}
