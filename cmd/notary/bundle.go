package main

import (
	"bufio"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/mk-fg/convergence/internal/signing"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var bundleOut string

// readPassword is a var, not a direct call, so tests can stub it out the
// same way cmd/pulse/config.go aliases term.ReadPassword to a package var.
var readPassword = term.ReadPassword

// bundleCmd prompts for notary identity metadata and emits a ".notary"
// import file: the public half of the signing key plus the
// operator-supplied name/contact, in the shape a client tool would import
// as a trust anchor. Name and contact are read with echo disabled, the
// same masked-prompt treatment cmd/pulse/config.go gives its import
// passphrase, since a notary operator's contact details are the kind of
// thing that shouldn't land in shell history or a terminal scrollback.
var bundleCmd = &cobra.Command{
	Use:   "bundle <signing-key-path>",
	Short: "Prompt for notary metadata and emit a .notary import file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := exec.LookPath("openssl"); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "bundle: openssl not found on $PATH")
			return &exitCodeError{code: exitUnsupportedEnv, err: err}
		}

		name, err := promptMasked("Notary name: ")
		if err != nil {
			return fmt.Errorf("bundle: %w", err)
		}
		contact, err := promptMasked("Contact: ")
		if err != nil {
			return fmt.Errorf("bundle: %w", err)
		}

		signer, err := signing.LoadSigner(args[0])
		if err != nil {
			return fmt.Errorf("bundle: %w", err)
		}

		pubPEM, err := publicKeyPEM(signer)
		if err != nil {
			return fmt.Errorf("bundle: %w", err)
		}

		out := bundleOut
		if out == "" {
			out = "notary.notary"
		}
		doc := fmt.Sprintf("# name: %s\n# contact: %s\n%s", name, contact, pubPEM)
		if err := os.WriteFile(out, []byte(doc), 0o644); err != nil {
			return fmt.Errorf("bundle: writing %s: %w", out, err)
		}
		fmt.Printf("\nwrote %s\n", out)
		return nil
	},
}

func init() {
	bundleCmd.Flags().StringVar(&bundleOut, "out", "", "output .notary file path (default notary.notary)")
}

// promptMasked reads one line from stdin without echoing it when stdin is
// a terminal, falling back to a plain buffered read for piped input.
func promptMasked(label string) (string, error) {
	fmt.Print(label)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		b, err := readPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// publicKeyPEM re-derives a PEM-wrapped public key block for the bundle
// file from the loaded private key; any certificate block in the signing
// key file is skipped by the loader, so bundle exports the public key, not
// a certificate chain.
func publicKeyPEM(signer *signing.Signer) (string, error) {
	pubBytes, err := x509.MarshalPKIXPublicKey(signer.PublicKey())
	if err != nil {
		return "", err
	}
	block := &pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes}
	return string(pem.EncodeToMemory(block)), nil
}
