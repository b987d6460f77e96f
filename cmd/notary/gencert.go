package main

import (
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"
)

var (
	gencertOut  string
	gencertDays int
)

// genCertCmd shells out to openssl for a self-signed notary certificate,
// the closest compiled-binary analog to cli_checks.py's interpreter-version
// gate: it checks a required external tool is present before doing
// anything, and exits 3 (not 2, reserved for flag errors) when it isn't.
var genCertCmd = &cobra.Command{
	Use:   "gencert",
	Short: "Generate a self-signed TLS certificate and RSA signing key via openssl",
	RunE: func(cmd *cobra.Command, args []string) error {
		opensslPath, err := exec.LookPath("openssl")
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "gencert: openssl not found on $PATH")
			return &exitCodeError{code: exitUnsupportedEnv, err: err}
		}

		keyPath := gencertOut + ".key.pem"
		certPath := gencertOut + ".cert.pem"

		genKey := exec.Command(opensslPath, "genrsa", "-out", keyPath, "2048")
		if out, err := genKey.CombinedOutput(); err != nil {
			return fmt.Errorf("gencert: openssl genrsa: %w: %s", err, out)
		}

		subj := fmt.Sprintf("-days=%d", gencertDays)
		genCert := exec.Command(opensslPath, "req", "-new", "-x509", "-key", keyPath,
			"-out", certPath, subj, "-subj", "/CN=convergence-notary")
		if out, err := genCert.CombinedOutput(); err != nil {
			return fmt.Errorf("gencert: openssl req: %w: %s", err, out)
		}

		fmt.Printf("wrote %s and %s\n", keyPath, certPath)
		return nil
	},
}

func init() {
	genCertCmd.Flags().StringVar(&gencertOut, "out", "notary", "output file basename")
	genCertCmd.Flags().IntVar(&gencertDays, "days", 3650, "certificate validity in days")
}

// exitCodeError lets RunE propagate a specific process exit code through
// cobra's error-returning convention while main still gets to decide how
// to surface the message.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }
