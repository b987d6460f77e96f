// Command notary runs the Convergence notary service and its companion
// setup subcommands, following the cobra root-command-plus-subcommands
// shape of cmd/pulse-sensor-proxy/main.go and cmd/pulse/main.go.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "notary",
	Short: "Convergence notary: a TLS certificate-fingerprint attestation service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNotary(configPath)
	},
}

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to notary config.yaml")
	rootCmd.AddCommand(createDBCmd, genCertCmd, bundleCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var exitErr *exitCodeError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		os.Exit(exitArgError)
	}
}

// Exit codes per spec.md §6's CLI summary table.
const (
	exitOK             = 0
	exitArgError       = 2
	exitUnsupportedEnv = 3
)
