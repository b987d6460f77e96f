package main

import (
	"fmt"

	"github.com/mk-fg/convergence/internal/store"
	"github.com/spf13/cobra"
)

var createDBCmd = &cobra.Command{
	Use:   "createdb <path>",
	Short: "Create the fingerprint store's schema at the given path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(args[0])
		if err != nil {
			return fmt.Errorf("createdb: %w", err)
		}
		defer st.Close()
		fmt.Printf("database initialized at %s\n", args[0])
		return nil
	},
}
