package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/getkayan/shogun/config"
	"github.com/getkayan/shogun/internal/logger"
)

// Version is set at build time
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg *config.Config

	root := &cobra.Command{
		Use:           "shogun",
		Short:         "Deterministic identity tooling for Shogun",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = c
			logger.InitLogger(cfg.LogLevel)
			return nil
		},
	}

	load := func() *config.Config { return cfg }
	root.AddCommand(
		newDeriveCmd(load),
		newAddressCmd(load),
		newSignCmd(load),
		newVerifyCmd(),
		newLoginCmd(load),
	)
	return root
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
