package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tana-dev/tana-edge/capability"
	"github.com/tana-dev/tana-edge/isolate"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "tana-edge",
	Short: "Edge runtime for sandboxed contracts",
	Long: `tana-edge - Run untrusted JavaScript and TypeScript contracts safely.

Each invocation executes in a throwaway QuickJS isolate under WebAssembly.
Contracts reach the host only through the capability surface: a staged
key-value store, a gas-metered transaction queue, a domain-whitelisted
fetch gateway, and read-only chain queries.`,
	Version: version,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("contracts", "contracts", "Contract root directory")
	rootCmd.PersistentFlags().String("ledger-url", capability.DefaultLedgerURL, "Ledger API base URL")
	rootCmd.PersistentFlags().StringSlice("allow-domain", nil, "Additional allowed fetch domain (repeatable)")
	rootCmd.PersistentFlags().Duration("timeout", 30*time.Second, "Execution timeout")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Disable compilation cache")

	viper.SetEnvPrefix("TANA")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	viper.BindPFlags(rootCmd.PersistentFlags())
}

// services builds the shared host-side state from flags and environment.
func services() capability.Services {
	domains := capability.DefaultAllowedDomains
	if extra := viper.GetStringSlice("allow-domain"); len(extra) > 0 {
		domains = append(append([]string{}, domains...), extra...)
	}

	return capability.Services{
		Store:  capability.NewStore(),
		Ledger: capability.NewLedger(),
		Gateway: capability.NewGateway(capability.GatewayConfig{
			AllowedDomains: domains,
		}),
		Chain: capability.NewChain(viper.GetString("ledger-url")),
	}
}

func newEngine() (*isolate.Engine, error) {
	var opts []isolate.Option
	if !viper.GetBool("no-cache") {
		opts = append(opts, isolate.WithDiskCache())
	}
	opts = append(opts, isolate.WithPrecompile())
	return isolate.NewEngine(opts...)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
