package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tana-dev/tana-edge/capability"
	"github.com/tana-dev/tana-edge/contract"
)

var runCmd = &cobra.Command{
	Use:   "run [contract-id | file.js | file.ts]",
	Short: "Run a contract or script once",
	Long: `Execute a single invocation from the command line.

With a contract id, the contract is looked up under the contract root and
its Get or Post entry point is invoked:
  tana-edge run counter
  tana-edge run counter --method post --body '{"n":1}'

With a .js or .ts path, the file runs as a standalone script with the full
tana module namespace but no entry dispatch:
  tana-edge run script.ts`,
	Args: cobra.ExactArgs(1),
	Run:  runRun,
}

func init() {
	runCmd.Flags().String("method", "get", "Entry point: get or post")
	runCmd.Flags().String("body", "", "JSON body for post invocations")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) {
	method, _ := cmd.Flags().GetString("method")
	body, _ := cmd.Flags().GetString("body")

	engine, err := newEngine()
	if err != nil {
		fatal(err)
	}
	defer engine.Close()

	registry := capability.NewRegistry()
	capability.Bind(registry, services())

	dispatcher := contract.NewDispatcher(viper.GetString("contracts"), engine, registry)

	ctx := context.Background()
	if timeout := viper.GetDuration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	target := args[0]

	if strings.HasSuffix(target, ".js") || strings.HasSuffix(target, ".ts") {
		data, err := os.ReadFile(target)
		if err != nil {
			fatal(err)
		}
		output, err := dispatcher.Exec(ctx, string(data), strings.HasSuffix(target, ".js"))
		fmt.Print(output)
		if err != nil {
			fatal(err)
		}
		return
	}

	inv := contract.Invocation{
		ContractID: target,
		Method:     method,
		Request: contract.Request{
			Path:    "/",
			Method:  strings.ToUpper(method),
			Query:   map[string]string{},
			Headers: map[string]string{},
			Params:  map[string]string{},
			IP:      "127.0.0.1",
		},
	}
	if body != "" {
		if !json.Valid([]byte(body)) {
			fatal(fmt.Errorf("invalid json body"))
		}
		inv.Body = json.RawMessage(body)
	}

	outcome, err := dispatcher.Invoke(ctx, inv)
	if err != nil {
		fatal(err)
	}

	if outcome.Output != "" {
		fmt.Fprint(os.Stderr, outcome.Output)
	}
	out, err := json.MarshalIndent(outcome.Response, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(out))
}
