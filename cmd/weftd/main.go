// Command weftd runs the weft entity/verb runtime as a daemon: an embedded
// SQLite store, the verb execution engine, the scheduler's tick loop, and
// a JSON-RPC/WebSocket transport. Startup order is config load, flag
// overrides, logging/tracing/metrics init, store open, service wiring,
// then signal-based graceful shutdown.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

func main() {
	root := &cobra.Command{
		Use:   "weftd",
		Short: "weft entity/verb runtime daemon",
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a JSON config file")

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(loadCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
