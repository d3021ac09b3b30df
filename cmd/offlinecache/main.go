package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

// globalOptions are shared by every subcommand.
type globalOptions struct {
	ConfigPath string
}

var globals globalOptions

var cmdRoot = &cobra.Command{
	Use:   "offlinecache",
	Short: "Serve a web application's assets from a versioned offline cache",
	Long: `
offlinecache installs an application's asset manifest into a named,
versioned cache, removes caches left behind by earlier versions, and
answers requests from the cache before falling back to the origin.

Configuration is read from --config (YAML) and OFFLINE_* environment
variables.
`,
	Version:           version,
	SilenceErrors:     true,
	SilenceUsage:      true,
	DisableAutoGenTag: true,
}

func init() {
	cmdRoot.PersistentFlags().StringVarP(&globals.ConfigPath, "config", "c", os.Getenv("OFFLINE_CONFIG"), "path to the YAML configuration file")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmdRoot.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
