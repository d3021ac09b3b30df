package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jonwraymond/offlinecache/cachestore"
	"github.com/jonwraymond/offlinecache/worker"
)

var cmdCaches = &cobra.Command{
	Use:   "caches",
	Short: "List caches with their entry counts and sizes",
	Long: `
The "caches" command lists every cache in the configured store in creation
order. The current cache is marked with "*" and stale caches of this
application with "stale".
`,
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCaches(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	cmdRoot.AddCommand(cmdCaches)
}

func runCaches(ctx context.Context, out io.Writer) (err error) {
	a, err := loadPersistentApp(ctx)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, a.Close(context.Background())) }()

	stats, err := cachestore.Stats(ctx, a.storage)
	if err != nil {
		return err
	}
	return printCaches(out, a.cfg.Worker(), stats)
}

func printCaches(out io.Writer, cfg worker.Config, stats []cachestore.CacheStats) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tENTRIES\tSIZE\tSTATE")
	for _, st := range stats {
		state := ""
		switch {
		case st.Name == cfg.CacheName():
			state = "*"
		case cfg.IsStale(st.Name):
			state = "stale"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", st.Name, st.Entries, humanize.Bytes(uint64(st.Bytes)), state)
	}
	return tw.Flush()
}
