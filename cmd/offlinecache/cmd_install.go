package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var cmdInstall = &cobra.Command{
	Use:   "install",
	Short: "Fetch the manifest into the current cache",
	Long: `
The "install" command opens the cache named by prefix and version and
stores every manifest URL in it. Nothing is stored unless every fetch
succeeds. The memory store is refused, since it would vanish on exit.

EXIT STATUS
===========

Exit status is 0 if every asset was cached, and non-zero otherwise.
`,
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInstall(cmd.Context(), cmd.OutOrStdout())
	},
}

var cmdActivate = &cobra.Command{
	Use:   "activate",
	Short: "Delete caches left by earlier versions",
	Long: `
The "activate" command deletes every cache whose name carries the
configured prefix but is not the current version. Caches of other
applications are left alone.
`,
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runActivate(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	cmdRoot.AddCommand(cmdInstall, cmdActivate)
}

func runInstall(ctx context.Context, out io.Writer) (err error) {
	a, err := loadPersistentApp(ctx)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, a.Close(context.Background())) }()

	if err := a.worker.OnInstall(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "installed %s (%d assets)\n", a.worker.CacheName(), len(a.cfg.Manifest))
	return nil
}

func runActivate(ctx context.Context, out io.Writer) (err error) {
	a, err := loadPersistentApp(ctx)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, a.Close(context.Background())) }()

	deleted, actErr := a.worker.Activate(ctx)
	for _, name := range deleted {
		fmt.Fprintf(out, "deleted %s\n", name)
	}
	if len(deleted) == 0 && actErr == nil {
		fmt.Fprintln(out, "no stale caches")
	}
	return actErr
}
