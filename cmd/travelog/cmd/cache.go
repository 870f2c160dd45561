package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/travelog/travelog/internal/db"
)

func CacheCmd(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local cache",
		// clear must work on a cache that no longer opens
		PersistentPreRunE: rt.Setup,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached user and post",
		RunE: func(cmd *cobra.Command, args []string) error {
			return clearCache(cmd, rt)
		},
	})
	return cmd
}

// clearCache empties a healthy cache in place. A corrupt cache file is deleted
// instead, which also signs the user out.
func clearCache(cmd *cobra.Command, rt *Runtime) error {
	out := cmd.OutOrStdout()

	err := rt.Start(cmd, nil)
	if db.IsCorrupt(err) {
		slog.Warn("local store is corrupt, removing it", "path", rt.Cfg.LocalDBPath, "error", err)
		return removeCache(out, rt.Cfg.LocalDBPath)
	}
	if err != nil {
		return err
	}

	err = rt.App.AccountService.ClearCache(cmd.Context())
	if db.IsCorrupt(err) {
		rt.Stop(cmd, nil)
		return removeCache(out, rt.Cfg.LocalDBPath)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Cache cleared")
	return nil
}

func removeCache(out io.Writer, path string) error {
	err := db.Remove(path)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "Cache was corrupt and has been removed; sign in again")
	return nil
}
