package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/travelog/travelog/cmd/travelog/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt := &cmd.Runtime{}
	rootCmd := &cobra.Command{
		Use:               "travelog",
		Short:             "Travel journal with an offline cache",
		SilenceUsage:      true,
		PersistentPreRunE: rt.Start,
		PersistentPostRun: rt.Stop,
	}

	rootCmd.AddCommand(cmd.AccountCmds(rt)...)
	rootCmd.AddCommand(cmd.ProfileCmd(rt))
	rootCmd.AddCommand(cmd.FeedCmd(rt))
	rootCmd.AddCommand(cmd.PostsCmd(rt))
	rootCmd.AddCommand(cmd.PostCmd(rt))
	rootCmd.AddCommand(cmd.MapCmd(rt))
	rootCmd.AddCommand(cmd.CacheCmd(rt))

	err := rootCmd.ExecuteContext(ctx)
	rt.Stop(rootCmd, nil)
	if err != nil {
		os.Exit(1)
	}
}
