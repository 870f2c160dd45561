package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/travelog/travelog/internal/app"
	"github.com/travelog/travelog/internal/config"
	"github.com/travelog/travelog/internal/db"
	"github.com/travelog/travelog/internal/logger"
)

// Runtime holds the app for the duration of one command.
type Runtime struct {
	Cfg *config.Config
	App *app.App
}

// Start loads the configuration and opens the app.
func (rt *Runtime) Start(cmd *cobra.Command, args []string) error {
	err := rt.Setup(cmd, args)
	if err != nil {
		return err
	}

	a, err := app.New(cmd.Context(), rt.Cfg)
	if db.IsCorrupt(err) {
		return fmt.Errorf("%w (run \"travelog cache clear\" to start over)", err)
	}
	if err != nil {
		return err
	}
	rt.App = a
	return nil
}

// Setup loads the configuration and installs the logger without touching
// either database.
func (rt *Runtime) Setup(_ *cobra.Command, _ []string) error {
	if rt.Cfg != nil {
		return nil
	}
	rt.Cfg = config.Load()

	// stdout belongs to command output
	logger.Init(os.Stderr, rt.Cfg.IsDevelopment(), rt.Cfg.SentryDSN)
	return nil
}

// Stop waits for cache writes and closes the app. It is safe to call twice.
func (rt *Runtime) Stop(_ *cobra.Command, _ []string) {
	if rt.App == nil {
		return
	}

	err := rt.App.Close()
	if err != nil {
		slog.Error("failed to close app", "error", err)
	}
	rt.App = nil
	logger.Flush()
}
