package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-progress/internal/app"
	"github.com/p-n-ai/pai-progress/internal/platform/config"
	"github.com/p-n-ai/pai-progress/internal/platform/logger"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "progressctl",
		Short:        "Student progress tracker",
		Long:         "progressctl grades module quizzes, shows year dashboards and migrates legacy progress.",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("catalog", "", "Path to module content (overrides LEARN_CATALOG_PATH)")
	root.PersistentFlags().String("store", "", "Progress store: memory, postgres or redis (overrides LEARN_STORE_BACKEND)")

	root.AddCommand(
		newCatalogCmd(),
		newGradeCmd(),
		newDashboardCmd(),
		newYearsCmd(),
		newMigrateCmd(),
		newExportCmd(),
	)
	return root
}

// openApp loads configuration, applies flag overrides and wires the app.
// Logs go to stderr so command output stays clean.
func openApp(ctx context.Context, cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if p, _ := cmd.Flags().GetString("catalog"); p != "" {
		cfg.CatalogPath = p
	}
	if s, _ := cmd.Flags().GetString("store"); s != "" {
		cfg.Store.Backend = s
	}
	slog.SetDefault(logger.New(cfg.Log, cmd.ErrOrStderr()))

	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// warnIfEphemeral tells the user that writes made by this command are lost on
// exit when the in-memory store is selected.
func warnIfEphemeral(cmd *cobra.Command, a *app.App) {
	if a.Config.Store.Backend != config.BackendMemory {
		return
	}
	fmt.Fprintln(cmd.ErrOrStderr(),
		"warning: memory store selected, progress is discarded when progressctl exits (set --store or LEARN_STORE_BACKEND to postgres or redis)")
}
