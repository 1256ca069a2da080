package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"dailysender/internal/app"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dailysender",
		Short: "Daily Telegram broadcast bot",
		Long: `dailysender sends one message group to every subscriber at each
configured time of day.

Without a subcommand it runs the server. The other commands edit the data
directory directly; a running server picks the changes up.`,
		Version:      version,
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.AddCommand(
		newServeCmd(),
		newGroupsCmd(),
		newSchedulesCmd(),
		newRecipientsCmd(),
		newSendNowCmd(),
	)
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot, the scheduler and the admin API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.Run(ctx); err != nil {
		a.Logger().Error("server stopped with error", "error", err)
		return err
	}
	return nil
}

// withStores runs fn against the data directory with console logs limited to
// warnings, so command output stays readable.
func withStores(cmd *cobra.Command, fn func(ctx context.Context, a *app.App, s *app.Stores) error) error {
	a, err := app.New(app.WithConsoleLevel("warn"))
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := a.OpenStores(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, a, s)
}
