// Package cli holds the askai command tree.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"askai/internal/config"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

type rootOptions struct {
	configPath string
}

// NewRootCommand builds the askai command tree
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "askai",
		Short:         "Chat with Gemini from a local backend or the terminal",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.json", "path to the configuration file")

	root.AddCommand(
		newServeCommand(opts),
		newChatCommand(opts),
		newExportCommand(opts),
		newImportCommand(opts),
		newConfigCommand(opts),
	)
	return root
}

// Execute runs the command tree, stopping on SIGINT or SIGTERM
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}

// loadApp reads the configuration and wires the application. Logs go to the
// command's stderr.
func loadApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return newApp(cfg, cmd.ErrOrStderr())
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and websocket event feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			a.logger.Info("Starting askai v%s...", version)
			if err := a.serve(cmd.Context(), opts.configPath); err != nil {
				return err
			}
			a.logger.Info("askai stopped")
			return nil
		},
	}
}

func newConfigCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Load and validate the configuration, then print a summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			printConfig(cmd.OutOrStdout(), cfg)
			return nil
		},
	})
	return cmd
}
