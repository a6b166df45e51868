package cli

import (
	"fmt"
	"io"
	"os"

	"askai/internal/chat"
	"askai/internal/config"

	"github.com/spf13/cobra"
)

func newExportCommand(opts *rootOptions) *cobra.Command {
	var sessionID, output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export one session, or every session and the settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			u, err := a.signedIn(ctx, "", "")
			if err != nil {
				return err
			}
			svc, err := a.workspaces.Open(ctx, u.ID)
			if err != nil {
				return err
			}

			var name string
			var data []byte
			if sessionID != "" {
				name, data, err = svc.ExportSession(sessionID)
			} else {
				name = chat.AllDataFilename
				data, err = svc.ExportAll(ctx, a.settings)
			}
			if err != nil {
				return err
			}
			if output == "" {
				output = name
			}
			if output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0600); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id to export (default: everything)")
	cmd.Flags().StringVarP(&output, "output", "o", "", `output file, "-" for stdout (default: derived from the title)`)
	return cmd
}

func newImportCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import a session exported with the export command",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read import file: %w", err)
			}

			a, err := loadApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			u, err := a.signedIn(ctx, "", "")
			if err != nil {
				return err
			}
			svc, err := a.workspaces.Open(ctx, u.ID)
			if err != nil {
				return err
			}
			cs, err := svc.ImportSession(data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %q with %d messages (%s)\n", cs.Title, len(cs.Messages), cs.ID)
			return nil
		},
	}
}

func printConfig(w io.Writer, cfg *config.Config) {
	key := "not set"
	if cfg.Completion.APIKey != "" {
		key = "set"
	}
	remote := cfg.Persistence.APIBaseURL
	if remote == "" {
		remote = "disabled"
	}
	logFile := cfg.Logging.File
	if logFile == "" {
		logFile = "console only"
	}

	fmt.Fprintln(w, "Configuration loaded successfully!")
	fmt.Fprintf(w, "Gemini API Key: %s\n", key)
	fmt.Fprintf(w, "Gemini Endpoint: %s\n", cfg.Completion.BaseURL)
	fmt.Fprintf(w, "Completion: %d attempts, %ds each\n", cfg.Completion.MaxAttempts, cfg.Completion.TimeoutSeconds)
	fmt.Fprintf(w, "Remote API: %s\n", remote)
	fmt.Fprintf(w, "Database: %s (namespace %q)\n", cfg.Persistence.DatabasePath, cfg.Persistence.Namespace)
	fmt.Fprintf(w, "Listen Address: %s\n", cfg.ListenAddr())
	fmt.Fprintf(w, "Log Level: %s\n", cfg.Logging.Level)
	fmt.Fprintf(w, "Log File: %s\n", logFile)
}
