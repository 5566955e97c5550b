package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/bruwbird/codex/internal/document"
	"github.com/bruwbird/codex/internal/settings"
	"github.com/spf13/cobra"
)

func newRootCmd(e env) *cobra.Command {
	var workspace string

	cmd := &cobra.Command{
		Use:           "codex",
		Short:         "Generate code into workspace files with a remote completion API.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetIn(e.stdin)
	cmd.SetOut(e.stdout)
	cmd.SetErr(e.stderr)
	cmd.PersistentFlags().StringVar(&workspace, "workspace", "", "workspace directory (or env CODEX_WORKSPACE)")

	// withApp builds the session for one command run.
	withApp := func(run func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := e.newApp(cmd.Context(), workspace)
			if err != nil {
				return err
			}
			defer a.Close()
			return run(cmd, args, a)
		}
	}

	cmd.AddCommand(
		newStartSessionCmd(withApp),
		newGenerateCmd(withApp),
		newChangeKeyCmd(withApp),
		newChangeSettingCmd(withApp),
		newResetSettingsCmd(withApp),
		newShowSettingsCmd(withApp),
	)
	return cmd
}

type appRunner func(run func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error

func newStartSessionCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "start-session",
		Short: "Set the model endpoint and API key, then verify the key.",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			return a.cmds.StartSession(cmd.Context())
		}),
	}
}

func newGenerateCmd(withApp appRunner) *cobra.Command {
	var selection string

	cmd := &cobra.Command{
		Use:   "generate <file>",
		Short: "Send the file, or a selection of it, and insert the completion after it. Relative paths are under the workspace.",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			var sel *document.Range
			if selection != "" {
				r, err := document.ParseRange(selection)
				if err != nil {
					return err
				}
				sel = &r
			}

			path := args[0]
			if !filepath.IsAbs(path) {
				path = filepath.Join(a.cfg.Workspace, path)
			}
			doc, err := document.OpenFile(path)
			if err != nil {
				return err
			}

			// Each invocation is a new process; a stored key resumes the session.
			if settings.APIKey(a.store) != "" {
				if _, err := a.cmds.Activate(cmd.Context(), "", ""); err != nil {
					return err
				}
			}

			res, err := a.cmds.Generate(cmd.Context(), doc, sel)
			if err != nil {
				return err
			}
			a.logger.Sugar().Debugw("generated", "document", res.Document, "at", res.At.String(), "bytes", len(res.Text))
			return nil
		}),
	}
	cmd.Flags().StringVar(&selection, "selection", "", "zero-based range L:C-L:C to send instead of the whole file")
	return cmd
}

func newChangeKeyCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "change-key",
		Short: "Replace the stored API key and verify it.",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			_, err := a.cmds.ChangeAPIKey(cmd.Context())
			return err
		}),
	}
}

func newChangeSettingCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "change-setting [name value]",
		Short: "Change one generation setting. Prompts when no arguments are given.",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return errors.New("expected no arguments or <name> <value>")
			}
			return nil
		},
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			if len(args) == 2 {
				return a.cmds.UpdateSetting(args[0], args[1])
			}
			return a.cmds.ChangeSetting(cmd.Context())
		}),
	}
}

func newResetSettingsCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-settings",
		Short: "Restore the default generation settings.",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			return a.cmds.ResetSettings(cmd.Context())
		}),
	}
}

func newShowSettingsCmd(withApp appRunner) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show-settings",
		Short: "Print the current settings. The API key is never shown.",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			if !asJSON {
				return a.cmds.ShowSettings(cmd.OutOrStdout())
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(a.cmds.Settings()); err != nil {
				return fmt.Errorf("encode settings: %w", err)
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
