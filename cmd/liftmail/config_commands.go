package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"liftmail/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigValidateCommand(ctx))
	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		targetPath string
		overwrite  bool
		toStdout   bool
	)

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if toStdout {
				fmt.Fprint(out, config.SampleConfig())
				return nil
			}

			target, err := initTarget(targetPath)
			if err != nil {
				return err
			}
			if !overwrite {
				_, err := os.Stat(target)
				switch {
				case err == nil:
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				case !errors.Is(err, fs.ErrNotExist):
					return fmt.Errorf("check config path: %w", err)
				}
			}
			if err := config.CreateSample(target); err != nil {
				return err
			}

			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Next: set [mailbox] credentials or export EMAIL_USERNAME/EMAIL_PASSWORD, then run liftmail doctor.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	cmd.Flags().BoolVar(&toStdout, "stdout", false, "Print the sample instead of writing a file")
	return cmd
}

func initTarget(flagValue string) (string, error) {
	if target := strings.TrimSpace(flagValue); target != "" {
		expanded, err := config.ExpandPath(target)
		if err != nil {
			return "", fmt.Errorf("resolve config path: %w", err)
		}
		return expanded, nil
	}
	target, err := config.DefaultConfigPath()
	if err != nil {
		return "", fmt.Errorf("determine default config path: %w", err)
	}
	return target, nil
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			encoded, err := cfg.Redacted().Encode()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# %s (environment overrides applied)\n", ctx.configPath)
			fmt.Fprint(out, encoded)
			return nil
		},
	}
}

// newConfigValidateCommand loads the config (which validates it) and prints
// the settings that decide how messages flow.
func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and summarize the pipeline it selects",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			polling := "disabled"
			if cfg.Mailbox.Enabled && cfg.MailboxConfigured() {
				polling = fmt.Sprintf("every %s from %s", cfg.PollInterval(), cfg.IMAPAddress())
			}
			confirmations := "off"
			if cfg.SMTP.SendConfirmations {
				confirmations = "via " + cfg.SMTPAddress()
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path:   %s\n", ctx.configPath)
			fmt.Fprintf(out, "Polling:       %s\n", polling)
			fmt.Fprintf(out, "Ledger:        %s\n", cfg.Ledger.Backend)
			fmt.Fprintf(out, "Archive:       %s\n", cfg.Archive.Backend)
			fmt.Fprintf(out, "Upload:        %s\n", cfg.Upload.BackendURL)
			fmt.Fprintf(out, "Confirmations: %s\n", confirmations)
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}
