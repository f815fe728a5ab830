// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Command wastectl provides a terminal client for the medical waste manifest (聯單) system.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/latiju/wastectl/internal/clierr"
	"github.com/latiju/wastectl/internal/config"
	"github.com/latiju/wastectl/pkg/wasteapi"
)

var (
	// BuildTag is set during build
	BuildTag = "dev"
	// BuildDate is set during build
	BuildDate = "unknown"
)

// Global flags and the configuration they resolve to.
var (
	flagConfig    string
	flagBaseURL   string
	flagSession   string
	flagCSRFToken string
	flagLogLevel  string

	cfg = config.Default()
	log = newLogger()
)

var rootCmd = &cobra.Command{
	Use:   "wastectl",
	Short: "Import, browse and clean up waste manifests",
	Long: `wastectl - manage medical waste transport manifests (聯單) from the terminal

wastectl talks to the waste transport web application. It provides commands for:

  - Importing manifest CSV files, resolving conflicts with stored manifests
  - Browsing manifests with filters and autocomplete
  - Selecting and deleting manifests in batches
  - Exporting filtered manifests to CSV

Configuration is read from ~/.wastectl/config.yaml, .env files and
WASTECTL_* environment variables; flags override all of them.

Environment Variables:
  WASTECTL_BASE_URL       Backend root (default: http://127.0.0.1:8000)
  WASTECTL_SESSION_ID     Django sessionid cookie of a signed-in user
  WASTECTL_CSRF_TOKEN     csrftoken cookie, fetched automatically when unset
  WASTECTL_LOG_LEVEL      silent, error, warn, info or debug
`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", clierr.Pretty(err))
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Config file (default ~/.wastectl/config.yaml)")
	pf.StringVar(&flagBaseURL, "base-url", "", "Backend root URL")
	pf.StringVar(&flagSession, "session", "", "Session cookie of a signed-in user")
	pf.StringVar(&flagCSRFToken, "csrf-token", "", "Anti-forgery token (fetched from the list page when unset)")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level: silent, error, warn, info, debug")

	// Add version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "wastectl version %s (built %s)\n", BuildTag, BuildDate)
		},
	})

	// Add completion command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion script",
		Long: `Generate shell completion script for wastectl.

Bash:
  $ source <(wastectl completion bash)
  # Or add to ~/.bashrc:
  $ wastectl completion bash >> ~/.bashrc

Zsh:
  $ source <(wastectl completion zsh)
  # Or install to fpath:
  $ wastectl completion zsh > "${fpath[1]}/_wastectl"

Fish:
  $ wastectl completion fish | source
  # Or install:
  $ wastectl completion fish > ~/.config/fish/completions/wastectl.fish

PowerShell:
  PS> wastectl completion powershell | Out-String | Invoke-Expression
`,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.ExactArgs(1),
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	})
}

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// loadConfig resolves the layered configuration and applies global flags.
func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if flagBaseURL != "" {
		loaded.BaseURL = flagBaseURL
	}
	if flagSession != "" {
		loaded.SessionID = flagSession
	}
	if flagCSRFToken != "" {
		loaded.CSRFToken = flagCSRFToken
	}
	if flagLogLevel != "" {
		loaded.LogLevel = flagLogLevel
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded
	log.SetLevel(cfg.LogrusLevel())
	if cfg.LogLevel == "silent" {
		log.SetOutput(io.Discard)
	}
	log.WithField("config", cfg.Path).Debug("configuration loaded")
	return nil
}

// newClient builds an API client from the resolved configuration. logger
// may be nil to use the command logger.
func newClient(logger *logrus.Logger) (*wasteapi.Client, error) {
	if logger == nil {
		logger = log
	}
	return wasteapi.NewClient(wasteapi.Options{
		BaseURL:   cfg.BaseURL,
		SessionID: cfg.SessionID,
		CSRFToken: cfg.CSRFToken,
		Timeout:   cfg.Timeout,
		Logger:    logger,
	})
}

// requestContext bounds one non-interactive request.
func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, cfg.Timeout)
}
