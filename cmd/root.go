// Package cmd defines the cagewatch command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/cagewatch/internal/app"
	"github.com/JakeFAU/cagewatch/internal/checker"
	"github.com/JakeFAU/cagewatch/internal/id/uuid"
	"github.com/JakeFAU/cagewatch/internal/logging"
)

var cfgFile string

// Replaceable in tests.
var (
	clientFactory app.ClientFactory   = app.DefaultClientFactory{}
	idGenerator   checker.IDGenerator = uuid.New()
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cagewatch",
		Short: "Watch a schedule page for newly listed days and times.",
		Long: `cagewatch loads a schedule page in headless Chrome, looks for a fixed set of
day and time keywords in the rendered text and reports the ones that were not
present on the previous run. It is meant to be run from a scheduler; the
notify/message outputs are appended to $GITHUB_OUTPUT.

Running cagewatch without a subcommand performs a check.`,
		SilenceUsage: true,
		RunE:         runCheck,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "optional config file (yaml, toml or json)")

	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newMatchCmd())
	cmd.AddCommand(newKeywordsCmd())
	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		logger, logErr := logging.New(true)
		if logErr != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		logger.Fatal("command execution failed", zap.Error(err))
	}
}
