package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/modi-labs/modi/internal/branding"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string
)

var (
	flagConfig   string
	flagLogLevel string
	flagYes      bool
)

var rootCmd = &cobra.Command{
	Use:   branding.CLIName(),
	Short: branding.Description(),
	Long: branding.DisplayName() + ` installs Python packages into a global cache or straight into a project
directory, keeps track of which packages were asked for, and packs a project
directory into a portable archive that can be restored elsewhere.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default $"+branding.EnvVar("CONFIG")+" or ~/"+branding.ConfigFile()+")")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVarP(&flagYes, "yes", "y", false, "Answer yes to every confirmation")
}

// Execute runs the root command with build info injected via ldflags.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
	}
	return err
}
