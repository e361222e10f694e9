package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modi-labs/modi/internal/installer"
	"github.com/modi-labs/modi/internal/workspace"
)

var removeLocal bool

var removeCmd = &cobra.Command{
	Use:     "remove <package>... | all",
	Aliases: []string{"uninstall", "rm"},
	Short:   "Remove installed packages",
	Long: `Remove packages from the cache, or with --local from the current directory.
"all" removes every installed entry after confirmation; Python sources and the
runtime shim in the directory are kept.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemove,
}

func init() {
	removeCmd.Flags().BoolVarP(&removeLocal, "local", "l", false, "Remove from the current directory instead of the cache")
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	ctx, sess, err := loadSession(cmd)
	if err != nil {
		return err
	}

	mode := installer.TargetCache
	if removeLocal {
		mode = installer.TargetLocal
	}
	dir := installer.DestFor(sess, mode)

	var removed []string
	if len(args) == 1 && args[0] == "all" {
		removed, err = workspace.RemoveAll(ctx, dir, sess.EntryScript, sess.Confirm)
	} else {
		removed, err = workspace.Remove(ctx, dir, args)
	}
	if err != nil {
		return err
	}

	if len(removed) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to remove.")
		return nil
	}
	for _, name := range removed {
		fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", name)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entr%s from %s\n", len(removed), plural(len(removed), "y", "ies"), dir)
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
