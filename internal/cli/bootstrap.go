package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modi-labs/modi/internal/bootstrap"
	"github.com/modi-labs/modi/internal/merge"
)

var (
	bootstrapDir     string
	bootstrapProject string
	bootstrapKeep    bool
	syncDir          string
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap <name>",
	Short: "Restore a project from an archive",
	Long: `Find the archive whose name starts with <name> in the current (or --dir)
directory, empty the directory after confirmation and restore the archive into
it. The runtime shim already in the directory is kept. Archives carrying a
metadata file also get their requirements.txt regenerated.

Use --keep (or the sync command) to merge the archive on top of the existing
files instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRestore(cmd, args[0], bootstrapDir, !bootstrapKeep)
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync <name>",
	Short: "Merge an archive on top of the current directory",
	Long: `Like bootstrap --keep: restore the matching archive into the directory
without deleting anything first. Existing files are never overwritten.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRestore(cmd, args[0], syncDir, false)
	},
}

func init() {
	bootstrapCmd.Flags().StringVarP(&bootstrapDir, "dir", "d", "", "Directory holding the archive (default current directory)")
	bootstrapCmd.Flags().StringVarP(&bootstrapProject, "project", "p", "", "Rename the restored project")
	bootstrapCmd.Flags().BoolVar(&bootstrapKeep, "keep", false, "Keep existing files and merge on top")
	syncCmd.Flags().StringVarP(&syncDir, "dir", "d", "", "Directory holding the archive (default current directory)")
	rootCmd.AddCommand(bootstrapCmd, syncCmd)
}

func runRestore(cmd *cobra.Command, stem, dir string, cleanup bool) error {
	ctx, sess, err := loadSession(cmd)
	if err != nil {
		return err
	}
	if dir == "" {
		dir = sess.WorkDir
	}

	eng := bootstrap.New(sess.Confirm)
	opts := bootstrap.Options{
		NameStem: stem,
		Dest:     dir,
		Cleanup:  cleanup,
		Select:   selector(sess),
	}
	if cleanup {
		opts.ProjectName = bootstrapProject
	}

	st, err := eng.Bootstrap(ctx, opts)
	if err != nil {
		return err
	}

	restored, skipped := 0, 0
	for _, e := range st.Restored {
		switch e.Outcome {
		case merge.Copied:
			restored++
		case merge.SkippedExisting:
			skipped++
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Restored %s into %s (%d entries", st.Root, dir, restored)
	if skipped > 0 {
		fmt.Fprintf(out, ", %d kept", skipped)
	}
	fmt.Fprintln(out, ")")
	if st.Manifest != nil {
		fmt.Fprintf(out, "Project %s\n", st.Manifest.Name)
	}
	if st.RequirementsWritten {
		fmt.Fprintln(out, "Regenerated requirements.txt")
	}
	return nil
}
