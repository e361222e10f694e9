package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/modi-labs/modi/internal/archive"
	"github.com/modi-labs/modi/internal/installer"
)

var (
	buildMode   string
	buildFormat string
	buildName   string
	buildDir    string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Pack a project directory into an archive",
	Long: `Pack the current (or --dir) directory into an archive with a single root
folder. In freeze mode the directory is archived as it is. In auto mode the
packages listed in requirements.txt are installed first and removed again once
the archive is written.

Formats: tar (.tar.gz), zip (.zip) and pkg (.modi.pkg, a tarball carrying the
project metadata file).`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVarP(&buildMode, "mode", "m", "freeze", "Build mode: freeze or auto")
	buildCmd.Flags().StringVarP(&buildFormat, "format", "f", "tar", "Archive format: tar, zip or pkg")
	buildCmd.Flags().StringVarP(&buildName, "name", "n", "", "Archive name (default project ID or directory name)")
	buildCmd.Flags().StringVarP(&buildDir, "dir", "d", "", "Directory to pack (default current directory)")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	format, err := archive.ParseFormat(buildFormat)
	if err != nil {
		return err
	}

	var mode archive.Mode
	switch strings.ToLower(buildMode) {
	case "freeze":
		mode = archive.Freeze
	case "auto":
		mode = archive.Auto
	default:
		return fmt.Errorf("unknown build mode %q (expected freeze or auto)", buildMode)
	}

	ctx, sess, err := loadSession(cmd)
	if err != nil {
		return err
	}

	dir := buildDir
	if dir == "" {
		dir = sess.WorkDir
	}

	b := &archive.Builder{
		EntryScript: sess.EntryScript,
		Installer:   installer.NewPipeline(sess),
	}
	path, err := b.Build(ctx, archive.BuildOptions{
		Mode:   mode,
		Format: format,
		Name:   buildName,
		Dir:    dir,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
