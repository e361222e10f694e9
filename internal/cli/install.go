package cli

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/modi-labs/modi/internal/installer"
)

var installLocal bool

var installCmd = &cobra.Command{
	Use:   "install <package>...",
	Short: "Install packages into the cache or the current directory",
	Long: `Install one or more packages. Each package is installed into a hidden staging
directory and merged into the global cache (default) or, with --local, into the
current directory. Existing entries are never overwritten.

Prefix a name with @ to skip pip and build it from its source distribution.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInstall,
}

func init() {
	installCmd.Flags().BoolVarP(&installLocal, "local", "l", false, "Install into the current directory instead of the cache")
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	reqs, err := installer.ParseRequests(args)
	if err != nil {
		return err
	}

	ctx, sess, err := loadSession(cmd)
	if err != nil {
		return err
	}

	mode := installer.TargetCache
	if installLocal {
		mode = installer.TargetLocal
	}

	p := installer.NewPipeline(sess)
	p.Orchestrator.Progress = func(done, total int, name string) {
		fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] %s\n", done, total, name)
	}

	res, err := p.Run(ctx, reqs, mode)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Installed %d package(s) into %s (%s)\n", res.Install.Installed, res.Target.Dest, res.Target.Mode)
	if len(res.Merge.Packages) > 0 {
		fmt.Fprintf(out, "  packages:     %s\n", strings.Join(res.Merge.Packages, ", "))
	}
	if len(res.Merge.Dependencies) > 0 {
		fmt.Fprintf(out, "  dependencies: %s\n", strings.Join(res.Merge.Dependencies, ", "))
	}
	for _, name := range slices.Sorted(maps.Keys(res.Install.Sources)) {
		fmt.Fprintf(out, "  from source:  %s (%s)\n", name, res.Install.Sources[name])
	}

	if res.Install.Failed > 0 {
		return fmt.Errorf("%w: %s", installer.ErrInstallFailed, strings.Join(res.Install.FailedNames, ", "))
	}
	return nil
}
