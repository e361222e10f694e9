package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/modi-labs/modi/internal/installer"
	"github.com/modi-labs/modi/internal/project"
	"github.com/modi-labs/modi/internal/workspace"
)

var (
	projectDir         string
	projectDescription string
	projectType        string
	projectAddInstall  bool
	projectRmPurge     bool
)

func init() {
	projectCreateCmd.Flags().StringVarP(&projectDir, "dir", "d", "", "Project directory (default ./<name>)")
	projectCreateCmd.Flags().StringVar(&projectDescription, "description", "", "Project description")
	projectCreateCmd.Flags().StringVar(&projectType, "type", "", "Package type recorded in the metadata file")
	projectAddCmd.Flags().BoolVar(&projectAddInstall, "install", false, "Also install the packages into the project directory")
	projectRmCmd.Flags().BoolVar(&projectRmPurge, "purge", false, "Also delete the packages from the project directory")

	projectCmd.AddCommand(projectCreateCmd, projectDeleteCmd, projectUnlistCmd,
		projectListCmd, projectShowCmd, projectAddCmd, projectRmCmd)
	rootCmd.AddCommand(projectCmd)
}

var projectCmd = &cobra.Command{
	Use:     "project",
	Aliases: []string{"p"},
	Short:   "Manage registered projects",
	Long:    `Create, inspect and remove the projects recorded in the config file.`,
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create and register a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, sess, err := loadSession(cmd)
		if err != nil {
			return err
		}

		dir := projectDir
		if dir == "" {
			dir = args[0]
		}

		reg := project.NewRegistry(sess.Config, sess.Confirm)
		p, err := reg.Create(ctx, args[0], dir, project.CreateOptions{
			Description: projectDescription,
			Type:        projectType,
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created project %s in %s\n", p.ID, p.Directory)
		return nil
	},
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a project's directory and unregister it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, sess, err := loadSession(cmd)
		if err != nil {
			return err
		}
		if err := project.NewRegistry(sess.Config, sess.Confirm).Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted project %s\n", args[0])
		return nil
	},
}

var projectUnlistCmd = &cobra.Command{
	Use:   "unlist <id>",
	Short: "Unregister a project, keeping its directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, sess, err := loadSession(cmd)
		if err != nil {
			return err
		}
		if err := project.NewRegistry(sess.Config, sess.Confirm).Unlist(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Unlisted project %s\n", args[0])
		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List registered projects",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, sess, err := loadSession(cmd)
		if err != nil {
			return err
		}

		projects := project.NewRegistry(sess.Config, sess.Confirm).List()
		if len(projects) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No projects registered.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tDEPS\tDIRECTORY")
		for _, p := range projects {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", p.ID, p.Name, len(p.Dependencies), p.Directory)
		}
		return w.Flush()
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, sess, err := loadSession(cmd)
		if err != nil {
			return err
		}

		p, err := project.NewRegistry(sess.Config, sess.Confirm).Show(args[0])
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintf(w, "ID:\t%s\n", p.ID)
		fmt.Fprintf(w, "Name:\t%s\n", p.Name)
		fmt.Fprintf(w, "Directory:\t%s\n", p.Directory)
		fmt.Fprintf(w, "Type:\t%s\n", p.Type)
		if p.Description != "" {
			fmt.Fprintf(w, "Description:\t%s\n", p.Description)
		}
		fmt.Fprintf(w, "Dependencies:\t%s\n", strings.Join(p.Dependencies, ", "))
		return w.Flush()
	},
}

var projectAddCmd = &cobra.Command{
	Use:   "add <id> <package>...",
	Short: "Add dependencies to a project",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, sess, err := loadSession(cmd)
		if err != nil {
			return err
		}

		p, err := project.NewRegistry(sess.Config, sess.Confirm).AddDependencies(ctx, args[0], args[1:])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s dependencies: %s\n", p.ID, strings.Join(p.Dependencies, ", "))

		if !projectAddInstall {
			return nil
		}

		res, err := installer.NewPipeline(sess).InstallInto(ctx, p.Directory, args[1:])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Merged %d entr%s into %s\n", len(res.Copied()), plural(len(res.Copied()), "y", "ies"), p.Directory)
		return nil
	},
}

var projectRmCmd = &cobra.Command{
	Use:   "rm <id> <package>...",
	Short: "Remove dependencies from a project",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, sess, err := loadSession(cmd)
		if err != nil {
			return err
		}

		p, err := project.NewRegistry(sess.Config, sess.Confirm).RemoveDependencies(ctx, args[0], args[1:])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s dependencies: %s\n", p.ID, strings.Join(p.Dependencies, ", "))

		if !projectRmPurge {
			return nil
		}

		removed, err := workspace.Remove(ctx, p.Directory, args[1:])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s\n", strings.Join(removed, ", "), p.Directory)
		return nil
	},
}
