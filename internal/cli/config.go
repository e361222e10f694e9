package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modi-labs/modi/internal/config"
)

func init() {
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage user settings",
	Long:  `Read and write the settings stored in the config file (~/.modi.json by default).`,
}

var configSetCmd = &cobra.Command{
	Use:       "set <key> <value>",
	Short:     "Set a configuration value",
	Args:      cobra.ExactArgs(2),
	ValidArgs: config.Keys(),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, sess, err := loadSession(cmd)
		if err != nil {
			return err
		}
		key, value := args[0], args[1]
		if err := sess.Config.Set(key, value); err != nil {
			return fmt.Errorf("setting config key %q: %w", key, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:       "get <key>",
	Short:     "Get a configuration value",
	Args:      cobra.ExactArgs(1),
	ValidArgs: config.Keys(),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, sess, err := loadSession(cmd)
		if err != nil {
			return err
		}
		value, err := sess.Config.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), value)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, sess, err := loadSession(cmd)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), sess.Config.Path())
		return nil
	},
}
