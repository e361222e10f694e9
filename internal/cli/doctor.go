package cli

import (
	"github.com/spf13/cobra"

	"github.com/modi-labs/modi/internal/doctor"
)

var doctorFix bool

func init() {
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "Repair what can be repaired")
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Health check for the modi installation",
	Long: `Check the config file, the global cache, the runtime shim, the Python
interpreter, leftover staging directories and the registered projects.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, sess, err := loadSession(cmd)
		if err != nil {
			return err
		}
		_, err = doctor.Run(ctx, sess, cmd.OutOrStdout(), doctorFix)
		return err
	},
}
