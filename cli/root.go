package cli

import (
	"github.com/spf13/cobra"
)

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "airtide",
		Short: "Airtide task-instance state service",
	}

	root.AddCommand(
		ServeCmd(),
		MigrateCmd(),
	)

	return root
}
