package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/catalog-site/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize catalogsite configuration with an interactive wizard",
	Long:  `Runs an interactive wizard that asks for the backend origin, port and auth forwarding and writes a .catalogsite.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
