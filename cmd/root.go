package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/catalog-site/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "catalogsite",
	Short: "Product catalog front end, backend proxy and development backend",
	Long: `catalogsite serves the proxy layer that relays catalog and admin requests
to the backend API, runs a seeded development backend, and offers a
terminal catalog browser driven by the same filter, search and pagination
state the website keeps in its URL and local storage.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
