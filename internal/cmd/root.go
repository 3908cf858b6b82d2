// Package cmd implements the CLI (Command Line Interface) of the application.
//
// migrate - Initiate a database migration manually
// serve - The main application service entry point
// token create - Create a new admin api token
// token delete - Revoke an admin api token
// token list - List issued admin api tokens
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string //nolint:gochecknoglobals

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{ //nolint:gochecknoglobals
	Use:   "central",
	Short: "FurFur central player identity and moderation api",
	Long:  ``,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	setupCLI()
	if errExecute := rootCmd.Execute(); errExecute != nil {
		os.Exit(1)
	}
}

func setupCLI() {
	if BuildVersion == "" {
		BuildVersion = "master"
	}

	rootCmd.Version = BuildVersion

	tc := tokenCmd()
	tc.AddCommand(tokenCreateCmd())
	tc.AddCommand(tokenListCmd())
	tc.AddCommand(tokenDeleteCmd())

	rootCmd.AddCommand(tc)
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/central.yml or ./central.yml)")
}
