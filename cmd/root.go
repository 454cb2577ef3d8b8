package cmd

import (
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X github.com/webmip/postbank/cmd.version=..."
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "postbank",
	Short: "A local API testing client",
	Long: `postbank is a local API testing client.

Compose and send HTTP requests, keep a history of every exchange, organize
requests into collections, and substitute {{variables}} from environments.

Examples:
  postbank get https://api.example.com/users
  postbank post '{{base}}/users' -d '{"name": "Ada"}' --bearer '{{token}}'
  postbank env create dev base=https://api.example.com
  postbank history
  postbank collection import users.postman.json`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Show response headers")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.postbank/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("transport", "", "Transport mode: auto, local, proxy")
	rootCmd.PersistentFlags().String("proxy-url", "", "Base URL of a running postbank proxy")
}
