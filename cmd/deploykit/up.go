package main

import (
	"github.com/spf13/cobra"
)

var (
	upCompose   bool
	upPortainer bool
)

var upCmd = &cobra.Command{
	Use:   "up [target]",
	Short: "Build and deploy the project",
	Long: `Build the project image and deploy it to the selected backend.

TARGET is an SSH destination (user@host) for the compose backend or a
Portainer URL for the portainer backend. It can be omitted when DEPLOY_TARGET
or PORTAINER_URL is set, or when deploykit.toml provides it.`,
	Example: `  deploykit up --compose user@host.example.com
  deploykit up --portainer https://portainer.example.com
  deploykit up -c user@host
  deploykit up -p`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := ""
		if len(args) > 0 {
			target = args[0]
		}

		selector, err := newSelector(upCompose, upPortainer, target)
		if err != nil {
			return err
		}

		logger := setupLogger()
		driver, executor := newDriver(logger)
		defer executor.Close()

		if err := driver.Up(cmd.Context(), selector); err != nil {
			logger.Error("deployment failed", "error", err)
			return err
		}
		return nil
	},
}

func init() {
	upCmd.Flags().BoolVarP(&upCompose, "compose", "c", false, "deploy via docker compose over SSH")
	upCmd.Flags().BoolVarP(&upPortainer, "portainer", "p", false, "deploy via the Portainer API")
	upCmd.MarkFlagsMutuallyExclusive("compose", "portainer")
}
