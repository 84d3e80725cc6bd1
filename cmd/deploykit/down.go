package main

import (
	"github.com/spf13/cobra"
)

var (
	downCompose   bool
	downPortainer bool
	keepImages    bool
	keepFiles     bool
)

var downCmd = &cobra.Command{
	Use:   "down [target]",
	Short: "Remove the deployed project",
	Long: `Remove the project's deployed resources from the selected backend.

TARGET is an SSH destination (user@host) for the compose backend or a
Portainer URL for the portainer backend. It can be omitted when DEPLOY_TARGET
or PORTAINER_URL is set, or when deploykit.toml provides it.`,
	Example: `  deploykit down --compose user@host.example.com
  deploykit down --portainer https://portainer.example.com
  deploykit down -c user@host --keep-images
  deploykit down -c user@host --keep-files`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := ""
		if len(args) > 0 {
			target = args[0]
		}

		selector, err := newSelector(downCompose, downPortainer, target)
		if err != nil {
			return err
		}

		logger := setupLogger()
		driver, executor := newDriver(logger)
		defer executor.Close()

		if err := driver.Down(cmd.Context(), selector, keepImages, keepFiles); err != nil {
			logger.Error("teardown failed", "error", err)
			return err
		}
		return nil
	},
}

func init() {
	downCmd.Flags().BoolVarP(&downCompose, "compose", "c", false, "teardown via docker compose over SSH")
	downCmd.Flags().BoolVarP(&downPortainer, "portainer", "p", false, "teardown via the Portainer API")
	downCmd.Flags().BoolVar(&keepImages, "keep-images", false, "keep Docker images on the target")
	downCmd.Flags().BoolVar(&keepFiles, "keep-files", false, "keep transferred files on the target")
	downCmd.MarkFlagsMutuallyExclusive("compose", "portainer")
}
