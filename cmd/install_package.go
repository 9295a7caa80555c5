package cmd

import (
	"github.com/spf13/cobra"

	"noderig/internal/message"
	"noderig/internal/packages"
)

func newInstallPackageCmd() *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "install-package [DIR]",
		Short: "Install a built package on a running node",
		Long: `Zip the pkg/ directory of a built package (default: the current
directory), upload it to the node's app store and install it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			pub := &packages.AppStorePublisher{Client: message.NewClient()}
			return pub.PublishAndInstall(cmd.Context(), dir, url)
		},
	}

	cmd.Flags().StringVarP(&url, "url", "u", message.NodeURL(8080), "Base URL of the node")
	return cmd
}
