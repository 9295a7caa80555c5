package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"noderig/pkg/logging"
)

var (
	logLevel  string
	logFormat string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "noderig",
	Short: "Run distributed integration tests against local nodes",
	Long: `noderig boots a set of local nodes, installs setup and test packages
into them, runs the tests across all nodes and tears everything down again.

It also exposes the message injection and package installation steps it uses
as standalone commands, for poking at a running node by hand.`,
	// SilenceUsage is set to true to prevent printing usage message on errors
	// handled by us (e.g. failed scenarios, unreachable nodes)
	SilenceUsage:      true,
	PersistentPreRunE: initLogging,
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "noderig version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}

func initLogging(cmd *cobra.Command, args []string) error {
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		level = logging.LevelDebug
	}

	format := logging.Format(logFormat)
	if format != logging.FormatText && format != logging.FormatJSON {
		return fmt.Errorf("unknown log format %q (want text or json)", logFormat)
	}

	logging.InitWithFormat(level, format, os.Stderr)
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newRunTestsCmd())
	rootCmd.AddCommand(newInjectMessageCmd())
	rootCmd.AddCommand(newInstallPackageCmd())
}
