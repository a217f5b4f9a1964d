// Package cli defines the tganalytics command tree: the HTTP gateway
// (serve) and operator helpers for on-disk session blobs (sessions).
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is reported by the tracer resource and `tganalytics --version`.
var Version = "dev"

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tganalytics",
		Short:         "Multi-tenant Telegram analytics gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSessionsCmd())
	return cmd
}

// Init records the build version. Call it before Execute.
func Init(version string) {
	if version != "" {
		Version = version
	}
	rootCmd.Version = Version
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
