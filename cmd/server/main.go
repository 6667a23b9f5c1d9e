package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "gymmaster",
	Short:         "GymMaster API server",
	SilenceUsage:  true,
	SilenceErrors: true,
	// With no subcommand the binary serves, so container entrypoints stay short.
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml)")
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildTime)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// #nosec G705 -- CLI output only; control characters are stripped.
		fmt.Fprintln(os.Stderr, sanitizeCLIError(err))
		os.Exit(1)
	}
}

func sanitizeCLIError(err error) string {
	if err == nil {
		return ""
	}

	text := strings.ReplaceAll(err.Error(), "\n", " ")
	text = strings.ReplaceAll(text, "\r", " ")
	return strings.TrimSpace(text)
}
