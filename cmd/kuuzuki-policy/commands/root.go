// Package commands provides the CLI commands for the kuuzuki policy engine.
// The CLI is an operator debugging surface: it loads the same configuration
// the agent would and prints the decision the engine would make.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kuuzuki-ai/kuuzuki/internal/logging"
)

// Version information set at build time
var (
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	workDir  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "kuuzuki-policy",
	Short: "Inspect kuuzuki permission decisions",
	Long: `kuuzuki-policy evaluates the permission configuration the kuuzuki agent
would use and prints the resulting decision, without executing anything.

Run 'kuuzuki-policy check bash "git push origin main"' to see how a shell
command would be decided, 'kuuzuki-policy git-check commit' for git grant
checks, or 'kuuzuki-policy filter <agent> <tool>...' for tool visibility.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logging.Config{
			Level:  logging.ParseLevel(logLevel),
			Output: os.Stderr,
			Pretty: true,
		})
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workDir, "directory", "C", "", "Project directory (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "WARN", "Log level (DEBUG|INFO|WARN|ERROR)")

	rootCmd.SetVersionTemplate(fmt.Sprintf("kuuzuki-policy %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(gitCheckCmd)
	rootCmd.AddCommand(filterCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func getWorkDir() (string, error) {
	if workDir != "" {
		return workDir, nil
	}
	return os.Getwd()
}
