package commands

import (
	"github.com/spf13/cobra"

	"github.com/kuuzuki-ai/kuuzuki/internal/config"
	"github.com/kuuzuki-ai/kuuzuki/internal/gitperm"
	"github.com/kuuzuki-ai/kuuzuki/internal/vcs"
)

var (
	gitCheckFiles  int
	gitCheckBranch string
)

var gitCheckCmd = &cobra.Command{
	Use:   "git-check <operation>",
	Short: "Check a git operation against the configured grant modes",
	Long: `git-check runs the grant check for a git operation class such as
"commit" or "push", including the commit size and branch constraints. The
active branch is detected from the project directory unless --branch is
given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := getWorkDir()
		if err != nil {
			return err
		}

		cfg := config.Load(dir)
		manager := gitperm.NewManager(config.ProjectFile(dir), cfg.Git)

		branch := gitCheckBranch
		if branch == "" {
			branch = vcs.CurrentBranch(dir)
		}

		res := manager.CheckPermission(args[0], gitperm.Context{
			FileCount: gitCheckFiles,
			Branch:    branch,
		})

		switch {
		case res.Allowed:
			cmd.Printf("allowed  (scope %s)\n", res.Scope)
		case res.NeedsConfirmation:
			cmd.Printf("ask      (%s)\n", res.Reason)
		default:
			cmd.Printf("denied   (%s)\n", res.Reason)
		}
		return nil
	},
}

func init() {
	gitCheckCmd.Flags().IntVar(&gitCheckFiles, "files", 0, "Number of files the operation touches")
	gitCheckCmd.Flags().StringVar(&gitCheckBranch, "branch", "", "Branch to check against (default: detected)")
}
