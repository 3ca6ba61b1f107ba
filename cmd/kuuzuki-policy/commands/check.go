package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kuuzuki-ai/kuuzuki/internal/config"
	"github.com/kuuzuki-ai/kuuzuki/internal/permission"
	"github.com/kuuzuki-ai/kuuzuki/internal/shellcmd"
	"github.com/kuuzuki-ai/kuuzuki/pkg/types"
)

var checkAgent string

var checkCmd = &cobra.Command{
	Use:   "check <action> [argument]",
	Short: "Resolve a permission request and print the decision",
	Long: `check resolves a permission request against the loaded configuration.

The action is one of the known action types (bash, edit, write, read,
webfetch, external_directory, doom_loop) or a tool name matched against the
configured tool patterns. For bash, the argument is the command line; it is
parsed so every command in a pipeline or chain is decided individually.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := getWorkDir()
		if err != nil {
			return err
		}

		resolver := permission.NewResolver(config.Load(dir), config.EnvOverride())

		action := types.ActionType(args[0])
		argument := ""
		if len(args) > 1 {
			argument = args[1]
		}

		if action == types.ActionTypeBash && argument != "" {
			return checkBash(cmd, resolver, argument)
		}

		d := resolver.Resolve(permission.Request{
			Action:   action,
			Argument: argument,
			Agent:    checkAgent,
		})
		printDecision(cmd, argument, d)
		return nil
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkAgent, "agent", "", "Resolve as this agent")
}

// checkBash resolves each command in the line separately; the shown verdict
// for the line is the strictest of them.
func checkBash(cmd *cobra.Command, resolver *permission.Resolver, line string) error {
	commands, err := shellcmd.Parse(line)
	if err != nil {
		return fmt.Errorf("cannot parse command: %w", err)
	}

	for _, c := range commands {
		d := resolver.Resolve(permission.Request{
			Action:   types.ActionTypeBash,
			Argument: c.String(),
			Agent:    checkAgent,
		})
		printDecision(cmd, c.String(), d)
	}
	return nil
}

func printDecision(cmd *cobra.Command, argument string, d permission.Decision) {
	var detail []string
	if d.MatchedPattern != "" {
		detail = append(detail, fmt.Sprintf("pattern %q", d.MatchedPattern))
	}
	detail = append(detail, fmt.Sprintf("scope %s", d.Scope))

	if argument != "" {
		cmd.Printf("%-5s  %s  (%s)\n", d.Value, argument, strings.Join(detail, ", "))
		return
	}
	cmd.Printf("%-5s  (%s)\n", d.Value, strings.Join(detail, ", "))
}
