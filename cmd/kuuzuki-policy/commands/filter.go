package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/kuuzuki-ai/kuuzuki/internal/config"
	"github.com/kuuzuki-ai/kuuzuki/internal/toolfilter"
)

var filterCmd = &cobra.Command{
	Use:   "filter <agent> <tool>...",
	Short: "Show which of the given tools an agent may see",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := getWorkDir()
		if err != nil {
			return err
		}

		visible := toolfilter.ForAgent(args[1:], args[0], config.Load(dir))
		if len(visible) == 0 {
			cmd.Println("(none)")
			return nil
		}
		cmd.Println(strings.Join(visible, "\n"))
		return nil
	},
}
