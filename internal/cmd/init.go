package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"browsernerd-agent/internal/config"

	"github.com/spf13/cobra"
)

// NewInitCommand scaffolds a .browsernerd workspace.
func NewInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a .browsernerd workspace with a config template",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			abs, err := filepath.Abs(root)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(abs, 0o755); err != nil {
				return err
			}
			if err := config.InitWorkspace(abs); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n",
				okColor.Sprint("initialized"), filepath.Join(abs, config.WorkspaceDirName))
			return nil
		},
	}
}
