package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"parley/langdetect"
)

func newLanguagesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List supported language codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := make([][]string, 0)
			for _, code := range langdetect.Supported() {
				rows = append(rows, []string{code, langdetect.DisplayName(code)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderRows([]string{"Code", "Language"}, rows))
			return nil
		},
	}
}
