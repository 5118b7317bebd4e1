package main

import (
	"fmt"

	"novel-runtime/internal/script"

	"github.com/spf13/cobra"
)

func newNormalizeCmd() *cobra.Command {
	var asPath bool
	cmd := &cobra.Command{
		Use:   "normalize <id>...",
		Short: "Print canonical slice ids",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, raw := range args {
				id, err := script.NormalizeSliceID(raw)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", raw, err)
					failed++
					continue
				}
				if asPath {
					fmt.Fprintln(cmd.OutOrStdout(), id.Path())
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d invalid id(s)", failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asPath, "path", false, "Print runtime/<arc>/<node>.txt form")
	return cmd
}
