package main

import (
	"fmt"

	"novel-runtime/internal/plan"
	"novel-runtime/internal/warmup"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSeedsCmd() *cobra.Command {
	var gamesDirs []string
	cmd := &cobra.Command{
		Use:   "seeds <story>",
		Short: "List the slices a story bootstrap would warm",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := plan.NewStore(plan.NewFileSource(gamesDirs, zap.NewNop()), zap.NewNop())
			p, err := store.GetPlan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "depth: %d\n", p.WarmupDepth())
			for _, seed := range warmup.CollectSeeds(p) {
				fmt.Fprintln(cmd.OutOrStdout(), seed.Path())
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&gamesDirs, "games-dir", []string{"games"}, "Games directories, searched in order")
	return cmd
}
