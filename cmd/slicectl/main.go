// Command slicectl - утилита оператора: проверка и нормализация слайсов,
// просмотр сидов истории, рендеринг событий в текст сцены.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "slicectl",
		Short:         "Inspect and validate WebGAL runtime slices",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newValidateCmd(),
		newNormalizeCmd(),
		newSeedsCmd(),
		newRenderCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
