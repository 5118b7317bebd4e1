package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"novel-runtime/internal/script"

	"github.com/spf13/cobra"
)

var errInvalidSlice = errors.New("slice is invalid")

func newValidateCmd() *cobra.Command {
	limits := script.DefaultLimits()
	cmd := &cobra.Command{
		Use:   "validate <file|->",
		Short: "Check a slice against the scene grammar",
		Long: `Validate a slice file against the scene grammar and print every problem.

Examples:
  slicectl validate games/marsh/scene/runtime/act-1/entry.txt
  cat slice.txt | slicectl validate - --min 1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			return printValidation(cmd.OutOrStdout(), script.Validate(text, limits))
		},
	}
	cmd.Flags().IntVar(&limits.MinLines, "min", limits.MinLines, "Minimum number of lines")
	cmd.Flags().IntVar(&limits.MaxLines, "max", limits.MaxLines, "Maximum number of lines")
	return cmd
}

func printValidation(w io.Writer, res script.Result) error {
	if res.OK() {
		fmt.Fprintf(w, "OK (%d lines)\n", len(res.Lines))
		return nil
	}
	for _, msg := range res.Messages() {
		fmt.Fprintln(w, msg)
	}
	return fmt.Errorf("%w: %d problem(s)", errInvalidSlice, len(res.Errors))
}

func readInput(cmd *cobra.Command, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}
