package main

import (
	"encoding/json"
	"fmt"

	"novel-runtime/internal/script"
	"novel-runtime/shared/utils"

	"github.com/spf13/cobra"
)

func newRenderCmd() *cobra.Command {
	limits := script.DefaultLimits()
	cmd := &cobra.Command{
		Use:   "render <events.json|->",
		Short: "Render a structured event document into scene text",
		Long: `Render a {"events":[...]} document (the structured model output) into
scene text and validate the result.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			payload := utils.ExtractJsonObject(raw)
			if payload == "" {
				return fmt.Errorf("no JSON object found in %s", args[0])
			}
			var doc script.Document
			if err := json.Unmarshal([]byte(payload), &doc); err != nil {
				return fmt.Errorf("decode events: %w", err)
			}
			events, problems := doc.Decode()
			text, renderProblems := script.Render(events)
			problems = append(problems, renderProblems...)
			for _, p := range problems {
				fmt.Fprintln(cmd.ErrOrStderr(), p)
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return printValidation(cmd.ErrOrStderr(), script.Validate(text, limits))
		},
	}
	cmd.Flags().IntVar(&limits.MinLines, "min", limits.MinLines, "Minimum number of lines")
	cmd.Flags().IntVar(&limits.MaxLines, "max", limits.MaxLines, "Maximum number of lines")
	return cmd
}
