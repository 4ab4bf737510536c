// cmd/estimator/cmd_interpret.go
package main

import (
	"strings"

	"github.com/spf13/cobra"

	"offer-estimation/internal/estimation/interpreter"
)

func newInterpretCmd(opts *rootOptions) *cobra.Command {
	var (
		file  string
		lines bool
	)
	cmd := &cobra.Command{
		Use:   "interpret [description...]",
		Short: "Extract building facts, rooms, points and risks from a description",
		Long: "interpret prints the structured interpretation of a description as JSON.\n" +
			"With --lines every non-empty input line is interpreted on its own.",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			text, err := readDescription(cmd, args, file)
			if err != nil {
				return err
			}
			in, err := s.interpreter()
			if err != nil {
				return err
			}

			if !lines {
				interp, confidence, warnings := in.Interpret(text)
				return printJSON(cmd.OutOrStdout(), interpreter.Result{
					Interpretation: interp,
					Confidence:     confidence,
					Warnings:       nonNil(warnings),
				})
			}

			var descriptions []string
			for _, line := range strings.Split(text, "\n") {
				if strings.TrimSpace(line) != "" {
					descriptions = append(descriptions, line)
				}
			}
			results, err := in.InterpretBatch(cmd.Context(), descriptions)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), results)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the description from a file")
	cmd.Flags().BoolVar(&lines, "lines", false, "Interpret every input line as a separate description")
	return cmd
}
