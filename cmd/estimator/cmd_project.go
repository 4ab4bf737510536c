// cmd/estimator/cmd_project.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"offer-estimation/internal/models"
)

func newProjectCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage the projects that estimates are compared against",
	}
	cmd.AddCommand(newProjectCompleteCmd(opts))
	return cmd
}

func newProjectCompleteCmd(opts *rootOptions) *cobra.Command {
	var p models.CompletedProject
	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Mark a project as completed with the hours it actually took",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if p.ActualHours < 0 {
				return fmt.Errorf("--actual-hours must not be negative")
			}
			if p.Name == "" {
				p.Name = p.ID
			}

			s, err := opts.newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			st, err := s.openStore(cmd.Context())
			if err != nil {
				return err
			}
			if err := st.CompleteProject(cmd.Context(), p); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
	f := cmd.Flags()
	f.StringVar(&p.ID, "id", "", "Project ID")
	f.StringVar(&p.Name, "name", "", "Project name (default: the ID)")
	f.StringVar(&p.OfferID, "offer-id", "", "Offer the project was built from")
	f.Float64Var(&p.ActualHours, "actual-hours", 0, "Hours the project actually took")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("offer-id")
	_ = cmd.MarkFlagRequired("actual-hours")
	return cmd
}
