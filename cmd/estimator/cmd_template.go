// cmd/estimator/cmd_template.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"offer-estimation/internal/estimation/offertext"
)

func newTemplateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Manage stored offer text templates",
	}
	cmd.AddCommand(newTemplateImportCmd(opts), newTemplateListCmd(opts))
	return cmd
}

func newTemplateImportCmd(opts *rootOptions) *cobra.Command {
	var inactive bool
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Store the templates of a YAML file, replacing templates with the same id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			templates, err := offertext.LoadTemplates(args[0])
			if err != nil {
				return err
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
			for _, t := range templates {
				if t.ID == "" {
					return fmt.Errorf("template %s/%s has no id", t.ScopeType, t.TemplateKey)
				}
				t.IsActive = !inactive
				if err := st.SaveTemplate(cmd.Context(), t); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d templates\n", len(templates))
			return nil
		},
	}
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Store the templates disabled")
	return cmd
}

func newTemplateListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the active stored templates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			st, err := s.openStore(cmd.Context())
			if err != nil {
				return err
			}
			templates, err := st.ListActiveTemplates(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), templates)
		},
	}
}
