// cmd/estimator/cmd_calibrate.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"offer-estimation/internal/models"
)

var recordFlags struct {
	adjType    string
	target     string
	oldValue   float64
	newValue   float64
	reason     string
	confidence float64
	appliedBy  string
}

func newCalibrateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Compare estimates with completed projects and tune the coefficients",
	}
	cmd.AddCommand(
		newCollectCmd(opts),
		newMetricsCmd(opts),
		newComponentsCmd(opts),
		newProposeCmd(opts),
		newRecordCmd(opts),
		newRiskBufferCmd(opts),
		newHistoryCmd(opts),
		newCoefficientsCmd(opts),
	)
	return cmd
}

func newCollectCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "collect",
		Short: "Create feedback rows for completed projects",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			engine, err := s.learner(cmd.Context())
			if err != nil {
				return err
			}
			result, err := engine.CollectFeedbackFromProjects(cmd.Context())
			if perr := printJSON(cmd.OutOrStdout(), result); perr != nil {
				return perr
			}
			return err
		},
	}
}

func newMetricsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Summarize estimate accuracy over the collected feedback",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			engine, err := s.learner(cmd.Context())
			if err != nil {
				return err
			}
			m, err := engine.AnalyzeLearningMetrics(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), m)
		},
	}
}

func newComponentsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "components",
		Short: "List components whose time factor should change",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			engine, err := s.learner(cmd.Context())
			if err != nil {
				return err
			}
			calibrations, err := engine.AnalyzeComponentCalibration(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), calibrations)
		},
	}
}

func newProposeCmd(opts *rootOptions) *cobra.Command {
	var (
		apply     bool
		appliedBy string
	)
	cmd := &cobra.Command{
		Use:   "propose",
		Short: "Propose coefficient adjustments from the collected feedback",
		Long: "propose prints the adjustments the feedback supports. Nothing is changed\n" +
			"unless --apply is given, which records every proposal in the audit trail.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := opts.newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			engine, err := s.learner(ctx)
			if err != nil {
				return err
			}
			proposals, err := engine.AutoCalibrate(ctx)
			if err != nil {
				return err
			}
			if !apply {
				return printJSON(cmd.OutOrStdout(), proposals)
			}

			recorded := make([]models.Adjustment, 0, len(proposals))
			for _, p := range proposals {
				adj, err := engine.RecordAdjustment(ctx, p, appliedBy)
				if err != nil {
					return fmt.Errorf("record %s %s: %w", p.Type, p.ComponentOrFactor, err)
				}
				recorded = append(recorded, adj)
			}
			return printJSON(cmd.OutOrStdout(), recorded)
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "Record every proposal")
	cmd.Flags().StringVar(&appliedBy, "applied-by", "cli", "Approver stamped on recorded adjustments")
	return cmd
}

func newRecordCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record one coefficient adjustment",
		Long: "record appends an adjustment to the audit trail. Without --old-value the\n" +
			"current calibrated value is used.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := opts.newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			engine, err := s.learner(ctx)
			if err != nil {
				return err
			}

			adj := models.Adjustment{
				Type:              models.AdjustmentType(recordFlags.adjType),
				ComponentOrFactor: recordFlags.target,
				OldValue:          recordFlags.oldValue,
				NewValue:          recordFlags.newValue,
				Reason:            recordFlags.reason,
				Confidence:        recordFlags.confidence,
			}
			if !cmd.Flags().Changed("old-value") {
				current, err := engine.CurrentCoefficients(ctx, s.cfg.Estimation.Coefficients)
				if err != nil {
					return err
				}
				if adj.OldValue, err = current.CurrentValue(adj.Type, adj.ComponentOrFactor); err != nil {
					return err
				}
			}

			recorded, err := engine.RecordAdjustment(ctx, adj, recordFlags.appliedBy)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), recorded)
		},
	}
	f := cmd.Flags()
	f.StringVar(&recordFlags.adjType, "type", "", "Adjustment type (time, material, margin, risk_buffer, complexity)")
	f.StringVar(&recordFlags.target, "target", "", "Component code or factor name")
	f.Float64Var(&recordFlags.oldValue, "old-value", 0, "Value before the adjustment (default: current value)")
	f.Float64Var(&recordFlags.newValue, "new-value", 0, "Value after the adjustment")
	f.StringVar(&recordFlags.reason, "reason", "", "Why the value changes")
	f.Float64Var(&recordFlags.confidence, "confidence", 0, "Confidence between 0 and 1")
	f.StringVar(&recordFlags.appliedBy, "applied-by", "cli", "Approver of the adjustment")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("new-value")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func newRiskBufferCmd(opts *rootOptions) *cobra.Command {
	var score int
	cmd := &cobra.Command{
		Use:   "risk-buffer",
		Short: "Suggest a risk buffer for a complexity score from past overruns",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			engine, err := s.learner(cmd.Context())
			if err != nil {
				return err
			}
			pct, err := engine.GetSuggestedRiskBuffer(cmd.Context(), score)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"complexityScore": score,
				"riskBufferPct":   pct,
			})
		},
	}
	cmd.Flags().IntVar(&score, "score", 3, "Complexity score (1-5)")
	return cmd
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded adjustments in the order they were applied",
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
			trail, err := st.ListAdjustments(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), trail)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of adjustments")
	cmd.Flags().IntVar(&offset, "offset", 0, "Adjustments to skip")
	return cmd
}

func newCoefficientsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "coefficients",
		Short: "Print the configured coefficients with the adjustment trail applied",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			coefficients, err := s.coefficients(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), coefficients)
		},
	}
}
