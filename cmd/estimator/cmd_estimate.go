// cmd/estimator/cmd_estimate.go
package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"offer-estimation/internal/catalog"
	"offer-estimation/internal/estimation/pipeline"
)

var estimateFlags struct {
	file        string
	offerID     string
	catalogPath string
	riskBuffer  float64
	margin      float64
	save        bool
	textOnly    bool
}

func newEstimateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "estimate [description...]",
		Short: "Interpret, price and risk-assess a description and assemble the offer text",
		Long: "estimate runs the whole chain with the calibrated coefficients and prints the\n" +
			"estimate as JSON. Catalog misses are reported in the notes; the estimate is\n" +
			"still printed when single catalog lookups fail.",
		RunE: runEstimate(opts),
	}
	f := cmd.Flags()
	f.StringVarP(&estimateFlags.file, "file", "f", "", "Read the description from a file")
	f.StringVar(&estimateFlags.offerID, "offer-id", "", "Offer the calculation belongs to")
	f.StringVar(&estimateFlags.catalogPath, "catalog", "", "Static catalog YAML (overrides estimation.catalog)")
	f.Float64Var(&estimateFlags.riskBuffer, "risk-buffer", 0, "Risk buffer percentage (default: table entry for the complexity score)")
	f.Float64Var(&estimateFlags.margin, "margin", 0, "Margin percentage (default: estimation.coefficients.default_margin_pct)")
	f.BoolVar(&estimateFlags.save, "save", false, "Store the calculation so project feedback can be collected for it")
	f.BoolVar(&estimateFlags.textOnly, "text", false, "Print only the assembled offer text")
	return cmd
}

func runEstimate(opts *rootOptions) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := opts.newSession()
		if err != nil {
			return err
		}
		defer s.Close()

		description, err := readDescription(cmd, args, estimateFlags.file)
		if err != nil {
			return err
		}
		p, err := s.pipeline(ctx, estimateFlags.catalogPath)
		if err != nil {
			return err
		}
		st, err := s.openStore(ctx)
		if err != nil {
			return err
		}
		templates, err := st.ListActiveTemplates(ctx)
		if err != nil {
			s.log.Warn("stored templates unavailable, using built-in templates", map[string]interface{}{"error": err})
			templates = nil
		}

		popts := pipeline.Options{OfferID: estimateFlags.offerID, Templates: templates}
		if cmd.Flags().Changed("risk-buffer") {
			v := estimateFlags.riskBuffer
			popts.RiskBufferPct = &v
		}
		if cmd.Flags().Changed("margin") {
			v := estimateFlags.margin
			popts.MarginPct = &v
		}

		est, err := p.Estimate(ctx, description, popts)
		switch {
		case err == nil:
		case errors.Is(err, catalog.ErrLookupFailed):
			s.log.Warn("catalog lookups failed, estimate is partial", map[string]interface{}{"error": err})
		default:
			return err
		}

		if estimateFlags.save {
			calc := est.Calculation
			calc.ID = uuid.NewString()
			calc.CreatedAt = time.Now().UTC()
			if err := st.SaveCalculation(ctx, calc); err != nil {
				return err
			}
			est.Calculation = calc
			fmt.Fprintf(cmd.ErrOrStderr(), "saved calculation %s\n", calc.ID)
		}

		if estimateFlags.textOnly {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), est.Texts.Render())
			return err
		}
		return printJSON(cmd.OutOrStdout(), est)
	}
}
