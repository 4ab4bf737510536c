// internal/estimation/pipeline/pipeline.go
package pipeline

import (
	"context"
	"fmt"

	"offer-estimation/internal/catalog"
	"offer-estimation/internal/common/logger"
	"offer-estimation/internal/estimation/calculation"
	"offer-estimation/internal/estimation/interpreter"
	"offer-estimation/internal/estimation/matcher"
	"offer-estimation/internal/estimation/offertext"
	"offer-estimation/internal/estimation/risk"
	"offer-estimation/internal/models"
)

// Options override the defaults of one estimate. Nil percentages fall back
// to the coefficients: the risk buffer to the table entry for the
// interpreted complexity score, the margin to the default margin.
type Options struct {
	OfferID       string
	RiskBufferPct *float64
	MarginPct     *float64
	Templates     []models.OfferTextTemplate
}

// Estimate is everything produced for one description.
type Estimate struct {
	Interpretation models.Interpretation    `json:"interpretation"`
	Confidence     float64                  `json:"confidence"`
	Warnings       []string                 `json:"warnings"`
	Notes          []string                 `json:"notes"`
	Match          matcher.MatchResult      `json:"match"`
	Calculation    models.Calculation       `json:"calculation"`
	Risk           risk.Analysis            `json:"risk"`
	Texts          offertext.AssembledTexts `json:"texts"`
}

// Pipeline chains interpreter, matcher, calculation, risk and offer text.
type Pipeline struct {
	interpreter *interpreter.Interpreter
	matcher     *matcher.Matcher
	calculator  *calculation.Engine
	risks       *risk.Engine
	texts       *offertext.Engine
	logger      logger.Logger
}

func New(
	in *interpreter.Interpreter,
	m *matcher.Matcher,
	calc *calculation.Engine,
	r *risk.Engine,
	t *offertext.Engine,
	log logger.Logger,
) *Pipeline {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Pipeline{
		interpreter: in,
		matcher:     m,
		calculator:  calc,
		risks:       r,
		texts:       t,
		logger:      log.WithFields(map[string]interface{}{"component": "pipeline"}),
	}
}

// NewDefault wires the embedded rules and templates over a catalog lookup.
func NewDefault(lookup catalog.Lookup, coefficients calculation.Coefficients, log logger.Logger) (*Pipeline, error) {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	in, err := interpreter.NewDefault(interpreter.WithLogger(log))
	if err != nil {
		return nil, err
	}
	return New(
		in,
		matcher.New(lookup, coefficients, log),
		calculation.NewEngine(coefficients, log),
		risk.NewDefaultEngine(log),
		offertext.NewDefaultEngine(log),
		log,
	), nil
}

// Estimate runs the whole chain. A catalog failure does not stop it: the
// partial estimate is returned together with the lookup error. Only invalid
// calculation input and context cancellation abort.
func (p *Pipeline) Estimate(ctx context.Context, description string, opts Options) (Estimate, error) {
	if err := ctx.Err(); err != nil {
		return Estimate{}, err
	}

	interp, confidence, warnings := p.interpreter.Interpret(description)
	est := Estimate{
		Interpretation: interp,
		Confidence:     confidence,
		Warnings:       nonNil(warnings),
	}

	match, matchErr := p.matcher.Match(ctx, interp)
	if matchErr != nil {
		if err := ctx.Err(); err != nil {
			return Estimate{}, err
		}
		p.logger.Warn("catalog lookup incomplete", map[string]interface{}{
			"error": matchErr,
		})
	}
	est.Match = match
	est.Notes = nonNil(match.Notes)

	coefficients := p.calculator.Coefficients()
	riskBuffer := coefficients.RiskBuffer(interp.ComplexityScore)
	if opts.RiskBufferPct != nil {
		riskBuffer = *opts.RiskBufferPct
	}
	margin := coefficients.DefaultMarginPct
	if opts.MarginPct != nil {
		margin = *opts.MarginPct
	}

	calc, err := p.calculator.Calculate(match.Components, match.Materials, riskBuffer, margin)
	if err != nil {
		return est, fmt.Errorf("calculate: %w", err)
	}
	calc.OfferID = opts.OfferID
	calc.ComplexityScore = interp.ComplexityScore
	est.Calculation = calc

	est.Risk = p.risks.Analyze(risk.NewContext(interp, &calc))
	est.Texts = p.texts.Assemble(opts.Templates, offertext.NewContext(interp, &calc, &est.Risk))

	p.logger.Info("estimate completed", map[string]interface{}{
		"offerId":          opts.OfferID,
		"components":       len(calc.Components),
		"totalHours":       calc.Time.TotalHours,
		"totalPrice":       calc.Price.TotalPrice,
		"overallRiskLevel": est.Risk.OverallRiskLevel,
		"sections":         len(est.Texts.Sections),
	})
	return est, matchErr
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
