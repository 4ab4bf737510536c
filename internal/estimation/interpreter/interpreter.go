// internal/estimation/interpreter/interpreter.go
package interpreter

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"strings"
	"time"

	"offer-estimation/internal/common/logger"
	"offer-estimation/internal/estimation/rules"
	"offer-estimation/internal/models"

	"golang.org/x/sync/errgroup"
)

const (
	WarnEmptyDescription   = "description is empty"
	WarnBuildingType       = "building type could not be detected"
	WarnBuildingSize       = "building size could not be detected"
	WarnBuildingAge        = "building age could not be detected"
	WarnNoRooms            = "no rooms detected; assuming one generic room"
	WarnDefaultPointsAdded = "few electrical points mentioned; standard points per room were added"
)

// Interpreter turns free-text project descriptions into Interpretations.
// It holds only immutable rule data and can be shared between goroutines.
type Interpreter struct {
	rules      *rules.RuleSet
	extractors []extractor
	now        func() time.Time
	logger     logger.Logger
}

type Option func(*Interpreter)

// WithClock overrides the clock used to turn build years into ages.
func WithClock(now func() time.Time) Option {
	return func(in *Interpreter) {
		in.now = now
	}
}

func WithLogger(log logger.Logger) Option {
	return func(in *Interpreter) {
		in.logger = log
	}
}

func New(rs *rules.RuleSet, opts ...Option) (*Interpreter, error) {
	if rs == nil {
		return nil, fmt.Errorf("%w: nil rule set", rules.ErrInvalidRuleSet)
	}
	maxRooms := rs.MaxRoomsPerType
	if maxRooms <= 0 {
		maxRooms = 20
	}
	extractors, err := buildExtractors(rs, maxRooms)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rules.ErrInvalidRuleSet, err)
	}

	in := &Interpreter{
		rules:      rs,
		extractors: extractors,
		now:        time.Now,
		logger:     logger.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(in)
	}
	in.logger = in.logger.WithFields(map[string]interface{}{"component": "interpreter"})
	return in, nil
}

// NewDefault builds an Interpreter over the embedded rule tables.
func NewDefault(opts ...Option) (*Interpreter, error) {
	rs, err := rules.Default()
	if err != nil {
		return nil, err
	}
	return New(rs, opts...)
}

// Interpret extracts building facts, rooms, points, requirements, complexity
// and risk from a description. It never fails: missing facts become defaults
// plus a warning, and the confidence reflects how much was found.
func (in *Interpreter) Interpret(description string) (models.Interpretation, float64, []string) {
	var warnings []string
	if strings.TrimSpace(description) == "" {
		warnings = append(warnings, WarnEmptyDescription)
	}

	st := newState(description, in.now().Year())
	dispatch(in.extractors, st)

	if st.buildingType == models.BuildingUnknown {
		warnings = append(warnings, WarnBuildingType)
	}
	if st.size == nil {
		warnings = append(warnings, WarnBuildingSize)
	}
	if st.age == nil {
		warnings = append(warnings, WarnBuildingAge)
	}
	if len(st.rooms) == 0 {
		st.rooms = []models.Room{{Name: in.rules.FallbackRoom.Name, Type: in.rules.FallbackRoom.Type}}
		warnings = append(warnings, WarnNoRooms)
	}

	if in.explicitPoints(st) < in.rules.PointFloor {
		in.addRoomDefaults(st)
		warnings = append(warnings, WarnDefaultPointsAdded)
	}

	panel := in.panelRequirements(st)
	in.inferRisks(st, panel, description)

	result := models.Interpretation{
		RawDescription:    description,
		BuildingType:      st.buildingType,
		BuildingSizeM2:    st.size,
		BuildingAgeYears:  st.age,
		Rooms:             st.rooms,
		ElectricalPoints:  st.points,
		CableRequirements: in.cableRequirements(st),
		PanelRequirements: panel,
		ComplexityFactors: st.factors,
		RiskFactors:       st.risks,
	}
	result.ComplexityScore = in.complexityScore(result)
	result.RiskScore = in.riskScore(st.risks)
	result.Confidence = in.confidence(result)

	in.logger.Debug("description interpreted", map[string]interface{}{
		"buildingType":    result.BuildingType,
		"rooms":           len(result.Rooms),
		"points":          result.TotalPoints(),
		"complexityScore": result.ComplexityScore,
		"riskScore":       result.RiskScore,
		"confidence":      result.Confidence,
		"warnings":        len(warnings),
	})

	return result, result.Confidence, warnings
}

// Result is one entry of InterpretBatch.
type Result struct {
	Interpretation models.Interpretation `json:"interpretation"`
	Confidence     float64               `json:"confidence"`
	Warnings       []string              `json:"warnings"`
}

// InterpretBatch interprets descriptions in parallel. Results keep the input
// order. Only context cancellation produces an error.
func (in *Interpreter) InterpretBatch(ctx context.Context, descriptions []string) ([]Result, error) {
	results := make([]Result, len(descriptions))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, d := range descriptions {
		i, d := i, d
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			interp, conf, warnings := in.Interpret(d)
			results[i] = Result{Interpretation: interp, Confidence: conf, Warnings: warnings}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (in *Interpreter) explicitPoints(st *state) int {
	total := 0
	for _, n := range st.points {
		total += n
	}
	return total
}

// addRoomDefaults adds the standard point table of every room on top of the
// explicitly mentioned points. Rooms are walked in detection order.
func (in *Interpreter) addRoomDefaults(st *state) {
	for _, room := range st.rooms {
		for kind, n := range in.rules.RoomDefaultPoints[room.Type] {
			st.points[kind] += n
		}
	}
}

func (in *Interpreter) cableRequirements(st *state) map[string]float64 {
	scale := 1.0
	cs := in.rules.CableScale
	if st.size != nil && cs.ReferenceSizeM2 > 0 {
		scale = *st.size / cs.ReferenceSizeM2
		if cs.Min > 0 && scale < cs.Min {
			scale = cs.Min
		}
		if cs.Max > 0 && scale > cs.Max {
			scale = cs.Max
		}
	}

	meters := make(map[string]float64)
	for _, c := range in.rules.Cables {
		n := st.points[c.PointKind]
		if n == 0 {
			continue
		}
		meters[c.Gauge] += float64(n) * c.MetersPerPoint * scale
	}
	for gauge, m := range meters {
		meters[gauge] = math.Ceil(m)
	}
	return meters
}

func (in *Interpreter) panelRequirements(st *state) models.PanelRequirements {
	p := in.rules.Panel

	groups := ceilDiv(st.points[models.PointOutlet], p.OutletsPerGroup) +
		ceilDiv(st.points[models.PointLight]+st.points[models.PointOutdoorLight], p.LightsPerGroup)
	for _, kind := range p.DedicatedGroupKinds {
		groups += st.points[kind]
	}

	amperage := p.Amperage(groups)
	for _, kind := range p.HighLoadKinds {
		if st.points[kind] > 0 && amperage < p.HighLoadMinAmperage {
			amperage = p.HighLoadMinAmperage
		}
	}

	req := models.PanelRequirements{
		RequiredGroups:   groups,
		RequiredAmperage: amperage,
	}
	req.UpgradeNeeded = groups > p.UpgradeGroupsOver || (st.age != nil && *st.age > p.UpgradeAgeOver)
	req.NewPanelNeeded = groups > p.NewPanelGroupsOver || amperage > p.NewPanelAmperageOver
	if req.NewPanelNeeded {
		req.UpgradeNeeded = true
	}
	return req
}

func (in *Interpreter) inferRisks(st *state, panel models.PanelRequirements, description string) {
	inf := in.rules.Inferred

	if st.age != nil && *st.age > inf.OldWiringAgeOver && !st.hasRisk(inf.OldWiring.Code) {
		st.risks = append(st.risks, riskFactor(inf.OldWiring, fmt.Sprintf("building age %d years", *st.age), true))
	}
	if panel.NewPanelNeeded {
		st.risks = append(st.risks, riskFactor(inf.NewPanel,
			fmt.Sprintf("%d groups at %dA", panel.RequiredGroups, panel.RequiredAmperage), true))
	}
	if words := len(strings.Fields(description)); words < inf.MinimalDescriptionWords {
		st.risks = append(st.risks, riskFactor(inf.MinimalDescription, fmt.Sprintf("%d words", words), true))
	}
}

func (in *Interpreter) complexityScore(interp models.Interpretation) int {
	if len(interp.ComplexityFactors) == 0 {
		return in.rules.NeutralComplexityScore
	}
	return rules.Score(in.rules.ComplexityBands, interp.AverageComplexityMultiplier())
}

// riskScore averages severity weights on a 1..4 scale; info counts as 1.
func (in *Interpreter) riskScore(risks []models.RiskFactor) int {
	if len(risks) == 0 {
		return in.rules.NeutralRiskScore
	}
	sum := 0
	for _, r := range risks {
		w := r.Severity.Weight()
		if w < 1 {
			w = 1
		}
		sum += w
	}
	return rules.Score(in.rules.RiskBands, float64(sum)/float64(len(risks)))
}

func (in *Interpreter) confidence(interp models.Interpretation) float64 {
	c := in.rules.Confidence
	conf := c.Base

	if interp.BuildingType != models.BuildingUnknown {
		conf += c.KnownBuildingType
	}
	if interp.BuildingSizeM2 != nil {
		conf += c.SizeFound
	}
	if len(interp.Rooms) > 1 {
		conf += c.MultipleRooms
	}
	kinds := 0
	for _, n := range interp.ElectricalPoints {
		if n > 0 {
			kinds++
		}
	}
	if kinds > c.PointKindsOver {
		conf += c.PointKinds
	}
	if len(interp.ComplexityFactors) > 0 {
		conf += c.ComplexityFactor
	}
	if len(interp.RiskFactors) > 0 {
		conf += c.RiskFactor
	}

	if conf > c.Max {
		conf = c.Max
	}
	return math.Round(conf*100) / 100
}

func ceilDiv(n, d int) int {
	if n <= 0 || d <= 0 {
		return 0
	}
	return (n + d - 1) / d
}
