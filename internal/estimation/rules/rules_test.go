// internal/estimation/rules/rules_test.go
package rules

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_ParsesEmbeddedTables(t *testing.T) {
	rs, err := Default()
	require.NoError(t, err)

	assert.NotEmpty(t, rs.BuildingTypes)
	assert.NotEmpty(t, rs.Rooms)
	assert.NotEmpty(t, rs.Points)
	assert.Equal(t, 10, rs.PointFloor)
	assert.Equal(t, 3, rs.NeutralComplexityScore)
	assert.Equal(t, 0.95, rs.Confidence.Max)
	assert.Equal(t, 2, rs.NumberWords["to"])

	again, err := Default()
	require.NoError(t, err)
	assert.Same(t, rs, again)
}

func TestLoad_EmptyPathFallsBackToDefault(t *testing.T) {
	rs, err := Load("")
	require.NoError(t, err)
	assert.Same(t, MustDefault(), rs)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, defaultRulesYAML, 0o600))

	rs, err := Load(path)
	require.NoError(t, err)
	assert.NotSame(t, MustDefault(), rs)
	assert.Equal(t, len(MustDefault().Rooms), len(rs.Rooms))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestParse_RejectsBrokenTables(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "not yaml", yaml: "::: {"},
		{name: "empty", yaml: "{}"},
		{
			name: "bad regex",
			yaml: `
size_pattern: '(\d+'
year_pattern: '\d{4}'
fallback_room: {type: other, name: Rum}
complexity_bands: [{max: 0, score: 3}]
risk_bands: [{max: 0, score: 1}]
neutral_complexity_score: 3
neutral_risk_score: 1
panel: {outlets_per_group: 8, lights_per_group: 10, amperage_steps: [{max_groups: 0, amperage: 25}]}
confidence: {base: 0.5, max: 0.95}
`,
		},
		{
			name: "score out of range",
			yaml: `
size_pattern: '(\d+)\s*m2'
year_pattern: '\d{4}'
fallback_room: {type: other, name: Rum}
complexity_bands: [{max: 0, score: 9}]
risk_bands: [{max: 0, score: 1}]
neutral_complexity_score: 0
neutral_risk_score: 1
panel: {outlets_per_group: 8, lights_per_group: 10, amperage_steps: [{max_groups: 0, amperage: 25}]}
confidence: {base: 0.5, max: 0.95}
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRuleSet))
		})
	}
}

func TestScore_Bands(t *testing.T) {
	rs := MustDefault()

	tests := []struct {
		avg  float64
		want int
	}{
		{0.85, 1},
		{0.90, 1},
		{0.95, 2},
		{1.00, 2},
		{1.10, 3},
		{1.25, 4},
		{1.30, 4},
		{1.40, 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Score(rs.ComplexityBands, tt.avg), "avg=%v", tt.avg)
	}

	assert.Equal(t, 1, Score(rs.RiskBands, 1.0))
	assert.Equal(t, 3, Score(rs.RiskBands, 2.0))
	assert.Equal(t, 5, Score(rs.RiskBands, 4.0))
}

func TestPanelRules_Amperage(t *testing.T) {
	p := MustDefault().Panel

	assert.Equal(t, 25, p.Amperage(0))
	assert.Equal(t, 25, p.Amperage(6))
	assert.Equal(t, 35, p.Amperage(7))
	assert.Equal(t, 50, p.Amperage(18))
	assert.Equal(t, 63, p.Amperage(40))
}
