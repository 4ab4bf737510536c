// internal/estimation/interpreter/extractors.go
package interpreter

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"offer-estimation/internal/estimation/rules"
	"offer-estimation/internal/models"
)

// maxPointsPerMention bounds a single numeric point mention such as "400 spots".
const maxPointsPerMention = 500

// extractor is one declarative (pattern, handler) pair. Non-multi extractors
// share a category and the first one whose handler accepts a match closes it.
// Multi extractors feed every match to the handler.
type extractor struct {
	category string
	pattern  *regexp.Regexp
	multi    bool
	handle   func(st *state, match []string) bool
}

// state is the per-call scratch space. Each Interpret call owns its own state.
type state struct {
	text         string
	year         int
	buildingType models.BuildingType
	size         *float64
	age          *int
	rooms        []models.Room
	points       map[string]int
	factors      []models.ComplexityFactor
	risks        []models.RiskFactor
	done         map[string]bool
}

func newState(text string, year int) *state {
	return &state{
		text:         text,
		year:         year,
		buildingType: models.BuildingUnknown,
		points:       make(map[string]int),
		done:         make(map[string]bool),
	}
}

func (st *state) hasRisk(code string) bool {
	for _, r := range st.risks {
		if r.Code == code {
			return true
		}
	}
	return false
}

func dispatch(extractors []extractor, st *state) {
	for _, ex := range extractors {
		if ex.multi {
			for _, m := range ex.pattern.FindAllStringSubmatch(st.text, -1) {
				ex.handle(st, m)
			}
			continue
		}
		if st.done[ex.category] {
			continue
		}
		m := ex.pattern.FindStringSubmatch(st.text)
		if m == nil {
			continue
		}
		if ex.handle(st, m) {
			st.done[ex.category] = true
		}
	}
}

func compile(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("(?i)" + pattern)
}

func alternation(patterns []string) string {
	return "(?:" + strings.Join(patterns, "|") + ")"
}

// buildExtractors turns a rule set into the ordered extractor list. The order
// matters: within a category the earlier extractor wins.
func buildExtractors(rs *rules.RuleSet, maxRooms int) ([]extractor, error) {
	var out []extractor

	add := func(category, pattern string, multi bool, handle func(*state, []string) bool) error {
		re, err := compile(pattern)
		if err != nil {
			return fmt.Errorf("compile %s pattern %q: %w", category, pattern, err)
		}
		out = append(out, extractor{category: category, pattern: re, multi: multi, handle: handle})
		return nil
	}

	for _, bt := range rs.BuildingTypes {
		buildingType := models.BuildingType(bt.Type)
		for _, p := range bt.Patterns {
			if err := add("building_type", p, false, func(st *state, _ []string) bool {
				st.buildingType = buildingType
				return true
			}); err != nil {
				return nil, err
			}
		}
	}

	if err := add("building_size", rs.SizePattern, false, handleSize); err != nil {
		return nil, err
	}

	minYear := rs.MinPlausibleYear
	if err := add("building_age", rs.YearPattern, false, func(st *state, m []string) bool {
		year, err := strconv.Atoi(m[len(m)-1])
		if err != nil || year < minYear || year > st.year {
			return false
		}
		age := st.year - year
		st.age = &age
		return true
	}); err != nil {
		return nil, err
	}
	for _, ak := range rs.AgeKeywords {
		age := ak.Age
		if err := add("building_age", ak.Pattern, false, func(st *state, _ []string) bool {
			a := age
			st.age = &a
			return true
		}); err != nil {
			return nil, err
		}
	}

	numberWords := numberWordPattern(rs.NumberWords)
	for _, room := range rs.Rooms {
		room := room
		countRe, err := compile(`(?:\b(\d+)\s*|\b(` + numberWords + `)\s+)` + alternation(room.Patterns))
		if err != nil {
			return nil, fmt.Errorf("compile room count pattern for %s: %w", room.Type, err)
		}
		words := rs.NumberWords
		if err := add("room:"+room.Type, alternation(room.Patterns), false, func(st *state, _ []string) bool {
			// Counted mentions add up: "2 soveværelser og 1 børneværelse" is three.
			count := 0
			for _, cm := range countRe.FindAllStringSubmatch(st.text, -1) {
				count += parseCount(cm, words)
			}
			if count == 0 {
				count = 1
			}
			if count > maxRooms {
				count = maxRooms
			}
			st.rooms = append(st.rooms, namedRooms(room, count)...)
			return true
		}); err != nil {
			return nil, err
		}
	}

	for _, pt := range rs.Points {
		kind := pt.Kind
		if err := add("points:"+kind, `\b(\d+)\s*(?:stk\.?\s*)?`+alternation(pt.Patterns), true, func(st *state, m []string) bool {
			n, err := strconv.Atoi(m[1])
			if err != nil || n <= 0 {
				return false
			}
			if n > maxPointsPerMention {
				n = maxPointsPerMention
			}
			st.points[kind] += n
			return true
		}); err != nil {
			return nil, err
		}
		if pt.MentionCountsOne {
			if err := add("points_mention:"+kind, alternation(pt.Patterns), false, func(st *state, _ []string) bool {
				if st.points[kind] == 0 {
					st.points[kind] = 1
				}
				return true
			}); err != nil {
				return nil, err
			}
		}
	}

	for _, cf := range rs.ComplexityFactors {
		cf := cf
		if err := add("complexity:"+cf.Code, alternation(cf.Patterns), false, func(st *state, m []string) bool {
			st.factors = append(st.factors, models.ComplexityFactor{
				Code:         cf.Code,
				Category:     cf.Category,
				Multiplier:   cf.Multiplier,
				DetectedFrom: m[0],
			})
			return true
		}); err != nil {
			return nil, err
		}
	}

	for _, rr := range rs.RiskPatterns {
		rr := rr
		if err := add("risk:"+rr.Code, alternation(rr.Patterns), false, func(st *state, m []string) bool {
			st.risks = append(st.risks, riskFactor(rr, m[0], false))
			return true
		}); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func handleSize(st *state, m []string) bool {
	v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil || v <= 0 {
		return false
	}
	st.size = &v
	return true
}

// numberWordPattern orders words longest first so the alternation prefers the longest word.
func numberWordPattern(words map[string]int) string {
	keys := make([]string, 0, len(words))
	for w := range words {
		keys = append(keys, regexp.QuoteMeta(w))
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	if len(keys) == 0 {
		return `\d+`
	}
	return strings.Join(keys, "|")
}

func parseCount(m []string, words map[string]int) int {
	if m[1] != "" {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			return n
		}
		return 1
	}
	if n, ok := words[strings.ToLower(m[2])]; ok && n > 0 {
		return n
	}
	return 1
}

func namedRooms(rule rules.RoomRule, count int) []models.Room {
	if count <= 1 {
		return []models.Room{{Name: rule.Name, Type: rule.Type}}
	}
	out := make([]models.Room, 0, count)
	for i := 1; i <= count; i++ {
		out = append(out, models.Room{Name: fmt.Sprintf("%s %d", rule.Name, i), Type: rule.Type})
	}
	return out
}

func riskFactor(rr rules.RiskRule, detectedFrom string, inferred bool) models.RiskFactor {
	return models.RiskFactor{
		Code:         rr.Code,
		Category:     models.RiskCategory(rr.Category),
		Severity:     models.Severity(rr.Severity),
		Description:  rr.Description,
		DetectedFrom: detectedFrom,
		Inferred:     inferred,
	}
}
