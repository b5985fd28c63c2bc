package strategy

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/agentpulse/engine/internal/domain"
)

// Recommendation tuples come from an external reasoning capability and are
// treated as hostile input: parameter names are allow-listed and every value
// is enum- or range-validated before anything touches the live strategy.

var validTones = map[string]bool{
	"analytical":  true,
	"optimistic":  true,
	"provocative": true,
	"educational": true,
}

var validFocuses = map[string]bool{
	"ecosystem_growth": true,
	"defi":             true,
	"infrastructure":   true,
	"developer_tools":  true,
	"consumer":         true,
}

// intDomain is an inclusive integer range.
type intDomain struct {
	min, max int
}

var intDomains = map[string]intDomain{
	"minQualityScore": {4, 8},
	"maxDailyActions": {2, 8},
	"optimalHour":     {0, 23},
}

// ValidateChange checks one recommendation tuple against the allow-list and
// the parameter's domain. On success it returns the change with old and new
// values rendered, and a copy of params with the change applied.
func ValidateChange(params domain.StrategyParams, name string, value any) (domain.ParameterChange, domain.StrategyParams, error) {
	change := domain.ParameterChange{Name: name}

	switch name {
	case "postingTone":
		v, ok := asEnum(value, validTones)
		if !ok {
			return change, params, domain.ErrParamOutOfDomain
		}
		change.OldValue = params.PostingTone
		change.NewValue = v
		params.PostingTone = v

	case "insightFocus":
		v, ok := asEnum(value, validFocuses)
		if !ok {
			return change, params, domain.ErrParamOutOfDomain
		}
		change.OldValue = params.InsightFocus
		change.NewValue = v
		params.InsightFocus = v

	case "minQualityScore", "maxDailyActions", "optimalHour":
		v, ok := asInt(value)
		d := intDomains[name]
		if !ok || v < d.min || v > d.max {
			return change, params, domain.ErrParamOutOfDomain
		}
		var old int
		switch name {
		case "minQualityScore":
			old, params.MinQualityScore = params.MinQualityScore, v
		case "maxDailyActions":
			old, params.MaxDailyActions = params.MaxDailyActions, v
		case "optimalHour":
			old, params.OptimalHour = params.OptimalHour, v
		}
		change.OldValue = strconv.Itoa(old)
		change.NewValue = strconv.Itoa(v)

	default:
		return change, params, domain.ErrParamNotMutable
	}

	return change, params, nil
}

// asEnum accepts only a string that is a member of the enum.
func asEnum(value any, members map[string]bool) (string, bool) {
	s, ok := value.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if !members[s] {
		return "", false
	}
	return s, true
}

// asInt accepts a JSON number holding an exact integer, or a string of
// digits. Anything else, including NaN and fractional values, is rejected.
func asInt(value any) (int, bool) {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	case int:
		return v, true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// describeDomain renders a parameter's valid domain for logging.
func describeDomain(name string) string {
	switch name {
	case "postingTone":
		return enumKeys(validTones)
	case "insightFocus":
		return enumKeys(validFocuses)
	default:
		if d, ok := intDomains[name]; ok {
			return fmt.Sprintf("[%d, %d]", d.min, d.max)
		}
		return "not mutable"
	}
}

func enumKeys(m map[string]bool) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return strings.Join(keys, ", ")
}
