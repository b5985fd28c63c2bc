package strategy

import (
	"testing"

	"github.com/agentpulse/engine/internal/domain"
)

func baseParams() domain.StrategyParams {
	return domain.StrategyParams{
		PostingTone:     "analytical",
		InsightFocus:    "ecosystem_growth",
		MinQualityScore: 6,
		MaxDailyActions: 5,
		OptimalHour:     14,
	}
}

func TestValidateChange_Accepts(t *testing.T) {
	tests := []struct {
		name  string
		param string
		value any
	}{
		{"tone enum", "postingTone", "optimistic"},
		{"focus enum", "insightFocus", "defi"},
		{"quality lower bound", "minQualityScore", float64(4)},
		{"quality upper bound", "minQualityScore", float64(8)},
		{"daily actions", "maxDailyActions", float64(3)},
		{"hour zero", "optimalHour", float64(0)},
		{"hour max", "optimalHour", float64(23)},
		{"integer as string", "minQualityScore", "7"},
		{"enum with whitespace", "postingTone", " educational "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			change, next, err := ValidateChange(baseParams(), tt.param, tt.value)
			if err != nil {
				t.Fatalf("ValidateChange: %v", err)
			}
			if change.Name != tt.param {
				t.Errorf("Name = %q, want %q", change.Name, tt.param)
			}
			if next == baseParams() {
				t.Error("params unchanged after valid change")
			}
		})
	}
}

func TestValidateChange_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		param string
		value any
	}{
		{"unknown parameter", "postFrequency", float64(3)},
		{"allow-list bypass attempt", "Params.MinQualityScore", float64(5)},
		{"tone outside enum", "postingTone", "sarcastic"},
		{"tone as number", "postingTone", float64(3)},
		{"focus outside enum", "insightFocus", "memecoins"},
		{"quality below range", "minQualityScore", float64(3)},
		{"quality above range", "minQualityScore", float64(9)},
		{"quality fractional", "minQualityScore", 6.5},
		{"quality non-numeric string", "minQualityScore", "very high"},
		{"daily below range", "maxDailyActions", float64(1)},
		{"daily above range", "maxDailyActions", float64(100)},
		{"hour negative", "optimalHour", float64(-1)},
		{"hour above range", "optimalHour", float64(24)},
		{"nil value", "optimalHour", nil},
		{"object value", "maxDailyActions", map[string]any{"v": 3}},
		{"bool value", "minQualityScore", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, next, err := ValidateChange(baseParams(), tt.param, tt.value)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if next != baseParams() {
				t.Error("params mutated despite rejection")
			}
		})
	}
}

// Arbitrary tuples, valid and hostile, must never leave the applied
// parameter set outside its declared domain.
func TestValidateChange_DomainNeverViolated(t *testing.T) {
	names := []string{
		"postingTone", "insightFocus", "minQualityScore",
		"maxDailyActions", "optimalHour", "unknownParam", "",
	}
	values := []any{
		"analytical", "defi", "sarcastic", "", " ",
		float64(-1000), float64(0), float64(4), 6.5, float64(8), float64(23), float64(1e9),
		"7", "-3", "NaN", nil, true, []any{5}, map[string]any{"v": 5},
	}

	params := baseParams()
	for _, name := range names {
		for _, value := range values {
			_, next, err := ValidateChange(params, name, value)
			if err != nil {
				continue
			}
			if !validTones[next.PostingTone] {
				t.Fatalf("tone %q escaped enum via (%s, %v)", next.PostingTone, name, value)
			}
			if !validFocuses[next.InsightFocus] {
				t.Fatalf("focus %q escaped enum via (%s, %v)", next.InsightFocus, name, value)
			}
			if next.MinQualityScore < 4 || next.MinQualityScore > 8 {
				t.Fatalf("minQualityScore %d out of range via (%s, %v)", next.MinQualityScore, name, value)
			}
			if next.MaxDailyActions < 2 || next.MaxDailyActions > 8 {
				t.Fatalf("maxDailyActions %d out of range via (%s, %v)", next.MaxDailyActions, name, value)
			}
			if next.OptimalHour < 0 || next.OptimalHour > 23 {
				t.Fatalf("optimalHour %d out of range via (%s, %v)", next.OptimalHour, name, value)
			}
			params = next
		}
	}
}
