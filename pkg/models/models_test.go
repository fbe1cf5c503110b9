package models

import (
	"encoding/json"
	"math"
	"testing"
)

// ── Category / Trend Tests ──

func TestCategoryValid(t *testing.T) {
	for _, c := range Categories {
		if !c.Valid() {
			t.Errorf("%q should be valid", c)
		}
	}
	for _, c := range []Category{"", "financial", "Weather"} {
		if c.Valid() {
			t.Errorf("%q should be invalid", c)
		}
	}
}

func TestCategoriesOrder(t *testing.T) {
	want := []Category{CategorySupplyChain, CategoryEconomic, CategoryGeopolitical, CategoryWeather}
	if len(Categories) != len(want) {
		t.Fatalf("Categories: got %d, want %d", len(Categories), len(want))
	}
	for i := range want {
		if Categories[i] != want[i] {
			t.Errorf("Categories[%d]: got %q, want %q", i, Categories[i], want[i])
		}
	}
}

func TestTrendValid(t *testing.T) {
	tests := []struct {
		trend Trend
		want  bool
	}{
		{TrendUp, true},
		{TrendDown, true},
		{TrendStable, true},
		{"", false},
		{"sideways", false},
	}
	for _, tt := range tests {
		if got := tt.trend.Valid(); got != tt.want {
			t.Errorf("Trend(%q).Valid() = %v, want %v", tt.trend, got, tt.want)
		}
	}
}

// ── Indicator Tests ──

func TestIndicatorCategoryOmitted(t *testing.T) {
	data, err := json.Marshal(Indicator{Name: "Port Congestion Index", Value: 60, Trend: TrendUp, Confidence: 85})
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if _, ok := m["category"]; ok {
		t.Error("empty category should be omitted")
	}
	if m["confidence"] != float64(85) {
		t.Errorf("confidence: got %v", m["confidence"])
	}
}

// ── Route Tests ──

func TestRiskLabel(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{0, "low"},
		{39, "low"},
		{40, "medium"},
		{69, "medium"},
		{70, "high"},
		{100, "high"},
	}
	for _, tt := range tests {
		if got := RiskLabel(tt.score); got != tt.want {
			t.Errorf("RiskLabel(%d) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestRouteValidate(t *testing.T) {
	tests := []struct {
		name    string
		route   Route
		wantErr bool
	}{
		{"zero route", Route{}, false},
		{"typical", Route{ID: "r1", ETADays: 14, Volume: 5000, ETAStatus: ETADelayed}, false},
		{"early", Route{ETADays: 3, ETAStatus: ETAEarly}, false},
		{"negative eta", Route{ETADays: -1}, true},
		{"nan eta", Route{ETADays: math.NaN()}, true},
		{"inf volume", Route{Volume: math.Inf(1)}, true},
		{"negative volume", Route{Volume: -10}, true},
		{"unknown status", Route{ETAStatus: "lost"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.route.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRouteJSONFieldNames(t *testing.T) {
	var r Route
	body := `{"id":"sh-rt","origin":"Shanghai","destination":"Rotterdam","eta_days":32,"eta_status":"delayed","volume":12000}`
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		t.Fatal(err)
	}
	if r.ETADays != 32 || r.Volume != 12000 || r.ETAStatus != ETADelayed {
		t.Errorf("decoded route: %+v", r)
	}
	if r.Origin != "Shanghai" || r.Destination != "Rotterdam" {
		t.Errorf("places: got %q -> %q", r.Origin, r.Destination)
	}
}
