package engine

import (
	"encoding/json"
	"math"
	"testing"
)

func TestFloat_JSONRoundTrip(t *testing.T) {
	cases := []float64{0, 1.5, -2.25, math.MaxFloat64, math.Inf(1), math.Inf(-1)}
	for _, v := range cases {
		raw, err := json.Marshal(Float(v))
		if err != nil {
			t.Fatalf("Marshal(%v) failed: %v", v, err)
		}
		var got Float
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("Unmarshal(%s) failed: %v", raw, err)
		}
		if float64(got) != v {
			t.Errorf("Round-trip of %v gave %v", v, float64(got))
		}
	}
}

func TestFloat_JSONNaN(t *testing.T) {
	raw, err := json.Marshal(Float(math.NaN()))
	if err != nil {
		t.Fatalf("Marshal(NaN) failed: %v", err)
	}
	if string(raw) != `"NaN"` {
		t.Fatalf(`Expected "NaN", got %s`, raw)
	}
	var got Float
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !math.IsNaN(float64(got)) {
		t.Errorf("Expected NaN, got %v", got)
	}
}

func TestFloat_JSONRejectsUnknownString(t *testing.T) {
	var f Float
	if err := json.Unmarshal([]byte(`"huge"`), &f); err == nil {
		t.Error("Expected an error for an unrecognized string")
	}
}

func TestIterState_JSONRoundTripWithInfCosts(t *testing.T) {
	st := NewIterState([]float64{1, 2})
	st.SetCost(3.5)

	raw, err := json.Marshal(st)
	if err != nil {
		t.Fatalf("States with +Inf costs must serialize: %v", err)
	}
	got := &IterState{}
	if err := json.Unmarshal(raw, got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if got.Cost != 3.5 || !math.IsInf(float64(got.PrevCost), 1) || !math.IsInf(float64(got.BestCost), 1) {
		t.Errorf("Cost header did not survive the round trip, got %+v", got.StateCommon)
	}
	if len(got.Param) != 2 || got.Param[0] != 1 {
		t.Errorf("Param did not survive the round trip, got %v", got.Param)
	}
}
