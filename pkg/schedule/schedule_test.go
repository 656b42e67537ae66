package schedule

import (
	"math"
	"testing"

	"temptower-go/pkg/errors"
	"temptower-go/pkg/log"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestBuildDefaultTower(t *testing.T) {
	// 10 floors of 13.5mm with the taller first floor; PLA range 190-210
	// by 5: only 5 floors get a temperature.
	s, err := Build(Config{
		FloorCount:      10,
		FloorHeight:     13.5,
		HeightOverrides: []float64{16.201},
		MinTemp:         190,
		MaxTemp:         210,
		Step:            5,
	}, log.Nop{})
	if err != nil {
		t.Fatal(err)
	}

	wantTemps := []int{190, 195, 200, 205, 210}
	if len(s.Temperatures) != len(wantTemps) {
		t.Fatalf("len(Temperatures) = %d, want %d", len(s.Temperatures), len(wantTemps))
	}
	for i, want := range wantTemps {
		if s.Temperatures[i] != want {
			t.Errorf("Temperatures[%d] = %d, want %d", i, s.Temperatures[i], want)
		}
	}

	if len(s.Heights) != 10 {
		t.Fatalf("len(Heights) = %d, want 10", len(s.Heights))
	}
	if s.Heights[0] != 0 {
		t.Errorf("Heights[0] = %v, want 0", s.Heights[0])
	}
	if !almostEqual(s.Heights[1], 16.201) {
		t.Errorf("Heights[1] = %v, want 16.201", s.Heights[1])
	}
	if !almostEqual(s.Heights[2], 29.701) {
		t.Errorf("Heights[2] = %v, want 29.701", s.Heights[2])
	}
}

func TestBuildMonotonicity(t *testing.T) {
	configs := []Config{
		{FloorCount: 10, FloorHeight: 13.5, HeightOverrides: []float64{16.201}, MinTemp: 190, MaxTemp: 210, Step: 5},
		{FloorCount: 3, FloorHeight: 10, MinTemp: 200, MaxTemp: 260, Step: 10},
		{FloorCount: 8, FloorHeight: 5.2, HeightOverrides: []float64{7.0, 6.1}, MinTemp: 210, MaxTemp: 250, Step: -5},
		{FloorCount: 1, FloorHeight: 1, MinTemp: 200, MaxTemp: 200, Step: 1},
	}
	for _, cfg := range configs {
		s, err := Build(cfg, log.Nop{})
		if err != nil {
			t.Fatalf("%+v: %v", cfg, err)
		}
		if s.Heights[0] != 0 {
			t.Errorf("Heights[0] = %v, want 0", s.Heights[0])
		}
		for i := 1; i < len(s.Heights); i++ {
			if s.Heights[i] < s.Heights[i-1] {
				t.Errorf("heights decrease at %d: %v < %v", i, s.Heights[i], s.Heights[i-1])
			}
		}
		if len(s.Temperatures) > len(s.Heights) {
			t.Errorf("more temperatures (%d) than heights (%d)", len(s.Temperatures), len(s.Heights))
		}
	}
}

func TestBuildNegativeStep(t *testing.T) {
	s, err := Build(Config{
		FloorCount:  10,
		FloorHeight: 13.5,
		MinTemp:     190,
		MaxTemp:     210,
		Step:        -5,
	}, log.Nop{})
	if err != nil {
		t.Fatal(err)
	}
	want := []int{210, 205, 200, 195, 190}
	if len(s.Temperatures) != len(want) {
		t.Fatalf("len = %d, want %d", len(s.Temperatures), len(want))
	}
	for i, w := range want {
		if s.Temperatures[i] != w {
			t.Errorf("Temperatures[%d] = %d, want %d", i, s.Temperatures[i], w)
		}
	}
}

func TestBuildLastInRangeValueKept(t *testing.T) {
	// 190..200 by 4 gives 190, 194, 198; 202 would exceed the bound.
	s, err := Build(Config{
		FloorCount:  10,
		FloorHeight: 13.5,
		MinTemp:     190,
		MaxTemp:     200,
		Step:        4,
	}, log.Nop{})
	if err != nil {
		t.Fatal(err)
	}
	want := []int{190, 194, 198}
	if len(s.Temperatures) != len(want) {
		t.Fatalf("Temperatures = %v, want %v", s.Temperatures, want)
	}
}

func TestBuildSurplusTemperatures(t *testing.T) {
	// More temperature steps than floors: temperatures clamp to the floor count.
	s, err := Build(Config{
		FloorCount:  3,
		FloorHeight: 13.5,
		MinTemp:     190,
		MaxTemp:     260,
		Step:        5,
	}, log.Nop{})
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Temperatures) != 3 {
		t.Errorf("len(Temperatures) = %d, want 3", len(s.Temperatures))
	}
}

func TestBuildConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero step", Config{FloorCount: 10, FloorHeight: 13.5, MinTemp: 190, MaxTemp: 210, Step: 0}},
		{"inverted bounds", Config{FloorCount: 10, FloorHeight: 13.5, MinTemp: 220, MaxTemp: 210, Step: 5}},
		{"no floors", Config{FloorCount: 0, FloorHeight: 13.5, MinTemp: 190, MaxTemp: 210, Step: 5}},
		{"flat floor", Config{FloorCount: 10, FloorHeight: 0, MinTemp: 190, MaxTemp: 210, Step: 5}},
		{"bad override", Config{FloorCount: 10, FloorHeight: 13.5, HeightOverrides: []float64{-1}, MinTemp: 190, MaxTemp: 210, Step: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Build(tt.cfg, log.Nop{}); !errors.IsConfig(err) {
				t.Errorf("Build(%+v) err = %v, want configuration error", tt.cfg, err)
			}
		})
	}
}

func TestNextAccessors(t *testing.T) {
	s := &Schedule{
		Heights:      []float64{0, 16.201, 29.701},
		Temperatures: []int{190, 195},
	}
	if h, ok := s.NextHeight(0); !ok || !almostEqual(h, 16.201) {
		t.Errorf("NextHeight(0) = %v, %v", h, ok)
	}
	if _, ok := s.NextHeight(2); ok {
		t.Error("NextHeight past the last floor should report false")
	}
	if temp, ok := s.NextTemperature(0); !ok || temp != 195 {
		t.Errorf("NextTemperature(0) = %v, %v", temp, ok)
	}
	if _, ok := s.NextTemperature(1); ok {
		t.Error("NextTemperature past the range should report false")
	}
}
