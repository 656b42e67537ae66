// Copyright (C) 2026  TempTower Go Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package tower

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"temptower-go/pkg/log"
)

func testConfig() Config {
	return Config{
		TemplateSourcePath:     "tower.gcode",
		FloorCount:             3,
		FloorHeight:            10,
		MinTemperature:         200,
		MaxTemperature:         210,
		TemperatureStep:        5,
		BuildMovementThreshold: DefaultBuildMovementThreshold,
		EndRetractionMarker:    DefaultEndRetractionMarker,
	}
}

func runStream(t *testing.T, cfg Config, input string) ([]string, *Result) {
	t.Helper()
	rw, err := NewRewriter(cfg, log.Nop{})
	if err != nil {
		t.Fatalf("NewRewriter: %v", err)
	}
	var out bytes.Buffer
	res, err := rw.Run(strings.NewReader(input), &out, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	lines := strings.Split(out.String(), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines, res
}

func countLine(lines []string, want string) int {
	n := 0
	for _, l := range lines {
		if l == want {
			n++
		}
	}
	return n
}

const towerInput = `; basic tower
M190 S60
M109 S215
G28
G92 E0
G1 Z0.3 F3000
G1 X10 Y10 E1
G1 Z10.3
G1 X10 Y20 E2
G1 Z20.3
G1 X10 Y30 E3
G1 Z30.3
G1 X10 Y40 E4
M106 S255
G1 E-5 ; retract filament slightly
G91
M107
`

func TestRunSplicesEachFloor(t *testing.T) {
	lines, res := runStream(t, testConfig(), towerInput)

	if got := countLine(lines, "M109 S200"); got != 1 {
		t.Fatalf("initial M109 rewritten %d times, want 1\n%s", got, strings.Join(lines, "\n"))
	}
	if got := countLine(lines, "M109 S205.00"); got != 1 {
		t.Errorf("floor 1 temperature spliced %d times, want 1", got)
	}
	if got := countLine(lines, "M109 S210.00"); got != 1 {
		t.Errorf("floor 2 temperature spliced %d times, want 1", got)
	}
	if res.SplicedLines != 2 {
		t.Errorf("SplicedLines = %d, want 2", res.SplicedLines)
	}
	if res.FloorsRealized != 3 {
		t.Errorf("FloorsRealized = %d, want 3", res.FloorsRealized)
	}

	// The splice goes after the move that crosses the floor boundary.
	for i, l := range lines {
		if l == "M109 S205.00" {
			if i == 0 || lines[i-1] != "G1 Z10.3" {
				t.Errorf("splice not directly after boundary move, preceded by %q", lines[i-1])
			}
		}
	}
}

func TestRunTruncatesAboveLastFloor(t *testing.T) {
	lines, res := runStream(t, testConfig(), towerInput)

	if got := countLine(lines, TruncationMarker); got != 1 {
		t.Fatalf("marker emitted %d times, want 1", got)
	}
	if res.TruncatedAtLine == 0 {
		t.Error("TruncatedAtLine not recorded")
	}
	if countLine(lines, "G1 X10 Y40 E4") != 0 {
		t.Error("build move survived truncation")
	}
	if countLine(lines, "M106 S255") != 0 {
		t.Error("fan speed command survived truncation")
	}
	if countLine(lines, "M107") != 1 {
		t.Error("fan off command should survive truncation")
	}
	if countLine(lines, "G1 E-5 ; retract filament slightly") != 1 {
		t.Error("marked end retraction should survive truncation")
	}
	if countLine(lines, "G91") != 1 {
		t.Error("relative positioning should survive truncation")
	}
}

func TestRunLatchIsOneWay(t *testing.T) {
	input := towerInput + "G1 Z40.5\nG1 Z50.7\n"
	lines, _ := runStream(t, testConfig(), input)

	if got := countLine(lines, TruncationMarker); got != 1 {
		t.Errorf("marker emitted %d times after repeated threshold crossings, want 1", got)
	}
	// Long non-build Z travel is kept even past the latch.
	if countLine(lines, "G1 Z40.5") != 1 || countLine(lines, "G1 Z50.7") != 1 {
		t.Error("non-build travel moves dropped after latch")
	}
}

func TestRunSkipsSpliceBeforeInitialTemperature(t *testing.T) {
	input := `G28
G1 Z12.0 F3000
M109 S215
G1 Z0.3
G1 X10 Y10 E1
G1 Z10.5
`
	lines, _ := runStream(t, testConfig(), input)

	// The pre-M109 crossing is start gcode; no splice, level untouched.
	if got := countLine(lines, "M109 S205.00"); got != 1 {
		t.Fatalf("spliced %d floor-1 temperatures, want exactly 1 after the real start", got)
	}
	idx := -1
	for i, l := range lines {
		if l == "M109 S205.00" {
			idx = i
		}
	}
	if idx < 0 || lines[idx-1] != "G1 Z10.5" {
		t.Errorf("splice belongs after the post-start crossing, not the start-gcode one")
	}
}

func TestRunSkipsOvershootCrossing(t *testing.T) {
	// A jump beyond the floor after the next one looks like a park or purge
	// position, not a floor start.
	input := `M109 S215
G1 Z0.3 F3000
G1 Z25.0
G1 Z10.2
`
	lines, _ := runStream(t, testConfig(), input)

	if got := countLine(lines, "M109 S205.00"); got != 1 {
		t.Errorf("spliced %d times, want 1 (overshoot crossing skipped)", got)
	}
	for i, l := range lines {
		if l == "M109 S205.00" && lines[i-1] != "G1 Z10.2" {
			t.Errorf("splice after %q, want after the real floor crossing", lines[i-1])
		}
	}
}

func TestRunRewritesExtraTemperatureCommands(t *testing.T) {
	input := `M109 S215
G1 Z0.3 F3000
G1 Z10.2
M109 S230
`
	lines, _ := runStream(t, testConfig(), input)

	// The slicer's mid-print M109 is forced to the current floor's target.
	if countLine(lines, "M109 S205") != 1 {
		t.Errorf("extra M109 not rewritten to floor temperature:\n%s", strings.Join(lines, "\n"))
	}
	if countLine(lines, "M109 S230") != 0 {
		t.Error("slicer temperature leaked through")
	}
}

func TestRunTruncatesWhenTemperatureRangeExhausted(t *testing.T) {
	cfg := testConfig()
	cfg.FloorCount = 5
	cfg.MaxTemperature = 205 // two temperatures for five floors

	input := `M109 S215
G1 Z0.3 F3000
G1 X5 Y5 E1
G1 Z10.2
G1 X5 Y6 E2
G1 Z20.2
G1 X5 Y7 E3
`
	lines, res := runStream(t, cfg, input)

	if got := countLine(lines, TruncationMarker); got != 1 {
		t.Fatalf("marker emitted %d times, want 1", got)
	}
	if res.FloorsRealized != 2 {
		t.Errorf("FloorsRealized = %d, want 2", res.FloorsRealized)
	}
	if countLine(lines, "G1 X5 Y7 E3") != 0 {
		t.Error("extrusion past the last temperature survived")
	}
}

func TestRunSecondPassKeepsTemperatures(t *testing.T) {
	first, _ := runStream(t, testConfig(), towerInput)
	second, _ := runStream(t, testConfig(), strings.Join(first, "\n")+"\n")

	// Reprocessing already-rewritten gcode may duplicate temperature lines
	// but must never produce a wrong or out-of-order temperature.
	allowed := map[string]bool{"200": true, "205": true, "205.00": true,
		"210": true, "210.00": true}
	prev := 0.0
	for _, l := range second {
		if !strings.HasPrefix(l, "M109 S") {
			continue
		}
		val := strings.TrimPrefix(l, "M109 S")
		if !allowed[val] {
			t.Errorf("second pass produced unexpected temperature %q", l)
		}
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			t.Fatalf("unparseable temperature in %q", l)
		}
		if f < prev {
			t.Errorf("second pass temperature went backward: %q after %.2f", l, prev)
		}
		prev = f
	}
}

func TestRunHomingResetsLevelAndHeight(t *testing.T) {
	input := `M109 S215
G1 Z0.3 F3000
G1 Z10.2
G1 Z F3000
M109 S230
`
	lines, _ := runStream(t, testConfig(), input)

	// After the bare-Z homing move the floor counter is back at 0, so the
	// following M109 takes floor 0's temperature again.
	if countLine(lines, "M109 S200") != 2 {
		t.Errorf("M109 after homing not rewritten to floor 0:\n%s", strings.Join(lines, "\n"))
	}
}

func TestRunCollapsesBlankLinesAfterTruncation(t *testing.T) {
	input := towerInput + "\n\n\nM84\n"
	lines, _ := runStream(t, testConfig(), input)

	for i := 1; i < len(lines); i++ {
		if lines[i] == "" && lines[i-1] == "" {
			t.Fatalf("consecutive blank lines at %d after truncation", i)
		}
	}
	if countLine(lines, "M84") != 1 {
		t.Error("trailing motor-off command lost")
	}
}

func TestRunPreservesBlankLinesAndCommentsBeforeTruncation(t *testing.T) {
	input := "; header\n\n\nM109 S215\nG1 Z0.3 F3000\n"
	lines, _ := runStream(t, testConfig(), input)

	if lines[0] != "; header" {
		t.Errorf("comment line altered: %q", lines[0])
	}
	if lines[1] != "" || lines[2] != "" {
		t.Error("blank lines collapsed before truncation")
	}
}

func TestRunTracksExtrusionTotal(t *testing.T) {
	_, res := runStream(t, testConfig(), towerInput)

	// G92 E0 then E1, E2, E3 before the latch: three 1mm increments.
	if res.ExtrudedBeforeStop < 2.99 || res.ExtrudedBeforeStop > 3.01 {
		t.Errorf("ExtrudedBeforeStop = %v, want 3.0", res.ExtrudedBeforeStop)
	}
}

func TestRunEstimatesTime(t *testing.T) {
	cfg := testConfig()
	cfg.EstimateTime = true
	cfg.Emulator.HomingToolTemp = 180
	cfg.Emulator.HomingBedTemp = 60

	_, res := runStream(t, cfg, towerInput)

	if res.ExtrusionSeconds <= 0 {
		t.Fatalf("ExtrusionSeconds = %v, want > 0", res.ExtrusionSeconds)
	}
	if res.TotalSeconds < res.ExtrusionSeconds {
		t.Errorf("TotalSeconds %v below ExtrusionSeconds %v",
			res.TotalSeconds, res.ExtrusionSeconds)
	}
}

func TestRewriteWritesPrefixedDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tower.gcode")
	if err := os.WriteFile(src, []byte(towerInput), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig()
	cfg.TemplateSourcePath = src
	res, err := Rewrite(cfg, log.Nop{})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}

	want := filepath.Join(dir, "200-210_tower.gcode")
	if res.DestPath != want {
		t.Fatalf("DestPath = %q, want %q", res.DestPath, want)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("destination not written: %v", err)
	}
	if !strings.Contains(string(data), "M109 S205.00") {
		t.Error("destination missing spliced temperature")
	}
	if _, err := os.Stat(src + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file not renamed away")
	}
}

func TestRewriteMissingSourceFails(t *testing.T) {
	cfg := testConfig()
	cfg.TemplateSourcePath = filepath.Join(t.TempDir(), "absent.gcode")
	if _, err := Rewrite(cfg, log.Nop{}); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing source", func(c *Config) { c.TemplateSourcePath = "" }},
		{"zero step", func(c *Config) { c.TemperatureStep = 0 }},
		{"inverted range", func(c *Config) { c.MinTemperature = 250; c.MaxTemperature = 200 }},
		{"no floors", func(c *Config) { c.FloorCount = 0 }},
	}
	src := filepath.Join(t.TempDir(), "tower.gcode")
	if err := os.WriteFile(src, []byte("G28\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.TemplateSourcePath = src
			tc.mutate(&cfg)
			if cfg.Validate() == nil {
				// Range and geometry problems surface from the schedule
				// builder rather than Validate.
				if _, err := NewRewriter(cfg, log.Nop{}); err == nil {
					t.Error("bad configuration accepted")
				}
			}
		})
	}
}
