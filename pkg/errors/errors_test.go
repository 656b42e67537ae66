package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name string
		err  *TowerError
		want string
	}{
		{"config option", ConfigMissingError("min_temperature"), "[CONFIG_MISSING:min_temperature]"},
		{"with line", ParseError(42, "Z1,5", "invalid syntax"), "line 42"},
		{"plain", New(ErrIOWrite, "disk full"), "[IO_WRITE] disk full"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); !strings.Contains(got, tt.want) {
				t.Errorf("Error() = %q, want substring %q", got, tt.want)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	inner := fmt.Errorf("permission denied")
	err := WriteError("/tmp/out.gcode.tmp", inner)
	if !errors.Is(err, inner) {
		t.Error("wrapped error not reachable via errors.Is")
	}
}

func TestIsHelpers(t *testing.T) {
	if !IsConfig(ConfigValidationError("temperature_step", "must not be zero")) {
		t.Error("expected config error")
	}
	if IsConfig(ParseError(1, "x", "y")) {
		t.Error("parse error misclassified as config")
	}
	if !IsFatal(SourceNotFoundError("tower.gcode", "")) {
		t.Error("missing source should be fatal")
	}
	if IsFatal(New(ErrHeuristic, "odd motion after stop")) {
		t.Error("heuristic warnings are not fatal")
	}
}
