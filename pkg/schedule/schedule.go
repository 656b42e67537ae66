// Level schedule for a temperature tower
//
// Maps each realized floor of the tower model to its start height and its
// target temperature. The floor heights come from the tower geometry; the
// temperatures from walking the configured range by the configured step.
// The two lists are computed independently and the shorter one wins.
//
// Copyright (C) 2026  TempTower Go Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package schedule

import (
	"fmt"
	"strings"

	"temptower-go/pkg/errors"
	"temptower-go/pkg/log"
)

// Config holds the tower geometry and temperature range.
type Config struct {
	// FloorCount is how many floors the source model has.
	FloorCount int

	// FloorHeight is the height of one floor unless overridden.
	FloorHeight float64

	// HeightOverrides replaces FloorHeight for the earliest floors,
	// contiguous from floor 0.
	HeightOverrides []float64

	// MinTemp and MaxTemp bound the temperature range (MinTemp <= MaxTemp).
	MinTemp int
	MaxTemp int

	// Step is the signed temperature change per floor. Positive walks
	// MinTemp up toward MaxTemp, negative walks MaxTemp down toward MinTemp.
	Step int
}

// Schedule pairs floor-start heights with floor temperatures.
// len(Temperatures) <= len(Heights); floor 0 always starts at height 0.
type Schedule struct {
	Heights      []float64
	Temperatures []int
}

// NextHeight returns the start height of the floor after the given one.
// The second result is false when the given floor is the last.
func (s *Schedule) NextHeight(floor int) (float64, bool) {
	if floor+1 < len(s.Heights) {
		return s.Heights[floor+1], true
	}
	return 0, false
}

// NextTemperature returns the temperature of the floor after the given one.
// The second result is false when the temperature range is exhausted there.
func (s *Schedule) NextTemperature(floor int) (int, bool) {
	if floor+1 < len(s.Temperatures) {
		return s.Temperatures[floor+1], true
	}
	return 0, false
}

// Build computes the schedule and echoes a summary table. Surplus floors or
// surplus temperatures are informational, not errors.
func Build(cfg Config, echo log.Echo) (*Schedule, error) {
	if cfg.Step == 0 {
		return nil, errors.ConfigValidationError("temperature_step", "must not be zero")
	}
	if cfg.MinTemp > cfg.MaxTemp {
		return nil, errors.ConfigValidationError("min_temperature",
			fmt.Sprintf("min %d is above max %d", cfg.MinTemp, cfg.MaxTemp))
	}
	if cfg.FloorCount < 1 {
		return nil, errors.ConfigValidationError("level_count", "must be at least 1")
	}
	if cfg.FloorHeight <= 0 {
		return nil, errors.ConfigValidationError("level_height", "must be positive")
	}
	for i, h := range cfg.HeightOverrides {
		if h <= 0 {
			return nil, errors.ConfigValidationError(
				fmt.Sprintf("special_heights[%d]", i), "must be positive")
		}
	}

	s := &Schedule{}

	// Floor 0 always starts at 0; each later floor starts where the
	// previous one's height ends.
	total := 0.0
	for i := 0; i < cfg.FloorCount; i++ {
		h := cfg.FloorHeight
		if i < len(cfg.HeightOverrides) {
			h = cfg.HeightOverrides[i]
		}
		s.Heights = append(s.Heights, total)
		total += h
	}

	// Walk the range from one bound toward the other. The step count is
	// independent of the floor count; the realized list is the overlap.
	temp := cfg.MinTemp
	stop := cfg.MaxTemp
	if cfg.Step < 0 {
		temp = cfg.MaxTemp
		stop = cfg.MinTemp
	}
	desired := 0
	for floor := 0; ; floor++ {
		if floor < len(s.Heights) {
			s.Temperatures = append(s.Temperatures, temp)
		}
		desired++
		next := temp + cfg.Step
		if cfg.Step > 0 && next > stop {
			break
		}
		if cfg.Step < 0 && next < stop {
			break
		}
		temp = next
	}

	echoSummary(s, echo)

	if desired > len(s.Temperatures) {
		echo.Info("Only %d floors will be printed since the temperature range"+
			" (counting by %d C) has more steps than the %d-floor tower model.",
			len(s.Temperatures), cfg.Step, len(s.Heights))
	} else if len(s.Temperatures) < len(s.Heights) {
		echo.Info("Only %d floors will be printed since the temperature range"+
			" (counting by %d C) has fewer steps than the %d-floor tower model.",
			len(s.Temperatures), cfg.Step, len(s.Heights))
	}
	return s, nil
}

func echoSummary(s *Schedule, echo log.Echo) {
	var level, temp, height strings.Builder
	for i := range s.Temperatures {
		fmt.Fprintf(&level, "%-9d", i)
		fmt.Fprintf(&temp, "%-9d", s.Temperatures[i])
		fmt.Fprintf(&height, "%8.3fmm", s.Heights[i])
	}
	echo.Info("level:       %s", level.String())
	echo.Info("temperature: %s", temp.String())
	echo.Info("height:     %s", height.String())
}
