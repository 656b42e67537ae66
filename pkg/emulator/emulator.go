// Toolhead emulator for print-time estimation
//
// Tracks a simulated machine (tool and bed temperature, XYZ position,
// extruder position, feed rate, position mode) and charges each command with
// an elapsed-time estimate. It never writes to the output stream; the
// rewriter adds the returned seconds to its running totals.
//
// Copyright (C) 2026  TempTower Go Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package emulator

import (
	"fmt"
	"math"

	"temptower-go/pkg/gcode"
	"temptower-go/pkg/log"
)

// Empirical rate constants. A stock hotend closes roughly 1.7 C per second;
// a mains-free heated bed is far slower.
const (
	// SecondsPerDegreeTool is the hotend heat-up cost per degree C
	SecondsPerDegreeTool = 0.6

	// SecondsPerDegreeBed is the bed heat-up cost per degree C
	SecondsPerDegreeBed = 5.0

	// HomeMoveSeconds is the fixed motion cost of an auto-home
	HomeMoveSeconds = 12.0

	// DefaultFeedRate (mm/min) applies until the file sets one
	DefaultFeedRate = 3000.0
)

// Config holds the emulator's homing assumptions. Auto-home is charged as if
// it waited for the tool and bed to stabilize at these temperatures.
type Config struct {
	HomingToolTemp float64
	HomingBedTemp  float64
}

type tool struct {
	temp float64
}

type extruder struct {
	pos  float64
	feed float64
}

// Emulator simulates the machine state one command at a time.
type Emulator struct {
	cfg  Config
	echo log.Echo

	pos       [3]float64
	absolute  bool
	absoluteE bool
	feed      float64

	tools      map[string]*tool
	activeTool string

	extruders      map[string]*extruder
	activeExtruder string

	bedTemp float64

	handlers map[gcode.Kind]func(*gcode.Command) float64
	warned   map[string]bool
}

// New creates an emulator in its reset state: absolute positioning, one tool
// T0 at ambient, one extruder E0 at position 0.
func New(cfg Config, echo log.Echo) *Emulator {
	e := &Emulator{
		cfg:            cfg,
		echo:           echo,
		absolute:       true,
		absoluteE:      true,
		feed:           DefaultFeedRate,
		tools:          map[string]*tool{"T0": {}},
		activeTool:     "T0",
		extruders:      map[string]*extruder{"E0": {}},
		activeExtruder: "E0",
		warned:         make(map[string]bool),
	}
	e.handlers = map[gcode.Kind]func(*gcode.Command) float64{
		gcode.KindMove:            e.advanceMove,
		gcode.KindDwell:           e.advanceDwell,
		gcode.KindHome:            e.advanceHome,
		gcode.KindSetToolTemp:     e.advanceToolTemp(false),
		gcode.KindSetToolTempWait: e.advanceToolTemp(true),
		gcode.KindSetBedTemp:      e.advanceBedTemp(false),
		gcode.KindSetBedTempWait:  e.advanceBedTemp(true),
		gcode.KindPositionMode:    e.advancePositionMode,
		gcode.KindExtrudeMode:     e.advanceExtrudeMode,
		gcode.KindSetPosition:     e.advanceSetPosition,
		gcode.KindSelectTool:      e.advanceSelectTool,

		// State-free for timing purposes.
		gcode.KindFanSpeed:       e.advanceNop,
		gcode.KindFanOff:         e.advanceNop,
		gcode.KindDisplayMessage: e.advanceNop,
		gcode.KindStepsPerUnit:   e.advanceNop,
		gcode.KindResetWorkspace: e.advanceNop,
	}
	return e
}

// Advance applies one parsed command to the simulated state and returns the
// elapsed-time estimate in seconds (0 if the command has no time effect).
func (e *Emulator) Advance(cmd *gcode.Command) float64 {
	if cmd == nil || len(cmd.Words) == 0 {
		return 0
	}
	if h, ok := e.handlers[cmd.Kind()]; ok {
		return h(cmd)
	}
	name := cmd.Words[0].String()
	if !e.warned[name] {
		e.warned[name] = true
		e.echo.Warn("emulator: unrecognized command '%s' contributes no time", name)
	}
	return 0
}

// ToolTemp returns the active tool's simulated temperature.
func (e *Emulator) ToolTemp() float64 {
	return e.tools[e.activeTool].temp
}

// BedTemp returns the simulated bed temperature.
func (e *Emulator) BedTemp() float64 {
	return e.bedTemp
}

// Position returns the simulated XYZ position.
func (e *Emulator) Position() [3]float64 {
	return e.pos
}

// ExtruderPos returns the active extruder's 1-D position.
func (e *Emulator) ExtruderPos() float64 {
	return e.extruders[e.activeExtruder].pos
}

func (e *Emulator) advanceMove(cmd *gcode.Command) float64 {
	if w, ok := cmd.Param('F'); ok {
		if f, err := w.Float(); err == nil && f > 0 {
			e.feed = f
			e.extruders[e.activeExtruder].feed = f
		}
	}

	var sq float64
	axes := [3]byte{'X', 'Y', 'Z'}
	for i, letter := range axes {
		v, ok := cmd.FloatParam(letter)
		if !ok {
			continue
		}
		target := v
		if !e.absolute {
			target = e.pos[i] + v
		}
		d := target - e.pos[i]
		sq += d * d
		e.pos[i] = target
	}

	deltaE := 0.0
	if v, ok := cmd.FloatParam('E'); ok {
		ext := e.extruders[e.activeExtruder]
		target := v
		if !e.absoluteE {
			target = ext.pos + v
		}
		deltaE = target - ext.pos
		ext.pos = target
	}

	mmPerSec := e.feed / 60.0
	if mmPerSec <= 0 {
		return 0
	}
	dist := math.Sqrt(sq)
	if dist > 0 {
		return dist / mmPerSec
	}
	if deltaE != 0 {
		return math.Abs(deltaE) / mmPerSec
	}
	e.echo.Debug("emulator: move '%s' has no axis nor extrusion change, no time estimate", cmd.String())
	return 0
}

func (e *Emulator) advanceDwell(cmd *gcode.Command) float64 {
	if ms, ok := cmd.FloatParam('P'); ok {
		return ms / 1000.0
	}
	if s, ok := cmd.FloatParam('S'); ok {
		return s
	}
	return 0
}

// advanceHome pessimistically assumes homing waits for both heaters to
// stabilize at the configured homing temperatures.
func (e *Emulator) advanceHome(cmd *gcode.Command) float64 {
	e.pos = [3]float64{}
	elapsed := HomeMoveSeconds
	tl := e.tools[e.activeTool]
	elapsed += math.Abs(e.cfg.HomingToolTemp-tl.temp) * SecondsPerDegreeTool
	tl.temp = e.cfg.HomingToolTemp
	elapsed += math.Abs(e.cfg.HomingBedTemp-e.bedTemp) * SecondsPerDegreeBed
	e.bedTemp = e.cfg.HomingBedTemp
	return elapsed
}

func (e *Emulator) advanceToolTemp(wait bool) func(*gcode.Command) float64 {
	return func(cmd *gcode.Command) float64 {
		target, ok := cmd.FloatParam('S')
		if !ok {
			e.echo.Debug("emulator: '%s' without S parameter ignored", cmd.Words[0].String())
			return 0
		}
		tl := e.tools[e.activeTool]
		elapsed := 0.0
		if wait {
			elapsed = math.Abs(target-tl.temp) * SecondsPerDegreeTool
		}
		tl.temp = target
		return elapsed
	}
}

func (e *Emulator) advanceBedTemp(wait bool) func(*gcode.Command) float64 {
	return func(cmd *gcode.Command) float64 {
		target, ok := cmd.FloatParam('S')
		if !ok {
			e.echo.Debug("emulator: '%s' without S parameter ignored", cmd.Words[0].String())
			return 0
		}
		elapsed := 0.0
		if wait {
			elapsed = math.Abs(target-e.bedTemp) * SecondsPerDegreeBed
		}
		e.bedTemp = target
		return elapsed
	}
}

func (e *Emulator) advancePositionMode(cmd *gcode.Command) float64 {
	// G90 also resets the extruder to absolute, matching Marlin.
	abs := cmd.Code() == 90
	e.absolute = abs
	e.absoluteE = abs
	return 0
}

func (e *Emulator) advanceExtrudeMode(cmd *gcode.Command) float64 {
	e.absoluteE = cmd.Code() == 82
	return 0
}

func (e *Emulator) advanceSetPosition(cmd *gcode.Command) float64 {
	axes := [3]byte{'X', 'Y', 'Z'}
	for i, letter := range axes {
		if v, ok := cmd.FloatParam(letter); ok {
			e.pos[i] = v
		}
	}
	if v, ok := cmd.FloatParam('E'); ok {
		e.extruders[e.activeExtruder].pos = v
	}
	return 0
}

func (e *Emulator) advanceSelectTool(cmd *gcode.Command) float64 {
	name := cmd.Words[0].String()
	if _, ok := e.tools[name]; !ok {
		e.tools[name] = &tool{}
	}
	e.activeTool = name
	ext := fmt.Sprintf("E%s", cmd.Words[0].Value)
	if _, ok := e.extruders[ext]; !ok {
		e.extruders[ext] = &extruder{}
	}
	e.activeExtruder = ext
	return 0
}

func (e *Emulator) advanceNop(*gcode.Command) float64 {
	return 0
}
