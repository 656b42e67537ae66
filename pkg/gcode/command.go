// Package gcode parses one line of a printer command stream into a
// structured command. The grammar is the ad-hoc line-oriented one emitted by
// slicers: a command word (letter plus number), parameter words (letter plus
// optional value), `;` comments, and a handful of exceptions such as M117
// whose argument is free text.
//
// Copyright (C) 2026  TempTower Go Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package gcode

import (
	"strconv"
	"strings"
)

// Kind is the closed set of command categories the post-processor cares
// about. Anything else is KindOther and passes through untouched.
type Kind int

const (
	// KindOther is any command without special handling
	KindOther Kind = iota

	// KindMove is G0/G1 (may also extrude)
	KindMove

	// KindSetPosition is G92
	KindSetPosition

	// KindResetWorkspace is G92.1
	KindResetWorkspace

	// KindPositionMode is G90/G91 (absolute/relative coordinates)
	KindPositionMode

	// KindHome is G28 (auto-home)
	KindHome

	// KindDwell is G4
	KindDwell

	// KindSetToolTemp is M104 (no wait)
	KindSetToolTemp

	// KindSetToolTempWait is M109 (set temperature and wait)
	KindSetToolTempWait

	// KindSetBedTemp is M140 (no wait)
	KindSetBedTemp

	// KindSetBedTempWait is M190 (set bed temperature and wait)
	KindSetBedTempWait

	// KindFanSpeed is M106
	KindFanSpeed

	// KindFanOff is M107
	KindFanOff

	// KindDisplayMessage is M117; its argument is free text
	KindDisplayMessage

	// KindStepsPerUnit is M92
	KindStepsPerUnit

	// KindExtrudeMode is M82/M83 (absolute/relative extrusion)
	KindExtrudeMode

	// KindSelectTool is T0, T1, ...
	KindSelectTool
)

// kinds maps the command word to its category. G0 is a synonym of G1 for the
// rewriter's purposes.
var kinds = map[string]Kind{
	"G0":    KindMove,
	"G1":    KindMove,
	"G4":    KindDwell,
	"G28":   KindHome,
	"G90":   KindPositionMode,
	"G91":   KindPositionMode,
	"G92":   KindSetPosition,
	"G92.1": KindResetWorkspace,
	"M104":  KindSetToolTemp,
	"M109":  KindSetToolTempWait,
	"M140":  KindSetBedTemp,
	"M190":  KindSetBedTempWait,
	"M106":  KindFanSpeed,
	"M107":  KindFanOff,
	"M117":  KindDisplayMessage,
	"M92":   KindStepsPerUnit,
	"M82":   KindExtrudeMode,
	"M83":   KindExtrudeMode,
}

// Word is one letter/value pair of a command. A bare letter (HasValue false)
// is an instruction in itself, such as "home this axis" on G28 X.
type Word struct {
	Letter   byte
	Value    string
	HasValue bool
}

// Float casts the word's raw value to a float64.
func (w Word) Float() (float64, error) {
	if !w.HasValue {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseFloat(w.Value, 64)
}

// String reassembles the word as it would appear on a line.
func (w Word) String() string {
	if !w.HasValue {
		return string(w.Letter)
	}
	return string(w.Letter) + w.Value
}

// Command is one parsed non-comment, non-blank line. Words[0] is the command
// word itself ("G"+"1"); the rest are parameters in source order.
type Command struct {
	Words []Word

	// Text is the free-text argument of a display-message command.
	Text string
}

// Kind returns the command's category.
func (c *Command) Kind() Kind {
	if len(c.Words) == 0 {
		return KindOther
	}
	w := c.Words[0]
	if w.Letter == 'T' {
		return KindSelectTool
	}
	if k, ok := kinds[w.String()]; ok {
		return k
	}
	return KindOther
}

// Code returns the numeric part of the command word (1 for "G1", 92.1 for
// "G92.1"). Returns 0 if the number does not parse.
func (c *Command) Code() float64 {
	if len(c.Words) == 0 {
		return 0
	}
	v, err := c.Words[0].Float()
	if err != nil {
		return 0
	}
	return v
}

// Letter returns the command word's letter ('G', 'M', 'T'...), or 0 for an
// empty command.
func (c *Command) Letter() byte {
	if len(c.Words) == 0 {
		return 0
	}
	return c.Words[0].Letter
}

// Param returns the first parameter word with the given letter, if present.
func (c *Command) Param(letter byte) (Word, bool) {
	for _, w := range c.Words[1:] {
		if w.Letter == letter {
			return w, true
		}
	}
	return Word{}, false
}

// FloatParam returns the parameter's value as a float64. The second result is
// false if the parameter is absent, bare, or non-numeric.
func (c *Command) FloatParam(letter byte) (float64, bool) {
	w, ok := c.Param(letter)
	if !ok {
		return 0, false
	}
	v, err := w.Float()
	if err != nil {
		return 0, false
	}
	return v, true
}

// String reassembles the command, space-joined. For standard letter/value
// lines this reproduces the original token sequence modulo whitespace
// normalization.
func (c *Command) String() string {
	parts := make([]string, 0, len(c.Words)+1)
	for _, w := range c.Words {
		parts = append(parts, w.String())
	}
	if c.Text != "" {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, " ")
}
