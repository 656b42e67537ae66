// Per-run stream state for the tower rewriter
//
// Copyright (C) 2026  TempTower Go Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package tower

// streamState is the cumulative state threaded through one pass over the
// input. It is created fresh for each run and discarded afterwards.
type streamState struct {
	// last holds the most recent value seen for each parameter letter, and
	// lastLine the 1-based line number that set it.
	last     map[byte]float64
	lastLine map[byte]int

	// height and level track the current floor.
	height float64
	level  int

	// stopBuilding is the one-way truncation latch.
	stopBuilding bool

	// startTempFound is set once the file's first set-temperature-and-wait
	// command has been seen; vertical moves before that are presumed to be
	// start gcode.
	startTempFound bool

	// newLineCount counts lines inserted by splicing, so reported line
	// numbers account for the shift.
	newLineCount int

	// extrudedBeforeStop accumulates positive extrusion deltas until the
	// truncation latch fires.
	extrudedBeforeStop float64
}

func newStreamState() *streamState {
	return &streamState{
		last:     make(map[byte]float64),
		lastLine: make(map[byte]int),
	}
}

// set records a parameter value and the line that provided it.
func (st *streamState) set(letter byte, value float64, line int) {
	st.last[letter] = value
	st.lastLine[letter] = line
}

// get returns the last known value for a parameter letter.
func (st *streamState) get(letter byte) (float64, bool) {
	v, ok := st.last[letter]
	return v, ok
}

// line returns the line number that last set a parameter letter.
func (st *streamState) line(letter byte) int {
	return st.lastLine[letter]
}
