// Tower stream rewriter - the single-pass state machine
//
// Walks the sliced tower gcode once, splices a set-temperature-and-wait
// command at each floor boundary, and truncates the stream when the floors
// or the temperature range run out. Build material after truncation is
// stripped; homing, parking and wipe motion is kept. The classification of
// one from the other is heuristic; the thresholds are empirically tuned and
// preserved as documented.
//
// Copyright (C) 2026  TempTower Go Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package tower

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"temptower-go/pkg/emulator"
	"temptower-go/pkg/errors"
	"temptower-go/pkg/gcode"
	"temptower-go/pkg/log"
	"temptower-go/pkg/schedule"
)

// TruncationMarker is emitted into the output exactly once, on the line
// where the truncation latch fires.
const TruncationMarker = "; temptower: stop_building (build-related commands below this point were removed)"

// Result summarizes one completed rewrite.
type Result struct {
	// DestPath is the final output path (empty for stream-only runs).
	DestPath string

	// Temperatures is the realized floor temperature list.
	Temperatures []int

	// FloorsRealized is how many floors the pass actually reached.
	FloorsRealized int

	// SplicedLines is the number of inserted temperature commands.
	SplicedLines int

	// TruncatedAtLine is the source line where the latch fired, 0 if never.
	TruncatedAtLine int

	// ExtrudedBeforeStop is the total positive extrusion (mm of filament)
	// before truncation.
	ExtrudedBeforeStop float64

	// ExtrusionSeconds is the estimated time to finish extrusion (frozen at
	// truncation); TotalSeconds includes trailing non-build motion. Both are
	// zero unless time estimation was enabled.
	ExtrusionSeconds float64
	TotalSeconds     float64
}

// Rewriter performs one pass over one input stream. It is not reusable and
// not safe for concurrent use; create one per run.
type Rewriter struct {
	cfg   Config
	echo  log.Echo
	sched *schedule.Schedule
	emu   *emulator.Emulator
	st    *streamState

	out         *bufio.Writer
	outPath     string
	prevOutLine string
	havePrevOut bool

	elapsed float64
	result  Result
}

// NewRewriter builds the level schedule and prepares a single-use rewriter.
func NewRewriter(cfg Config, echo log.Echo) (*Rewriter, error) {
	sched, err := schedule.Build(cfg.scheduleConfig(), echo)
	if err != nil {
		return nil, err
	}
	rw := &Rewriter{
		cfg:   cfg,
		echo:  echo,
		sched: sched,
		st:    newStreamState(),
	}
	if cfg.EstimateTime {
		rw.emu = emulator.New(cfg.Emulator, echo)
	}
	return rw, nil
}

// Rewrite runs the whole operation against the configured source file. The
// output is written to `<src>.tmp` and atomically renamed to
// `<min>-<max>_<basename>` next to the source only after the entire input
// has been consumed; on failure the temporary file is left for inspection.
func Rewrite(cfg Config, echo log.Echo) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		echo.Error("%v", err)
		return nil, err
	}
	rw, err := NewRewriter(cfg, echo)
	if err != nil {
		echo.Error("%v", err)
		return nil, err
	}

	src, err := os.Open(cfg.TemplateSourcePath)
	if err != nil {
		return nil, errors.ReadError(cfg.TemplateSourcePath, err)
	}
	defer src.Close()
	info, err := src.Stat()
	if err != nil {
		return nil, errors.ReadError(cfg.TemplateSourcePath, err)
	}

	tmpPath := cfg.TemplateSourcePath + ".tmp"
	tmp, err := os.Create(tmpPath)
	if err != nil {
		return nil, errors.WriteError(tmpPath, err)
	}
	if err := lockFile(tmp); err != nil {
		tmp.Close()
		return nil, errors.WriteError(tmpPath, err)
	}
	rw.outPath = tmpPath

	res, err := rw.Run(src, tmp, info.Size())
	if err != nil {
		// The partial temporary file is kept: it may aid debugging.
		tmp.Close()
		return nil, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return nil, errors.WriteError(tmpPath, err)
	}
	unlockFile(tmp)
	if err := tmp.Close(); err != nil {
		return nil, errors.WriteError(tmpPath, err)
	}

	dstPath := destPath(cfg)
	if err := os.Rename(tmpPath, dstPath); err != nil {
		return nil, errors.WriteError(dstPath, err)
	}
	res.DestPath = dstPath
	echo.Progress("100%")
	echo.Info("100%% (done; saved %s)", dstPath)
	return res, nil
}

// destPath prepends the temperature range to the source base name.
func destPath(cfg Config) string {
	base := filepath.Base(cfg.TemplateSourcePath)
	name := fmt.Sprintf("%d-%d_%s", cfg.MinTemperature, cfg.MaxTemperature, base)
	return filepath.Join(filepath.Dir(cfg.TemplateSourcePath), name)
}

// Run consumes the input stream line by line and writes the transformed
// stream. totalBytes drives the progress percentage; pass 0 to disable.
func (rw *Rewriter) Run(in io.Reader, out io.Writer, totalBytes int64) (*Result, error) {
	rw.out = bufio.NewWriter(out)
	if rw.outPath == "" {
		rw.outPath = "output stream"
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNumber := 0
	var consumed int64
	for scanner.Scan() {
		lineNumber++
		original := scanner.Text()
		consumed += int64(len(original)) + 1
		if err := rw.process(lineNumber, original); err != nil {
			return nil, err
		}
		if totalBytes > 0 {
			pct := consumed * 100 / totalBytes
			if pct > 100 {
				pct = 100
			}
			rw.echo.Progress(fmt.Sprintf("%d%%", pct))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.ReadError(rw.cfg.TemplateSourcePath, err)
	}
	if err := rw.out.Flush(); err != nil {
		return nil, errors.WriteError(rw.outPath, err)
	}

	rw.result.Temperatures = rw.sched.Temperatures
	rw.result.FloorsRealized = rw.st.level + 1
	rw.result.ExtrudedBeforeStop = rw.st.extrudedBeforeStop
	if rw.emu != nil {
		rw.result.TotalSeconds = rw.elapsed
		if !rw.st.stopBuilding {
			rw.result.ExtrusionSeconds = rw.elapsed
		}
	}
	return &rw.result, nil
}

// process handles one source line. The order of operations per line follows
// the per-line contract: parse, classify deltas, apply the truncation
// policy, evaluate the height threshold, splice.
func (rw *Rewriter) process(n int, original string) error {
	line := strings.TrimRight(original, " \t\r\n")
	cmd := gcode.ParseLine(line)
	if cmd == nil {
		// Comments and blanks pass through, but consecutive blank lines
		// collapse to one once truncated.
		if rw.st.stopBuilding && rw.havePrevOut && rw.prevOutLine == "" && line == "" {
			return nil
		}
		return rw.writeRaw(strings.TrimRight(original, "\r\n"), line)
	}

	given := make(map[byte]float64)
	for _, w := range cmd.Words[1:] {
		if !w.HasValue {
			continue
		}
		v, err := w.Float()
		if err != nil {
			rw.echo.Warn("Line %d: bad numeric value '%s' in '%s' kept as-is", n, w.String(), line)
			continue
		}
		given[w.Letter] = v
	}
	deltas := make(map[byte]float64)
	for k, v := range given {
		if prev, ok := rw.st.get(k); ok {
			deltas[k] = v - prev
		}
	}

	wouldExtrude, wouldMove := rw.classify(n, line, cmd, given, deltas)
	wouldBuild := wouldExtrude || wouldMove
	rw.updateState(n, given, deltas)

	switch {
	case cmd.Kind() == gcode.KindMove:
		return rw.processMove(n, line, cmd, wouldBuild, deltas)
	case cmd.Letter() == 'G':
		return rw.processOtherG(n, line, cmd, wouldBuild)
	case cmd.Letter() == 'M':
		return rw.processM(n, line, cmd)
	default:
		return rw.write(line)
	}
}

// classify computes the build-material flags for a G command. The homing and
// layer-step thresholds are empirically tuned; preserve them as documented.
func (rw *Rewriter) classify(n int, line string, cmd *gcode.Command, given, deltas map[byte]float64) (wouldExtrude, wouldMove bool) {
	if cmd.Letter() != 'G' {
		return false, false
	}

	if e, ok := given['E']; ok {
		wouldExtrude = true
		// An explicitly-marked retraction in end gcode survives truncation;
		// the marker lives in the comment, so search the raw line.
		if e < 0 && rw.cfg.EndRetractionMarker != "" &&
			strings.Contains(line, rw.cfg.EndRetractionMarker) {
			wouldExtrude = false
		}
	}

	if x, ok := given['X']; ok {
		if _, hasY := given['Y']; hasY {
			wouldMove = true
		} else if _, hasZ := given['Z']; hasZ {
			wouldMove = true
		} else if x != 0 {
			wouldMove = true
		}
		// X0 alone is homing, not building.
	}

	if dz, ok := deltas['Z']; ok {
		if math.Abs(dz) <= rw.cfg.BuildMovementThreshold {
			// Too small to be a necessary move; probably the next layer.
			wouldMove = true
		} else if rw.st.stopBuilding && !wouldMove {
			prevZ, _ := rw.st.get('Z')
			rw.echo.Warn("Line %d: moving from %.3f (line %d) to %.3f is a long move %.3f; keeping '%s'",
				n, prevZ, rw.st.line('Z'), given['Z'], math.Abs(dz), line)
		}
	} else if rw.st.stopBuilding {
		_, hasZ := given['Z']
		_, knownZ := rw.st.get('Z')
		if !hasZ && !knownZ {
			rw.echo.Warn("Line %d: no recorded z value but build is over", n)
		}
	}

	// A lone F word after truncation is presumed leftover build speed, not
	// end gcode.
	if rw.st.stopBuilding && len(cmd.Words) == 2 && cmd.Words[1].Letter == 'F' {
		wouldMove = true
	}
	return wouldExtrude, wouldMove
}

// updateState folds the line's values into the cumulative stream state.
func (rw *Rewriter) updateState(n int, given, deltas map[byte]float64) {
	if !rw.st.stopBuilding {
		if de, ok := deltas['E']; ok && de > 0 {
			rw.st.extrudedBeforeStop += de
		}
	}
	for k, v := range given {
		rw.st.set(k, v, n)
	}
}

// processMove handles G0/G1: the truncation drop policy, homing resets, the
// height threshold, and temperature splicing.
func (rw *Rewriter) processMove(n int, line string, cmd *gcode.Command, wouldBuild bool, deltas map[byte]float64) error {
	if rw.st.stopBuilding {
		if wouldBuild {
			// Strips trailing build material, including unmarked retractions.
			return nil
		}
		if dz, ok := deltas['Z']; ok {
			rw.echo.Warn("Line %d: allowing '%s' after stop (z delta %.3f)", n, line, dz)
		} else {
			rw.echo.Warn("Line %d: allowing '%s' after stop", n, line)
		}
	}
	if err := rw.write(line); err != nil {
		return err
	}

	zWord, ok := cmd.Param('Z')
	if !ok {
		return nil
	}
	if !zWord.HasValue {
		// Bare Z is a homing instruction.
		rw.st.height = 0
		rw.st.level = 0
		rw.echo.Info("Line %d: homing was detected so level and height were reset to 0", n)
		return nil
	}
	z, err := zWord.Float()
	if err != nil {
		// Already warned; the raw token was preserved in the output.
		return nil
	}
	rw.st.height = z

	nextHeight, haveFloor := rw.sched.NextHeight(rw.st.level)
	if !haveFloor {
		if !rw.st.stopBuilding {
			if err := rw.latch(n); err != nil {
				return err
			}
			current := rw.sched.Temperatures[rw.st.level]
			if _, haveTemp := rw.sched.NextTemperature(rw.st.level); haveTemp {
				rw.echo.Info("Line %d: the tower ends (no level beyond %d) at %.3f before the"+
					" temperature range, so there will be no temperature beyond %d",
					n, rw.st.level, rw.st.height, current)
			} else {
				rw.echo.Info("Line %d: the tower ends (no level beyond %d) at %.3f nor another"+
					" level in the temperature range, so there will be no temperature beyond %d",
					n, rw.st.level, rw.st.height, current)
			}
			rw.echo.Info("  (future extrusion will be suppressed)")
		}
		return nil
	}
	if rw.st.height < nextHeight {
		return nil
	}

	nextTemp, haveTemp := rw.sched.NextTemperature(rw.st.level)
	if !haveTemp {
		if !rw.st.stopBuilding {
			if err := rw.latch(n); err != nil {
				return err
			}
			rw.echo.Info("Line %d: the tower will be truncated since there is no new temperature"+
				" available (no level beyond %d) at %.3f", n, rw.st.level, rw.st.height)
			rw.echo.Info("  (future extrusion will be suppressed)")
		}
		return nil
	}
	if !rw.st.startTempFound {
		rw.echo.Info("Line %d: splicing temperature at %.3f will be skipped since the initial"+
			" M109 was not found yet (level is %d), so this z move is presumably start gcode",
			n, rw.st.height, rw.st.level)
		return nil
	}
	if len(rw.sched.Heights) > rw.st.level+2 && rw.st.height > rw.sched.Heights[rw.st.level+2] {
		rw.echo.Warn("Line %d: splicing temperature at height %.3f will be skipped since the"+
			" height is greater than the level after the one starting here"+
			" (this may be a wait or purge position)", n, rw.st.height)
		return nil
	}

	rw.st.level++
	spliced := fmt.Sprintf("M109 S%.2f", float64(nextTemp))
	if err := rw.write(spliced); err != nil {
		return err
	}
	rw.st.newLineCount++
	rw.result.SplicedLines++
	rw.echo.Info("Line %d: inserted '%s' after '%s' (new line number %d)",
		n, spliced, line, n+rw.st.newLineCount)
	return nil
}

// processOtherG mirrors the move policy for the remaining G codes. A
// workspace reset (G92.1) is always allowed through, even when it would
// otherwise match the drop heuristic.
func (rw *Rewriter) processOtherG(n int, line string, cmd *gcode.Command, wouldBuild bool) error {
	if rw.st.stopBuilding {
		switch {
		case cmd.Kind() == gcode.KindResetWorkspace:
			rw.echo.Info("Line %d: allowing workspace reset '%s' after stop", n, line)
		case wouldBuild:
			return nil
		case cmd.Code() == 91:
			rw.echo.Info("Line %d: allowing '%s' after stop", n, line)
		default:
			rw.echo.Warn("Line %d: allowing '%s' after stop", n, line)
		}
	}
	return rw.write(line)
}

// processM rewrites verbatim set-temperature-and-wait commands to the
// current floor's temperature and drops fan commands after truncation.
func (rw *Rewriter) processM(n int, line string, cmd *gcode.Command) error {
	if cmd.Kind() == gcode.KindSetToolTempWait && len(cmd.Words) > 1 {
		// Whatever temperature the slicer emitted, the current floor wins.
		rewritten := fmt.Sprintf("M109 S%d", rw.sched.Temperatures[rw.st.level])
		if rw.st.startTempFound {
			rw.echo.Info("Line %d: extra temperature command at %.3f: '%s' changed to '%s'",
				n, rw.st.height, line, rewritten)
		} else {
			rw.echo.Info("Line %d: initial temperature command at %.3f: '%s' changed to '%s'",
				n, rw.st.height, line, rewritten)
		}
		rw.st.startTempFound = true
		return rw.write(rewritten)
	}
	if rw.st.stopBuilding && cmd.Kind() == gcode.KindFanSpeed {
		// The fan need not keep running after the tower is cut short.
		return nil
	}
	return rw.write(line)
}

// latch flips the one-way truncation latch, emits the marker line, and
// freezes the extrusion-time estimate.
func (rw *Rewriter) latch(n int) error {
	rw.st.stopBuilding = true
	rw.result.TruncatedAtLine = n
	if rw.emu != nil {
		rw.result.ExtrusionSeconds = rw.elapsed
	}
	return rw.write(TruncationMarker)
}

// write emits one line to the output, tracks it for blank collapsing, and
// feeds it to the emulator when time estimation is on.
func (rw *Rewriter) write(line string) error {
	return rw.writeRaw(line, line)
}

// writeRaw emits raw text while recording the normalized form used for the
// consecutive-blank check.
func (rw *Rewriter) writeRaw(raw, recorded string) error {
	if _, err := rw.out.WriteString(raw + "\n"); err != nil {
		return errors.WriteError(rw.outPath, err)
	}
	rw.prevOutLine = recorded
	rw.havePrevOut = true
	if rw.emu != nil {
		if cmd := gcode.ParseLine(raw); cmd != nil {
			rw.elapsed += rw.emu.Advance(cmd)
		}
	}
	return nil
}
