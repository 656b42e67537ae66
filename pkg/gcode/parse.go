// Line tokenizer for the slicer command grammar
//
// Copyright (C) 2026  TempTower Go Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package gcode

import (
	"strings"
)

// ParseLine tokenizes one raw text line. It returns nil for a line that is
// blank or a pure comment; that is distinct from a command with zero
// parameters. Text after the first `;` is discarded, and a leading `/`
// (block-skip convention) discards the rest of the line from that point.
// Non-numeric values are not rejected here: the raw string is kept and the
// consumer decides whether to warn.
func ParseLine(line string) *Command {
	if i := strings.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if line[0] == '/' {
		return nil
	}
	line = strings.ReplaceAll(line, "\t", " ")
	for strings.Contains(line, "  ") {
		line = strings.ReplaceAll(line, "  ", " ")
	}

	parts := strings.Split(line, " ")
	cmd := &Command{Words: make([]Word, 0, len(parts))}
	for i, part := range parts {
		if len(part) > 1 {
			cmd.Words = append(cmd.Words, Word{Letter: part[0], Value: part[1:], HasValue: true})
		} else {
			cmd.Words = append(cmd.Words, Word{Letter: part[0]})
		}
		// M117's argument is free text: the remainder of the line would
		// otherwise be misparsed into letter/value pairs.
		if i == 0 && cmd.Kind() == KindDisplayMessage {
			if len(parts) > 1 {
				cmd.Text = strings.Join(parts[1:], " ")
			}
			break
		}
	}
	return cmd
}
