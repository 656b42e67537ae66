// Copyright (C) 2026  TempTower Go Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package settings

import (
	"os"

	"temptower-go/pkg/errors"
)

// downloadPageURLs point at the configurable tower model the source gcode
// must be sliced from.
var downloadPageURLs = []string{
	"https://www.thingiverse.com/thing:4068975",
	"https://github.com/poikilos/TemperatureTowerProcessor",
}

// MissingHintPath names the note written next to an absent source file.
func MissingHintPath(source string) string {
	return source + " is missing.txt"
}

// MissingSourceMessage explains where to get the tower model when the
// source gcode is absent.
func MissingSourceMessage(source string) string {
	msg := "You must slice the Configurable Temperature tower from:"
	for _, url := range downloadPageURLs {
		msg += "\n- " + url
	}
	msg += "\nas " + source
	return msg
}

// CheckSource verifies the source gcode exists. When it does not, a hint
// file is written beside the expected path so a user browsing the folder
// can see what to do, and a SourceNotFound error is returned. A stale hint
// file is removed once the source appears.
func CheckSource(source string) error {
	if info, err := os.Stat(source); err == nil && !info.IsDir() {
		os.Remove(MissingHintPath(source))
		return nil
	}
	msg := MissingSourceMessage(source)
	if err := os.WriteFile(MissingHintPath(source), []byte(msg+"\n"), 0o644); err != nil {
		// The hint is best effort; the real error is the missing source.
		return errors.SourceNotFoundError(source, msg)
	}
	return errors.SourceNotFoundError(source, msg)
}
