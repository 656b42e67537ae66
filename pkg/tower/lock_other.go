//go:build !linux && !darwin

// Copyright (C) 2026  TempTower Go Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package tower

import "os"

// Advisory locking is not available here; rename atomicity still protects
// the destination file.
func lockFile(f *os.File) error { return nil }

func unlockFile(f *os.File) {}
