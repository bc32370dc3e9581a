/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version provides build version information.
package version

import (
	"fmt"
	"runtime"
)

// Version is the current version of Fillline.
// This is set at build time via ldflags:
//
//	-X github.com/friendsincode/fillline/internal/version.Version=X.Y.Z
var Version = "0.1.0"

// Commit is the git commit the binary was built from, set via ldflags.
var Commit = "unknown"

// String returns a human readable version line.
func String() string {
	return fmt.Sprintf("fillline %s (%s, %s)", Version, Commit, runtime.Version())
}
