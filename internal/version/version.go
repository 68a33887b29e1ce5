// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package version carries the build stamp injected via ldflags.
package version

import "fmt"

const unknown = "unknown"

// Info identifies a build. Empty fields mean the binary was built without
// ldflags, e.g. by go run.
type Info struct {
	Version   string
	GitCommit string
	BuildTime string
}

// Label returns the version, or "dev" for unstamped builds.
func (i Info) Label() string {
	if i.Version == "" {
		return "dev"
	}
	return i.Version
}

// Commit returns the commit hash cut to seven characters.
func (i Info) Commit() string {
	switch {
	case i.GitCommit == "":
		return unknown
	case len(i.GitCommit) > 7:
		return i.GitCommit[:7]
	}
	return i.GitCommit
}

// String formats the stamp for -version output.
func (i Info) String() string {
	built := i.BuildTime
	if built == "" {
		built = unknown
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", i.Label(), i.Commit(), built)
}
