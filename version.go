package redislite

import "strings"

// Version is the current release of redis-lite
const Version = "0.3.0"

// Build metadata, set with -ldflags "-X ...".
var (
	GitCommit string
	BuildTime string
)

// VersionString returns Version followed by whichever build metadata was
// set at link time, e.g. "0.3.0 (commit 1a2b3c, built 2026-01-02)".
func VersionString() string {
	var extra []string
	if GitCommit != "" {
		extra = append(extra, "commit "+GitCommit)
	}
	if BuildTime != "" {
		extra = append(extra, "built "+BuildTime)
	}
	if len(extra) == 0 {
		return Version
	}
	return Version + " (" + strings.Join(extra, ", ") + ")"
}
