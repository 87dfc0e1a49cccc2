// Package version identifies a uidmgr build and the storage format it writes.
package version

import (
	"crypto/sha256"
	"encoding/hex"
	"runtime/debug"
	"strconv"
	"sync"
)

// Version is the current semantic version
const Version = "0.3.0"

// PayloadFormat is the on-disk record format. Repositories written with a
// different format cannot be read.
const PayloadFormat = 1

// Set at build time:
//
//	go build -ldflags "-X github.com/standardbeagle/uidmgr/internal/version.GitCommit=$(git rev-parse HEAD)"
var (
	GitCommit = "unknown"
	BuildDate = "development"
)

// Info returns the short version string
func Info() string {
	return Version
}

// FullInfo returns version, commit, build date, payload format and build id
func FullInfo() string {
	return "uidmgr " + Version +
		" (commit: " + GitCommit +
		", built: " + BuildDate +
		", format: " + strconv.Itoa(PayloadFormat) +
		", build id: " + BuildID() + ")"
}

var buildID = sync.OnceValue(func() string {
	h := sha256.New()
	h.Write([]byte(Version))
	h.Write([]byte{PayloadFormat})
	h.Write([]byte(GitCommit))
	if info, ok := debug.ReadBuildInfo(); ok {
		h.Write([]byte(info.GoVersion))
		h.Write([]byte(info.Main.Path))
		h.Write([]byte(info.Main.Version))
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" || s.Key == "vcs.modified" {
				h.Write([]byte(s.Key + "=" + s.Value))
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
})

// BuildID fingerprints the running binary. SQLite repositories record the id
// of the last build that opened them.
func BuildID() string {
	return buildID()
}
