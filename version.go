package perch

import (
	_ "embed"
	"strings"

	"golang.org/x/mod/semver"
)

//go:embed VERSION
var versionFile string

// Version is the current version of the Perch client library.
var Version = strings.TrimSpace(versionFile)

// transientAutocloseVersion is the first server release that resolves an open
// transaction on its own after a transient failure, so the client must not
// send an explicit commit or delete for it.
const transientAutocloseVersion = "2.2.6"

// SupportsTransientAutoclose reports whether a server at the given version
// autocloses transactions after transient failures. Empty or malformed
// versions are treated as too old.
func SupportsTransientAutoclose(serverVersion string) bool {
	v := canonicalVersion(serverVersion)
	if !semver.IsValid(v) {
		return false
	}
	return semver.Compare(v, canonicalVersion(transientAutocloseVersion)) >= 0
}

// canonicalVersion maps the server's bare "2.3.1" form onto the "v2.3.1"
// form golang.org/x/mod/semver expects.
func canonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}
