package workflow

import (
	"strings"

	"github.com/grammatic/grammatic/pkg/logger"
	"golang.org/x/mod/semver"
)

var semverLog = logger.New("workflow:semver")

// canonicalVersion adds the 'v' prefix the semver package requires and
// returns "" when version is not a semantic version.
func canonicalVersion(version string) string {
	version = strings.TrimSpace(version)
	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}
	if !semver.IsValid(version) {
		return ""
	}
	return version
}

// compareVersions compares two semantic versions, returns 1 if v1 > v2, -1 if v1 < v2, 0 if equal
func compareVersions(v1, v2 string) int {
	semverLog.Printf("Comparing versions: v1=%s, v2=%s", v1, v2)
	return semver.Compare(canonicalVersion(v1), canonicalVersion(v2))
}

// isOlderThan reports whether version is a valid semantic version below
// minimum. ok is false when either side cannot be compared.
func isOlderThan(version, minimum string) (older bool, ok bool) {
	if canonicalVersion(version) == "" || canonicalVersion(minimum) == "" {
		semverLog.Printf("Cannot compare %q with minimum %q", version, minimum)
		return false, false
	}
	return compareVersions(version, minimum) < 0, true
}
