// Package gitutil interprets output from git commands run against a grammar
// checkout.
package gitutil

import (
	"strings"

	"github.com/grammatic/grammatic/pkg/logger"
)

var log = logger.New("gitutil:gitutil")

// Unknown is recorded when a commit or remote cannot be determined.
const Unknown = "unknown"

// IsHexString checks if a string contains only hexadecimal characters.
// This is used to validate Git commit SHAs.
func IsHexString(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

// ParseCommit extracts a commit SHA from `git rev-parse HEAD` output.
// Anything that is not a 7-64 character hex string yields Unknown.
func ParseCommit(output string) string {
	sha := strings.TrimSpace(output)
	if len(sha) < 7 || len(sha) > 64 || !IsHexString(sha) {
		log.Printf("Not a commit SHA: %q", sha)
		return Unknown
	}
	return strings.ToLower(sha)
}

// ParseRemoteURL extracts the remote URL from `git config --get
// remote.origin.url` output, stripping any credentials embedded in an
// https URL.
func ParseRemoteURL(output string) string {
	url := strings.TrimSpace(output)
	if url == "" || strings.ContainsAny(url, "\n\t ") {
		return Unknown
	}
	if scheme, rest, ok := strings.Cut(url, "://"); ok {
		if at := strings.LastIndex(rest, "@"); at >= 0 {
			if slash := strings.Index(rest, "/"); slash < 0 || at < slash {
				log.Print("Stripping credentials from remote URL")
				url = scheme + "://" + rest[at+1:]
			}
		}
	}
	return url
}
