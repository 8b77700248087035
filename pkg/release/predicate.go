// pkg/release/predicate.go

// Package release decides whether a plugin's commit history warrants a release.
package release

import "strings"

// DefaultMarkers is the authoritative marker set. "Release-As: " is a commit
// footer, so it is only visible in full-message logs.
var DefaultMarkers = []string{"fix", "feat", "!", "Release-As: "}

// AffectsRelease reports whether text contains any marker and returns the
// first marker found, in marker order. Matching is an unanchored,
// case-sensitive substring test: "prefix" matches "fix".
func AffectsRelease(text string, markers []string) (bool, string) {
	for _, m := range markers {
		if m != "" && strings.Contains(text, m) {
			return true, m
		}
	}
	return false, ""
}
