// Package match is the single authority for deciding whether a resource
// belongs to the managed project. Every deletion path filters through it.
package match

import (
	"strings"

	"github.com/yairfalse/purku/types"
)

// NoneSentinel shows up where upstream tooling serialized a missing name.
const NoneSentinel = "None"

// Matches reports whether name contains any pattern as a case-sensitive
// substring. Empty names and the None sentinel never match.
func Matches(name string, patterns []string) bool {
	if name == "" || name == NoneSentinel {
		return false
	}
	for _, p := range patterns {
		if p != "" && strings.Contains(name, p) {
			return true
		}
	}
	return false
}

// Any reports whether at least one of names matches.
func Any(names []string, patterns []string) bool {
	for _, n := range names {
		if Matches(n, patterns) {
			return true
		}
	}
	return false
}

// Filter keeps only resources whose ID or ARN matches the pattern set.
func Filter(resources []types.Resource, patterns []string) []types.Resource {
	var kept []types.Resource
	for _, r := range resources {
		if Matches(r.ID, patterns) || Matches(r.ARN, patterns) {
			kept = append(kept, r)
		}
	}
	return kept
}
