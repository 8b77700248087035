// pkg/detector/tags.go

package detector

import (
	"strings"

	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/cf_err"
	"github.com/hashicorp/go-version"
)

// TagOrder decides which of a plugin's tags counts as its last release.
type TagOrder string

const (
	// OrderListing takes the first matching tag in newest-first listing order.
	OrderListing TagOrder = "listing"
	// OrderSemver takes the matching tag with the highest version suffix.
	OrderSemver TagOrder = "semver"
)

// ParseTagOrder validates a tag order name. Empty means OrderListing.
func ParseTagOrder(s string) (TagOrder, error) {
	switch TagOrder(strings.ToLower(strings.TrimSpace(s))) {
	case "", OrderListing:
		return OrderListing, nil
	case OrderSemver:
		return OrderSemver, nil
	default:
		return "", cf_err.NewConfigError("unknown tag order "+s, nil, "Use one of: listing, semver")
	}
}

// TagFor returns the first tag, in the given newest-first order, whose name
// starts with plugin. The match is a plain case-sensitive prefix test with
// no delimiter check, so "foo" matches "foobar-1.0".
func TagFor(plugin string, tags []string) (string, bool) {
	for _, tag := range tags {
		if strings.HasPrefix(tag, plugin) {
			return tag, true
		}
	}
	return "", false
}

// TagForOrder is TagFor with a selectable ordering.
func TagForOrder(plugin string, tags []string, order TagOrder) (string, bool) {
	if order != OrderSemver {
		return TagFor(plugin, tags)
	}

	var (
		best    string
		bestVer *version.Version
	)
	for _, tag := range tags {
		if !strings.HasPrefix(tag, plugin) {
			continue
		}
		v, err := TagVersion(plugin, tag)
		if err != nil {
			continue
		}
		if bestVer == nil || v.GreaterThan(bestVer) {
			best, bestVer = tag, v
		}
	}
	if bestVer != nil {
		return best, true
	}
	return TagFor(plugin, tags)
}

// TagVersion parses the version part of tag, i.e. what follows plugin once
// separators are trimmed: "pluginA-v1.2.0" gives 1.2.0.
func TagVersion(plugin, tag string) (*version.Version, error) {
	rest := strings.TrimLeft(strings.TrimPrefix(tag, plugin), "-_@/")
	return version.NewVersion(rest)
}
