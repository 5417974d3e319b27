package fingerprint

import (
	"github.com/Masterminds/semver/v3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Direction describes how a remote fingerprint relates to the local one.
type Direction string

const (
	// DirectionChanged means the fingerprints differ but cannot be ordered,
	// which is the normal case for content hashes.
	DirectionChanged Direction = "changed"
	// DirectionUpgrade means both fingerprints are semantic versions and the
	// remote one is newer.
	DirectionUpgrade Direction = "upgrade"
	// DirectionDowngrade means the origin now serves an older version, usually
	// a rollback.
	DirectionDowngrade Direction = "downgrade"
)

var titleCaser = cases.Title(language.English)

// Title returns the direction formatted for headings.
func (d Direction) Title() string {
	if d == "" {
		return titleCaser.String(string(DirectionChanged))
	}
	return titleCaser.String(string(d))
}

// Classify orders two different fingerprints. Only strict X.Y.Z versions are
// ordered; hashes such as "4f2a9c" always classify as DirectionChanged.
func Classify(local, remote string) Direction {
	lv, err := semver.StrictNewVersion(local)
	if err != nil {
		return DirectionChanged
	}
	rv, err := semver.StrictNewVersion(remote)
	if err != nil {
		return DirectionChanged
	}
	switch lv.Compare(rv) {
	case -1:
		return DirectionUpgrade
	case 1:
		return DirectionDowngrade
	default:
		return DirectionChanged
	}
}
