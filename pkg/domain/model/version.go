package model

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/analogj/capsulecd/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// BumpVersion increments exactly one segment of a semantic version.
// major zeroes minor and patch, minor zeroes patch, anything else bumps patch.
func BumpVersion(current string, bump types.BumpType) (string, error) {
	v, err := semver.NewVersion(strings.TrimSpace(current))
	if err != nil {
		return "", goerr.Wrap(err, "invalid semantic version", goerr.V("version", current))
	}

	var next semver.Version
	switch bump {
	case types.BumpMajor:
		next = v.IncMajor()
	case types.BumpMinor:
		next = v.IncMinor()
	default:
		next = v.IncPatch()
	}
	return next.String(), nil
}
