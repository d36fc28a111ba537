package update

import (
	"regexp"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// ComparisonResult is the outcome of comparing an installed version with the
// latest published one.
type ComparisonResult int

const (
	// ComparisonFailed means one side was empty or not a dotted numeric version.
	ComparisonFailed ComparisonResult = iota
	UpToDate
	UpdateAvailable
	NewerThanLatest
)

// String returns the string representation
func (r ComparisonResult) String() string {
	switch r {
	case UpToDate:
		return "up-to-date"
	case UpdateAvailable:
		return "update-available"
	case NewerThanLatest:
		return "newer-than-latest"
	default:
		return "comparison-failed"
	}
}

// MarshalText lets reports render the result by name in json and yaml.
func (r ComparisonResult) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// maxComponents is the number of numeric components kept for ordering.
// Anything past the fourth is dropped.
const maxComponents = 4

var (
	versionWordPrefix = regexp.MustCompile(`(?i)^version\s*`)
	prereleaseSuffix  = regexp.MustCompile(`-\w+$`)
	dottedNumeric     = regexp.MustCompile(`^\d+(\.\d+){1,}$`)
)

// NormalizeVersion strips surrounding whitespace and a leading "version" or
// "v" prefix. It does not validate the result.
func NormalizeVersion(s string) string {
	s = strings.TrimSpace(s)
	s = versionWordPrefix.ReplaceAllString(s, "")
	if len(s) > 0 && (s[0] == 'v' || s[0] == 'V') {
		s = s[1:]
	}
	return strings.TrimSpace(s)
}

// ParseVersion turns a normalized version string into a comparable version.
// The pre-release suffix ("-rc1", "-beta") is discarded and versions with
// more than four components are truncated to four. At least two numeric
// components are required.
func ParseVersion(s string) (*goversion.Version, bool) {
	clean := prereleaseSuffix.ReplaceAllString(NormalizeVersion(s), "")
	if !dottedNumeric.MatchString(clean) {
		return nil, false
	}

	parts := strings.Split(clean, ".")
	if len(parts) > maxComponents {
		parts = parts[:maxComponents]
	}

	v, err := goversion.NewVersion(strings.Join(parts, "."))
	if err != nil {
		return nil, false
	}
	return v, true
}

// Compare orders current against latest. It never panics and never returns
// an error: anything unparsable yields ComparisonFailed.
//
// Missing trailing components count as zero, so "1.2" and "1.2.0" are equal.
func Compare(current, latest string) ComparisonResult {
	if strings.TrimSpace(current) == "" || strings.TrimSpace(latest) == "" {
		return ComparisonFailed
	}

	cur, ok := ParseVersion(current)
	if !ok {
		return ComparisonFailed
	}
	lat, ok := ParseVersion(latest)
	if !ok {
		return ComparisonFailed
	}

	switch cur.Compare(lat) {
	case -1:
		return UpdateAvailable
	case 1:
		return NewerThanLatest
	default:
		return UpToDate
	}
}
