package phptool

import (
	"fmt"
	"strings"

	"github.com/tcnksm/go-latest"
)

// UpdateStatus is the outcome of an update check.
type UpdateStatus struct {
	Current  string
	Latest   string
	Outdated bool
}

// UpdateChecker compares a tool version with the latest published release.
type UpdateChecker struct {
	source latest.Source
}

// NewUpdateChecker checks against source. A nil source uses the WP-CLI
// GitHub tags.
func NewUpdateChecker(source latest.Source) *UpdateChecker {
	if source == nil {
		source = &latest.GithubTag{
			Owner:      "wp-cli",
			Repository: "wp-cli",
			FixVersionStrFunc: func(s string) string {
				return strings.TrimPrefix(s, "v")
			},
		}
	}
	return &UpdateChecker{source: source}
}

// Check reports whether current is older than the latest release.
func (u *UpdateChecker) Check(current string) (UpdateStatus, error) {
	current = strings.TrimPrefix(strings.TrimSpace(current), "v")
	res, err := latest.Check(u.source, current)
	if err != nil {
		return UpdateStatus{}, fmt.Errorf("update check failed: %w", err)
	}
	return UpdateStatus{Current: current, Latest: res.Current, Outdated: res.Outdated}, nil
}

// ParseWpCliVersion extracts the version from "wp --version" output, for
// example "WP-CLI 2.10.0".
func ParseWpCliVersion(output string) string {
	fields := strings.Fields(output)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimPrefix(fields[len(fields)-1], "v")
}
