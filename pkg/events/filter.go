package events

import (
	"regexp"
	"strings"
)

// FailureMarker is the literal substring that must appear in a CI
// account's comment before any job line is worth parsing.
const FailureMarker = "Build failed.  For information on how to proceed"

// jobLineRe matches one "- name url : FAILURE" comment line, optionally
// annotated "(non-voting)" before the FAILURE token.
var jobLineRe = regexp.MustCompile(`^- (\S+)\s+(\S+)\s*(\(non-voting\))?\s*:\s*FAILURE`)

// JobFilter carries the independently configurable per-line gates: both
// historical unit-test exclusion policies are exposed as separate,
// composable filters rather than one replacing the other.
type JobFilter struct {
	// ExcludeRegex drops lines whose job name matches it — the legacy
	// python2/pep8 unit-test exclusion.
	ExcludeRegex *regexp.Regexp
	// SkipNonVoting drops lines annotated "(non-voting)".
	SkipNonVoting bool
	// ExcludedJobsRegex drops lines matching the supplemented
	// EXCLUDED_JOBS noise filter (non-code teams' jobs).
	ExcludedJobsRegex *regexp.Regexp
	// GatingJobsRegex gates acceptance of the whole comment: it must
	// mention at least one job matching this to be accepted at all.
	GatingJobsRegex *regexp.Regexp
}

// parseJobs extracts FailJobs from a CI comment body.
func parseJobs(comment string, filter JobFilter) []FailJob {
	var jobs []FailJob
	for _, line := range strings.Split(comment, "\n") {
		m := jobLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name, url, nonVoting := m[1], m[2], m[3] != ""

		if nonVoting && filter.SkipNonVoting {
			continue
		}
		if filter.ExcludeRegex != nil && filter.ExcludeRegex.MatchString(name) {
			continue
		}
		if filter.ExcludedJobsRegex != nil && filter.ExcludedJobsRegex.MatchString(name) {
			continue
		}

		jobs = append(jobs, FailJob{
			Name:           name,
			URL:            url,
			ShortBuildUUID: shortBuildUUID(url),
		})
	}
	return jobs
}

// shortBuildUUID is the last 7 characters of the job URL's path.
func shortBuildUUID(url string) string {
	trimmed := strings.TrimRight(url, "/")
	if len(trimmed) <= 7 {
		return trimmed
	}
	return trimmed[len(trimmed)-7:]
}

// matchesAny reports whether re is nil (match-all) or matches s.
func matchesAny(re *regexp.Regexp, s string) bool {
	if re == nil {
		return true
	}
	return re.MatchString(s)
}
