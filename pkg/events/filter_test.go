package events

import (
	"regexp"
	"testing"
)

const sampleComment = `Build failed.  For information on how to proceed, see http://wiki.openstack.org/GerritJenkinsGithub

- gate-keystone-python26 http://logs.openstack.org/12/34512/1/check/gate-keystone-python26/abcdefg : FAILURE in 3m 12s
- gate-keystone-python27 http://logs.openstack.org/12/34512/1/check/gate-keystone-python27/1234567 (non-voting) : FAILURE in 2m 55s
- gate-keystone-docs http://logs.openstack.org/12/34512/1/check/gate-keystone-docs/abc0001 : SUCCESS in 1m 00s
`

func TestParseJobsExtractsFailuresOnly(t *testing.T) {
	jobs := parseJobs(sampleComment, JobFilter{})
	if len(jobs) != 2 {
		t.Fatalf("expected 2 failed jobs, got %d: %+v", len(jobs), jobs)
	}
	if jobs[0].Name != "gate-keystone-python26" {
		t.Errorf("job 0 name = %q", jobs[0].Name)
	}
	if jobs[0].ShortBuildUUID != "abcdefg" {
		t.Errorf("job 0 short build uuid = %q", jobs[0].ShortBuildUUID)
	}
}

func TestParseJobsSkipsNonVotingWhenConfigured(t *testing.T) {
	jobs := parseJobs(sampleComment, JobFilter{SkipNonVoting: true})
	for _, j := range jobs {
		if j.Name == "gate-keystone-python27" {
			t.Fatalf("non-voting job should have been skipped: %+v", jobs)
		}
	}
}

func TestParseJobsAppliesExcludedJobsRegex(t *testing.T) {
	jobs := parseJobs(sampleComment, JobFilter{ExcludedJobsRegex: regexp.MustCompile("python26")})
	for _, j := range jobs {
		if j.Name == "gate-keystone-python26" {
			t.Fatalf("excluded job should have been dropped: %+v", jobs)
		}
	}
}

func TestShortBuildUUID(t *testing.T) {
	cases := map[string]string{
		"http://logs.openstack.org/12/34512/1/check/job/abcdefg":  "abcdefg",
		"http://logs.openstack.org/12/34512/1/check/job/abcdefg/": "abcdefg",
		"abc": "abc",
	}
	for url, want := range cases {
		if got := shortBuildUUID(url); got != want {
			t.Errorf("shortBuildUUID(%q) = %q, want %q", url, got, want)
		}
	}
}

func TestMatchesAnyNilIsMatchAll(t *testing.T) {
	if !matchesAny(nil, "anything") {
		t.Error("nil regex should match everything")
	}
}
