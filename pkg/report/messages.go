package report

import (
	"fmt"
	"strings"

	"github.com/jihwankim/recheckwatch/pkg/events"
)

const unclassifiedHelpURL = "https://wiki.openstack.org/wiki/GerritJenkinsGithub#Test_Failures"

// jobSummary renders one job's outcome as "job_name: bug_urls" or
// "job_name: unrecognized error" when the job matched nothing.
func jobSummary(job events.FailJob) string {
	if len(job.Bugs) == 0 {
		return fmt.Sprintf("%s: unrecognized error", job.Name)
	}
	urls := make([]string, len(job.Bugs))
	for i, id := range job.Bugs {
		urls[i] = fmt.Sprintf("https://bugs.launchpad.net/bugs/%s", id)
	}
	return fmt.Sprintf("%s: %s", job.Name, strings.Join(urls, ", "))
}

func jobSummaries(jobs []events.FailJob) string {
	parts := make([]string, len(jobs))
	for i, j := range jobs {
		parts[i] = jobSummary(j)
	}
	return strings.Join(parts, ", ")
}

// ChatMessage renders the notification posted to subscribed chat
// channels. A fully unclassified event gets the shorter "unrecognized
// error" form; otherwise every job's outcome is listed.
func ChatMessage(event events.FailEvent) string {
	if len(event.AllBugs()) == 0 {
		return fmt.Sprintf("%s change: %s failed with an unrecognized error", event.Project, event.URL)
	}
	return fmt.Sprintf("%s change: %s failed because of: %s", event.Project, event.URL, jobSummaries(event.FailedJobs))
}

// ReviewComment renders the review comment body posted back to the
// change. Ends with manual recheck/reverify instructions, since this
// daemon never triggers a recheck/reverify itself.
func ReviewComment(event events.FailEvent) string {
	var b strings.Builder

	if len(event.AllBugs()) == 0 {
		fmt.Fprintf(&b, "I noticed %s failed, but wasn't able to classify the failure as a known issue.\n\n", event.Project)
		fmt.Fprintf(&b, "Please see %s for help figuring out what happened, and consider filing a new bug if this looks like a new issue.\n\n", unclassifiedHelpURL)
	} else {
		fmt.Fprintf(&b, "I noticed %s failed, this could be due to:\n\n", event.Project)
		for _, job := range event.FailedJobs {
			fmt.Fprintf(&b, "- %s\n", jobSummary(job))
		}
		b.WriteString("\n")
	}

	b.WriteString("We don't automatically recheck or reverify, so please consider doing " +
		"that manually if someone hasn't already.\n\n" +
		"For a change that is not yet approved, leave a comment with just the text:\n\n" +
		"    recheck\n\n" +
		"For a change that has been approved but failed to merge, leave a comment like this:\n\n" +
		"    reverify\n")

	return b.String()
}

// TimeoutMessage is posted to negative-subscribed channels when the
// Readiness Gate gives up on an event.
func TimeoutMessage(event events.FailEvent, reason string) string {
	return fmt.Sprintf("%s change: %s — %s", event.Project, event.URL, reason)
}
