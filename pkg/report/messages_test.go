package report_test

import (
	"strings"
	"testing"

	"github.com/jihwankim/recheckwatch/pkg/events"
	"github.com/jihwankim/recheckwatch/pkg/report"
)

func sampleEvent() events.FailEvent {
	job1 := events.FailJob{Name: "gate-keystone-python26"}
	job1.AddBug("123456")
	job2 := events.FailJob{Name: "gate-keystone-python27"}

	return events.FailEvent{
		Change:     64750,
		Rev:        1,
		Project:    "openstack/keystone",
		URL:        "https://review.openstack.org/64750",
		Queue:      "gate",
		FailedJobs: []events.FailJob{job1, job2},
	}
}

func TestChatMessageClassified(t *testing.T) {
	msg := report.ChatMessage(sampleEvent())
	want := "openstack/keystone change: https://review.openstack.org/64750 failed because of: " +
		"gate-keystone-python26: https://bugs.launchpad.net/bugs/123456, gate-keystone-python27: unrecognized error"
	if msg != want {
		t.Errorf("ChatMessage() =\n%q\nwant\n%q", msg, want)
	}
}

func TestChatMessageUnclassified(t *testing.T) {
	event := sampleEvent()
	event.FailedJobs[0].Bugs = nil
	msg := report.ChatMessage(event)
	if !strings.Contains(msg, "unrecognized error") {
		t.Errorf("expected unrecognized-error phrasing, got %q", msg)
	}
}

func TestReviewCommentListsEachJob(t *testing.T) {
	body := report.ReviewComment(sampleEvent())
	if !strings.Contains(body, "gate-keystone-python26: https://bugs.launchpad.net/bugs/123456") {
		t.Errorf("review comment missing classified job line: %q", body)
	}
	if !strings.Contains(body, "gate-keystone-python27: unrecognized error") {
		t.Errorf("review comment missing unclassified job line: %q", body)
	}
	if !strings.Contains(body, "recheck") || !strings.Contains(body, "reverify") {
		t.Errorf("review comment missing retry instructions: %q", body)
	}
}

func TestReviewCommentFallsBackToUnclassifiedNotice(t *testing.T) {
	event := sampleEvent()
	event.FailedJobs[0].Bugs = nil
	body := report.ReviewComment(event)
	if !strings.Contains(body, "wiki.openstack.org") {
		t.Errorf("expected unclassified fallback link, got %q", body)
	}
}
