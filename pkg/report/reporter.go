// Package report posts a review comment back to the change and
// dispatches notifications to subscribed chat channels.
package report

import (
	"context"
	"fmt"

	"github.com/andygrunwald/go-gerrit"

	"github.com/jihwankim/recheckwatch/pkg/channels"
	"github.com/jihwankim/recheckwatch/pkg/events"
	"github.com/jihwankim/recheckwatch/pkg/logging"
)

// gerritClient is the subset of go-gerrit's API the Reporter needs.
type gerritClient interface {
	SetReview(changeID, revisionID string, input *gerrit.ReviewInput) (*gerrit.ReviewResult, *gerrit.Response, error)
}

// Config controls dispatch behavior.
type Config struct {
	// NoComment suppresses the review-comment post; the message is still
	// composed and logged.
	NoComment bool
	// NoChat suppresses chat dispatch entirely.
	NoChat bool
	// ReportCheckQueue controls whether check-queue (as opposed to
	// gate-queue) events reach chat channels at all. Defaults to false
	// (suppress).
	ReportCheckQueue bool
}

// ReporterError wraps a failure to post a review comment or dispatch a
// chat message.
type ReporterError struct {
	Op  string
	Err error
}

func (e *ReporterError) Error() string { return fmt.Sprintf("report: %s: %v", e.Op, e.Err) }
func (e *ReporterError) Unwrap() error { return e.Err }

// Reporter posts review comments and dispatches chat notifications for
// classified FailEvents.
type Reporter struct {
	gerrit   gerritClient
	channels *channels.Config
	chat     *ChatTransport
	bugs     BugTracker
	cfg      Config
	log      *logging.Logger
}

// New constructs a Reporter. chat and bugs may be nil: a nil chat transport
// only disables dispatch (as does cfg.NoChat), and a nil bugs tracker is
// replaced with NoBugTracker.
func New(gc gerritClient, chConfig *channels.Config, chat *ChatTransport, bugs BugTracker, cfg Config, log *logging.Logger) *Reporter {
	if bugs == nil {
		bugs = NoBugTracker{}
	}
	return &Reporter{gerrit: gc, channels: chConfig, chat: chat, bugs: bugs, cfg: cfg, log: log}
}

// LeaveReviewComment posts the review comment for event. A
// NoComment-configured Reporter composes and logs the message without
// actually posting.
func (r *Reporter) LeaveReviewComment(ctx context.Context, event events.FailEvent) error {
	msg := ReviewComment(event)

	if r.cfg.NoComment {
		r.log.Info("report: nocomment mode, suppressing post", "change", event.Change, "message", msg)
		return nil
	}

	changeID := fmt.Sprintf("%s~%d", event.Project, event.Change)
	revisionID := "current"
	input := &gerrit.ReviewInput{Message: msg}

	if _, _, err := r.gerrit.SetReview(changeID, revisionID, input); err != nil {
		return &ReporterError{Op: "leave review comment", Err: err}
	}
	return nil
}

// Dispatch sends the appropriate chat notification to every subscribed
// channel.
func (r *Reporter) Dispatch(ctx context.Context, event events.FailEvent) {
	if r.cfg.NoChat || r.chat == nil || r.channels == nil {
		return
	}
	if event.Queue == "check" && !r.cfg.ReportCheckQueue {
		r.log.Debug("report: suppressing check-queue notification", "change", event.Change)
		return
	}

	kind := channels.EventNegative
	if len(event.AllBugs()) > 0 {
		kind = channels.EventPositive
	}
	msg := ChatMessage(event)

	for name := range r.channels.Channels {
		if !r.channels.Subscribes(name, kind) {
			continue
		}
		if !r.interestedInEvent(ctx, name, event) {
			continue
		}
		r.chat.Send(name, msg)
	}
}

// DispatchTimeout notifies negative-subscribed channels that the
// readiness gate gave up on event.
func (r *Reporter) DispatchTimeout(event events.FailEvent, reason string) {
	if r.cfg.NoChat || r.chat == nil || r.channels == nil {
		return
	}
	msg := TimeoutMessage(event, reason)
	for name := range r.channels.Channels {
		if !r.channels.Subscribes(name, channels.EventNegative) {
			continue
		}
		r.chat.Send(name, msg)
	}
}

// interestedInEvent reports whether channel should see event, checking
// project interest both directly (event.Project) and, for classified
// events, via each matched bug's owning project(s) from the bug tracker.
func (r *Reporter) interestedInEvent(ctx context.Context, channel string, event events.FailEvent) bool {
	if r.channels.InterestedIn(channel, event.Project) {
		return true
	}
	for _, bugID := range event.AllBugs() {
		info, err := r.bugs.Bug(ctx, bugID)
		if err != nil {
			r.log.Debug("report: bug tracker lookup failed", "bug_id", bugID, "error", err)
			continue
		}
		for _, p := range info.TargetProjects {
			if r.channels.InterestedIn(channel, p) {
				return true
			}
		}
	}
	return false
}
