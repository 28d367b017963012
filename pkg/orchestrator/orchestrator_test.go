package orchestrator_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/jihwankim/recheckwatch/pkg/events"
	"github.com/jihwankim/recheckwatch/pkg/logging"
	"github.com/jihwankim/recheckwatch/pkg/orchestrator"
	"github.com/jihwankim/recheckwatch/pkg/readiness"
)

type fakeSource struct {
	events []events.FailEvent
	i      int
}

func (s *fakeSource) Next(ctx context.Context) (events.FailEvent, error) {
	if s.i >= len(s.events) {
		return events.FailEvent{}, context.Canceled
	}
	e := s.events[s.i]
	s.i++
	return e, nil
}

type fakeGate struct {
	err error
}

func (g *fakeGate) Wait(ctx context.Context, event events.FailEvent) error { return g.err }

type fakeClassifier struct {
	bugs []string
}

func (c *fakeClassifier) Classify(ctx context.Context, change, patch int, shortBuildUUID string, recent bool) ([]string, error) {
	return c.bugs, nil
}

type fakeReporter struct {
	dispatched        int
	reviewed          int
	timeoutDispatched int
}

func (r *fakeReporter) LeaveReviewComment(ctx context.Context, event events.FailEvent) error {
	r.reviewed++
	return nil
}
func (r *fakeReporter) Dispatch(ctx context.Context, event events.FailEvent) { r.dispatched++ }
func (r *fakeReporter) DispatchTimeout(event events.FailEvent, reason string) {
	r.timeoutDispatched++
}

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Output: io.Discard})
}

func TestRunClassifiesAndReportsEveryEvent(t *testing.T) {
	source := &fakeSource{events: []events.FailEvent{
		{Change: 1, FailedJobs: []events.FailJob{{Name: "job-a"}}},
		{Change: 2, FailedJobs: []events.FailJob{{Name: "job-b"}}},
	}}
	gate := &fakeGate{}
	classifier := &fakeClassifier{bugs: []string{"123456"}}
	reporter := &fakeReporter{}

	orch := orchestrator.New(source, gate, classifier, reporter, nil, testLogger())
	err := orch.Run(context.Background())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled once the source is drained, got %v", err)
	}

	if reporter.dispatched != 2 || reporter.reviewed != 2 {
		t.Errorf("expected 2 dispatches and 2 review comments, got dispatched=%d reviewed=%d",
			reporter.dispatched, reporter.reviewed)
	}
}

func TestRunDispatchesTimeoutOnReadinessFailure(t *testing.T) {
	source := &fakeSource{events: []events.FailEvent{{Change: 1}}}
	gate := &fakeGate{err: &readiness.ResultTimedOut{Change: 1, Rev: 1, Phase: "console log indexing"}}
	classifier := &fakeClassifier{}
	reporter := &fakeReporter{}

	orch := orchestrator.New(source, gate, classifier, reporter, nil, testLogger())
	_ = orch.Run(context.Background())

	if reporter.timeoutDispatched != 1 {
		t.Errorf("expected 1 timeout dispatch, got %d", reporter.timeoutDispatched)
	}
	if reporter.reviewed != 0 {
		t.Errorf("a timed-out event should not get a review comment, got %d", reporter.reviewed)
	}
}
