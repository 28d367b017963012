// Package orchestrator drives the main loop: pull an event, wait for its
// logs to be ready, classify it, and report the result — continuing past
// per-event errors rather than exiting.
package orchestrator

import (
	"context"
	"errors"

	"github.com/jihwankim/recheckwatch/pkg/classify"
	"github.com/jihwankim/recheckwatch/pkg/events"
	"github.com/jihwankim/recheckwatch/pkg/logging"
	"github.com/jihwankim/recheckwatch/pkg/metrics"
	"github.com/jihwankim/recheckwatch/pkg/readiness"
	"github.com/jihwankim/recheckwatch/pkg/report"
)

// Source is the event feed the orchestrator drains; *events.Source
// satisfies this.
type Source interface {
	Next(ctx context.Context) (events.FailEvent, error)
}

// Gate is the readiness wait; *readiness.Gate satisfies this.
type Gate interface {
	Wait(ctx context.Context, event events.FailEvent) error
}

// Classifier matches one job's build against the catalog;
// *classify.Classifier satisfies this.
type Classifier interface {
	Classify(ctx context.Context, change, patch int, shortBuildUUID string, recent bool) ([]string, error)
}

// Reporter posts the outcome; *report.Reporter satisfies this.
type Reporter interface {
	LeaveReviewComment(ctx context.Context, event events.FailEvent) error
	Dispatch(ctx context.Context, event events.FailEvent)
	DispatchTimeout(event events.FailEvent, reason string)
}

// Orchestrator drives the fetch → wait → classify → report loop.
type Orchestrator struct {
	source     Source
	gate       Gate
	classifier Classifier
	reporter   Reporter
	metrics    *metrics.Metrics
	log        *logging.Logger
}

// New constructs an Orchestrator. metrics may be nil (metrics.Noop()).
func New(source Source, gate Gate, classifier Classifier, reporter Reporter, m *metrics.Metrics, log *logging.Logger) *Orchestrator {
	if m == nil {
		m = metrics.Noop()
	}
	return &Orchestrator{source: source, gate: gate, classifier: classifier, reporter: reporter, metrics: m, log: log}
}

// Run drains events until ctx is cancelled, processing each one in turn
// and logging-and-continuing on any per-event error.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		event, err := o.source.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			o.log.Warn("orchestrator: event source error, continuing", "error", err)
			continue
		}

		o.processEvent(ctx, event)

		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// processEvent runs one event through the readiness gate, classifier, and
// reporter, never letting a failure abort the loop.
func (o *Orchestrator) processEvent(ctx context.Context, event events.FailEvent) {
	log := o.log.WithFields(map[string]interface{}{
		"change":  event.Change,
		"rev":     event.Rev,
		"project": event.Project,
	})

	if err := o.gate.Wait(ctx, event); err != nil {
		var timedOut *readiness.ResultTimedOut
		if errors.As(err, &timedOut) {
			log.Warn("orchestrator: readiness timed out", "phase", timedOut.Phase)
			o.metrics.IncReadinessTimeout()
			o.reporter.DispatchTimeout(event, timedOut.Message())
			return
		}
		log.Warn("orchestrator: readiness gate error, skipping event", "error", err)
		return
	}

	change := event.Change
	patch := event.Rev

	for i := range event.FailedJobs {
		job := &event.FailedJobs[i]
		bugs, err := o.classifier.Classify(ctx, change, patch, job.ShortBuildUUID, true)
		if err != nil {
			log.Warn("orchestrator: classification error", "job", job.Name, "error", err)
			continue
		}
		for _, b := range bugs {
			job.AddBug(b)
		}
		o.metrics.ObserveClassification(job.Name, len(bugs))
	}

	o.reporter.Dispatch(ctx, event)

	// A review comment is always left, classified or not — only its
	// content differs (AllBugs empty gets the generic unclassified body).
	if err := o.reporter.LeaveReviewComment(ctx, event); err != nil {
		var rerr *report.ReporterError
		if errors.As(err, &rerr) {
			log.Error("orchestrator: failed to post review comment", "op", rerr.Op, "error", rerr.Err)
		} else {
			log.Error("orchestrator: failed to post review comment", "error", err)
		}
	}
}
