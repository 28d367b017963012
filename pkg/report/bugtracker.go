package report

import "context"

// BugInfo is the subset of a bug tracker's bug record the Reporter's
// project filter needs.
type BugInfo struct {
	TargetProjects []string
}

// BugTracker is the external launchpad-style bug metadata lookup used
// only to decide which channels are interested in a bug's owning
// project(s). This repo ships no concrete implementation — callers
// either wire a real one or use NoBugTracker.
type BugTracker interface {
	Bug(ctx context.Context, id string) (BugInfo, error)
}

// NoBugTracker is a nil-safe no-op BugTracker: every bug looks
// project-less, so when no bug tracker is configured channel
// project-interest is satisfied only by the event's own project or by the
// "all" projects bucket.
type NoBugTracker struct{}

func (NoBugTracker) Bug(ctx context.Context, id string) (BugInfo, error) {
	return BugInfo{}, nil
}
