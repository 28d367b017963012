// Package readiness blocks until the log-index backend has fully absorbed
// a failed build's artifacts, or times out.
package readiness

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/jihwankim/recheckwatch/pkg/events"
	"github.com/jihwankim/recheckwatch/pkg/logging"
	"github.com/jihwankim/recheckwatch/pkg/search"
)

// RequiredFiles is the base per-job requirement: the console log must be
// indexed before anything else is checked.
var RequiredFiles = []string{"console.html"}

// IntegrationRequiredFiles is the canonical service-log filename set
// required for jobs matching the integration-test naming.
var IntegrationRequiredFiles = []string{
	"console.html",
	"logs/screen-n-api.txt",
	"logs/screen-n-cpu.txt",
	"logs/screen-n-sch.txt",
	"logs/screen-c-api.txt",
	"logs/screen-c-vol.txt",
	"logs/syslog.txt",
}

// Config overrides the gate's retry/timeout defaults. Zero values fall
// back to the documented defaults: 20 retries, 40s between attempts, 10s
// grace sleep once both phases are satisfied.
type Config struct {
	Retries    int
	SleepTime  time.Duration
	GraceSleep time.Duration
	// IntegrationRegex selects jobs that additionally require
	// IntegrationRequiredFiles.
	IntegrationRegex *regexp.Regexp
}

func (c Config) withDefaults() Config {
	if c.Retries == 0 {
		c.Retries = 20
	}
	if c.SleepTime == 0 {
		c.SleepTime = 40 * time.Second
	}
	if c.GraceSleep == 0 {
		c.GraceSleep = 10 * time.Second
	}
	return c
}

// Searcher is the log-index query surface the gate needs; *search.Client
// satisfies this.
type Searcher interface {
	Search(ctx context.Context, q search.Query, size int, recent bool, days *int) (*search.ResultSet, error)
}

// Gate implements the two-phase wait: console log present, then every
// required file indexed.
type Gate struct {
	search Searcher
	cfg    Config
	log    *logging.Logger
}

// New constructs a Gate over the given search client.
func New(client Searcher, cfg Config, log *logging.Logger) *Gate {
	return &Gate{search: client, cfg: cfg.withDefaults(), log: log}
}

// ResultTimedOut reports that a readiness phase exhausted its retries.
// The orchestrator surfaces this to negative-subscribed channels and
// continues with the next event.
type ResultTimedOut struct {
	Change int
	Rev    int
	Phase  string
}

func (e *ResultTimedOut) Error() string {
	return fmt.Sprintf("readiness: change %d/%d timed out waiting for %s", e.Change, e.Rev, e.Phase)
}

// Message is the human-readable notice posted to negative-subscribed
// channels on timeout.
func (e *ResultTimedOut) Message() string {
	return fmt.Sprintf("change %d patchset %d timed out waiting for log indexing (%s)",
		e.Change, e.Rev, e.Phase)
}

// Wait blocks until every job in event has its log artifacts fully
// indexed, or returns a *ResultTimedOut.
func (g *Gate) Wait(ctx context.Context, event events.FailEvent) error {
	change := strconv.Itoa(event.Change)
	rev := strconv.Itoa(event.Rev)

	for _, job := range event.FailedJobs {
		if err := g.waitConsolePresent(ctx, change, rev, job); err != nil {
			return err
		}
	}
	for _, job := range event.FailedJobs {
		if err := g.waitFilesPresent(ctx, change, rev, job); err != nil {
			return err
		}
	}

	g.log.Debug("readiness satisfied, applying grace sleep",
		"change", event.Change, "rev", event.Rev, "grace", g.cfg.GraceSleep)
	return interruptibleSleep(ctx, g.cfg.GraceSleep)
}

// waitConsolePresent is Phase 1: poll until the job's console-log
// completion marker is indexed.
func (g *Gate) waitConsolePresent(ctx context.Context, change, rev string, job events.FailJob) error {
	q := search.Readiness(change, rev, job.Name, job.ShortBuildUUID)

	for attempt := 0; attempt < g.cfg.Retries; attempt++ {
		rs, err := g.search.Search(ctx, q, 10, true, nil)
		if err == nil && rs.Len() > 0 {
			return nil
		}
		if err != nil {
			// A transient backend error is treated the same as "not
			// yet ready" for this attempt.
			g.log.Debug("readiness phase 1: search error, treating as not ready", "error", err)
		}
		if err := interruptibleSleep(ctx, g.cfg.SleepTime); err != nil {
			return err
		}
	}

	return &ResultTimedOut{Change: atoi(change), Rev: atoi(rev), Phase: "console log indexing for " + job.Name}
}

// waitFilesPresent is Phase 2: poll until the job's required log files
// are all indexed.
func (g *Gate) waitFilesPresent(ctx context.Context, change, rev string, job events.FailJob) error {
	q := search.FilesReady(change, rev, job.Name, job.ShortBuildUUID)
	required := g.requiredFilesFor(job)

	for attempt := 0; attempt < g.cfg.Retries; attempt++ {
		rs, err := g.search.Search(ctx, q, 80, true, nil)
		if err == nil && subsetOf(required, rs.Filenames()) {
			return nil
		}
		if err != nil {
			g.log.Debug("readiness phase 2: search error, treating as not ready", "error", err)
		}
		if err := interruptibleSleep(ctx, g.cfg.SleepTime); err != nil {
			return err
		}
	}

	return &ResultTimedOut{Change: atoi(change), Rev: atoi(rev), Phase: "required files for " + job.Name}
}

func (g *Gate) requiredFilesFor(job events.FailJob) []string {
	if g.cfg.IntegrationRegex != nil && g.cfg.IntegrationRegex.MatchString(job.Name) {
		return IntegrationRequiredFiles
	}
	return RequiredFiles
}

func subsetOf(required []string, present map[string]bool) bool {
	for _, f := range required {
		if !present[f] {
			return false
		}
	}
	return true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// interruptibleSleep sleeps for d, returning early with ctx.Err() on
// cancellation.
func interruptibleSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
