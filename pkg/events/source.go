package events

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/andygrunwald/go-gerrit"

	"github.com/jihwankim/recheckwatch/pkg/logging"
)

// Config configures a Source.
//
// The event feed polls Gerrit's change-query REST API rather than
// holding open the older SSH "gerrit stream-events" connection, so it
// works against any Gerrit instance reachable over HTTP without a
// dedicated SSH key. The external contract — Next(ctx) (FailEvent,
// error), plus the filter pipeline below — does not depend on which
// transport feeds it.
type Config struct {
	Host         string
	User         string
	CIUsername   string
	PollInterval time.Duration
	QueuePattern *regexp.Regexp
	Filter       JobFilter
	ProjectRegex *regexp.Regexp
	// Query is the Gerrit change-search query terms, read from the
	// configured query file. Defaults to "is:open status:open" when
	// empty.
	Query []string
}

// defaultQueuePattern resolves FailEvent.Queue from the Zuul comment
// phrasing "...in the gate queue..." / "...in the check queue...". This
// default covers the common case and is overridable via
// Config.QueuePattern.
var defaultQueuePattern = regexp.MustCompile(`in the (gate|check) queue`)

// Source polls the Gerrit change-query API and yields FailEvents one at a
// time, applying the accept filter pipeline.
type Source struct {
	gc     *gerrit.Client
	cfg    Config
	log    *logging.Logger
	seen   map[string]bool
	buffer []FailEvent
}

// New constructs a Source that polls the configured Gerrit host. The
// client it builds is not authenticated: Config.User is not sent with
// its requests.
func New(cfg Config, httpClient *http.Client, log *logging.Logger) (*Source, error) {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.QueuePattern == nil {
		cfg.QueuePattern = defaultQueuePattern
	}
	if len(cfg.Query) == 0 {
		cfg.Query = []string{"is:open status:open"}
	}

	gc, err := gerrit.NewClient(cfg.Host, httpClient)
	if err != nil {
		return nil, fmt.Errorf("events: new gerrit client: %w", err)
	}

	return &Source{
		gc:   gc,
		cfg:  cfg,
		log:  log,
		seen: make(map[string]bool),
	}, nil
}

// Next blocks until the next accepted FailEvent is available or ctx is
// cancelled.
func (s *Source) Next(ctx context.Context) (FailEvent, error) {
	for {
		if len(s.buffer) > 0 {
			next := s.buffer[0]
			s.buffer = s.buffer[1:]
			return next, nil
		}

		if err := s.poll(ctx); err != nil {
			s.log.Warn("events: poll failed", "error", err)
		}

		if len(s.buffer) > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return FailEvent{}, ctx.Err()
		case <-time.After(s.cfg.PollInterval):
		}
	}
}

// poll queries Gerrit for changes with new CI comments and fills the
// internal buffer with every accepted FailEvent found.
func (s *Source) poll(ctx context.Context) error {
	opts := &gerrit.QueryChangeOptions{
		QueryOptions: gerrit.QueryOptions{
			Query: s.cfg.Query,
			Limit: 100,
		},
	}
	opts.AdditionalFields = []string{"MESSAGES", "CURRENT_REVISION"}

	changes, _, err := s.gc.Changes.QueryChanges(opts)
	if err != nil {
		return fmt.Errorf("query changes: %w", err)
	}
	if changes == nil {
		return nil
	}

	for _, change := range *changes {
		for _, msg := range change.Messages {
			key := fmt.Sprintf("%d:%s", change.Number, msg.ID)
			if s.seen[key] {
				continue
			}
			s.seen[key] = true

			event, ok := s.accept(change, msg)
			if !ok {
				continue
			}
			s.buffer = append(s.buffer, event)
		}
	}
	return nil
}

// accept runs one CI comment through the acceptance filter and, if it
// passes every stage, builds the resulting FailEvent.
func (s *Source) accept(change gerrit.ChangeInfo, msg gerrit.ChangeMessageInfo) (FailEvent, bool) {
	// The comment must come from the configured CI account.
	if msg.Author.Username != s.cfg.CIUsername {
		return FailEvent{}, false
	}
	// It must carry the build-failure marker substring.
	if !containsMarker(msg.Message) {
		return FailEvent{}, false
	}

	// It must mention at least one job matching the configured
	// gating-job regex.
	if !matchesAny(s.cfg.Filter.GatingJobsRegex, msg.Message) {
		return FailEvent{}, false
	}
	// The change's project must match the included-projects regex.
	if !matchesAny(s.cfg.ProjectRegex, change.Project) {
		return FailEvent{}, false
	}

	jobs := parseJobs(msg.Message, s.cfg.Filter)
	if len(jobs) == 0 {
		// Drop events with no parsed FailJobs.
		return FailEvent{}, false
	}

	rev := latestRevisionNumber(change)
	queue := "gate"
	if m := s.cfg.QueuePattern.FindStringSubmatch(msg.Message); m != nil {
		queue = m[1]
	}

	return FailEvent{
		Change:     change.Number,
		Rev:        rev,
		Project:    change.Project,
		URL:        fmt.Sprintf("https://%s/#/c/%d/%d", s.cfg.Host, change.Number, rev),
		Queue:      queue,
		Comment:    msg.Message,
		FailedJobs: jobs,
	}, true
}

func containsMarker(comment string) bool {
	return regexp.MustCompile(regexp.QuoteMeta(FailureMarker)).MatchString(comment)
}

// latestRevisionNumber resolves the patchset number of a change's current
// revision.
func latestRevisionNumber(change gerrit.ChangeInfo) int {
	if change.CurrentRevision == "" {
		return 1
	}
	if rev, ok := change.Revisions[change.CurrentRevision]; ok {
		return rev.Number
	}
	return 1
}
