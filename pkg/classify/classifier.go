// Package classify runs, for a ready FailEvent, every catalog query
// restricted to one job's build and collects the matched bug ids.
package classify

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jihwankim/recheckwatch/pkg/catalog"
	"github.com/jihwankim/recheckwatch/pkg/logging"
	"github.com/jihwankim/recheckwatch/pkg/search"
)

// TestResultDB is the external collaborator behind a catalog entry's
// optional filters.test_ids check: it reports which test ids actually
// failed in a given build, so a bug id is only recorded when the catalog
// entry's claimed test ids are among them. No concrete driver ships in
// this repo — callers either supply a real implementation or use
// NoTestResultDB.
type TestResultDB interface {
	FailingTestIDs(ctx context.Context, buildUUID string) ([]string, error)
}

// NoTestResultDB is a nil-safe no-op TestResultDB: every filters.test_ids
// check it backs always fails, so entries carrying that filter are simply
// never matched while it is in use.
type NoTestResultDB struct{}

func (NoTestResultDB) FailingTestIDs(ctx context.Context, buildUUID string) ([]string, error) {
	return nil, nil
}

// Loader reloads the query catalog; *catalog.Loader satisfies this.
type Loader interface {
	Load() ([]catalog.Query, error)
}

// Searcher is the log-index query surface the classifier needs;
// *search.Client satisfies this.
type Searcher interface {
	Search(ctx context.Context, q search.Query, size int, recent bool, days *int) (*search.ResultSet, error)
}

// Classifier runs the bug catalog against the log-index backend.
type Classifier struct {
	catalog Loader
	search  Searcher
	testDB  TestResultDB
	log     *logging.Logger
}

// New constructs a Classifier. testDB may be NoTestResultDB{} when no
// test-result database is configured.
func New(catalogLoader Loader, searchClient Searcher, testDB TestResultDB, log *logging.Logger) *Classifier {
	if testDB == nil {
		testDB = NoTestResultDB{}
	}
	return &Classifier{catalog: catalogLoader, search: searchClient, testDB: testDB, log: log}
}

// Classify runs the catalog against one job's build and returns the
// (possibly empty) list of matched bug ids, in catalog order with no
// ranking. The catalog is reloaded fresh on every call.
func (c *Classifier) Classify(ctx context.Context, change, patch int, shortBuildUUID string, recent bool) ([]string, error) {
	queries, err := c.catalog.Load()
	if err != nil {
		return nil, fmt.Errorf("classify: load catalog: %w", err)
	}

	changeStr := strconv.Itoa(change)
	patchStr := strconv.Itoa(patch)

	var matched []string
	for _, q := range queries {
		ok, err := c.matches(ctx, q, changeStr, patchStr, shortBuildUUID, recent)
		if err != nil {
			// A single catalog entry's failure is logged and skipped;
			// classification does not abort.
			c.log.Warn("classify: entry failed, skipping", "bug_id", q.BugID, "error", err)
			continue
		}
		if ok {
			matched = append(matched, q.BugID)
		}
	}
	return matched, nil
}

func (c *Classifier) matches(ctx context.Context, q catalog.Query, change, patch, shortBuildUUID string, recent bool) (bool, error) {
	query := search.SinglePatch(q.RawQuery, change, patch, shortBuildUUID)
	rs, err := c.search.Search(ctx, query, 10, recent, nil)
	if err != nil {
		return false, err
	}
	if rs.Len() == 0 {
		return false, nil
	}

	if len(q.Filters.TestIDs) == 0 {
		return true, nil
	}

	// Confirm at least one of the entry's test ids failed in the
	// referenced build before recording the bug id.
	failing, err := c.testDB.FailingTestIDs(ctx, shortBuildUUID)
	if err != nil {
		return false, fmt.Errorf("test result db lookup: %w", err)
	}
	return anyMatch(q.Filters.TestIDs, failing), nil
}

func anyMatch(want, have []string) bool {
	haveSet := make(map[string]bool, len(have))
	for _, h := range have {
		haveSet[h] = true
	}
	for _, w := range want {
		if haveSet[w] {
			return true
		}
	}
	return false
}
