package catalog_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jihwankim/recheckwatch/pkg/catalog"
	"github.com/jihwankim/recheckwatch/pkg/logging"
)

func writeQuery(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDerivesBugIDFromFilename(t *testing.T) {
	dir := t.TempDir()
	writeQuery(t, dir, "1234567.yaml", "query: 'message:\"boom\"'\n")

	queries, err := catalog.New(dir, logging.New(logging.Config{})).Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(queries) != 1 {
		t.Fatalf("expected 1 query, got %d", len(queries))
	}
	if queries[0].BugID != "1234567" {
		t.Errorf("bug id = %q, want 1234567", queries[0].BugID)
	}
}

func TestLoadAppendsVotingClauseUnlessNonvoting(t *testing.T) {
	dir := t.TempDir()
	writeQuery(t, dir, "100.yaml", "query: 'message:\"a\"'\n")
	writeQuery(t, dir, "200.yaml", "query: 'message:\"b\"'\nallow-nonvoting: true\n")

	queries, err := catalog.New(dir, logging.New(logging.Config{})).Load()
	if err != nil {
		t.Fatal(err)
	}

	byID := map[string]catalog.Query{}
	for _, q := range queries {
		byID[q.BugID] = q
	}

	if got := byID["100"].RawQuery; got != `message:"a" AND voting:1` {
		t.Errorf("voting entry query = %q", got)
	}
	if got := byID["200"].RawQuery; got != `message:"b"` {
		t.Errorf("non-voting entry query should be untouched, got %q", got)
	}
}

func TestLoadIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeQuery(t, dir, "1.yaml", "query: 'a'\n")

	l := catalog.New(dir, logging.New(logging.Config{}))
	first, err := l.Load()
	if err != nil {
		t.Fatal(err)
	}
	second, err := l.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) || first[0].RawQuery != second[0].RawQuery {
		t.Errorf("repeated Load() produced different results: %+v vs %+v", first, second)
	}
}

func TestLoadUnreadableDirectory(t *testing.T) {
	l := catalog.New(filepath.Join(t.TempDir(), "does-not-exist"), logging.New(logging.Config{}))
	if _, err := l.Load(); err == nil {
		t.Fatal("expected an error for an unreadable directory")
	}
}
