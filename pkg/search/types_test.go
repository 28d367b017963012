package search

import (
	"testing"
	"time"
)

func TestHitFieldTopLevel(t *testing.T) {
	h := Hit{Source: map[string]any{"project": "openstack/keystone"}}
	if h.Project() != "openstack/keystone" {
		t.Errorf("Project() = %q", h.Project())
	}
}

func TestHitFieldAtPrefixed(t *testing.T) {
	h := Hit{Source: map[string]any{"@build_status": "FAILURE"}}
	if got := h.FieldString("build_status"); got != "FAILURE" {
		t.Errorf("FieldString(build_status) = %q, want FAILURE", got)
	}
}

func TestHitFieldNestedFields(t *testing.T) {
	h := Hit{Source: map[string]any{
		"fields": map[string]any{"build_uuid": "abcdefg"},
	}}
	if got := h.BuildUUID(); got != "abcdefg" {
		t.Errorf("BuildUUID() = %q, want abcdefg", got)
	}
}

func TestHitFieldCollapsesSingleElementArray(t *testing.T) {
	h := Hit{Source: map[string]any{"filename": []any{"console.html"}}}
	if got := h.Filename(); got != "console.html" {
		t.Errorf("Filename() = %q, want console.html", got)
	}
}

func TestHitFieldMissingReturnsZeroValue(t *testing.T) {
	h := Hit{Source: map[string]any{}}
	if got := h.Message(); got != "" {
		t.Errorf("Message() = %q, want empty string", got)
	}
}

func TestResultSetFilenames(t *testing.T) {
	rs := &ResultSet{Terms: []Term{{Term: "console.html", Count: 2}, {Term: "syslog.txt", Count: 1}}}
	files := rs.Filenames()
	if !files["console.html"] || !files["syslog.txt"] {
		t.Errorf("unexpected filenames set: %+v", files)
	}
}

func TestBuildFacetsGroupsByFieldValue(t *testing.T) {
	rs := &ResultSet{Hits: []Hit{
		{Source: map[string]any{"project": "a"}},
		{Source: map[string]any{"project": "a"}},
		{Source: map[string]any{"project": "b"}},
	}}
	root := BuildFacets(rs, []string{"project"}, 0)
	if len(root.Children) != 2 {
		t.Fatalf("expected 2 project buckets, got %d", len(root.Children))
	}
	if root.Children["a"].Leaf.Len() != 2 {
		t.Errorf("bucket 'a' has %d hits, want 2", root.Children["a"].Leaf.Len())
	}
}

func TestBuildFacetsTruncatesTimestamp(t *testing.T) {
	t1, _ := time.Parse(time.RFC3339, "2024-01-01T10:12:00Z")
	t2, _ := time.Parse(time.RFC3339, "2024-01-01T10:47:00Z")
	rs := &ResultSet{Hits: []Hit{
		{Source: map[string]any{"timestamp": t1.Format(time.RFC3339)}},
		{Source: map[string]any{"timestamp": t2.Format(time.RFC3339)}},
	}}
	root := BuildFacets(rs, []string{"timestamp"}, time.Hour)
	if len(root.Children) != 1 {
		t.Fatalf("expected both hits to bucket into the same hour, got %d buckets", len(root.Children))
	}
}
