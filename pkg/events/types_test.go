package events

import "testing"

func TestFailJobAddBugDedups(t *testing.T) {
	job := FailJob{Name: "gate-keystone-python26"}
	job.AddBug("123456")
	job.AddBug("123456")
	job.AddBug("789")
	if len(job.Bugs) != 2 {
		t.Fatalf("expected 2 unique bugs, got %v", job.Bugs)
	}
}

func TestFailEventAllBugsDedupsAcrossJobs(t *testing.T) {
	event := FailEvent{FailedJobs: []FailJob{
		{Name: "a", Bugs: []string{"1", "2"}},
		{Name: "b", Bugs: []string{"2", "3"}},
	}}
	all := event.AllBugs()
	if len(all) != 3 {
		t.Fatalf("expected 3 unique bug ids, got %v", all)
	}
}

func TestIsFullyClassified(t *testing.T) {
	classified := FailEvent{FailedJobs: []FailJob{{Name: "a", Bugs: []string{"1"}}}}
	if !classified.IsFullyClassified() {
		t.Error("expected fully classified event")
	}

	partial := FailEvent{FailedJobs: []FailJob{
		{Name: "a", Bugs: []string{"1"}},
		{Name: "b"},
	}}
	if partial.IsFullyClassified() {
		t.Error("expected partial event to not be fully classified")
	}
}
