package channels_test

import (
	"testing"

	"github.com/jihwankim/recheckwatch/pkg/channels"
)

const sampleConfig = `
messages:
  greeting: "hello {{.Name}}"
channels:
  openstack-keystone:
    events:
      - positive
      - negative
    projects:
      - openstack/keystone
  openstack-infra:
    events:
      - negative
    projects:
      - all
`

func TestLoadNormalizesChannelNames(t *testing.T) {
	cfg, err := channels.Load([]byte(sampleConfig))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := cfg.Channels["#openstack-keystone"]; !ok {
		t.Fatalf("expected normalized channel name, got keys: %v", keys(cfg.Channels))
	}
}

func TestSubscribes(t *testing.T) {
	cfg, err := channels.Load([]byte(sampleConfig))
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Subscribes("openstack-keystone", channels.EventPositive) {
		t.Error("expected #openstack-keystone to subscribe to positive events")
	}
	if cfg.Subscribes("openstack-infra", channels.EventPositive) {
		t.Error("#openstack-infra should not subscribe to positive events")
	}
}

func TestInterestedIn(t *testing.T) {
	cfg, err := channels.Load([]byte(sampleConfig))
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.InterestedIn("openstack-keystone", "openstack/keystone") {
		t.Error("expected project-specific interest to hold")
	}
	if cfg.InterestedIn("openstack-keystone", "openstack/nova") {
		t.Error("channel scoped to keystone should not be interested in nova")
	}
	if !cfg.InterestedIn("openstack-infra", "openstack/nova") {
		t.Error("channel subscribed to 'all' should be interested in every project")
	}
}

func TestMessageRendersTemplate(t *testing.T) {
	cfg, err := channels.Load([]byte(sampleConfig))
	if err != nil {
		t.Fatal(err)
	}
	got, err := cfg.Message("greeting", struct{ Name string }{"world"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "hello world" {
		t.Errorf("Message() = %q, want %q", got, "hello world")
	}
}

func keys(m map[string]channels.Channel) []string {
	var ks []string
	for k := range m {
		ks = append(ks, k)
	}
	return ks
}
