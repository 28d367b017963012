// Package channels parses channel subscription data and answers whether
// a channel should see a given message, plus the named message templates
// the Reporter consumes.
package channels

import (
	"bytes"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// EventKind is a channel subscription category.
type EventKind string

const (
	EventPositive EventKind = "positive"
	EventNegative EventKind = "negative"
)

// ProjectAll is the sentinel project value meaning "every project".
const ProjectAll = "all"

// Channel is one channel's subscription rule.
type Channel struct {
	Events   map[EventKind]bool
	Projects map[string]bool
}

// file is the on-disk shape of the channel-config document.
type file struct {
	Messages map[string]string `yaml:"messages"`
	Channels map[string]struct {
		Events   []string `yaml:"events"`
		Projects []string `yaml:"projects"`
	} `yaml:"channels"`
}

// Config is the loaded, normalized channel configuration with its
// inverted indices built.
type Config struct {
	Channels map[string]Channel

	// Inverted indices for fast lookup.
	byEvent   map[EventKind]map[string]bool
	byProject map[string]map[string]bool

	messages map[string]*template.Template
}

// Load parses a channel-config YAML document and builds the
// channels/events/projects inverted indices, normalizing channel names to
// carry a leading '#'.
func Load(data []byte) (*Config, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return fromFile(f)
}

func fromFile(f file) (*Config, error) {
	cfg := &Config{
		Channels:  make(map[string]Channel),
		byEvent:   make(map[EventKind]map[string]bool),
		byProject: make(map[string]map[string]bool),
		messages:  make(map[string]*template.Template),
	}

	for name, raw := range f.Channels {
		normalized := normalize(name)
		ch := Channel{
			Events:   make(map[EventKind]bool),
			Projects: make(map[string]bool),
		}
		for _, e := range raw.Events {
			kind := EventKind(e)
			ch.Events[kind] = true
			if cfg.byEvent[kind] == nil {
				cfg.byEvent[kind] = make(map[string]bool)
			}
			cfg.byEvent[kind][normalized] = true
		}
		for _, p := range raw.Projects {
			ch.Projects[p] = true
			if cfg.byProject[p] == nil {
				cfg.byProject[p] = make(map[string]bool)
			}
			cfg.byProject[p][normalized] = true
		}
		cfg.Channels[normalized] = ch
	}

	for key, tmplText := range f.Messages {
		t, err := template.New(key).Parse(tmplText)
		if err != nil {
			return nil, err
		}
		cfg.messages[key] = t
	}

	return cfg, nil
}

func normalize(name string) string {
	if strings.HasPrefix(name, "#") {
		return name
	}
	return "#" + name
}

// Subscribes reports whether channel is subscribed to the given event
// kind.
func (c *Config) Subscribes(channel string, kind EventKind) bool {
	return c.byEvent[kind][normalize(channel)]
}

// InterestedIn reports whether channel subscribes to project, or to "all"
// projects.
func (c *Config) InterestedIn(channel string, project string) bool {
	ch, ok := c.Channels[normalize(channel)]
	if !ok {
		return false
	}
	return ch.Projects[project] || ch.Projects[ProjectAll]
}

// Message renders a named message template against data, returning ""
// when no template has that key. The Reporter does not call it: its
// review and chat texts are built in pkg/report.
func (c *Config) Message(key string, data any) (string, error) {
	t, ok := c.messages[key]
	if !ok {
		return "", nil
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
