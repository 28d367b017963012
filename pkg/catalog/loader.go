package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jihwankim/recheckwatch/pkg/logging"
)

// Loader enumerates a directory of <bug_id>.<ext> query documents and
// exposes them as an in-memory catalog. It is idempotent and side-effect
// free — Load may be invoked repeatedly; the catalog is reloaded fresh on
// every classification call so edits on disk take effect without a
// restart.
type Loader struct {
	dir string
	log *logging.Logger
}

// New constructs a Loader rooted at dir.
func New(dir string, log *logging.Logger) *Loader {
	return &Loader{dir: dir, log: log}
}

// Load re-reads every query document in the catalog directory. Returns a
// *ConfigError if a file fails to parse, or an *IOError if the directory
// cannot be listed.
func (l *Loader) Load() ([]Query, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, &IOError{Dir: l.dir, Err: err}
	}

	queries := make([]Query, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(l.dir, entry.Name())
		q, err := l.loadOne(path)
		if err != nil {
			return nil, &ConfigError{Path: path, Err: err}
		}
		q.BugID = strings.TrimSuffix(entry.Name(), ext)
		queries = append(queries, postProcess(q))
	}

	l.log.Debug("catalog loaded", "dir", l.dir, "entries", len(queries))
	return queries, nil
}

func (l *Loader) loadOne(path string) (Query, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Query{}, err
	}
	var q Query
	if err := yaml.Unmarshal(raw, &q); err != nil {
		return Query{}, err
	}
	return q, nil
}

// postProcess augments raw_query with a literal voting:1 clause unless
// the entry opts out via allow_nonvoting.
func postProcess(q Query) Query {
	if !q.AllowNonvoting {
		q.RawQuery = strings.TrimRight(q.RawQuery, " \t\n") + " AND voting:1"
	}
	return q
}

// ConfigError reports a catalog file that failed to parse.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string { return fmt.Sprintf("catalog: parse %s: %v", e.Path, e.Err) }
func (e *ConfigError) Unwrap() error { return e.Err }

// IOError reports an unreadable catalog directory.
type IOError struct {
	Dir string
	Err error
}

func (e *IOError) Error() string { return fmt.Sprintf("catalog: read dir %s: %v", e.Dir, e.Err) }
func (e *IOError) Unwrap() error { return e.Err }
