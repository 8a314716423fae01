package cache

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// statsFileName holds the lookup counters inside the cache directory
const statsFileName = "stats"

// counters is the persisted form of the hit and miss totals.
type counters struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// statsTracker owns the stats file. Counters are loaded once and written
// after every increment. Callers hold the manager lock.
type statsTracker struct {
	path   string
	c      counters
	logger *log.Logger
}

func newStatsTracker(dir string, logger *log.Logger) *statsTracker {
	t := &statsTracker{
		path:   filepath.Join(dir, statsFileName),
		logger: logger,
	}
	t.load()
	return t
}

// load reads the stats file. A missing file starts at zero silently; a
// corrupt one starts at zero with a warning.
func (t *statsTracker) load() {
	data, err := os.ReadFile(t.path)
	if err != nil {
		if !os.IsNotExist(err) {
			t.logger.Warn("could not read stats file, starting at zero", "path", t.path, "err", err)
		}
		return
	}

	var c counters
	if err := json.Unmarshal(data, &c); err != nil || c.Hits < 0 || c.Misses < 0 {
		t.logger.Warn("corrupt stats file, starting at zero", "path", t.path, "err", err)
		return
	}
	t.c = c
}

func (t *statsTracker) hit() error {
	t.c.Hits++
	return t.save()
}

func (t *statsTracker) miss() error {
	t.c.Misses++
	return t.save()
}

func (t *statsTracker) snapshot() counters {
	return t.c
}

func (t *statsTracker) save() error {
	data, err := json.Marshal(t.c)
	if err != nil {
		return &CacheIOError{Op: "write stats", Err: err}
	}
	if err := writeFileAtomic(t.path, data); err != nil {
		return &CacheIOError{Op: "write stats", Err: err}
	}
	return nil
}

// hitRate returns hits/(hits+misses), or 0 when there were no lookups.
func (c counters) hitRate() float64 {
	total := c.Hits + c.Misses
	if total == 0 {
		return 0
	}
	return float64(c.Hits) / float64(total)
}
