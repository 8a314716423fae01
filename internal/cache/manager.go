package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/sahilm/fuzzy"
)

// Options configures a Manager. TTL and MaxSize use the ParseTTL and
// ParseSize grammars; empty values disable the respective limit.
type Options struct {
	Dir     string
	TTL     string
	MaxSize string

	// Logger receives cache faults. Defaults to log.Default().
	Logger *log.Logger

	// Now is the clock used for creation times and expiry. Defaults to time.Now.
	Now func() time.Time
}

// Manager is the audio artifact store. It owns the artifact files, the
// metadata index and the lookup counters of one cache directory.
type Manager struct {
	dir     string
	ttl     time.Duration
	maxSize int64

	index  *index
	stats  *statsTracker
	logger *log.Logger
	now    func() time.Time

	mu sync.Mutex
}

// New opens the cache directory described by opts, creating it if needed.
// A malformed TTL or size returns an *InvalidConfigurationError.
func New(opts Options) (*Manager, error) {
	if opts.Dir == "" {
		return nil, &InvalidConfigurationError{Field: "dir", Reason: "cache directory is required"}
	}

	ttl, err := ParseTTL(opts.TTL)
	if err != nil {
		return nil, err
	}
	maxSize, err := ParseSize(opts.MaxSize)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithPrefix("cache")

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, &CacheIOError{Op: "create directory", Err: err}
	}

	ix, err := openIndex(filepath.Join(opts.Dir, indexFileName))
	if err != nil {
		return nil, &CacheIOError{Op: "open index", Err: err}
	}

	m := &Manager{
		dir:     opts.Dir,
		ttl:     ttl,
		maxSize: maxSize,
		index:   ix,
		stats:   newStatsTracker(opts.Dir, logger),
		logger:  logger,
		now:     now,
	}

	logger.Debug("cache opened", "dir", opts.Dir, "ttl", FormatTTL(ttl), "max_size", humanize.IBytes(uint64(maxSize)))
	return m, nil
}

// Dir returns the cache directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Get returns the entry for key if its record exists, its artifact file
// exists and it has not expired. Stale and expired records are purged.
// Every call records a hit or a miss.
func (m *Manager) Get(key string) (*Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := m.liveEntry(key)
	if entry == nil {
		m.record(m.stats.miss)
		return nil, false
	}

	m.record(m.stats.hit)
	return entry, true
}

// Contains reports whether Get would hit, without touching the counters.
func (m *Manager) Contains(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.liveEntry(key) != nil
}

// liveEntry resolves key to a servable entry, purging it when it is not.
func (m *Manager) liveEntry(key string) *Entry {
	md, err := m.index.lookup(key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.logger.Warn("index lookup failed", "key", key, "err", err)
		}
		return nil
	}

	if !fileExists(md.FilePath) {
		m.logger.Debug("artifact missing, dropping record", "key", key, "path", md.FilePath)
		if err := m.index.delete(key); err != nil {
			m.logger.Warn("could not drop stale record", "key", key, "err", err)
		}
		return nil
	}

	if m.expired(md.CreatedAt) {
		m.logger.Debug("entry expired", "key", key, "created", humanize.Time(md.CreatedAt))
		if err := m.removeLocked(md); err != nil {
			m.logger.Warn("could not remove expired entry", "key", key, "err", err)
		}
		return nil
	}

	entry := md.Entry
	return &entry
}

// Set writes audio as the artifact for key and records md as its metadata.
// The size budget is enforced before the write. Any existing entry for key
// is replaced.
func (m *Manager) Set(key string, md Metadata, audio []byte) (*Entry, error) {
	if len(audio) == 0 {
		return nil, ErrEmptyArtifact
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if old, err := m.index.lookup(key); err == nil {
		if err := m.removeLocked(old); err != nil {
			return nil, &CacheIOError{Op: "replace", Key: key, Err: err}
		}
	}

	if err := m.evictForInsert(); err != nil {
		m.logger.Warn("size eviction failed", "err", err)
	}

	path := artifactPath(m.dir, key, md.Format)
	if err := writeFileAtomic(path, audio); err != nil {
		return nil, &CacheIOError{Op: "write artifact", Key: key, Err: err}
	}

	md.Key = key
	md.FilePath = path
	md.Size = int64(len(audio))
	if md.CreatedAt.IsZero() {
		md.CreatedAt = m.now()
	}

	if err := m.index.insert(&md); err != nil {
		removeFile(path)
		return nil, &CacheIOError{Op: "insert record", Key: key, Err: err}
	}

	entry := md.Entry
	return &entry, nil
}

// Delete removes the artifact and record for key. It returns ErrNotFound
// when there is no record.
func (m *Manager) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	md, err := m.index.lookup(key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return &CacheIOError{Op: "delete", Key: key, Err: err}
	}

	if err := m.removeLocked(md); err != nil {
		return &CacheIOError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

// Clear removes every artifact and resets the index. Counters are kept.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := removeArtifacts(m.dir); err != nil {
		return &CacheIOError{Op: "clear artifacts", Err: err}
	}
	if err := m.index.reset(); err != nil {
		return &CacheIOError{Op: "clear index", Err: err}
	}

	m.logger.Info("cache cleared", "dir", m.dir)
	return nil
}

// Lookup returns the metadata record for key without checking the artifact
// or recording a lookup.
func (m *Manager) Lookup(key string) (*Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	md, err := m.index.lookup(key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, &CacheIOError{Op: "lookup", Key: key, Err: err}
	}
	return md, err
}

// Query returns the records matching f, newest first.
func (m *Manager) Query(f Filter) ([]*Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out, err := m.index.query(f)
	if err != nil {
		return nil, &CacheIOError{Op: "query", Err: err}
	}
	return out, nil
}

// Recent returns the n most recently created records.
func (m *Manager) Recent(n int) ([]*Metadata, error) {
	if n <= 0 {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out, err := m.index.recent(n)
	if err != nil {
		return nil, &CacheIOError{Op: "recent", Err: err}
	}
	return out, nil
}

// Search ranks cached texts against pattern using fuzzy matching and returns
// at most limit records, best match first. A limit of 0 returns all matches.
func (m *Manager) Search(pattern string, limit int) ([]*Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all, err := m.index.oldest()
	if err != nil {
		return nil, &CacheIOError{Op: "search", Err: err}
	}

	matches := fuzzy.FindFrom(pattern, searchSource(all))
	out := make([]*Metadata, 0, len(matches))
	for _, match := range matches {
		out = append(out, all[match.Index])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// searchSource exposes record texts to the fuzzy matcher.
type searchSource []*Metadata

func (s searchSource) String(i int) string { return s[i].Text }
func (s searchSource) Len() int            { return len(s) }

// Stats summarizes the index and the lookup counters.
func (m *Manager) Stats() (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.stats.snapshot()
	st := Stats{
		Hits:    c.Hits,
		Misses:  c.Misses,
		HitRate: c.hitRate(),
		MaxSize: m.maxSize,
		TTL:     m.ttl,
	}

	var err error
	if st.Entries, st.TotalSize, err = m.index.totals(); err != nil {
		return st, &CacheIOError{Op: "stats", Err: err}
	}
	if st.Entries > 0 {
		st.AverageSize = float64(st.TotalSize) / float64(st.Entries)
	}
	if st.Earliest, st.Latest, err = m.index.timeRange(); err != nil {
		return st, &CacheIOError{Op: "stats", Err: err}
	}

	for column, dst := range map[string]*map[string]int{
		"provider": &st.ByProvider,
		"model":    &st.ByModel,
		"source":   &st.BySource,
	} {
		h, err := m.index.histogram(column)
		if err != nil {
			return st, &CacheIOError{Op: "stats", Err: fmt.Errorf("%s histogram: %w", column, err)}
		}
		*dst = h
	}

	return st, nil
}

// Close releases the index.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.index.close()
}

// removeLocked deletes the artifact file, then the record.
func (m *Manager) removeLocked(md *Metadata) error {
	if err := removeFile(md.FilePath); err != nil {
		return err
	}
	return m.index.delete(md.Key)
}

// record applies a counter increment and logs a write failure.
func (m *Manager) record(inc func() error) {
	if err := inc(); err != nil {
		m.logger.Warn("could not persist stats", "err", err)
	}
}
