package cache

import (
	"errors"
	"fmt"
	"time"
)

// Common errors for cache operations
var (
	// ErrNotFound is returned when the index has no record for a key
	ErrNotFound = errors.New("cache entry not found")

	// ErrEmptyArtifact is returned when Set is called without audio
	ErrEmptyArtifact = errors.New("refusing to cache an empty artifact")
)

// Entry is one cached artifact. It is valid only while FilePath exists.
type Entry struct {
	Key       string    `json:"key" yaml:"key"`
	FilePath  string    `json:"file_path" yaml:"file_path"`
	Provider  string    `json:"provider" yaml:"provider"`
	Voice     string    `json:"voice" yaml:"voice"`
	Rate      int       `json:"rate" yaml:"rate"`
	Text      string    `json:"text" yaml:"text"`
	Format    string    `json:"format" yaml:"format"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Size      int64     `json:"size" yaml:"size"`
}

// Metadata is the index record for an entry: the entry attributes plus
// provenance. It is written once with its artifact and never updated.
type Metadata struct {
	Entry `yaml:",inline"`

	Model        string        `json:"model" yaml:"model"`
	Source       string        `json:"source" yaml:"source"`
	SessionID    string        `json:"session_id" yaml:"session_id"`
	PID          int           `json:"pid" yaml:"pid"`
	Hostname     string        `json:"hostname" yaml:"hostname"`
	User         string        `json:"user" yaml:"user"`
	WorkingDir   string        `json:"working_dir" yaml:"working_dir"`
	CommandLine  string        `json:"command_line" yaml:"command_line"`
	Duration     time.Duration `json:"duration" yaml:"duration"`
	Success      bool          `json:"success" yaml:"success"`
	ErrorMessage string        `json:"error_message,omitempty" yaml:"error_message,omitempty"`
}

// Filter selects index records. Zero-valued fields do not filter.
type Filter struct {
	Text       string // case-insensitive substring
	Provider   string
	Model      string
	Source     string
	SessionID  string
	User       string
	WorkingDir string

	MinSize int64
	MaxSize int64 // 0 = no upper bound

	After  time.Time
	Before time.Time

	Success *bool // nil = all

	Limit int // 0 = no limit
}

// Stats summarizes the index and the lookup counters.
type Stats struct {
	Entries     int64          `json:"entries" yaml:"entries"`
	TotalSize   int64          `json:"total_size" yaml:"total_size"`
	Hits        int64          `json:"hits" yaml:"hits"`
	Misses      int64          `json:"misses" yaml:"misses"`
	HitRate     float64        `json:"hit_rate" yaml:"hit_rate"`
	AverageSize float64        `json:"average_size" yaml:"average_size"`
	Earliest    time.Time      `json:"earliest,omitempty" yaml:"earliest,omitempty"`
	Latest      time.Time      `json:"latest,omitempty" yaml:"latest,omitempty"`
	ByProvider  map[string]int `json:"by_provider" yaml:"by_provider"`
	ByModel     map[string]int `json:"by_model" yaml:"by_model"`
	BySource    map[string]int `json:"by_source" yaml:"by_source"`

	MaxSize int64         `json:"max_size" yaml:"max_size"`
	TTL     time.Duration `json:"ttl" yaml:"ttl"`
}

// PruneResult reports what a maintenance sweep removed.
type PruneResult struct {
	Missing    int   // records whose artifact file was gone
	Expired    int   // entries older than the TTL
	Evicted    int   // entries removed to meet the size budget
	FreedBytes int64 // artifact bytes removed
}

// Removed returns the total number of entries removed.
func (r PruneResult) Removed() int {
	return r.Missing + r.Expired + r.Evicted
}

// CacheIOError wraps any failure reading or writing the artifact store, the
// metadata index or the stats file. Callers recover from it locally.
type CacheIOError struct {
	Op  string
	Key string
	Err error
}

// Error implements the error interface
func (e *CacheIOError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("cache %s %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *CacheIOError) Unwrap() error {
	return e.Err
}

// InvalidConfigurationError reports a malformed cache setting. It is fatal
// at construction time.
type InvalidConfigurationError struct {
	Field  string
	Value  string
	Reason string
}

// Error implements the error interface
func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("invalid cache %s %q: %s", e.Field, e.Value, e.Reason)
}
