package cache

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestManager(t *testing.T, dir, ttl, maxSize string) (*Manager, *fakeClock) {
	t.Helper()

	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	m, err := New(Options{
		Dir:     dir,
		TTL:     ttl,
		MaxSize: maxSize,
		Logger:  log.New(io.Discard),
		Now:     clock.Now,
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m, clock
}

func testMetadata(text, provider string) Metadata {
	return Metadata{
		Entry: Entry{
			Provider: provider,
			Voice:    "alloy",
			Rate:     175,
			Text:     text,
			Format:   "mp3",
		},
		Model:   "tts-1",
		Source:  "cli",
		Success: true,
	}
}

func TestManager_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	m, clock := newTestManager(t, dir, "", "")

	key := GenerateCacheKey("hello", "openai", "alloy", 175)
	audio := []byte("ID3 fake mp3 payload")

	entry, err := m.Set(key, testMetadata("hello", "openai"), audio)
	if err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	if entry.FilePath != filepath.Join(dir, key+".mp3") {
		t.Errorf("FilePath = %s, want %s", entry.FilePath, filepath.Join(dir, key+".mp3"))
	}
	if entry.Size != int64(len(audio)) {
		t.Errorf("Size = %d, want %d", entry.Size, len(audio))
	}
	if !entry.CreatedAt.Equal(clock.Now()) {
		t.Errorf("CreatedAt = %v, want %v", entry.CreatedAt, clock.Now())
	}

	got, ok := m.Get(key)
	if !ok {
		t.Fatal("Get() missed after Set()")
	}
	if got.FilePath != entry.FilePath || got.Provider != "openai" || got.Rate != 175 {
		t.Errorf("Get() = %+v, want %+v", got, entry)
	}

	data, err := os.ReadFile(got.FilePath)
	if err != nil {
		t.Fatalf("reading artifact: %v", err)
	}
	if !bytes.Equal(data, audio) {
		t.Errorf("artifact content = %q, want %q", data, audio)
	}

	// A second lookup returns the same entry.
	again, ok := m.Get(key)
	if !ok || again.FilePath != got.FilePath || !again.CreatedAt.Equal(got.CreatedAt) {
		t.Errorf("second Get() = %+v, %v; want %+v", again, ok, got)
	}
}

func TestManager_SetReplacesExisting(t *testing.T) {
	m, _ := newTestManager(t, t.TempDir(), "", "")
	key := GenerateCacheKey("hello", "openai", "alloy", 175)

	if _, err := m.Set(key, testMetadata("hello", "openai"), []byte("first")); err != nil {
		t.Fatalf("first Set() failed: %v", err)
	}
	entry, err := m.Set(key, testMetadata("hello", "openai"), []byte("second payload"))
	if err != nil {
		t.Fatalf("second Set() failed: %v", err)
	}

	data, _ := os.ReadFile(entry.FilePath)
	if string(data) != "second payload" {
		t.Errorf("artifact = %q, want second payload", data)
	}

	st, err := m.Stats()
	if err != nil {
		t.Fatalf("Stats() failed: %v", err)
	}
	if st.Entries != 1 || st.TotalSize != int64(len("second payload")) {
		t.Errorf("Stats() entries=%d size=%d, want 1 and %d", st.Entries, st.TotalSize, len("second payload"))
	}
}

func TestManager_SetRejectsEmptyAudio(t *testing.T) {
	m, _ := newTestManager(t, t.TempDir(), "", "")

	_, err := m.Set("v1_empty", testMetadata("x", "openai"), nil)
	if !errors.Is(err, ErrEmptyArtifact) {
		t.Fatalf("Set(nil) error = %v, want ErrEmptyArtifact", err)
	}
}

func TestManager_MissingFileIsAbsent(t *testing.T) {
	m, _ := newTestManager(t, t.TempDir(), "", "")
	key := GenerateCacheKey("gone", "openai", "alloy", 175)

	entry, err := m.Set(key, testMetadata("gone", "openai"), []byte("audio"))
	if err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if err := os.Remove(entry.FilePath); err != nil {
		t.Fatalf("removing artifact: %v", err)
	}

	if _, ok := m.Get(key); ok {
		t.Fatal("Get() hit for entry whose artifact was deleted")
	}
	if _, err := m.Lookup(key); !errors.Is(err, ErrNotFound) {
		t.Errorf("stale record not purged: Lookup() error = %v", err)
	}
}

func TestManager_TTLBoundary(t *testing.T) {
	m, clock := newTestManager(t, t.TempDir(), "1s", "")
	key := GenerateCacheKey("ttl", "openai", "alloy", 175)

	if _, err := m.Set(key, testMetadata("ttl", "openai"), []byte("audio")); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	clock.Advance(999 * time.Millisecond)
	if _, ok := m.Get(key); !ok {
		t.Fatal("entry expired before its TTL")
	}

	clock.Advance(2 * time.Millisecond)
	if _, ok := m.Get(key); ok {
		t.Fatal("entry returned after its TTL")
	}
	if _, err := m.Lookup(key); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired record not purged: Lookup() error = %v", err)
	}
}

func TestManager_SizeEviction(t *testing.T) {
	m, clock := newTestManager(t, t.TempDir(), "", "10")

	keys := map[string]string{}
	for _, name := range []string{"A", "B", "C", "D"} {
		keys[name] = GenerateCacheKey(name, "openai", "alloy", 175)
		if _, err := m.Set(keys[name], testMetadata(name, "openai"), []byte("1234")); err != nil {
			t.Fatalf("Set(%s) failed: %v", name, err)
		}
		clock.Advance(time.Millisecond)
	}

	if m.Contains(keys["A"]) {
		t.Error("A should have been evicted")
	}
	for _, name := range []string{"B", "C", "D"} {
		if !m.Contains(keys[name]) {
			t.Errorf("%s should still be cached", name)
		}
	}

	if _, err := os.Stat(filepath.Join(m.Dir(), keys["A"]+".mp3")); !os.IsNotExist(err) {
		t.Errorf("A's artifact still on disk: %v", err)
	}
}

func TestManager_Delete(t *testing.T) {
	m, _ := newTestManager(t, t.TempDir(), "", "")
	key := GenerateCacheKey("bye", "google", "", 175)

	entry, err := m.Set(key, testMetadata("bye", "google"), []byte("audio"))
	if err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	if err := m.Delete(key); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := os.Stat(entry.FilePath); !os.IsNotExist(err) {
		t.Errorf("artifact still exists after Delete()")
	}
	if err := m.Delete(key); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestManager_ClearKeepsCounters(t *testing.T) {
	dir := t.TempDir()
	m, _ := newTestManager(t, dir, "", "")
	key := GenerateCacheKey("clear", "openai", "alloy", 175)

	m.Get(key) // miss
	if _, err := m.Set(key, testMetadata("clear", "openai"), []byte("audio")); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	m.Get(key) // hit

	if err := m.Clear(); err != nil {
		t.Fatalf("Clear() failed: %v", err)
	}

	st, err := m.Stats()
	if err != nil {
		t.Fatalf("Stats() failed: %v", err)
	}
	if st.Entries != 0 {
		t.Errorf("Entries after Clear() = %d, want 0", st.Entries)
	}
	if st.Hits != 1 || st.Misses != 1 {
		t.Errorf("counters after Clear() = %d/%d, want 1/1", st.Hits, st.Misses)
	}

	for _, name := range []string{indexFileName, statsFileName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s removed by Clear(): %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, key+".mp3")); !os.IsNotExist(err) {
		t.Error("artifact survived Clear()")
	}
}

func TestManager_StatsDurability(t *testing.T) {
	dir := t.TempDir()
	key := GenerateCacheKey("durable", "openai", "alloy", 175)

	m, _ := newTestManager(t, dir, "", "")
	m.Get(key)
	if _, err := m.Set(key, testMetadata("durable", "openai"), []byte("audio")); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	m.Get(key)
	m.Get(key)
	if err := m.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	reopened, _ := newTestManager(t, dir, "", "")
	st, err := reopened.Stats()
	if err != nil {
		t.Fatalf("Stats() failed: %v", err)
	}
	if st.Hits != 2 || st.Misses != 1 {
		t.Errorf("counters after reopen = %d/%d, want 2/1", st.Hits, st.Misses)
	}
	if st.Entries != 1 {
		t.Errorf("Entries after reopen = %d, want 1", st.Entries)
	}
}

func TestManager_CorruptStatsStartsAtZero(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, statsFileName), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	m, _ := newTestManager(t, dir, "", "")
	st, err := m.Stats()
	if err != nil {
		t.Fatalf("Stats() failed: %v", err)
	}
	if st.Hits != 0 || st.Misses != 0 {
		t.Errorf("counters = %d/%d, want 0/0", st.Hits, st.Misses)
	}

	m.Get("v1_nothing")
	data, err := os.ReadFile(filepath.Join(dir, statsFileName))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"hits":0,"misses":1}` {
		t.Errorf("stats file = %s", data)
	}
}

func TestManager_Stats(t *testing.T) {
	m, clock := newTestManager(t, t.TempDir(), "7d", "1GB")

	seed := []struct {
		text     string
		provider string
		model    string
		size     int
	}{
		{"one", "openai", "tts-1", 10},
		{"two", "openai", "tts-1-hd", 20},
		{"three", "elevenlabs", "eleven_multilingual_v2", 30},
	}

	start := clock.Now()
	for _, s := range seed {
		md := testMetadata(s.text, s.provider)
		md.Model = s.model
		if _, err := m.Set(GenerateCacheKey(s.text, s.provider, "alloy", 175), md, bytes.Repeat([]byte("x"), s.size)); err != nil {
			t.Fatalf("Set(%s) failed: %v", s.text, err)
		}
		clock.Advance(time.Minute)
	}

	m.Get(GenerateCacheKey("one", "openai", "alloy", 175))
	m.Get(GenerateCacheKey("missing", "openai", "alloy", 175))
	m.Get(GenerateCacheKey("two", "openai", "alloy", 175))

	st, err := m.Stats()
	if err != nil {
		t.Fatalf("Stats() failed: %v", err)
	}

	if st.Entries != 3 || st.TotalSize != 60 {
		t.Errorf("Entries/TotalSize = %d/%d, want 3/60", st.Entries, st.TotalSize)
	}
	if st.AverageSize != 20 {
		t.Errorf("AverageSize = %v, want 20", st.AverageSize)
	}
	if st.Hits != 2 || st.Misses != 1 {
		t.Errorf("Hits/Misses = %d/%d, want 2/1", st.Hits, st.Misses)
	}
	if want := 2.0 / 3.0; st.HitRate != want {
		t.Errorf("HitRate = %v, want %v", st.HitRate, want)
	}
	if !st.Earliest.Equal(start) || !st.Latest.Equal(start.Add(2*time.Minute)) {
		t.Errorf("Earliest/Latest = %v/%v", st.Earliest, st.Latest)
	}
	if st.ByProvider["openai"] != 2 || st.ByProvider["elevenlabs"] != 1 {
		t.Errorf("ByProvider = %v", st.ByProvider)
	}
	if st.ByModel["tts-1"] != 1 || len(st.ByModel) != 3 {
		t.Errorf("ByModel = %v", st.ByModel)
	}
	if st.BySource["cli"] != 3 {
		t.Errorf("BySource = %v", st.BySource)
	}
	if st.TTL != 7*24*time.Hour || st.MaxSize != 1<<30 {
		t.Errorf("TTL/MaxSize = %v/%d", st.TTL, st.MaxSize)
	}
}

func TestManager_StatsEmpty(t *testing.T) {
	m, _ := newTestManager(t, t.TempDir(), "", "")

	st, err := m.Stats()
	if err != nil {
		t.Fatalf("Stats() failed: %v", err)
	}
	if st.HitRate != 0 || st.AverageSize != 0 || !st.Earliest.IsZero() {
		t.Errorf("empty Stats() = %+v", st)
	}
}
