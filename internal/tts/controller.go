package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"github.com/dgnsrekt/speak/internal/audio"
	"github.com/dgnsrekt/speak/internal/cache"
	"github.com/dgnsrekt/speak/internal/config"
	"github.com/dgnsrekt/speak/internal/queue"
	"github.com/dgnsrekt/speak/internal/ttypes"
)

// Options configures a Controller. Only Config is required.
type Options struct {
	Config config.Config

	// Engines overrides BuildEngines(Config)
	Engines map[ttypes.Name]ttypes.Engine

	// Cache is used instead of opening Config.Cache. The caller keeps
	// ownership and must close it.
	Cache *cache.Manager

	// Player defaults to an audio.ExecPlayer for Config.Playback.Command
	Player audio.Player

	// Provenance defaults to NewProvenance(ttypes.SourceLibrary)
	Provenance *Provenance

	// TempDir holds transient playback files (defaults to os.TempDir)
	TempDir string

	Logger *log.Logger
}

// SpeakOptions are the per-call settings of Speak and Enqueue.
type SpeakOptions struct {
	Priority  ttypes.Priority
	Interrupt bool

	// Provider overrides the configured default
	Provider ttypes.Name

	// Voice applies to the requested provider only; fallback providers use
	// their configured voice.
	Voice string

	// Rate in words per minute, 0 = configured rate
	Rate int

	Source ttypes.Source
}

// Result describes the audio produced for a request.
type Result struct {
	// Provider is the provider that produced the audio
	Provider ttypes.Name

	// Attempts lists the providers that failed before Provider succeeded
	Attempts []Attempt

	// CacheHit is true when synthesis was skipped
	CacheHit bool

	// Entry is the cache entry holding the audio, nil when uncached
	Entry *cache.Entry

	// Data is the audio payload. It is nil for cache hits returned by the
	// playback path, which plays Entry.FilePath directly.
	Data   []byte
	Format string

	// Elapsed is the time spent synthesizing (0 on a hit)
	Elapsed time.Duration
}

// Path returns the cached artifact path, or "" when the audio is not cached.
func (r *Result) Path() string {
	if r.Entry == nil {
		return ""
	}
	return r.Entry.FilePath
}

// ControllerStats tracks controller activity
type ControllerStats struct {
	Requests     int64
	Played       int64
	Interrupted  int64
	CacheHits    int64
	Synthesized  int64
	Fallbacks    int64
	Failures     int64
	LastProvider ttypes.Name
	LastActivity time.Time
	Queue        queue.Stats
}

// Controller turns speech requests into played audio. Requests are queued
// and handled one at a time: each walks the provider chain until one
// produces audio, reusing cached artifacts for remote providers.
type Controller struct {
	cfg       config.Config
	engines   map[ttypes.Name]ttypes.Engine
	cache     *cache.Manager
	ownsCache bool
	player    audio.Player
	playerErr error
	queue     *queue.Queue
	prov      Provenance
	tempDir   string
	timeout   time.Duration
	logger    *log.Logger

	mu     sync.Mutex
	stats  ControllerStats
	closed bool
}

// NewController creates a controller. A malformed cache TTL or size in
// opts.Config returns a *cache.InvalidConfigurationError.
func NewController(opts Options) (*Controller, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	engines := opts.Engines
	if engines == nil {
		engines = BuildEngines(cfg)
	}

	c := &Controller{
		cfg:     cfg,
		engines: engines,
		cache:   opts.Cache,
		player:  opts.Player,
		tempDir: opts.TempDir,
		timeout: cfg.ProviderTimeout,
		logger:  logger.WithPrefix("tts"),
	}

	if c.cache == nil && cfg.Cache.Enabled {
		copts := cfg.CacheOptions()
		copts.Logger = logger
		m, err := cache.New(copts)
		if err != nil {
			return nil, err
		}
		c.cache = m
		c.ownsCache = true
	}

	if c.player == nil {
		p, err := audio.NewExecPlayer(audio.ExecOptions{
			Command: audio.ParseCommand(cfg.Playback.Command),
			Logger:  logger,
		})
		if err != nil {
			c.playerErr = err
		} else {
			c.player = p
		}
	}

	if opts.Provenance != nil {
		c.prov = *opts.Provenance
	} else {
		c.prov = NewProvenance(ttypes.SourceLibrary)
	}

	if c.tempDir == "" {
		c.tempDir = os.TempDir()
	}

	c.queue = queue.New(c.handle, logger)
	return c, nil
}

// Speak queues text and waits until it has been played.
func (c *Controller) Speak(ctx context.Context, text string, opts SpeakOptions) error {
	done, err := c.Enqueue(ctx, text, opts)
	if err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue queues text and returns a channel that receives the outcome.
// With opts.Interrupt the active playback is killed first.
func (c *Controller) Enqueue(ctx context.Context, text string, opts SpeakOptions) (<-chan error, error) {
	if c.isClosed() {
		return nil, ErrControllerClosed
	}

	req, err := c.request(text, opts)
	if err != nil {
		return nil, err
	}

	if req.Interrupt && c.player != nil && c.player.IsPlaying() {
		c.logger.Debug("interrupting active playback")
		if err := c.player.Stop(); err != nil {
			c.logger.Warn("failed to stop playback", "err", err)
		}
	}

	done, err := c.queue.Enqueue(ctx, req, req.Priority)
	if err != nil {
		if errors.Is(err, queue.ErrQueueClosed) {
			return nil, ErrControllerClosed
		}
		return nil, err
	}

	c.mu.Lock()
	c.stats.Requests++
	c.stats.LastActivity = time.Now()
	c.mu.Unlock()

	return done, nil
}

// Synthesize runs the provider chain for req without playing the result.
// Result.Data always holds the audio.
func (c *Controller) Synthesize(ctx context.Context, req ttypes.SpeechRequest) (*Result, error) {
	if c.isClosed() {
		return nil, ErrControllerClosed
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}

	res, err := c.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	if res.Data == nil {
		data, err := os.ReadFile(res.Path())
		if err != nil {
			return nil, &cache.CacheIOError{Op: "read artifact", Key: res.Entry.Key, Err: err}
		}
		res.Data = data
	}
	return res, nil
}

// Stop kills the active playback, if any. Queued requests continue.
func (c *Controller) Stop() error {
	if c.player == nil {
		return nil
	}
	return c.player.Stop()
}

// Pause holds queued requests until Resume. The current one finishes.
func (c *Controller) Pause() { c.queue.Pause() }

// Resume continues after Pause.
func (c *Controller) Resume() { c.queue.Resume() }

// ClearQueue drops pending requests and returns how many were dropped.
func (c *Controller) ClearQueue() int { return c.queue.Clear() }

// Cache returns the result cache, or nil when caching is disabled.
func (c *Controller) Cache() *cache.Manager { return c.cache }

// Stats returns a snapshot of controller activity.
func (c *Controller) Stats() ControllerStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Queue = c.queue.GetStats()
	return stats
}

// Close fails pending requests, waits for the current one and releases
// the cache if the controller opened it.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.queue.Close()
	if c.ownsCache {
		if cerr := c.cache.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// request validates text and builds the queued request.
func (c *Controller) request(text string, opts SpeakOptions) (ttypes.SpeechRequest, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ttypes.SpeechRequest{}, ErrEmptyText
	}
	if opts.Rate < 0 {
		return ttypes.SpeechRequest{}, fmt.Errorf("rate must be non-negative, got %d", opts.Rate)
	}

	source := opts.Source
	if source == "" {
		source = c.prov.Source
	}

	return ttypes.SpeechRequest{
		Text:      text,
		Priority:  opts.Priority,
		Interrupt: opts.Interrupt,
		Provider:  opts.Provider,
		Voice:     opts.Voice,
		Rate:      opts.Rate,
		Source:    source,
	}, nil
}

// handle is the queue handler: resolve audio, then play it.
func (c *Controller) handle(ctx context.Context, req ttypes.SpeechRequest) error {
	res, err := c.resolve(ctx, req)
	if err != nil {
		return err
	}

	if c.player == nil {
		return &PlaybackError{Provider: res.Provider, Err: c.playerErr}
	}

	path := res.Path()
	if path == "" {
		tmp, err := c.writeTemp(res)
		if err != nil {
			return &PlaybackError{Provider: res.Provider, Err: err}
		}
		defer func() {
			if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
				c.logger.Warn("failed to remove temp file", "path", tmp, "err", err)
			}
		}()
		path = tmp
	}

	c.transition(res.Provider, ttypes.StatePlaying)
	err = c.player.Play(ctx, path)
	switch {
	case errors.Is(err, audio.ErrInterrupted):
		c.logger.Debug("playback interrupted", "provider", res.Provider)
		c.count(func(s *ControllerStats) { s.Interrupted++ })
	case err != nil:
		return &PlaybackError{Provider: res.Provider, Path: path, Err: err}
	default:
		c.count(func(s *ControllerStats) { s.Played++ })
	}

	c.transition(res.Provider, ttypes.StateDone)
	return nil
}

// writeTemp stores uncached audio in a transient file for the player.
func (c *Controller) writeTemp(res *Result) (string, error) {
	f, err := os.CreateTemp(c.tempDir, "speak-*."+res.Format)
	if err != nil {
		return "", fmt.Errorf("unable to create temp file: %w", err)
	}
	if _, err := f.Write(res.Data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("unable to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("unable to write temp file: %w", err)
	}
	return f.Name(), nil
}

// chain lists the providers tried for requested, in order: requested, the
// registered providers after it in canonical order, then the system voice
// once if it was not requested.
func (c *Controller) chain(requested ttypes.Name) []ttypes.Name {
	out := []ttypes.Name{requested}
	for _, n := range requested.After() {
		if n == ttypes.ProviderSystem {
			continue
		}
		if _, ok := c.engines[n]; ok {
			out = append(out, n)
		}
	}
	if requested != ttypes.ProviderSystem {
		if _, ok := c.engines[ttypes.ProviderSystem]; ok {
			out = append(out, ttypes.ProviderSystem)
		}
	}
	return out
}

// resolve walks the provider chain until one yields audio.
func (c *Controller) resolve(ctx context.Context, req ttypes.SpeechRequest) (*Result, error) {
	requested := req.Provider
	if requested == "" {
		requested = c.cfg.DefaultProvider()
	}

	var attempts []Attempt
	for _, name := range c.chain(requested) {
		res, err := c.attempt(ctx, name, req, name == requested)
		if err == nil {
			res.Attempts = attempts
			if name != requested {
				c.logger.Info("fell back to provider", "requested", requested, "provider", name, "failed", len(attempts))
				c.count(func(s *ControllerStats) { s.Fallbacks++ })
			}
			c.count(func(s *ControllerStats) { s.LastProvider = name })
			return res, nil
		}

		c.transition(name, ttypes.StateFailed)
		attempts = append(attempts, Attempt{Provider: name, Err: err})
		c.logger.Warn("provider failed", "provider", name, "err", c.describe(name, err))

		if ctx.Err() != nil {
			c.count(func(s *ControllerStats) { s.Failures++ })
			return nil, fmt.Errorf("request cancelled after %s failed: %w", name, ctx.Err())
		}
	}

	c.count(func(s *ControllerStats) { s.Failures++ })
	return nil, &AllProvidersExhaustedError{Requested: requested, Attempts: attempts}
}

// attempt runs one provider through validation, cache lookup, synthesis
// and the cache write.
func (c *Controller) attempt(ctx context.Context, name ttypes.Name, req ttypes.SpeechRequest, requested bool) (*Result, error) {
	c.transition(name, ttypes.StateValidating)

	eng, ok := c.engines[name]
	if !ok {
		return nil, &ttypes.ConfigurationError{Provider: name, Reason: "no engine registered"}
	}
	if !eng.IsConfigured() {
		return nil, &ttypes.ConfigurationError{Provider: name, Reason: "missing or malformed credentials"}
	}

	settings := c.cfg.ProviderSettings(name)
	voice := settings.Voice
	if requested && req.Voice != "" {
		voice = req.Voice
	}
	rate := settings.Rate
	if req.Rate > 0 {
		rate = req.Rate
	}

	useCache := c.cache != nil && !eng.IsLocal()
	var key string
	if useCache {
		c.transition(name, ttypes.StateCheckingCache)
		key = cache.GenerateCacheKey(req.Text, string(name), voice, rate)
		if entry, ok := c.cache.Get(key); ok {
			c.logger.Debug("cache hit", "provider", name, "key", key, "size", humanize.IBytes(uint64(entry.Size)))
			c.count(func(s *ControllerStats) { s.CacheHits++ })
			return &Result{Provider: name, CacheHit: true, Entry: entry, Format: entry.Format}, nil
		}
	}

	c.transition(name, ttypes.StateSynthesizing)
	start := time.Now()
	out, err := c.synthesize(ctx, eng, ttypes.SynthesisRequest{Text: req.Text, Voice: voice, Rate: rate})
	elapsed := time.Since(start)
	if err != nil {
		return nil, err
	}
	c.count(func(s *ControllerStats) { s.Synthesized++ })
	c.logger.Debug("synthesized", "provider", name, "bytes", len(out.Data), "elapsed", elapsed)

	res := &Result{Provider: name, Data: out.Data, Format: out.Format, Elapsed: elapsed}

	if useCache {
		c.transition(name, ttypes.StateCaching)
		entry, err := c.cache.Set(key, c.metadata(req, name, voice, rate, out, elapsed), out.Data)
		if err != nil {
			c.logger.Warn("failed to cache audio", "provider", name, "err", err)
		} else {
			res.Entry = entry
		}
	}

	return res, nil
}

// synthesize calls eng under the provider timeout.
func (c *Controller) synthesize(ctx context.Context, eng ttypes.Engine, req ttypes.SynthesisRequest) (*ttypes.Audio, error) {
	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	out, err := eng.Synthesize(callCtx, req)
	if err != nil {
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, &ttypes.ProviderError{
				Provider: eng.Name(),
				Kind:     ttypes.KindOther,
				Message:  fmt.Sprintf("timed out after %s", c.timeout),
				Cause:    err,
			}
		}
		return nil, err
	}
	if out == nil || len(out.Data) == 0 {
		return nil, &ttypes.EmptyResultError{Provider: eng.Name()}
	}
	return out, nil
}

func (c *Controller) metadata(req ttypes.SpeechRequest, name ttypes.Name, voice string, rate int, out *ttypes.Audio, elapsed time.Duration) cache.Metadata {
	source := req.Source
	if source == "" {
		source = c.prov.Source
	}
	return cache.Metadata{
		Entry: cache.Entry{
			Provider: string(name),
			Voice:    voice,
			Rate:     rate,
			Text:     cache.NormalizeText(req.Text),
			Format:   out.Format,
		},
		Model:       out.Model,
		Source:      string(source),
		SessionID:   c.prov.SessionID,
		PID:         c.prov.PID,
		Hostname:    c.prov.Hostname,
		User:        c.prov.User,
		WorkingDir:  c.prov.WorkingDir,
		CommandLine: c.prov.CommandLine,
		Duration:    elapsed,
		Success:     true,
	}
}

// describe renders err with the engine's own wording when available.
func (c *Controller) describe(name ttypes.Name, err error) string {
	if eng, ok := c.engines[name]; ok {
		return eng.DescribeError(err)
	}
	return ttypes.DescribeError(err)
}

func (c *Controller) transition(name ttypes.Name, s ttypes.State) {
	c.logger.Debug("state", "provider", name, "state", s)
}

func (c *Controller) count(f func(*ControllerStats)) {
	c.mu.Lock()
	f(&c.stats)
	c.mu.Unlock()
}
