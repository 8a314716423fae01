package audio

import (
	"context"
	"sync"
	"sync/atomic"
)

// MockPlayer implements Player for testing purposes.
// It records the files it is asked to play without producing sound.
type MockPlayer struct {
	// Err, when set, is returned by every Play call
	Err error

	// Block makes Play wait until Stop, ctx cancellation or Release
	Block bool

	// OnPlay is called with the path at the start of every Play
	OnPlay func(path string)

	mu      sync.Mutex
	played  []string
	playing bool
	stopCh  chan struct{}
	release chan struct{}

	// Metrics for testing
	playCount atomic.Int64
	stopCount atomic.Int64
}

// NewMockPlayer creates a mock player that returns immediately.
func NewMockPlayer() *MockPlayer {
	return &MockPlayer{release: make(chan struct{})}
}

// Play records path and simulates playback.
func (mp *MockPlayer) Play(ctx context.Context, path string) error {
	mp.mu.Lock()
	if mp.release == nil {
		mp.release = make(chan struct{})
	}
	mp.played = append(mp.played, path)
	mp.playing = true
	mp.stopCh = make(chan struct{})
	stopCh, release := mp.stopCh, mp.release
	onPlay, block, err := mp.OnPlay, mp.Block, mp.Err
	mp.mu.Unlock()

	mp.playCount.Add(1)
	defer func() {
		mp.mu.Lock()
		mp.playing = false
		mp.mu.Unlock()
	}()

	if onPlay != nil {
		onPlay(path)
	}
	if err != nil {
		return err
	}
	if !block {
		return nil
	}

	select {
	case <-stopCh:
		return ErrInterrupted
	case <-ctx.Done():
		return ctx.Err()
	case <-release:
		return nil
	}
}

// Stop interrupts a blocked Play.
func (mp *MockPlayer) Stop() error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.stopCount.Add(1)
	if mp.playing && mp.stopCh != nil {
		close(mp.stopCh)
		mp.stopCh = nil
	}
	return nil
}

// Release lets every blocked and future Play finish normally.
func (mp *MockPlayer) Release() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.release == nil {
		mp.release = make(chan struct{})
	}
	select {
	case <-mp.release:
	default:
		close(mp.release)
	}
}

// IsPlaying reports whether Play is in progress.
func (mp *MockPlayer) IsPlaying() bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	return mp.playing
}

// Played returns the paths passed to Play, in order.
func (mp *MockPlayer) Played() []string {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	return append([]string(nil), mp.played...)
}

// PlayCount returns the number of Play calls.
func (mp *MockPlayer) PlayCount() int64 {
	return mp.playCount.Load()
}

// StopCount returns the number of Stop calls.
func (mp *MockPlayer) StopCount() int64 {
	return mp.stopCount.Load()
}
