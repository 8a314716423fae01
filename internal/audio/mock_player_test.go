package audio

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMockPlayer_RecordsPlays(t *testing.T) {
	mp := NewMockPlayer()

	for _, path := range []string{"a.mp3", "b.mp3"} {
		if err := mp.Play(context.Background(), path); err != nil {
			t.Fatalf("Play(%s) failed: %v", path, err)
		}
	}

	played := mp.Played()
	if len(played) != 2 || played[0] != "a.mp3" || played[1] != "b.mp3" {
		t.Errorf("Played() = %v", played)
	}
	if mp.PlayCount() != 2 {
		t.Errorf("PlayCount() = %d, want 2", mp.PlayCount())
	}
}

func TestMockPlayer_Err(t *testing.T) {
	boom := errors.New("device busy")
	mp := NewMockPlayer()
	mp.Err = boom

	if err := mp.Play(context.Background(), "a.mp3"); !errors.Is(err, boom) {
		t.Errorf("Play() = %v, want %v", err, boom)
	}
}

func TestMockPlayer_BlockUntilStop(t *testing.T) {
	mp := NewMockPlayer()
	mp.Block = true

	started := make(chan struct{})
	mp.OnPlay = func(string) { close(started) }

	result := make(chan error, 1)
	go func() { result <- mp.Play(context.Background(), "a.mp3") }()

	<-started
	if !mp.IsPlaying() {
		t.Error("IsPlaying() false during blocked Play()")
	}
	mp.Stop()

	select {
	case err := <-result:
		if !errors.Is(err, ErrInterrupted) {
			t.Errorf("Play() = %v, want ErrInterrupted", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Stop() did not unblock Play()")
	}
	if mp.StopCount() != 1 {
		t.Errorf("StopCount() = %d, want 1", mp.StopCount())
	}
}

func TestMockPlayer_Release(t *testing.T) {
	mp := NewMockPlayer()
	mp.Block = true
	mp.Release()

	if err := mp.Play(context.Background(), "a.mp3"); err != nil {
		t.Errorf("Play() after Release() = %v", err)
	}
}
