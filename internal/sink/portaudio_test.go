package sink

import (
	"testing"
	"time"
)

func newTestSink() *PortAudioSink {
	return &PortAudioSink{drained: make(chan struct{})}
}

func waitOrTimeout(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for drain")
	}
}

func TestCallbackEmitsSilenceBeforePreBuffer(t *testing.T) {
	s := newTestSink()
	if err := s.Feed(make([]byte, 4)); err != nil {
		t.Fatalf("Feed: %v", err)
	}

	out := make([]int16, 2)
	s.callback(out)
	for i, v := range out {
		if v != 0 {
			t.Fatalf("out[%d] = %d, want silence before pre-buffer threshold", i, v)
		}
	}
	if len(s.queue) != 4 {
		t.Fatalf("queue should be untouched before playback starts, got %d bytes", len(s.queue))
	}
}

func TestCallbackStartsAfterPreBufferThreshold(t *testing.T) {
	s := newTestSink()
	chunk := []byte{0x01, 0x00, 0x02, 0x00}
	for i := 0; i < preBufferChunks; i++ {
		if err := s.Feed(chunk); err != nil {
			t.Fatalf("Feed: %v", err)
		}
	}

	out := make([]int16, 1)
	s.callback(out)
	if out[0] != 1 {
		t.Fatalf("out[0] = %d, want 1 (first queued sample) once playing", out[0])
	}
}

func TestFinishTieBreakStartsPlaybackEarly(t *testing.T) {
	s := newTestSink()
	if err := s.Feed([]byte{0x05, 0x00}); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	s.Finish() // only one chunk fed, below preBufferChunks

	out := make([]int16, 1)
	s.callback(out)
	if out[0] != 5 {
		t.Fatalf("out[0] = %d, want 5: finish() should start playback despite unmet pre-buffer", out[0])
	}
}

func TestFinishWithNoAudioDrainsImmediately(t *testing.T) {
	s := newTestSink()
	s.Finish()
	waitOrTimeout(t, s.drained)
}

func TestUnderrunPadsSilenceAfterFinish(t *testing.T) {
	s := newTestSink()
	if err := s.Feed([]byte{0x09, 0x00}); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	s.Finish()

	out := make([]int16, 4)
	s.callback(out)
	if out[0] != 9 {
		t.Fatalf("out[0] = %d, want 9", out[0])
	}
	for i := 1; i < len(out); i++ {
		if out[i] != 0 {
			t.Fatalf("out[%d] = %d, want silence padding on underrun", i, out[i])
		}
	}
	waitOrTimeout(t, s.drained)
}

func TestWaitDoneResetsStateForNextUtterance(t *testing.T) {
	s := newTestSink()
	if err := s.Feed([]byte{0x01, 0x00}); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	s.Finish()
	s.callback(make([]int16, 1)) // drain the single queued sample
	s.WaitDone()

	if s.playing || s.finished || s.chunksFed != 0 || len(s.queue) != 0 {
		t.Fatalf("sink state not reset after WaitDone: %+v", s)
	}

	if err := s.Feed(make([]byte, 4)); err != nil {
		t.Fatalf("Feed after reset: %v", err)
	}
	out := make([]int16, 2)
	s.callback(out)
	if out[0] != 0 {
		t.Fatalf("expected fresh utterance to re-enter pre-buffer gating, got %d", out[0])
	}
}
