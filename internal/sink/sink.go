// Package sink plays synthesized audio. Two implementations exist: a
// low-latency realtime device sink backed by PortAudio, and an
// external-process fallback that shells out to whatever system audio
// player is available, matching spec.md §4.2 and §9's "the fallback sink
// is an implementation choice" note.
package sink

// Sink accepts streamed PCM audio and plays it. Feed may be called
// repeatedly as chunks arrive; Finish signals that no further chunks are
// coming for the current utterance; WaitDone blocks until playback of
// everything fed since the last Finish has completed.
type Sink interface {
	Feed(chunk []byte) error
	Finish()
	WaitDone()
	Close() error
}
