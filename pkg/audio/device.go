// Package audio defines the local audio device abstractions used by lexivox
// and the PCM helpers shared by the speech providers.
//
// The two primary abstractions are:
//
//   - [Source] — a capture device (microphone) that streams PCM frames.
//   - [Sink] — a playback device (speaker) that plays a PCM stream to the end.
//
// The portaudio subpackage implements both on top of the host audio stack. All
// PCM in lexivox is 16-bit signed little-endian.
package audio

import (
	"context"

	"github.com/MrWong99/lexivox/pkg/types"
)

// AudioFrame is an alias kept so device code reads naturally.
type AudioFrame = types.AudioFrame

// Source captures audio from an input device.
//
// Implementations must be safe for concurrent use, but at most one capture is
// expected to be active at a time.
type Source interface {
	// Capture opens the device in the given format and streams frames until
	// ctx is cancelled or the device fails. The returned channel is closed when
	// capture ends.
	Capture(ctx context.Context, f Format) (<-chan AudioFrame, error)
}

// Sink plays audio on an output device.
type Sink interface {
	// Play plays every chunk received on pcm in the given format and returns
	// once pcm is closed and the audio has been handed to the device. If ctx is
	// cancelled playback stops immediately and Play returns ctx.Err(); the rest
	// of pcm is drained in the background.
	Play(ctx context.Context, f Format, pcm <-chan []byte) error
}

// Device is a full-duplex audio device that owns host audio resources.
type Device interface {
	Source
	Sink
	Close() error
}
