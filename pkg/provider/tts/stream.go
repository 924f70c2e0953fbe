package tts

import (
	"sync"

	"github.com/MrWong99/lexivox/pkg/audio"
)

// Stream is a running synthesis. Audio carries 16-bit PCM in Format.
type Stream struct {
	// Audio emits PCM chunks in order and is closed when synthesis ends.
	Audio <-chan []byte

	// Format is the sample rate and channel count of Audio.
	Format audio.Format

	mu  sync.Mutex
	err error
}

// Err returns the error that ended the stream early, or nil. It is only
// meaningful after Audio has been closed.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// NewStream returns a Stream together with its write side. Providers send
// chunks on out and call finish exactly once; finish records err (which may
// be nil) and closes the Audio channel.
func NewStream(f audio.Format, buffer int) (s *Stream, out chan<- []byte, finish func(err error)) {
	ch := make(chan []byte, buffer)
	s = &Stream{Audio: ch, Format: f}
	var once sync.Once
	finish = func(err error) {
		once.Do(func() {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			close(ch)
		})
	}
	return s, ch, finish
}

// SingleText returns a closed channel holding text. It adapts a whole
// utterance to SynthesizeStream.
func SingleText(text string) <-chan string {
	ch := make(chan string, 1)
	ch <- text
	close(ch)
	return ch
}
