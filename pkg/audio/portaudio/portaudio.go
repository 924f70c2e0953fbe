// Package portaudio implements [audio.Source] and [audio.Sink] on the host's
// default input and output devices via PortAudio.
//
// Call Open once at startup and Close on shutdown; Open initialises the
// PortAudio library and Close terminates it.
package portaudio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/lexivox/pkg/audio"
	pa "github.com/gordonklaus/portaudio"
)

// framesPerBuffer is 64 ms at 16 kHz. Small enough for responsive partials,
// large enough to avoid overruns on slow hosts.
const framesPerBuffer = 1024

var errClosed = errors.New("portaudio: device closed")

// Device owns the PortAudio library lifetime and hands out capture and
// playback streams on the default devices.
type Device struct {
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

var _ audio.Device = (*Device)(nil)

// Open initialises PortAudio.
func Open() (*Device, error) {
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}
	return &Device{}, nil
}

// Close waits for running streams to stop and terminates PortAudio. It is
// safe to call more than once.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
	if err := pa.Terminate(); err != nil {
		return fmt.Errorf("portaudio: terminate: %w", err)
	}
	return nil
}

func (d *Device) acquire() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errClosed
	}
	d.wg.Add(1)
	return nil
}

// Capture opens the default input device and streams frames until ctx is
// cancelled.
func (d *Device) Capture(ctx context.Context, f audio.Format) (<-chan audio.AudioFrame, error) {
	if err := d.acquire(); err != nil {
		return nil, err
	}
	buf := make([]int16, framesPerBuffer*f.Channels)
	stream, err := pa.OpenDefaultStream(f.Channels, 0, float64(f.SampleRate), framesPerBuffer, buf)
	if err != nil {
		d.wg.Done()
		return nil, fmt.Errorf("portaudio: open input %s: %w", f, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		d.wg.Done()
		return nil, fmt.Errorf("portaudio: start input: %w", err)
	}

	out := make(chan audio.AudioFrame, 32)
	go func() {
		defer d.wg.Done()
		defer close(out)
		defer func() {
			_ = stream.Stop()
			_ = stream.Close()
		}()

		start := time.Now()
		for ctx.Err() == nil {
			if err := stream.Read(); err != nil {
				if errors.Is(err, pa.InputOverflowed) {
					continue
				}
				slog.Warn("portaudio: capture read failed", "err", err)
				return
			}
			frame := audio.AudioFrame{
				Data:       int16ToBytes(buf),
				SampleRate: f.SampleRate,
				Channels:   f.Channels,
				Timestamp:  time.Since(start),
			}
			select {
			case out <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Play opens the default output device and plays pcm until it is closed or
// ctx is cancelled.
func (d *Device) Play(ctx context.Context, f audio.Format, pcm <-chan []byte) error {
	if err := d.acquire(); err != nil {
		go audio.Drain(pcm)
		return err
	}
	defer d.wg.Done()

	buf := make([]int16, framesPerBuffer*f.Channels)
	stream, err := pa.OpenDefaultStream(0, f.Channels, float64(f.SampleRate), framesPerBuffer, buf)
	if err != nil {
		go audio.Drain(pcm)
		return fmt.Errorf("portaudio: open output %s: %w", f, err)
	}
	defer stream.Close()
	if err := stream.Start(); err != nil {
		go audio.Drain(pcm)
		return fmt.Errorf("portaudio: start output: %w", err)
	}

	var pending []int16
	write := func() error {
		for len(pending) >= len(buf) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			copy(buf, pending[:len(buf)])
			pending = pending[len(buf):]
			if err := stream.Write(); err != nil && !errors.Is(err, pa.OutputUnderflowed) {
				return fmt.Errorf("portaudio: write: %w", err)
			}
		}
		return nil
	}

	for {
		select {
		case chunk, ok := <-pcm:
			if !ok {
				// Pad the tail with silence so the last samples are played.
				if rem := len(pending) % len(buf); rem != 0 {
					pending = append(pending, make([]int16, len(buf)-rem)...)
				}
				if err := write(); err != nil {
					_ = stream.Abort()
					return err
				}
				return stream.Stop()
			}
			pending = append(pending, bytesToInt16(chunk)...)
			if err := write(); err != nil {
				_ = stream.Abort()
				go audio.Drain(pcm)
				return err
			}
		case <-ctx.Done():
			_ = stream.Abort()
			go audio.Drain(pcm)
			return ctx.Err()
		}
	}
}

func int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func bytesToInt16(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

var (
	_ audio.Source = (*Device)(nil)
	_ audio.Sink   = (*Device)(nil)
	_ audio.Device = (*Device)(nil)
)
