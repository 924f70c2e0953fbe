package audio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"
)

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// String returns e.g. "16000Hz mono".
func (f Format) String() string {
	switch f.Channels {
	case 1:
		return fmt.Sprintf("%dHz mono", f.SampleRate)
	case 2:
		return fmt.Sprintf("%dHz stereo", f.SampleRate)
	default:
		return fmt.Sprintf("%dHz %dch", f.SampleRate, f.Channels)
	}
}

// BytesPerMillisecond returns the byte rate of 16-bit PCM in this format.
func (f Format) BytesPerMillisecond() int {
	return f.SampleRate * f.Channels * 2 / 1000
}

// Converter rewrites frames into a target format. Devices rarely offer the
// 16 kHz mono the recognizers want, so capture frames go through one of
// these. Create one per stream.
type Converter struct {
	Target Format
	warned sync.Once
}

// Convert resamples and then channel-converts frame. Frames already in the
// target format are returned unchanged. A frame with an odd byte count is
// not valid 16-bit PCM and comes back with nil Data.
func (c *Converter) Convert(frame AudioFrame) AudioFrame {
	if len(frame.Data)%2 != 0 {
		return AudioFrame{SampleRate: c.Target.SampleRate, Channels: c.Target.Channels, Timestamp: frame.Timestamp}
	}
	if frame.SampleRate == c.Target.SampleRate && frame.Channels == c.Target.Channels {
		return frame
	}
	c.warned.Do(func() {
		slog.Debug("audio: converting frames",
			"from", Format{frame.SampleRate, frame.Channels},
			"to", c.Target,
		)
	})

	pcm := frame.Data
	if frame.Channels == 2 && c.Target.Channels == 1 {
		pcm = StereoToMono(pcm)
	}
	channels := min(frame.Channels, c.Target.Channels)
	if frame.SampleRate != c.Target.SampleRate {
		pcm = Resample16(pcm, channels, frame.SampleRate, c.Target.SampleRate)
	}
	if frame.Channels == 1 && c.Target.Channels == 2 {
		pcm = MonoToStereo(pcm)
	}
	return AudioFrame{
		Data:       pcm,
		SampleRate: c.Target.SampleRate,
		Channels:   c.Target.Channels,
		Timestamp:  frame.Timestamp,
	}
}

// ConvertStream wraps in with a conversion goroutine. The returned channel is
// closed when in closes. Empty frames are dropped.
func ConvertStream(in <-chan AudioFrame, target Format) <-chan AudioFrame {
	out := make(chan AudioFrame, cap(in))
	go func() {
		defer close(out)
		conv := Converter{Target: target}
		for frame := range in {
			if f := conv.Convert(frame); len(f.Data) > 0 {
				out <- f
			}
		}
	}()
	return out
}

// MonoToStereo duplicates each mono sample into an L+R pair.
func MonoToStereo(pcm []byte) []byte {
	n := len(pcm) / 2
	out := make([]byte, n*4)
	for i := range n {
		s := pcm[i*2 : i*2+2]
		copy(out[i*4:], s)
		copy(out[i*4+2:], s)
	}
	return out
}

// StereoToMono averages each L+R pair.
func StereoToMono(pcm []byte) []byte {
	n := len(pcm) / 4
	out := make([]byte, n*2)
	for i := range n {
		l := int32(sampleAt(pcm, i*2))
		r := int32(sampleAt(pcm, i*2+1))
		putSample(out, i, clamp16((l+r)/2))
	}
	return out
}

// Resample16 resamples interleaved 16-bit PCM with the given channel count
// from srcRate to dstRate using linear interpolation. Equal rates return the
// input unchanged.
func Resample16(pcm []byte, channels, srcRate, dstRate int) []byte {
	if srcRate == dstRate || srcRate <= 0 || dstRate <= 0 || channels <= 0 {
		return pcm
	}
	frames := len(pcm) / (2 * channels)
	if frames == 0 {
		return nil
	}
	outFrames := int(int64(frames) * int64(dstRate) / int64(srcRate))
	out := make([]byte, outFrames*2*channels)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range outFrames {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		next := min(idx+1, frames-1)
		for ch := range channels {
			a := float64(sampleAt(pcm, idx*channels+ch))
			b := float64(sampleAt(pcm, next*channels+ch))
			putSample(out, i*channels+ch, clamp16(int32(math.Round(a+(b-a)*frac))))
		}
	}
	return out
}

func sampleAt(pcm []byte, i int) int16 {
	return int16(binary.LittleEndian.Uint16(pcm[i*2:]))
}

func putSample(pcm []byte, i int, v int16) {
	binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
}

func clamp16(v int32) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return int16(v)
	}
}
