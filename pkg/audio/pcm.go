package audio

import (
	"math"
	"time"
)

// ToFloat32 converts 16-bit PCM to samples in [-1, 1], down-mixing to mono by
// averaging channels. A trailing partial frame is ignored.
func ToFloat32(pcm []byte, channels int) []float32 {
	if channels <= 0 {
		channels = 1
	}
	frames := len(pcm) / (2 * channels)
	out := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			sum += float32(sampleAt(pcm, i*channels+ch)) / 32768.0
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// RMS returns the root-mean-square energy of 16-bit PCM on the int16 scale.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		v := float64(sampleAt(pcm, i))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// Duration returns the play time of pcm in format f.
func Duration(pcm []byte, f Format) time.Duration {
	bps := f.SampleRate * f.Channels * 2
	if bps <= 0 {
		return 0
	}
	return time.Duration(len(pcm)) * time.Second / time.Duration(bps)
}

// ScaleVolume returns pcm with every sample multiplied by gain, clamped to
// the int16 range. A gain of 1 returns the input unchanged.
func ScaleVolume(pcm []byte, gain float64) []byte {
	if gain == 1 {
		return pcm
	}
	n := len(pcm) / 2
	out := make([]byte, n*2)
	for i := range n {
		v := float64(sampleAt(pcm, i)) * gain
		putSample(out, i, clamp16(int32(math.Round(v))))
	}
	return out
}
