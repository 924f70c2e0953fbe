package audio_test

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/MrWong99/lexivox/pkg/audio"
)

func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func bytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}

func equalSamples(t *testing.T, got, want []int16) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestMonoToStereo(t *testing.T) {
	t.Parallel()
	got := bytesToSamples(audio.MonoToStereo(samplesToBytes([]int16{100, -200, 300})))
	equalSamples(t, got, []int16{100, 100, -200, -200, 300, 300})
}

func TestStereoToMono(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   []int16
		want []int16
	}{
		{name: "average", in: []int16{100, 300, -100, -300}, want: []int16{200, -200}},
		{name: "extremes", in: []int16{32767, 32767, -32768, -32768}, want: []int16{32767, -32768}},
		{name: "trailing half frame", in: []int16{10, 20, 30}, want: []int16{15}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			equalSamples(t, bytesToSamples(audio.StereoToMono(samplesToBytes(tt.in))), tt.want)
		})
	}
}

func TestResample16(t *testing.T) {
	t.Parallel()

	in := samplesToBytes([]int16{0, 100, 200, 300})
	if got := audio.Resample16(in, 1, 16000, 16000); len(got) != len(in) {
		t.Errorf("same rate should be a no-op, got %d bytes", len(got))
	}

	up := bytesToSamples(audio.Resample16(in, 1, 8000, 16000))
	equalSamples(t, up, []int16{0, 50, 100, 150, 200, 250, 300, 300})

	down := bytesToSamples(audio.Resample16(samplesToBytes([]int16{0, 10, 20, 30, 40, 50}), 1, 48000, 16000))
	equalSamples(t, down, []int16{0, 30})

	stereo := bytesToSamples(audio.Resample16(samplesToBytes([]int16{0, 1000, 100, 1100}), 2, 8000, 16000))
	equalSamples(t, stereo, []int16{0, 1000, 50, 1050, 100, 1100, 100, 1100})

	if got := audio.Resample16(in, 1, 0, 16000); len(got) != len(in) {
		t.Error("zero source rate should return input unchanged")
	}
}

func TestConverter(t *testing.T) {
	t.Parallel()

	conv := audio.Converter{Target: audio.Format{SampleRate: 16000, Channels: 1}}

	same := audio.AudioFrame{Data: samplesToBytes([]int16{1, 2}), SampleRate: 16000, Channels: 1}
	if got := conv.Convert(same); len(got.Data) != 4 {
		t.Errorf("matching format should pass through, got %d bytes", len(got.Data))
	}

	// 32 kHz stereo -> 16 kHz mono: average channels, keep every other frame.
	src := audio.AudioFrame{
		Data:       samplesToBytes([]int16{100, 300, 500, 700, 900, 1100, 1300, 1500}),
		SampleRate: 32000,
		Channels:   2,
		Timestamp:  20 * time.Millisecond,
	}
	got := conv.Convert(src)
	if got.SampleRate != 16000 || got.Channels != 1 {
		t.Fatalf("format = %dHz/%dch", got.SampleRate, got.Channels)
	}
	if got.Timestamp != src.Timestamp {
		t.Errorf("timestamp not preserved: %v", got.Timestamp)
	}
	equalSamples(t, bytesToSamples(got.Data), []int16{200, 1000})

	odd := conv.Convert(audio.AudioFrame{Data: []byte{1, 2, 3}, SampleRate: 16000, Channels: 1})
	if odd.Data != nil {
		t.Errorf("odd byte count should produce nil data, got %v", odd.Data)
	}
}

func TestConvertStream(t *testing.T) {
	t.Parallel()

	in := make(chan audio.AudioFrame, 3)
	in <- audio.AudioFrame{Data: samplesToBytes([]int16{5}), SampleRate: 16000, Channels: 1}
	in <- audio.AudioFrame{Data: []byte{1}, SampleRate: 16000, Channels: 1}
	in <- audio.AudioFrame{Data: samplesToBytes([]int16{7}), SampleRate: 16000, Channels: 1}
	close(in)

	var n int
	for f := range audio.ConvertStream(in, audio.Format{SampleRate: 16000, Channels: 2}) {
		if f.Channels != 2 {
			t.Errorf("channels = %d", f.Channels)
		}
		n++
	}
	if n != 2 {
		t.Errorf("got %d frames, want 2 (corrupt frame dropped)", n)
	}
}

func TestFormat(t *testing.T) {
	t.Parallel()
	f := audio.Format{SampleRate: 16000, Channels: 1}
	if f.String() != "16000Hz mono" {
		t.Errorf("String() = %q", f.String())
	}
	if f.BytesPerMillisecond() != 32 {
		t.Errorf("BytesPerMillisecond() = %d", f.BytesPerMillisecond())
	}
}
