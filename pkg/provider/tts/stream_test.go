package tts_test

import (
	"errors"
	"testing"

	"github.com/MrWong99/lexivox/pkg/audio"
	"github.com/MrWong99/lexivox/pkg/provider/tts"
)

func TestStream_FinishRecordsErrorOnce(t *testing.T) {
	t.Parallel()

	s, out, finish := tts.NewStream(audio.Format{SampleRate: 24000, Channels: 1}, 2)
	out <- []byte{1, 2}
	boom := errors.New("boom")
	finish(boom)
	finish(nil)

	var got [][]byte
	for chunk := range s.Audio {
		got = append(got, chunk)
	}
	if len(got) != 1 {
		t.Errorf("got %d chunks, want 1", len(got))
	}
	if !errors.Is(s.Err(), boom) {
		t.Errorf("Err() = %v, want boom", s.Err())
	}
	if s.Format.SampleRate != 24000 {
		t.Errorf("Format = %v", s.Format)
	}
}

func TestSingleText(t *testing.T) {
	t.Parallel()
	var got []string
	for s := range tts.SingleText("apple") {
		got = append(got, s)
	}
	if len(got) != 1 || got[0] != "apple" {
		t.Errorf("got %v", got)
	}
}
