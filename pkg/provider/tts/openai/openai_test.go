package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrWong99/lexivox/pkg/provider/tts"
	"github.com/MrWong99/lexivox/pkg/types"
)

type speechRequest struct {
	Input          string  `json:"input"`
	Model          string  `json:"model"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed"`
	Instructions   string  `json:"instructions"`
}

func newSpeechServer(t *testing.T, body []byte, got *speechRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			http.NotFound(w, r)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_EmptyKey(t *testing.T) {
	t.Parallel()
	if _, err := New("", ""); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestNew_DefaultModel(t *testing.T) {
	t.Parallel()
	p, err := New("sk-test", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.model != DefaultModel {
		t.Errorf("model = %q, want %q", p.model, DefaultModel)
	}
	if p.defaultVoice != DefaultVoice {
		t.Errorf("defaultVoice = %q, want %q", p.defaultVoice, DefaultVoice)
	}
}

func TestSynthesizeStream(t *testing.T) {
	t.Parallel()

	pcm := bytes.Repeat([]byte{1, 0}, 6000) // 12000 bytes, spans several chunks
	var got speechRequest
	srv := newSpeechServer(t, pcm, &got)

	p, err := New("sk-test", "tts-1", WithBaseURL(srv.URL), WithInstructions("slowly"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	text := make(chan string, 2)
	text <- "an orange "
	text <- "fruit"
	close(text)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := p.SynthesizeStream(ctx, text, types.VoiceProfile{ID: "nova", SpeedFactor: 0.8})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}

	var out []byte
	for chunk := range stream.Audio {
		if len(chunk)%2 != 0 {
			t.Errorf("chunk of %d bytes is not sample aligned", len(chunk))
		}
		out = append(out, chunk...)
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if !bytes.Equal(out, pcm) {
		t.Errorf("received %d bytes, want %d", len(out), len(pcm))
	}
	if stream.Format.SampleRate != 24000 || stream.Format.Channels != 1 {
		t.Errorf("format = %s, want 24000Hz mono", stream.Format)
	}

	if got.Input != "an orange fruit" {
		t.Errorf("input = %q", got.Input)
	}
	if got.Model != "tts-1" || got.Voice != "nova" || got.ResponseFormat != "pcm" {
		t.Errorf("request = %+v", got)
	}
	if got.Speed != 0.8 {
		t.Errorf("speed = %v, want 0.8", got.Speed)
	}
	if got.Instructions != "slowly" {
		t.Errorf("instructions = %q", got.Instructions)
	}
}

func TestSynthesizeStream_DefaultVoice(t *testing.T) {
	t.Parallel()

	var got speechRequest
	srv := newSpeechServer(t, []byte{0, 0}, &got)
	p, _ := New("sk-test", "", WithBaseURL(srv.URL), WithDefaultVoice("sage"))

	stream, err := p.SynthesizeStream(context.Background(), tts.SingleText("hello"), types.VoiceProfile{})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	for range stream.Audio {
	}
	if got.Voice != "sage" {
		t.Errorf("voice = %q, want sage", got.Voice)
	}
	if got.Speed != 0 {
		t.Errorf("speed = %v, want omitted", got.Speed)
	}
}

func TestSynthesizeStream_EmptyInput(t *testing.T) {
	t.Parallel()
	p, _ := New("sk-test", "")
	if _, err := p.SynthesizeStream(context.Background(), tts.SingleText("   "), types.VoiceProfile{}); err == nil {
		t.Fatal("expected error for empty input")
	}
}

type oddReader struct {
	parts [][]byte
}

func (r *oddReader) Read(p []byte) (int, error) {
	if len(r.parts) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.parts[0])
	r.parts = r.parts[1:]
	return n, nil
}

func TestCopyChunks_KeepsAlignment(t *testing.T) {
	t.Parallel()

	r := &oddReader{parts: [][]byte{{1, 2, 3}, {4, 5, 6}, {7}}}
	out := make(chan []byte, 8)
	if err := copyChunks(context.Background(), r, out); err != nil {
		t.Fatalf("copyChunks: %v", err)
	}
	close(out)

	var all []byte
	for c := range out {
		if len(c)%2 != 0 {
			t.Errorf("unaligned chunk %v", c)
		}
		all = append(all, c...)
	}
	// The trailing odd byte is dropped.
	if want := []byte{1, 2, 3, 4, 5, 6}; !bytes.Equal(all, want) {
		t.Errorf("got %v, want %v", all, want)
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestCopyChunks_ReadError(t *testing.T) {
	t.Parallel()
	if err := copyChunks(context.Background(), errReader{}, make(chan []byte, 1)); err == nil {
		t.Fatal("expected error")
	}
}

func TestListVoices(t *testing.T) {
	t.Parallel()
	p, _ := New("sk-test", "", WithDefaultVoice("coral"))
	voices, err := p.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) != len(builtinVoices) {
		t.Fatalf("got %d voices, want %d", len(voices), len(builtinVoices))
	}
	defaults := 0
	for _, v := range voices {
		if v.Default {
			defaults++
			if v.ID != "coral" {
				t.Errorf("default voice = %q, want coral", v.ID)
			}
		}
		if v.Provider != "openai" {
			t.Errorf("provider = %q", v.Provider)
		}
	}
	if defaults != 1 {
		t.Errorf("got %d default voices, want 1", defaults)
	}
}
