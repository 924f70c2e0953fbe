package resilience

import (
	"context"
	"errors"
	"testing"

	ttsmock "github.com/MrWong99/lexivox/pkg/provider/tts/mock"
	"github.com/MrWong99/lexivox/pkg/types"
)

func textChan(fragments ...string) <-chan string {
	ch := make(chan string, len(fragments))
	for _, f := range fragments {
		ch <- f
	}
	close(ch)
	return ch
}

func drain(t *testing.T, ch <-chan []byte) [][]byte {
	t.Helper()
	var out [][]byte
	for c := range ch {
		out = append(out, c)
	}
	return out
}

func TestTTSFallback_SynthesizeStream_PrimarySuccess(t *testing.T) {
	t.Parallel()
	primary := &ttsmock.Provider{SynthesizeChunks: [][]byte{{1, 2}, {3, 4}}}
	secondary := &ttsmock.Provider{}

	f := NewTTSFallback(primary, "elevenlabs", FallbackConfig{})
	f.AddFallback("openai", secondary)

	voice := types.VoiceProfile{ID: "v1", Name: "Samantha"}
	s, err := f.SynthesizeStream(context.Background(), textChan("app", "le"), voice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := drain(t, s.Audio); len(got) != 2 {
		t.Errorf("chunks = %d, want 2", len(got))
	}
	if err := s.Err(); err != nil {
		t.Errorf("stream err = %v", err)
	}
	calls := primary.Calls()
	if len(calls) != 1 || calls[0].Text != "apple" || calls[0].Voice.Name != "Samantha" {
		t.Errorf("primary calls = %+v", calls)
	}
	if len(secondary.Calls()) != 0 {
		t.Error("fallback should not be called")
	}
}

func TestTTSFallback_SynthesizeStream_FailoverReplaysText(t *testing.T) {
	t.Parallel()
	primary := &ttsmock.Provider{SynthesizeErr: errors.New("quota exceeded")}
	secondary := &ttsmock.Provider{SynthesizeChunks: [][]byte{{9}}}

	f := NewTTSFallback(primary, "elevenlabs", FallbackConfig{})
	f.AddFallback("openai", secondary)

	s, err := f.SynthesizeStream(context.Background(), textChan("Correct! ", "apple"), types.VoiceProfile{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	drain(t, s.Audio)

	for name, p := range map[string]*ttsmock.Provider{"primary": primary, "fallback": secondary} {
		calls := p.Calls()
		if len(calls) != 1 || calls[0].Text != "Correct! apple" {
			t.Errorf("%s calls = %+v, want the full text once", name, calls)
		}
	}
}

func TestTTSFallback_SynthesizeStream_AllFail(t *testing.T) {
	t.Parallel()
	f := NewTTSFallback(&ttsmock.Provider{SynthesizeErr: errTest}, "elevenlabs", FallbackConfig{})
	f.AddFallback("openai", &ttsmock.Provider{SynthesizeErr: errTest})

	if _, err := f.SynthesizeStream(context.Background(), textChan("hi"), types.VoiceProfile{}); !errors.Is(err, ErrAllFailed) {
		t.Errorf("err = %v, want ErrAllFailed", err)
	}
}

func TestTTSFallback_ListVoices_Failover(t *testing.T) {
	t.Parallel()
	primary := &ttsmock.Provider{ListVoicesErr: errTest}
	secondary := &ttsmock.Provider{ListVoicesResult: []types.VoiceProfile{{ID: "alloy", Name: "Alloy"}}}

	f := NewTTSFallback(primary, "elevenlabs", FallbackConfig{})
	f.AddFallback("openai", secondary)

	voices, err := f.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(voices) != 1 || voices[0].ID != "alloy" {
		t.Errorf("voices = %+v", voices)
	}
	if primary.VoiceListings() != 1 {
		t.Errorf("primary ListVoices calls = %d, want 1", primary.VoiceListings())
	}
	if f.Serving() != "openai" {
		t.Errorf("Serving() = %q, want openai", f.Serving())
	}
}
