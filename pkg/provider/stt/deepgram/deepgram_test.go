package deepgram

import (
	"net/url"
	"testing"
	"time"

	"github.com/MrWong99/lexivox/pkg/provider/stt"
	"github.com/MrWong99/lexivox/pkg/types"
)

func query(t *testing.T, p *Provider, cfg stt.StreamConfig) url.Values {
	t.Helper()
	raw, err := p.streamURL(cfg)
	if err != nil {
		t.Fatalf("streamURL: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u.Query()
}

func TestNew_RequiresKey(t *testing.T) {
	t.Parallel()
	if _, err := New(""); err == nil {
		t.Error("New accepted an empty api key")
	}
}

func TestStreamURL(t *testing.T) {
	t.Parallel()
	tuned, err := New("key",
		WithModel("base"),
		WithLanguage("de-DE"),
		WithSampleRate(48000),
		WithEndpointing(0),
	)
	if err != nil {
		t.Fatal(err)
	}
	defaults, err := New("key")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		p    *Provider
		cfg  stt.StreamConfig
		want map[string]string
	}{
		{
			name: "defaults",
			p:    defaults,
			cfg:  stt.StreamConfig{SampleRate: 16000, Channels: 1, InterimResults: true},
			want: map[string]string{
				"model": "nova-3", "language": "en-US", "encoding": "linear16",
				"sample_rate": "16000", "channels": "1", "interim_results": "true",
				"punctuate": "false", "smart_format": "false", "endpointing": "300",
				"alternatives": "",
			},
		},
		{
			name: "provider options fill the gaps",
			p:    tuned,
			cfg:  stt.StreamConfig{},
			want: map[string]string{
				"model": "base", "language": "de-DE", "sample_rate": "48000",
				"interim_results": "false", "endpointing": "", "channels": "",
			},
		},
		{
			name: "stream config wins",
			p:    tuned,
			cfg:  stt.StreamConfig{Language: "fr-FR", SampleRate: 16000, MaxAlternatives: 3},
			want: map[string]string{"language": "fr-FR", "sample_rate": "16000", "alternatives": "3"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			q := query(t, tt.p, tt.cfg)
			for key, want := range tt.want {
				if got := q.Get(key); got != want {
					t.Errorf("%s = %q, want %q", key, got, want)
				}
			}
		})
	}
}

func TestStreamURL_Keywords(t *testing.T) {
	t.Parallel()
	p, _ := New("key")
	q := query(t, p, stt.StreamConfig{Keywords: []types.KeywordBoost{
		{Keyword: "Apfel", Boost: 2},
		{Keyword: "Birne", Boost: 1.5},
	}})

	got := q["keywords"]
	if len(got) != 2 || got[0] != "Apfel:2" || got[1] != "Birne:1.5" {
		t.Errorf("keywords = %v", got)
	}
}

func TestDecodeResults(t *testing.T) {
	t.Parallel()
	tr, ok := decodeResults([]byte(`{
		"type": "Results", "is_final": true, "start": 1.5, "duration": 0.9,
		"channel": {"alternatives": [
			{"transcript": "apple", "confidence": 0.95,
			 "words": [{"word": "apple", "start": 1.6, "end": 2.1, "confidence": 0.95}]},
			{"transcript": "a pull", "confidence": 0.41,
			 "words": [{"word": "a", "start": 1.6, "end": 1.7, "confidence": 0.4}]}
		]}
	}`))
	if !ok {
		t.Fatal("Results message rejected")
	}
	if !tr.IsFinal || tr.Text != "apple" || tr.Confidence != 0.95 {
		t.Errorf("best = %q/%v final=%v", tr.Text, tr.Confidence, tr.IsFinal)
	}
	if len(tr.Alternatives) != 2 || tr.Alternatives[1].Text != "a pull" {
		t.Errorf("alternatives = %+v", tr.Alternatives)
	}
	if len(tr.Words) != 1 || tr.Words[0].Start != 1600*time.Millisecond {
		t.Errorf("words = %+v, want only the best hypothesis' words", tr.Words)
	}
	if tr.Timestamp != 1500*time.Millisecond || tr.Duration != 900*time.Millisecond {
		t.Errorf("timing = %v+%v", tr.Timestamp, tr.Duration)
	}
}

func TestDecodeResults_Ignored(t *testing.T) {
	t.Parallel()
	for name, raw := range map[string]string{
		"metadata":      `{"type":"Metadata","request_id":"abc"}`,
		"utterance end": `{"type":"UtteranceEnd","last_word_end":2.1}`,
		"no hypotheses": `{"type":"Results","is_final":true,"channel":{"alternatives":[]}}`,
		"garbage":       `{invalid`,
	} {
		if _, ok := decodeResults([]byte(raw)); ok {
			t.Errorf("%s: accepted", name)
		}
	}
}
