package playback_test

import (
	"testing"

	"github.com/MrWong99/lexivox/internal/speech/playback"
)

var testVoices = []playback.Voice{
	{Name: "Fred", Lang: "en-US"},
	{Name: "Thomas", Lang: "fr-FR", Default: true},
	{Name: "Samantha (Compact)", Lang: "en-US"},
	{Name: "Daniel", Lang: "en-GB"},
	{Name: "Anna", Lang: "de-DE"},
	{Name: "Karen", Lang: "en-AU"},
}

func TestSelectVoice(t *testing.T) {
	t.Parallel()

	lowQ := playback.Environment{LowQualityVoices: true}
	tests := []struct {
		name      string
		voices    []playback.Voice
		lang      string
		preferred string
		env       playback.Environment
		want      string
	}{
		{"preferred exact language", testVoices, "en-GB", "Daniel", playback.Environment{}, "Daniel"},
		{"preferred by prefix", testVoices, "en-US", "Karen", playback.Environment{}, "Karen"},
		{"preferred wrong language ignored", testVoices, "en-US", "Anna", playback.Environment{}, "Fred"},
		{"preferred unknown ignored", testVoices, "de-DE", "Nobody", playback.Environment{}, "Anna"},
		{"exact tag", testVoices, "en-GB", "", playback.Environment{}, "Daniel"},
		{"exact tag case and underscore", []playback.Voice{{Name: "A", Lang: "en-US"}, {Name: "B", Lang: "EN_gb"}}, "en-GB", "", playback.Environment{}, "B"},
		{"prefix", testVoices, "de-AT", "", playback.Environment{}, "Anna"},
		{"default voice", testVoices, "ja-JP", "", playback.Environment{}, "Thomas"},
		{"first voice", []playback.Voice{{Name: "X", Lang: "it-IT"}, {Name: "Y", Lang: "es-ES"}}, "ja-JP", "", playback.Environment{}, "X"},
		{"empty language means en-US", testVoices, "", "", playback.Environment{}, "Fred"},
		{"quality list order", testVoices, "en-US", "", lowQ, "Samantha (Compact)"},
		{"quality list matches by base language", testVoices, "en-GB", "", lowQ, "Samantha (Compact)"},
		{
			"quality list before exact tag",
			[]playback.Voice{{Name: "Fred", Lang: "en-GB"}, {Name: "Daniel", Lang: "en-GB"}},
			"en-GB", "", lowQ, "Daniel",
		},
		{"preferred beats quality list", testVoices, "en-US", "Fred", lowQ, "Fred"},
		{
			"non compact fallback",
			[]playback.Voice{{Name: "Zed (Compact)", Lang: "en-US"}, {Name: "Zoe", Lang: "en-US"}},
			"en-US", "", lowQ, "Zoe",
		},
		{
			"compact only on normal platform",
			[]playback.Voice{{Name: "Zed (Compact)", Lang: "en-US"}, {Name: "Zoe", Lang: "en-US"}},
			"en-US", "", playback.Environment{}, "Zed (Compact)",
		},
		{
			"custom quality list",
			[]playback.Voice{{Name: "Fred", Lang: "en-US"}, {Name: "Ava", Lang: "en-US"}},
			"en-US", "", playback.Environment{LowQualityVoices: true, QualityVoices: []string{"Ava"}}, "Ava",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := playback.SelectVoice(tt.voices, tt.lang, tt.preferred, tt.env)
			if got == nil {
				t.Fatal("SelectVoice returned nil")
			}
			if got.Name != tt.want {
				t.Errorf("SelectVoice = %q, want %q", got.Name, tt.want)
			}
		})
	}
}

func TestSelectVoice_NoVoices(t *testing.T) {
	t.Parallel()
	if v := playback.SelectVoice(nil, "en-US", "Fred", playback.Environment{LowQualityVoices: true}); v != nil {
		t.Errorf("SelectVoice(nil) = %+v, want nil", v)
	}
}

func TestSelectVoice_ReturnsCopy(t *testing.T) {
	t.Parallel()
	voices := []playback.Voice{{Name: "Fred", Lang: "en-US"}}
	v := playback.SelectVoice(voices, "en-US", "", playback.Environment{})
	v.Name = "changed"
	if voices[0].Name != "Fred" {
		t.Error("SelectVoice result aliases the input slice")
	}
}

func TestEnvironment_Defaults(t *testing.T) {
	t.Parallel()
	tests := []struct {
		env  playback.Environment
		want playback.Options
	}{
		{playback.Environment{LowQualityVoices: true}, playback.Options{Lang: "en-US", Rate: 0.7, Pitch: 0.9, Volume: 0.9}},
		{playback.Environment{}, playback.Options{Lang: "en-US", Rate: 0.9, Pitch: 1, Volume: 1}},
	}
	for _, tt := range tests {
		if got := tt.env.Defaults(); got != tt.want {
			t.Errorf("Defaults() = %+v, want %+v", got, tt.want)
		}
	}
}

func TestDetectEnvironment(t *testing.T) {
	t.Parallel()
	if !playback.DetectEnvironment("true").LowQualityVoices {
		t.Error(`"true" should enable low-quality handling`)
	}
	if playback.DetectEnvironment("false").LowQualityVoices {
		t.Error(`"false" should disable low-quality handling`)
	}
}
