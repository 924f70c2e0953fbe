package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/lexivox/internal/speech/playback"
	"github.com/MrWong99/lexivox/pkg/audio"
	"github.com/MrWong99/lexivox/pkg/provider/tts"
	"github.com/MrWong99/lexivox/pkg/types"
)

// pitchRange maps playback pitch (1 = neutral) onto VoiceProfile.PitchShift.
const pitchRange = 10.0

// Synthesizer implements playback.Synthesizer by streaming TTS audio into a
// speaker.
type Synthesizer struct {
	provider tts.Provider
	speaker  audio.Sink

	mu       sync.Mutex
	profiles map[string]types.VoiceProfile // by name
}

// NewSynthesizer returns a Synthesizer.
func NewSynthesizer(provider tts.Provider, speaker audio.Sink) *Synthesizer {
	return &Synthesizer{provider: provider, speaker: speaker}
}

// Voices lists the provider's voices.
func (s *Synthesizer) Voices(ctx context.Context) ([]playback.Voice, error) {
	profiles, err := s.provider.ListVoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("backend: list voices: %w", err)
	}
	byName := make(map[string]types.VoiceProfile, len(profiles))
	voices := make([]playback.Voice, 0, len(profiles))
	for _, p := range profiles {
		name := p.Name
		if name == "" {
			name = p.ID
		}
		byName[name] = p
		voices = append(voices, playback.Voice{
			Name:    name,
			Lang:    p.Language,
			Default: p.Default,
			Local:   p.Metadata["local"] == "true",
		})
	}
	s.mu.Lock()
	s.profiles = byName
	s.mu.Unlock()
	return voices, nil
}

// Speak synthesizes u and blocks until the speaker has played it.
func (s *Synthesizer) Speak(ctx context.Context, u playback.Utterance) error {
	profile := s.profileFor(u)
	stream, err := s.provider.SynthesizeStream(ctx, tts.SingleText(u.Text), profile)
	if err != nil {
		return fmt.Errorf("backend: synthesize: %w", err)
	}

	pcm := stream.Audio
	if u.Volume > 0 && u.Volume != 1 {
		pcm = scaled(stream.Audio, u.Volume)
	}
	playErr := s.speaker.Play(ctx, stream.Format, pcm)
	// Play may return before the provider is done, e.g. on cancellation.
	go audio.Drain(pcm)

	if playErr != nil {
		if errors.Is(playErr, context.Canceled) && ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("backend: play: %w", playErr)
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("backend: synthesis stream: %w", err)
	}
	return nil
}

// profileFor resolves the utterance voice to the provider's profile and
// applies rate and pitch.
func (s *Synthesizer) profileFor(u playback.Utterance) types.VoiceProfile {
	var p types.VoiceProfile
	if u.Voice != nil {
		s.mu.Lock()
		p = s.profiles[u.Voice.Name]
		s.mu.Unlock()
	}
	if p.Language == "" {
		p.Language = u.Lang
	}
	if u.Rate > 0 {
		p.SpeedFactor = u.Rate
	}
	if u.Pitch > 0 {
		p.PitchShift = (u.Pitch - 1) * pitchRange
	}
	return p
}

// scaled applies gain to every chunk of in.
func scaled(in <-chan []byte, gain float64) <-chan []byte {
	out := make(chan []byte, cap(in))
	go func() {
		defer close(out)
		for chunk := range in {
			out <- audio.ScaleVolume(chunk, gain)
		}
	}()
	return out
}

var _ playback.Synthesizer = (*Synthesizer)(nil)
