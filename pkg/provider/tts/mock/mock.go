// Package mock is a scripted tts.Provider for tests. Every synthesis plays
// back SynthesizeChunks and records the full text it was asked to speak.
//
//	p := &mock.Provider{
//	    SynthesizeChunks: [][]byte{{0, 0}, {1, 0}},
//	    ListVoicesResult: []types.VoiceProfile{{ID: "v1", Name: "Samantha", Language: "en-US"}},
//	}
package mock

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/MrWong99/lexivox/pkg/audio"
	"github.com/MrWong99/lexivox/pkg/provider/tts"
	"github.com/MrWong99/lexivox/pkg/types"
)

// Utterance is one SynthesizeStream request.
type Utterance struct {
	Ctx   context.Context
	Text  string // all fragments, joined
	Voice types.VoiceProfile
}

// Provider is configured through its exported fields before first use.
type Provider struct {
	// Format of every stream. Zero means 16 kHz mono.
	Format audio.Format

	SynthesizeChunks [][]byte
	// SynthesizeErr fails stream setup.
	SynthesizeErr error
	// StreamErr ends each stream after its chunks.
	StreamErr error

	ListVoicesResult []types.VoiceProfile
	ListVoicesErr    error

	mu         sync.Mutex
	utterances []Utterance
	listings   int
}

var _ tts.Provider = (*Provider)(nil)

func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice types.VoiceProfile) (*tts.Stream, error) {
	var sb strings.Builder
	for frag := range text {
		sb.WriteString(frag)
	}

	p.mu.Lock()
	p.utterances = append(p.utterances, Utterance{Ctx: ctx, Text: sb.String(), Voice: voice})
	setupErr, streamErr := p.SynthesizeErr, p.StreamErr
	chunks := slices.Clone(p.SynthesizeChunks)
	format := p.Format
	p.mu.Unlock()

	if setupErr != nil {
		return nil, setupErr
	}
	if format.SampleRate == 0 {
		format = audio.Format{SampleRate: 16000, Channels: 1}
	}

	stream, out, finish := tts.NewStream(format, len(chunks))
	go func() {
		for _, c := range chunks {
			select {
			case out <- c:
			case <-ctx.Done():
				finish(ctx.Err())
				return
			}
		}
		finish(streamErr)
	}()
	return stream, nil
}

func (p *Provider) ListVoices(context.Context) ([]types.VoiceProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listings++
	return p.ListVoicesResult, p.ListVoicesErr
}

// Calls returns the utterances requested so far, oldest first.
func (p *Provider) Calls() []Utterance {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Utterance(nil), p.utterances...)
}

// VoiceListings is the number of ListVoices calls.
func (p *Provider) VoiceListings() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listings
}
