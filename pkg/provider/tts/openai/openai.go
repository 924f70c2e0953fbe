// Package openai provides a tts.Provider backed by the OpenAI speech API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/lexivox/pkg/audio"
	"github.com/MrWong99/lexivox/pkg/provider/tts"
	"github.com/MrWong99/lexivox/pkg/types"
)

// DefaultModel is the default speech model.
const DefaultModel = string(oai.SpeechModelGPT4oMiniTTS)

// DefaultVoice is used when the caller passes an empty voice ID.
const DefaultVoice = "alloy"

// pcmFormat is what the API returns for response_format=pcm.
var pcmFormat = audio.Format{SampleRate: 24000, Channels: 1}

// chunkSize is 100 ms of 24 kHz mono PCM.
const chunkSize = 4800

// builtinVoices are the voices every API key can use. They are multilingual,
// so they carry no language tag.
var builtinVoices = []string{"alloy", "ash", "ballad", "coral", "echo", "fable", "onyx", "nova", "sage", "shimmer", "verse"}

var _ tts.Provider = (*Provider)(nil)

// Provider implements tts.Provider using the OpenAI audio/speech endpoint.
type Provider struct {
	client       oai.Client
	model        string
	defaultVoice string
	instructions string
}

type config struct {
	baseURL      string
	organization string
	timeout      time.Duration
	voice        string
	instructions string
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithOrganization sets the organization ID on all requests.
func WithOrganization(org string) Option {
	return func(c *config) { c.organization = org }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithDefaultVoice selects the voice reported as default by ListVoices and
// used for profiles without an ID.
func WithDefaultVoice(voice string) Option {
	return func(c *config) { c.voice = voice }
}

// WithInstructions sets speaking-style instructions ("speak slowly and
// clearly") for models that support them.
func WithInstructions(s string) Option {
	return func(c *config) { c.instructions = s }
}

// New constructs a Provider. If model is empty, DefaultModel is used.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai tts: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{voice: DefaultVoice}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(cfg.organization))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	return &Provider{
		client:       oai.NewClient(reqOpts...),
		model:        model,
		defaultVoice: cfg.voice,
		instructions: cfg.instructions,
	}, nil
}

// SynthesizeStream collects the text fragments into one request and streams
// the PCM response body.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice types.VoiceProfile) (*tts.Stream, error) {
	var sb strings.Builder
	for frag := range text {
		sb.WriteString(frag)
	}
	input := strings.TrimSpace(sb.String())
	if input == "" {
		return nil, errors.New("openai tts: empty input")
	}

	params := oai.AudioSpeechNewParams{
		Input:          input,
		Model:          oai.SpeechModel(p.model),
		Voice:          oai.AudioSpeechNewParamsVoice(p.voiceID(voice)),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatPCM,
	}
	if voice.SpeedFactor > 0 {
		// The API accepts 0.25–4.0.
		params.Speed = oai.Float(min(max(voice.SpeedFactor, 0.25), 4.0))
	}
	if p.instructions != "" {
		params.Instructions = oai.String(p.instructions)
	}

	resp, err := p.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai tts: speech: %w", err)
	}

	stream, out, finish := tts.NewStream(pcmFormat, 16)
	go func() {
		defer resp.Body.Close()
		finish(copyChunks(ctx, resp.Body, out))
	}()
	return stream, nil
}

// copyChunks reads r in chunkSize pieces, keeping sample alignment.
func copyChunks(ctx context.Context, r io.Reader, out chan<- []byte) error {
	buf := make([]byte, chunkSize)
	var carry []byte
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := append(carry, buf[:n]...)
			even := len(data) &^ 1
			chunk := make([]byte, even)
			copy(chunk, data[:even])
			carry = append([]byte(nil), data[even:]...)
			if len(chunk) > 0 {
				select {
				case out <- chunk:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("openai tts: read audio: %w", err)
		}
	}
}

func (p *Provider) voiceID(v types.VoiceProfile) string {
	if v.ID != "" {
		return v.ID
	}
	return p.defaultVoice
}

// ListVoices returns the built-in voices.
func (p *Provider) ListVoices(_ context.Context) ([]types.VoiceProfile, error) {
	out := make([]types.VoiceProfile, 0, len(builtinVoices))
	for _, v := range builtinVoices {
		out = append(out, types.VoiceProfile{
			ID:       v,
			Name:     v,
			Provider: "openai",
			Default:  v == p.defaultVoice,
			Metadata: map[string]string{"multilingual": "true"},
		})
	}
	return out, nil
}
