// Package elevenlabs provides a tts.Provider backed by the ElevenLabs
// stream-input WebSocket API.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/MrWong99/lexivox/pkg/audio"
	"github.com/MrWong99/lexivox/pkg/provider/tts"
	"github.com/MrWong99/lexivox/pkg/types"
	"github.com/coder/websocket"
)

const (
	defaultWSBase    = "wss://api.elevenlabs.io"
	defaultHTTPBase  = "https://api.elevenlabs.io"
	defaultModel     = "eleven_flash_v2_5"
	defaultOutputFmt = "pcm_16000"
)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithOutputFormat sets the PCM output format ("pcm_16000", "pcm_24000", ...).
func WithOutputFormat(format string) Option {
	return func(p *Provider) { p.outputFormat = format }
}

// WithBaseURLs overrides the WebSocket and REST base URLs. Tests point them
// at an httptest server.
func WithBaseURLs(wsBase, httpBase string) Option {
	return func(p *Provider) {
		p.wsBase = strings.TrimRight(wsBase, "/")
		p.httpBase = strings.TrimRight(httpBase, "/")
	}
}

// WithHTTPClient sets the client used for REST calls.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// Provider implements tts.Provider on ElevenLabs.
type Provider struct {
	apiKey       string
	model        string
	outputFormat string
	wsBase       string
	httpBase     string
	httpClient   *http.Client
}

// New creates a Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: api key is required")
	}
	p := &Provider{
		apiKey:       apiKey,
		model:        defaultModel,
		outputFormat: defaultOutputFmt,
		wsBase:       defaultWSBase,
		httpBase:     defaultHTTPBase,
		httpClient:   http.DefaultClient,
	}
	for _, o := range opts {
		o(p)
	}
	if _, err := parseOutputFormat(p.outputFormat); err != nil {
		return nil, err
	}
	return p, nil
}

// Messages of the stream-input socket.

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

type textMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key,omitempty"`
	Flush         bool           `json:"flush,omitempty"`
}

type audioResponse struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SynthesizeStream opens the stream-input socket for voice, forwards text
// fragments and emits decoded PCM.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice types.VoiceProfile) (*tts.Stream, error) {
	if voice.ID == "" {
		return nil, errors.New("elevenlabs: voice.ID must not be empty")
	}
	format, _ := parseOutputFormat(p.outputFormat)

	conn, _, err := websocket.Dial(ctx, p.streamURL(voice.ID), nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: dial: %w", err)
	}
	conn.SetReadLimit(4 << 20)

	// The first message authenticates and must carry a single space.
	boi, _ := json.Marshal(textMessage{Text: " ", VoiceSettings: settingsFor(voice), XiAPIKey: p.apiKey})
	if err := conn.Write(ctx, websocket.MessageText, boi); err != nil {
		conn.Close(websocket.StatusInternalError, "handshake failed")
		return nil, fmt.Errorf("elevenlabs: open stream: %w", err)
	}

	stream, out, finish := tts.NewStream(format, 64)

	readErr := make(chan error, 1)
	go func() {
		readErr <- p.readAudio(ctx, conn, out)
	}()

	go func() {
		defer conn.Close(websocket.StatusNormalClosure, "done")
		for {
			select {
			case frag, ok := <-text:
				if !ok {
					eos, _ := json.Marshal(textMessage{Text: ""})
					if err := conn.Write(ctx, websocket.MessageText, eos); err != nil {
						finish(fmt.Errorf("elevenlabs: send EOS: %w", err))
						return
					}
					finish(<-readErr)
					return
				}
				if strings.TrimSpace(frag) == "" {
					continue
				}
				msg, _ := json.Marshal(textMessage{Text: ensureTrailingSpace(frag), Flush: true})
				if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
					finish(fmt.Errorf("elevenlabs: send text: %w", err))
					return
				}
			case err := <-readErr:
				// The server ended the stream before we finished sending.
				finish(err)
				return
			case <-ctx.Done():
				finish(ctx.Err())
				return
			}
		}
	}()

	return stream, nil
}

// readAudio decodes audio messages until the final marker or socket close.
func (p *Provider) readAudio(ctx context.Context, conn *websocket.Conn, out chan<- []byte) error {
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("elevenlabs: read: %w", err)
		}
		var resp audioResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			continue
		}
		if resp.Error != "" {
			return fmt.Errorf("elevenlabs: %s: %s", resp.Error, resp.Message)
		}
		if resp.Audio != "" {
			pcm, err := base64.StdEncoding.DecodeString(resp.Audio)
			if err != nil {
				continue
			}
			select {
			case out <- pcm:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if resp.IsFinal {
			return nil
		}
	}
}

func (p *Provider) streamURL(voiceID string) string {
	q := url.Values{}
	q.Set("model_id", p.model)
	q.Set("output_format", p.outputFormat)
	return fmt.Sprintf("%s/v1/text-to-speech/%s/stream-input?%s", p.wsBase, url.PathEscape(voiceID), q.Encode())
}

// settingsFor maps a voice profile's speed onto ElevenLabs settings.
// ElevenLabs accepts speeds between 0.7 and 1.2.
func settingsFor(voice types.VoiceProfile) *voiceSettings {
	vs := &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75}
	if voice.SpeedFactor > 0 {
		vs.Speed = min(max(voice.SpeedFactor, 0.7), 1.2)
	}
	return vs
}

func ensureTrailingSpace(s string) string {
	if strings.HasSuffix(s, " ") {
		return s
	}
	return s + " "
}

// parseOutputFormat turns "pcm_24000" into a mono format.
func parseOutputFormat(f string) (audio.Format, error) {
	rate, ok := strings.CutPrefix(f, "pcm_")
	if !ok {
		return audio.Format{}, fmt.Errorf("elevenlabs: output format %q is not raw PCM", f)
	}
	sr, err := strconv.Atoi(rate)
	if err != nil || sr <= 0 {
		return audio.Format{}, fmt.Errorf("elevenlabs: invalid output format %q", f)
	}
	return audio.Format{SampleRate: sr, Channels: 1}, nil
}

var _ tts.Provider = (*Provider)(nil)
