// Package deepgram implements stt.Provider with Deepgram live transcription
// over a WebSocket.
//
// Answers in lexivox are single words or short phrases, so the stream is
// tuned for that: punctuation and smart formatting are off, and a short
// endpointing window finalizes an answer soon after the learner stops.
package deepgram

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/lexivox/pkg/provider/stt"
)

const (
	defaultEndpoint    = "wss://api.deepgram.com/v1/listen"
	defaultModel       = "nova-3"
	defaultLanguage    = "en-US"
	defaultSampleRate  = 16000
	defaultEndpointing = 300 * time.Millisecond

	// Deepgram drops a stream that has seen neither audio nor KeepAlive
	// for about ten seconds.
	defaultKeepAlive = 5 * time.Second
)

// Option configures a [Provider].
type Option func(*Provider)

// WithModel selects the Deepgram model, e.g. "nova-3" or "base".
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage is used for streams whose config has no language.
func WithLanguage(language string) Option {
	return func(p *Provider) { p.language = language }
}

// WithSampleRate is used for streams whose config has no sample rate.
func WithSampleRate(rate int) Option {
	return func(p *Provider) { p.sampleRate = rate }
}

// WithEndpoint replaces the wss:// URL of the listen API.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) { p.endpoint = endpoint }
}

// WithEndpointing sets how much trailing silence finalizes an utterance.
// Zero or less leaves the decision to Deepgram.
func WithEndpointing(d time.Duration) Option {
	return func(p *Provider) { p.endpointing = d }
}

// WithKeepAlive sets how long a stream may go without audio before a
// KeepAlive message is sent.
func WithKeepAlive(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.keepAlive = d
		}
	}
}

// Provider opens Deepgram streams. It holds no connection itself and is safe
// for concurrent use.
type Provider struct {
	apiKey      string
	endpoint    string
	model       string
	language    string
	sampleRate  int
	endpointing time.Duration
	keepAlive   time.Duration
}

var _ stt.Provider = (*Provider)(nil)

// New returns a Provider authenticating with apiKey.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: api key is required")
	}
	p := &Provider{
		apiKey:      apiKey,
		endpoint:    defaultEndpoint,
		model:       defaultModel,
		language:    defaultLanguage,
		sampleRate:  defaultSampleRate,
		endpointing: defaultEndpointing,
		keepAlive:   defaultKeepAlive,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// StartStream dials the listen API. The returned session is independent of
// ctx once the dial succeeded.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	target, err := p.streamURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("deepgram: stream url: %w", err)
	}
	conn, _, err := websocket.Dial(ctx, target, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": {"Token " + p.apiKey}},
	})
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}
	return startSession(context.WithoutCancel(ctx), conn, cfg.InterimResults, p.keepAlive), nil
}

// streamURL encodes cfg, completed with the provider defaults, as query
// parameters of the listen endpoint.
func (p *Provider) streamURL(cfg stt.StreamConfig) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}

	language := cmp.Or(cfg.Language, p.language)
	rate := cfg.SampleRate
	if rate <= 0 {
		rate = p.sampleRate
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", language)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(rate))
	q.Set("interim_results", strconv.FormatBool(cfg.InterimResults))
	q.Set("punctuate", "false")
	q.Set("smart_format", "false")
	if p.endpointing > 0 {
		q.Set("endpointing", strconv.FormatInt(p.endpointing.Milliseconds(), 10))
	}
	if cfg.Channels > 0 {
		q.Set("channels", strconv.Itoa(cfg.Channels))
	}
	if cfg.MaxAlternatives > 1 {
		q.Set("alternatives", strconv.Itoa(cfg.MaxAlternatives))
	}
	for _, kw := range cfg.Keywords {
		q.Add("keywords", kw.Keyword+":"+strconv.FormatFloat(kw.Boost, 'g', -1, 64))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
