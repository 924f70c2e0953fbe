// Package mock holds scripted stand-ins for [stt.Provider] and
// [stt.SessionHandle].
//
// A test scripts what the recognizer "hears" with Session.Partial and
// Session.Final and inspects the PCM it was fed with Session.Audio:
//
//	sess := mock.NewSession()
//	p := &mock.Provider{Session: sess}
//	handle, _ := p.StartStream(ctx, cfg)
//	sess.Final("apple", 0.93)
//
// Closing a Session closes both transcript channels, so anything scripted
// before Close is still delivered and nothing after it is.
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/lexivox/pkg/provider/stt"
	"github.com/MrWong99/lexivox/pkg/types"
)

// Provider hands out Sessions.
type Provider struct {
	// Session is returned by every StartStream. Nil means a fresh Session
	// per stream.
	Session *Session

	// StartStreamErr makes every StartStream fail.
	StartStreamErr error

	mu       sync.Mutex
	configs  []stt.StreamConfig
	sessions []*Session
}

var _ stt.Provider = (*Provider)(nil)

// StartStream notes cfg and returns the scripted session.
func (p *Provider) StartStream(_ context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.configs = append(p.configs, cfg)
	if p.StartStreamErr != nil {
		return nil, p.StartStreamErr
	}
	s := p.Session
	if s == nil {
		s = NewSession()
	}
	p.sessions = append(p.sessions, s)
	return s, nil
}

// Configs lists the config of every StartStream call, failed ones included.
func (p *Provider) Configs() []stt.StreamConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.configs)
}

// Streams counts StartStream calls.
func (p *Provider) Streams() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.configs)
}

// LastSession is the session handed out most recently, or nil.
func (p *Provider) LastSession() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.sessions) == 0 {
		return nil
	}
	return p.sessions[len(p.sessions)-1]
}

// Session is a scripted live stream.
type Session struct {
	SendAudioErr   error
	SetKeywordsErr error
	CloseErr       error

	partials chan stt.Transcript
	finals   chan stt.Transcript

	mu       sync.Mutex
	audio    [][]byte
	keywords []types.KeywordBoost
	closes   int
}

var _ stt.SessionHandle = (*Session)(nil)

// NewSession returns an open Session that buffers up to 32 scripted
// transcripts of each kind.
func NewSession() *Session {
	return &Session{
		partials: make(chan stt.Transcript, 32),
		finals:   make(chan stt.Transcript, 32),
	}
}

// Partial scripts an interim hypothesis.
func (s *Session) Partial(text string, confidence float64) {
	s.Emit(stt.Transcript{Text: text, Confidence: confidence})
}

// Final scripts a settled hypothesis.
func (s *Session) Final(text string, confidence float64) {
	s.Emit(stt.Transcript{Text: text, Confidence: confidence, IsFinal: true})
}

// Emit scripts t on the channel matching t.IsFinal. It does nothing once the
// session is closed.
func (s *Session) Emit(t stt.Transcript) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closes > 0 {
		return
	}
	out := s.partials
	if t.IsFinal {
		out = s.finals
	}
	out <- t
}

func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = append(s.audio, slices.Clone(chunk))
	return s.SendAudioErr
}

func (s *Session) Partials() <-chan stt.Transcript { return s.partials }
func (s *Session) Finals() <-chan stt.Transcript   { return s.finals }

func (s *Session) SetKeywords(keywords []types.KeywordBoost) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keywords = slices.Clone(keywords)
	return s.SetKeywordsErr
}

// Close closes the transcript channels the first time and returns CloseErr
// every time.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	if s.closes == 1 {
		close(s.partials)
		close(s.finals)
	}
	return s.CloseErr
}

// Audio returns copies of the chunks sent so far.
func (s *Session) Audio() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.audio)
}

// Keywords returns the list last passed to SetKeywords.
func (s *Session) Keywords() []types.KeywordBoost {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.keywords)
}

// Closes counts Close calls.
func (s *Session) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool { return s.Closes() > 0 }
