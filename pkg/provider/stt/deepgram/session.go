package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/lexivox/pkg/provider/stt"
	"github.com/MrWong99/lexivox/pkg/types"
)

// closeGrace bounds the wait for the last results after CloseStream.
const closeGrace = 5 * time.Second

var (
	errSessionClosed = errors.New("deepgram: session is closed")
	errStreamEnded   = errors.New("deepgram: stream ended")

	msgCloseStream = []byte(`{"type":"CloseStream"}`)
	msgKeepAlive   = []byte(`{"type":"KeepAlive"}`)
)

// session is one live stream.
type session struct {
	conn      *websocket.Conn
	cancel    context.CancelFunc
	interim   bool
	keepAlive time.Duration

	audio    chan []byte
	partials chan stt.Transcript
	finals   chan stt.Transcript

	closing   chan struct{}
	written   chan struct{} // writer gone
	read      chan struct{} // reader gone, result channels closed
	closeOnce sync.Once
}

var _ stt.SessionHandle = (*session)(nil)

func startSession(ctx context.Context, conn *websocket.Conn, interim bool, keepAlive time.Duration) *session {
	ctx, cancel := context.WithCancel(ctx)
	s := &session{
		conn:      conn,
		cancel:    cancel,
		interim:   interim,
		keepAlive: keepAlive,
		audio:     make(chan []byte, 256),
		partials:  make(chan stt.Transcript, 64),
		finals:    make(chan stt.Transcript, 64),
		closing:   make(chan struct{}),
		written:   make(chan struct{}),
		read:      make(chan struct{}),
	}
	go s.write(ctx)
	go s.receive(ctx)
	return s
}

// SendAudio queues one PCM chunk. It fails once the session is closing or
// the socket broke.
func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.closing:
		return errSessionClosed
	case <-s.written:
		return errStreamEnded
	default:
	}
	select {
	case s.audio <- chunk:
		return nil
	case <-s.closing:
		return errSessionClosed
	case <-s.written:
		return errStreamEnded
	}
}

func (s *session) Partials() <-chan stt.Transcript { return s.partials }
func (s *session) Finals() <-chan stt.Transcript   { return s.finals }

// SetKeywords fails: Deepgram takes keywords only when the stream opens.
func (s *session) SetKeywords([]types.KeywordBoost) error {
	return fmt.Errorf("deepgram: keywords: %w", stt.ErrNotSupported)
}

// Close flushes queued audio, sends CloseStream and waits up to closeGrace
// for the final results before tearing the socket down. Results keep
// arriving on Finals until it is closed.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		close(s.closing)
		<-s.written
		select {
		case <-s.read:
		case <-time.After(closeGrace):
		}
		s.cancel()
		<-s.read
		s.conn.Close(websocket.StatusNormalClosure, "")
	})
	return nil
}

// write sends audio as binary frames and a KeepAlive whenever the learner
// has been quiet for keepAlive.
func (s *session) write(ctx context.Context) {
	defer close(s.written)
	idle := time.NewTimer(s.keepAlive)
	defer idle.Stop()

	for {
		var msg []byte
		typ := websocket.MessageBinary
		select {
		case msg = <-s.audio:
		case <-idle.C:
			typ, msg = websocket.MessageText, msgKeepAlive
		case <-s.closing:
			s.flush(ctx)
			return
		case <-ctx.Done():
			return
		}
		if err := s.conn.Write(ctx, typ, msg); err != nil {
			return
		}
		idle.Reset(s.keepAlive)
	}
}

// flush writes whatever audio is still queued, then CloseStream.
func (s *session) flush(ctx context.Context) {
	for {
		select {
		case chunk := <-s.audio:
			if err := s.conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
				return
			}
		default:
			_ = s.conn.Write(ctx, websocket.MessageText, msgCloseStream)
			return
		}
	}
}

// receive routes Results messages until the socket closes.
func (s *session) receive(ctx context.Context) {
	defer close(s.read)
	defer close(s.partials)
	defer close(s.finals)

	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			return
		}
		t, ok := decodeResults(data)
		if !ok || (!t.IsFinal && !s.interim) {
			continue
		}
		out := s.finals
		if !t.IsFinal {
			out = s.partials
		}
		select {
		case out <- t:
		case <-ctx.Done():
			return
		}
	}
}

// results is the subset of a Deepgram Results message lexivox reads.
type results struct {
	Type     string  `json:"type"`
	IsFinal  bool    `json:"is_final"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Channel  struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []struct {
				Word       string  `json:"word"`
				Start      float64 `json:"start"`
				End        float64 `json:"end"`
				Confidence float64 `json:"confidence"`
			} `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// decodeResults turns a Results message into a transcript. Other message
// types, empty results and garbage report false.
func decodeResults(data []byte) (stt.Transcript, bool) {
	var r results
	if json.Unmarshal(data, &r) != nil || r.Type != "Results" || len(r.Channel.Alternatives) == 0 {
		return stt.Transcript{}, false
	}

	t := stt.Transcript{
		IsFinal:   r.IsFinal,
		Timestamp: seconds(r.Start),
		Duration:  seconds(r.Duration),
	}
	for i, a := range r.Channel.Alternatives {
		t.Alternatives = append(t.Alternatives, stt.Alternative{Text: a.Transcript, Confidence: a.Confidence})
		if i > 0 {
			continue
		}
		t.Text, t.Confidence = a.Transcript, a.Confidence
		for _, w := range a.Words {
			t.Words = append(t.Words, stt.WordDetail{
				Word:       w.Word,
				Start:      seconds(w.Start),
				End:        seconds(w.End),
				Confidence: w.Confidence,
			})
		}
	}
	return t, true
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
