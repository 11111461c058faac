package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the subset of *websocket.Conn both sides of the relay use. Tests
// substitute in-memory implementations.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Dialer opens the upstream duplex connection. Injected at session
// construction so there is no hidden shared client handle.
type Dialer interface {
	DialContext(ctx context.Context, url string, header http.Header) (Conn, error)
}

type wsDialer struct {
	handshakeTimeout time.Duration
}

func NewDialer(handshakeTimeout time.Duration) Dialer {
	return &wsDialer{handshakeTimeout: handshakeTimeout}
}

func (d *wsDialer) DialContext(ctx context.Context, url string, header http.Header) (Conn, error) {
	dialer := &websocket.Dialer{
		HandshakeTimeout: d.handshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, nil
}

// sessionUpdateFrame is the one-time upstream configuration. Its instructions
// field is the entire behavioral contract of the simulated caller.
type sessionUpdateFrame struct {
	Type    string        `json:"type"`
	Session sessionConfig `json:"session"`
}

type sessionConfig struct {
	Modalities              []string            `json:"modalities"`
	Instructions            string              `json:"instructions"`
	Voice                   string              `json:"voice"`
	InputAudioFormat        string              `json:"input_audio_format"`
	OutputAudioFormat       string              `json:"output_audio_format"`
	InputAudioTranscription transcriptionConfig `json:"input_audio_transcription"`
}

type transcriptionConfig struct {
	Model string `json:"model"`
}

func encodeSessionUpdate(instructions, voice, transcriptionModel string) []byte {
	data, _ := json.Marshal(sessionUpdateFrame{
		Type: "session.update",
		Session: sessionConfig{
			Modalities:        []string{"audio", "text"},
			Instructions:      instructions,
			Voice:             voice,
			InputAudioFormat:  "pcm16",
			OutputAudioFormat: "pcm16",
			InputAudioTranscription: transcriptionConfig{
				Model: transcriptionModel,
			},
		},
	})
	return data
}
