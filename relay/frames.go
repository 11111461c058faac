// Package relay bridges a counselor's browser connection to the upstream
// real-time speech service, capturing the transcript and optionally the audio
// exchange along the way.
package relay

import (
	"encoding/base64"
	"encoding/json"

	"training-relay/constant"
)

// FrameKind is the closed set of upstream frame types the relay intercepts.
// Everything else is KindPassthrough and forwarded untouched, which keeps the
// relay forward-compatible with new upstream event types.
type FrameKind int

const (
	KindSessionCreated FrameKind = iota
	KindSessionUpdated
	KindAudioDelta
	KindAssistantTranscriptDelta
	KindAssistantTranscriptDone
	KindUserTranscriptDelta
	KindUserTranscriptDone
	KindError
	KindPassthrough
)

const (
	typeSessionCreated           = "session.created"
	typeSessionUpdated           = "session.updated"
	typeAudioDelta               = "response.audio.delta"
	typeAssistantTranscriptDelta = "response.audio_transcript.delta"
	typeAssistantTranscriptDone  = "response.audio_transcript.done"
	typeUserTranscriptDelta      = "conversation.item.input_audio_transcription.delta"
	typeUserTranscriptDone       = "conversation.item.input_audio_transcription.completed"
	typeUpstreamError            = "error"
	typeInputAudioAppend         = "input_audio_buffer.append"
)

// UpstreamFrame is one decoded frame from the speech service.
type UpstreamFrame struct {
	Kind       FrameKind
	SessionID  string
	Audio      []byte
	Text       string
	ErrCode    string
	ErrMessage string
	Raw        []byte
}

type upstreamEnvelope struct {
	Type    string `json:"type"`
	Session struct {
		ID string `json:"id"`
	} `json:"session"`
	Delta      string `json:"delta"`
	Transcript string `json:"transcript"`
	Error      struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// DecodeUpstreamFrame classifies a raw upstream frame. Malformed JSON and
// unrecognized types both come back as KindPassthrough; a protocol anomaly is
// never fatal to the relay.
func DecodeUpstreamFrame(data []byte) UpstreamFrame {
	var env upstreamEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return UpstreamFrame{Kind: KindPassthrough, Raw: data}
	}

	switch env.Type {
	case typeSessionCreated:
		return UpstreamFrame{Kind: KindSessionCreated, SessionID: env.Session.ID, Raw: data}
	case typeSessionUpdated:
		return UpstreamFrame{Kind: KindSessionUpdated, SessionID: env.Session.ID, Raw: data}
	case typeAudioDelta:
		audio, err := base64.StdEncoding.DecodeString(env.Delta)
		if err != nil {
			return UpstreamFrame{Kind: KindPassthrough, Raw: data}
		}
		return UpstreamFrame{Kind: KindAudioDelta, Audio: audio, Raw: data}
	case typeAssistantTranscriptDelta:
		return UpstreamFrame{Kind: KindAssistantTranscriptDelta, Text: env.Delta, Raw: data}
	case typeAssistantTranscriptDone:
		return UpstreamFrame{Kind: KindAssistantTranscriptDone, Text: env.Transcript, Raw: data}
	case typeUserTranscriptDelta:
		return UpstreamFrame{Kind: KindUserTranscriptDelta, Text: env.Delta, Raw: data}
	case typeUserTranscriptDone:
		return UpstreamFrame{Kind: KindUserTranscriptDone, Text: env.Transcript, Raw: data}
	case typeUpstreamError:
		return UpstreamFrame{Kind: KindError, ErrCode: env.Error.Code, ErrMessage: env.Error.Message, Raw: data}
	default:
		return UpstreamFrame{Kind: KindPassthrough, Raw: data}
	}
}

// DecodeClientAudio extracts the PCM payload from an input_audio_buffer.append
// frame. The second return value reports whether the frame was one.
func DecodeClientAudio(data []byte) ([]byte, bool) {
	var env struct {
		Type  string `json:"type"`
		Audio string `json:"audio"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, false
	}
	if env.Type != typeInputAudioAppend {
		return nil, false
	}
	audio, err := base64.StdEncoding.DecodeString(env.Audio)
	if err != nil {
		return nil, false
	}
	return audio, true
}

// Downstream frames sent to the browser client.

type sessionStartedFrame struct {
	Type          string `json:"type"`
	SessionID     string `json:"session_id"`
	AttemptNumber int    `json:"attempt_number"`
	IsRetry       bool   `json:"is_retry"`
}

type audioDeltaFrame struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type transcriptFrame struct {
	Type string `json:"type"`
	Role string `json:"role"`
	Text string `json:"text"`
}

// ErrorFrame is the typed error surface of the relay.
type ErrorFrame struct {
	Type    string `json:"type"`
	Kind    string `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func encodeSessionStarted(sessionID string, attemptNumber int, isRetry bool) []byte {
	data, _ := json.Marshal(sessionStartedFrame{
		Type:          "session.started",
		SessionID:     sessionID,
		AttemptNumber: attemptNumber,
		IsRetry:       isRetry,
	})
	return data
}

func encodeAudioDelta(audio []byte) []byte {
	data, _ := json.Marshal(audioDeltaFrame{
		Type:  "audio.delta",
		Audio: base64.StdEncoding.EncodeToString(audio),
	})
	return data
}

func encodeTranscript(final bool, role constant.Role, text string) []byte {
	frameType := "transcript.delta"
	if final {
		frameType = "transcript.done"
	}
	data, _ := json.Marshal(transcriptFrame{
		Type: frameType,
		Role: role.String(),
		Text: text,
	})
	return data
}

func encodeError(kind, code, message string) []byte {
	data, _ := json.Marshal(ErrorFrame{
		Type:    "error",
		Kind:    kind,
		Code:    code,
		Message: message,
	})
	return data
}
