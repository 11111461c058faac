package relay

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"training-relay/audio"
	"training-relay/client"
	"training-relay/constant"
	"training-relay/dto"
	"training-relay/metrics"
)

type State int32

const (
	StateConnecting State = iota
	StateConfiguring
	StateActive
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConfiguring:
		return "configuring"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DefaultInstructions is the free-practice caller persona, also the fallback
// when a scenario lookup fails mid-setup. It carries no evaluation criteria.
const DefaultInstructions = "You are a person calling a crisis support line. You are going through " +
	"a difficult period and want to talk to someone. Respond naturally and emotionally as a real " +
	"caller would. Let the counselor guide the conversation; do not break character."

// Config is the per-process relay configuration, injected at construction.
type Config struct {
	UpstreamURL        string
	UpstreamAPIKey     string
	Model              string
	DefaultVoice       string
	TranscriptionModel string

	HandshakeTimeout time.Duration
	ConfigureTimeout time.Duration
	WriteTimeout     time.Duration
	BackendTimeout   time.Duration

	MaxAudioBufferBytes int
	MaxTranscriptTurns  int
	SampleRate          int
	Channels            int
	BitDepth            int
}

// Dependencies carries everything a Session needs. The dialer, backend client
// and object store are all explicit; there are no lazily initialized handles.
type Dependencies struct {
	Client   Conn
	Dialer   Dialer
	Backend  client.Backend
	Store    ObjectStore
	Registry *Registry
	Metrics  *metrics.Metrics
	Params   Params
	Resolved dto.ResolvedSession
	Config   Config
}

// Session relays frames between one client connection and one upstream
// connection, feeding the transcript accumulator and, when recording, the two
// audio buffers as specific frame types pass through.
type Session struct {
	id       uuid.UUID
	attempt  int
	isRetry  bool
	params   Params
	cfg      Config
	client   Conn
	upstream Conn
	dialer   Dialer
	backend  client.Backend
	store    ObjectStore
	registry *Registry
	metrics  *metrics.Metrics

	transcript        *Accumulator
	inboundAudio      *AudioBuffer
	outboundAudio     *AudioBuffer
	upstreamSessionID string

	state      atomic.Int32
	clientMu   sync.Mutex
	upstreamMu sync.Mutex
	drainOnce  sync.Once
	pumps      sync.WaitGroup
	startedAt  time.Time
}

func New(deps Dependencies) *Session {
	return &Session{
		id:            deps.Resolved.SessionId,
		attempt:       deps.Resolved.AttemptNumber,
		isRetry:       deps.Resolved.IsRetry,
		params:        deps.Params,
		cfg:           deps.Config,
		client:        deps.Client,
		dialer:        deps.Dialer,
		backend:       deps.Backend,
		store:         deps.Store,
		registry:      deps.Registry,
		metrics:       deps.Metrics,
		transcript:    NewAccumulator(deps.Config.MaxTranscriptTurns),
		inboundAudio:  NewAudioBuffer(deps.Config.MaxAudioBufferBytes / 2),
		outboundAudio: NewAudioBuffer(deps.Config.MaxAudioBufferBytes / 2),
	}
}

func (s *Session) SessionID() uuid.UUID {
	return s.id
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(state State) {
	s.state.Store(int32(state))
}

// Run drives the session through its whole lifecycle and blocks until it is
// closed. The caller owns the client connection until Run returns.
func (s *Session) Run(ctx context.Context) error {
	s.startedAt = time.Now()
	s.metrics.RelaysStarted.Inc()
	if s.registry != nil {
		s.registry.Add(s)
	}
	s.metrics.ActiveRelays.Inc()

	// Connecting
	s.setState(StateConnecting)
	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
	upstream, err := s.dialer.DialContext(dialCtx, s.cfg.UpstreamURL, s.upstreamHeader())
	cancel()
	if err != nil {
		s.metrics.RelayErrors.WithLabelValues("upstream_connect").Inc()
		s.writeClient(websocket.TextMessage, encodeError("upstream_error", "connect_failed", "could not reach the speech service"))
		s.closeConns(ctx)
		s.finish(ctx)
		return fmt.Errorf("dial upstream: %w", err)
	}
	s.upstream = upstream

	// Configuring
	s.setState(StateConfiguring)
	instructions, voice := s.resolveInstructions(ctx)
	if err := s.writeUpstream(websocket.TextMessage, encodeSessionUpdate(instructions, voice, s.cfg.TranscriptionModel)); err != nil {
		s.metrics.RelayErrors.WithLabelValues("upstream_configure").Inc()
		s.writeClient(websocket.TextMessage, encodeError("upstream_error", "configure_failed", "could not configure the speech service"))
		s.drain(ctx, fmt.Errorf("send session.update: %w", err))
		return err
	}
	if err := s.awaitAck(ctx); err != nil {
		s.metrics.RelayErrors.WithLabelValues("upstream_configure").Inc()
		s.writeClient(websocket.TextMessage, encodeError("upstream_error", "configure_timeout", "speech service did not acknowledge configuration"))
		s.drain(ctx, err)
		return err
	}

	s.writeClient(websocket.TextMessage, encodeSessionStarted(s.id.String(), s.attempt, s.isRetry))

	// Active
	s.setState(StateActive)
	errCh := make(chan error, 2)
	s.pumps.Add(2)
	go s.pumpClientToUpstream(errCh)
	go s.pumpUpstreamToClient(ctx, errCh)

	var cause error
	select {
	case <-ctx.Done():
		cause = ctx.Err()
	case cause = <-errCh:
	}

	s.drain(ctx, cause)
	return nil
}

func (s *Session) upstreamHeader() http.Header {
	header := http.Header{}
	if s.cfg.UpstreamAPIKey != "" {
		header.Set("Authorization", "Bearer "+s.cfg.UpstreamAPIKey)
	}
	if s.cfg.Model != "" {
		header.Set("X-Model", s.cfg.Model)
	}
	return header
}

// resolveInstructions loads the scenario persona. A lookup failure degrades to
// the default persona instead of failing the session.
func (s *Session) resolveInstructions(ctx context.Context) (string, string) {
	voice := s.cfg.DefaultVoice
	if s.params.ScenarioID == nil {
		return DefaultInstructions, voice
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.cfg.BackendTimeout)
	defer cancel()
	scenario, err := s.backend.ScenarioInstructions(lookupCtx, *s.params.ScenarioID)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).
			Str("scenario_id", s.params.ScenarioID.String()).
			Msg("scenario lookup failed, using default instructions")
		return DefaultInstructions, voice
	}

	if scenario.Voice != "" {
		voice = scenario.Voice
	}
	return scenario.Instructions, voice
}

// awaitAck reads upstream until the configuration is acknowledged. Frames that
// arrive before the ack still go through the normal intercept path.
func (s *Session) awaitAck(ctx context.Context) error {
	deadline := time.Now().Add(s.cfg.ConfigureTimeout)
	_ = s.upstream.SetReadDeadline(deadline)
	defer s.upstream.SetReadDeadline(time.Time{})

	for {
		messageType, data, err := s.upstream.ReadMessage()
		if err != nil {
			return fmt.Errorf("await configuration ack: %w", err)
		}
		if messageType != websocket.TextMessage {
			continue
		}
		frame := DecodeUpstreamFrame(data)
		if frame.Kind == KindSessionCreated || frame.Kind == KindSessionUpdated {
			if frame.SessionID != "" {
				s.upstreamSessionID = frame.SessionID
			}
			if frame.Kind == KindSessionUpdated {
				return nil
			}
			continue
		}
		if err := s.handleUpstreamFrame(ctx, frame); err != nil {
			return err
		}
	}
}

func (s *Session) pumpClientToUpstream(errCh chan<- error) {
	defer s.pumps.Done()
	for {
		messageType, data, err := s.client.ReadMessage()
		if err != nil {
			errCh <- fmt.Errorf("client read: %w", err)
			return
		}

		if messageType == websocket.TextMessage && s.params.Record {
			if pcm, ok := DecodeClientAudio(data); ok {
				if !s.inboundAudio.Append(pcm, time.Now()) {
					s.metrics.FramesDropped.Inc()
				}
			}
		}

		if err := s.writeUpstream(messageType, data); err != nil {
			errCh <- fmt.Errorf("upstream write: %w", err)
			return
		}
		s.metrics.FramesForwarded.WithLabelValues("inbound").Inc()
	}
}

func (s *Session) pumpUpstreamToClient(ctx context.Context, errCh chan<- error) {
	defer s.pumps.Done()
	for {
		messageType, data, err := s.upstream.ReadMessage()
		if err != nil {
			errCh <- fmt.Errorf("upstream read: %w", err)
			return
		}

		if messageType != websocket.TextMessage {
			if err := s.writeClient(messageType, data); err != nil {
				errCh <- fmt.Errorf("client write: %w", err)
				return
			}
			s.metrics.FramesForwarded.WithLabelValues("outbound").Inc()
			continue
		}

		if err := s.handleUpstreamFrame(ctx, DecodeUpstreamFrame(data)); err != nil {
			errCh <- err
			return
		}
	}
}

// handleUpstreamFrame intercepts the recognized frame kinds and forwards
// everything downstream. Upstream error frames are surfaced typed but are not
// fatal; only a dropped upstream connection ends the session.
func (s *Session) handleUpstreamFrame(ctx context.Context, frame UpstreamFrame) error {
	var out []byte

	switch frame.Kind {
	case KindSessionCreated, KindSessionUpdated:
		if frame.SessionID != "" {
			s.upstreamSessionID = frame.SessionID
		}
		return nil
	case KindAudioDelta:
		if s.params.Record {
			if !s.outboundAudio.Append(frame.Audio, time.Now()) {
				s.metrics.FramesDropped.Inc()
			}
		}
		out = encodeAudioDelta(frame.Audio)
	case KindAssistantTranscriptDelta:
		s.transcript.AppendDelta(constant.RoleAssistant, frame.Text)
		out = encodeTranscript(false, constant.RoleAssistant, frame.Text)
	case KindAssistantTranscriptDone:
		s.transcript.CompleteTurn(constant.RoleAssistant, frame.Text, time.Now())
		out = encodeTranscript(true, constant.RoleAssistant, frame.Text)
	case KindUserTranscriptDelta:
		s.transcript.AppendDelta(constant.RoleUser, frame.Text)
		out = encodeTranscript(false, constant.RoleUser, frame.Text)
	case KindUserTranscriptDone:
		s.transcript.CompleteTurn(constant.RoleUser, frame.Text, time.Now())
		out = encodeTranscript(true, constant.RoleUser, frame.Text)
	case KindError:
		zerolog.Ctx(ctx).Warn().
			Str("session_id", s.id.String()).
			Str("code", frame.ErrCode).
			Msg("upstream error frame")
		s.metrics.RelayErrors.WithLabelValues("upstream_frame").Inc()
		out = encodeError("upstream", frame.ErrCode, frame.ErrMessage)
	case KindPassthrough:
		out = frame.Raw
	}

	if err := s.writeClient(websocket.TextMessage, out); err != nil {
		return fmt.Errorf("client write: %w", err)
	}
	s.metrics.FramesForwarded.WithLabelValues("outbound").Inc()
	return nil
}

// drain flushes captured state to the backend and closes everything down.
// Persistence here is best effort: a failed write is logged but never keeps
// the session from closing cleanly.
func (s *Session) drain(ctx context.Context, cause error) {
	s.drainOnce.Do(func() {
		s.setState(StateDraining)
		logger := zerolog.Ctx(ctx)
		if cause != nil {
			logger.Debug().Err(cause).Str("session_id", s.id.String()).Msg("relay session draining")
		}

		s.closeConns(ctx)
		s.pumps.Wait()

		drainCtx, cancel := context.WithTimeout(logger.WithContext(context.WithoutCancel(ctx)), s.cfg.BackendTimeout)
		defer cancel()

		now := time.Now()
		s.transcript.FlushPartial(now)
		turns := s.transcript.Turns()
		if len(turns) > 0 {
			saved, err := s.backend.PersistTurns(drainCtx, s.id, s.attempt, turns)
			if err != nil {
				logger.Error().Err(err).Str("session_id", s.id.String()).Msg("failed to persist transcript at drain")
			} else {
				s.metrics.TurnsPersisted.Add(float64(saved))
			}
		}

		if s.params.Record && s.inboundAudio.Size()+s.outboundAudio.Size() > 0 {
			s.storeRecording(drainCtx, logger)
		}

		if err := s.backend.CompleteSession(drainCtx, s.id, now); err != nil {
			logger.Error().Err(err).Str("session_id", s.id.String()).Msg("failed to complete session at drain")
		}

		if s.registry != nil {
			s.registry.Remove(s.id)
		}
		s.metrics.ActiveRelays.Dec()
		s.metrics.RelaysClosed.Inc()
		s.metrics.SessionSeconds.Observe(time.Since(s.startedAt).Seconds())
		s.setState(StateClosed)
	})
}

func (s *Session) storeRecording(ctx context.Context, logger *zerolog.Logger) {
	pcm := MergeBuffers(s.inboundAudio, s.outboundAudio)
	wav := audio.EncodeWAV(pcm, s.cfg.SampleRate, s.cfg.Channels, s.cfg.BitDepth)
	objectName := fmt.Sprintf("recordings/%s.wav", s.id)

	if err := s.store.Put(ctx, objectName, wav, "audio/wav"); err != nil {
		logger.Error().Err(err).Str("session_id", s.id.String()).Msg("failed to store recording")
		return
	}

	err := s.backend.SaveRecording(ctx, s.id, dto.SaveRecordingRequest{
		FilePath:        objectName,
		DurationSeconds: audio.DurationSeconds(len(pcm), s.cfg.SampleRate, s.cfg.Channels, s.cfg.BitDepth),
		FileSizeBytes:   int64(len(wav)),
	})
	if err != nil {
		logger.Error().Err(err).Str("session_id", s.id.String()).Msg("failed to save recording record")
		return
	}
	s.metrics.RecordingsStored.Inc()
}

func (s *Session) writeClient(messageType int, data []byte) error {
	s.clientMu.Lock()
	defer s.clientMu.Unlock()
	_ = s.client.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	return s.client.WriteMessage(messageType, data)
}

func (s *Session) writeUpstream(messageType int, data []byte) error {
	s.upstreamMu.Lock()
	defer s.upstreamMu.Unlock()
	_ = s.upstream.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	return s.upstream.WriteMessage(messageType, data)
}

func (s *Session) closeConns(ctx context.Context) {
	deadline := time.Now().Add(s.cfg.WriteTimeout)
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")

	if s.upstream != nil {
		_ = s.upstream.WriteControl(websocket.CloseMessage, closeMsg, deadline)
		if err := s.upstream.Close(); err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Msg("upstream close")
		}
	}
	_ = s.client.WriteControl(websocket.CloseMessage, closeMsg, deadline)
	if err := s.client.Close(); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("client close")
	}
}

// finish handles the connect-failure path where nothing was captured and no
// drain is needed.
func (s *Session) finish(ctx context.Context) {
	s.drainOnce.Do(func() {
		zerolog.Ctx(ctx).Debug().Str("session_id", s.id.String()).Msg("relay session closed before activation")
		if s.registry != nil {
			s.registry.Remove(s.id)
		}
		s.metrics.ActiveRelays.Dec()
		s.setState(StateClosed)
	})
}
