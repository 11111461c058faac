package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"training-relay/client"
	"training-relay/config"
	"training-relay/constant"
	apiHandler "training-relay/handler"
	"training-relay/metrics"
	"training-relay/pkg/rabbitmq"
	"training-relay/relay"
	"training-relay/repository"
	"training-relay/service"
)

func RunHttp(cfg *config.Config) {
	ctx, cancel := signal.NotifyContext(setupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Bool("isProduction", cfg.App.Environment == constant.EnvironmentProduction.String()).Send()
	if cfg.App.Environment == constant.EnvironmentProduction.String() {
		gin.SetMode(gin.ReleaseMode)
	}

	repo := repository.NewRepo(cfg.DB)
	if err := repo.Migrate(ctx); err != nil {
		zerolog.Ctx(ctx).Fatal().Err(err).Msg("migration failed")
	}

	var publisher service.EventPublisher
	conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("NewRabbitMQConn")
	} else {
		p, err := rabbitmq.NewPublisher(conn, cfg.Queue)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("NewPublisher")
		} else {
			publisher = p
			defer p.Close()
		}
	}

	m := metrics.NewMetrics()

	api := &apiHandler.API{
		Lifecycle:    service.NewLifecycleService(repo, publisher),
		Gateway:      service.NewGatewayService(repo),
		Recordings:   service.NewRecordingService(repo),
		Instructions: service.NewInstructionService(repo),
	}

	backendURL := fmt.Sprintf("http://127.0.0.1:%s", cfg.Server.HttpPort)
	voiceWS := &apiHandler.VoiceWS{
		Backend:  client.NewBackend(backendURL, cfg.App.ServiceToken, cfg.Relay.BackendTimeout),
		Dialer:   relay.NewDialer(cfg.Upstream.HandshakeTimeout),
		Store:    relay.NewMinioStore(cfg.Storage, cfg.MinIOBucket),
		Registry: relay.NewRegistry(),
		Metrics:  m,
		Config: relay.Config{
			UpstreamURL:         cfg.Upstream.URL,
			UpstreamAPIKey:      cfg.Upstream.APIKey,
			Model:               cfg.Upstream.Model,
			DefaultVoice:        cfg.Upstream.DefaultVoice,
			TranscriptionModel:  "whisper-1",
			HandshakeTimeout:    cfg.Upstream.HandshakeTimeout,
			ConfigureTimeout:    cfg.Upstream.ConfigureTimeout,
			WriteTimeout:        cfg.Relay.WriteTimeout,
			BackendTimeout:      cfg.Relay.BackendTimeout,
			MaxAudioBufferBytes: cfg.Relay.MaxAudioBufferBytes,
			MaxTranscriptTurns:  cfg.Relay.MaxTranscriptTurns,
			SampleRate:          cfg.Relay.SampleRate,
			Channels:            cfg.Relay.Channels,
			BitDepth:            cfg.Relay.BitDepth,
		},
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	r := gin.Default()
	addHealth(r)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/v1/voice/ws", loggerInjector(ctx), voiceWS.Serve)

	internal := r.Group("/internal/v1", loggerInjector(ctx), apiHandler.ServiceAuth(cfg.App.ServiceToken))
	{
		internal.POST("/sessions/resolve", api.ResolveSession)
		internal.POST("/sessions/:id/complete", api.CompleteSession)
		internal.POST("/sessions/:id/transcripts", api.PersistTurns)
		internal.PUT("/sessions/:id/recording", api.SaveRecording)
		internal.GET("/scenarios/:id/instructions", api.ScenarioInstructions)
	}

	handler := http.Server{
		Handler:           r,
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("start http server")
		if err := handler.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
		}
	}()

	<-ctx.Done()
	zerolog.Ctx(ctx).Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := handler.Shutdown(shutdownCtx); err != nil {
		zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
	}

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
}

func addHealth(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})
}

// loggerInjector carries the process logger into per-request contexts so
// handlers can use zerolog.Ctx.
func loggerInjector(base context.Context) gin.HandlerFunc {
	logger := zerolog.Ctx(base)
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))
		c.Next()
	}
}

func setupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Log to standard output
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	return ctx
}
