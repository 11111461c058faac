package config

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/viper"
)

type Config struct {
	MinIOBucket string        `yaml:"minio_bucket"`
	App         App           `yaml:"app"`
	DB          *sql.DB       `yaml:"db"`
	Queue       *RabbitMQ     `yaml:"rabbitmq"`
	Storage     *minio.Client `yaml:"storage"`
	Server      Server        `yaml:"server"`
	Upstream    Upstream      `yaml:"upstream"`
	Relay       Relay         `yaml:"relay"`
}

type App struct {
	Environment  string `yaml:"environment"`
	Host         string `yaml:"host"`
	Protocol     string `yaml:"protocol"`
	ServiceToken string `yaml:"service_token"`
}

type Server struct {
	HttpPort string `yaml:"http_port"`
	Workers  int    `yaml:"workers"`
}

type RabbitMQ struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Pass         string `json:"pass"`
	ExchangeName string `json:"exchange_name"`
	Kind         string `json:"kind"`
}

// Upstream describes the real-time speech service the relay bridges to.
type Upstream struct {
	URL              string        `yaml:"url"`
	APIKey           string        `yaml:"api_key"`
	Model            string        `yaml:"model"`
	DefaultVoice     string        `yaml:"default_voice"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	ConfigureTimeout time.Duration `yaml:"configure_timeout"`
}

// Relay bounds the per-session in-memory state.
type Relay struct {
	MaxAudioBufferBytes int           `yaml:"max_audio_buffer_bytes"`
	MaxTranscriptTurns  int           `yaml:"max_transcript_turns"`
	WriteTimeout        time.Duration `yaml:"write_timeout"`
	BackendTimeout      time.Duration `yaml:"backend_timeout"`
	SampleRate          int           `yaml:"sample_rate"`
	Channels            int           `yaml:"channels"`
	BitDepth            int           `yaml:"bit_depth"`
}

func Load(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	viper.SetDefault("upstream.handshake_timeout", "10s")
	viper.SetDefault("upstream.configure_timeout", "10s")
	viper.SetDefault("relay.max_audio_buffer_bytes", 64<<20)
	viper.SetDefault("relay.max_transcript_turns", 2000)
	viper.SetDefault("relay.write_timeout", "5s")
	viper.SetDefault("relay.backend_timeout", "10s")
	viper.SetDefault("relay.sample_rate", 24000)
	viper.SetDefault("relay.channels", 1)
	viper.SetDefault("relay.bit_depth", 16)

	db, err := sql.Open("postgres", viper.GetString("postgresql_host"))
	if err != nil {
		return nil, err
	}

	rabbitmq := &RabbitMQ{
		Host:         viper.GetString("rabbitmq_host"),
		Port:         viper.GetInt("rabbitmq_port"),
		User:         viper.GetString("rabbitmq_user"),
		Pass:         viper.GetString("rabbitmq_pass"),
		ExchangeName: viper.GetString("rabbitmq_exchange"),
		Kind:         viper.GetString("rabbitmq_kind"),
	}

	minioClient, err := minio.New(viper.GetString("minio.url"), &minio.Options{
		Creds:  credentials.NewStaticV4(viper.GetString("minio.access_id"), viper.GetString("minio.secret_access_key"), ""),
		Secure: false,
	})
	if err != nil {
		return nil, err
	}

	return &Config{
		MinIOBucket: viper.GetString("minio.bucket"),
		App: App{
			Environment:  viper.GetString("app.environment"),
			Host:         viper.GetString("app.host"),
			Protocol:     viper.GetString("app.protocol"),
			ServiceToken: viper.GetString("app.service_token"),
		},
		Server: Server{
			HttpPort: viper.GetString("server.port"),
			Workers:  viper.GetInt("server.workers"),
		},
		Upstream: Upstream{
			URL:              viper.GetString("upstream.url"),
			APIKey:           viper.GetString("upstream.api_key"),
			Model:            viper.GetString("upstream.model"),
			DefaultVoice:     viper.GetString("upstream.default_voice"),
			HandshakeTimeout: viper.GetDuration("upstream.handshake_timeout"),
			ConfigureTimeout: viper.GetDuration("upstream.configure_timeout"),
		},
		Relay: Relay{
			MaxAudioBufferBytes: viper.GetInt("relay.max_audio_buffer_bytes"),
			MaxTranscriptTurns:  viper.GetInt("relay.max_transcript_turns"),
			WriteTimeout:        viper.GetDuration("relay.write_timeout"),
			BackendTimeout:      viper.GetDuration("relay.backend_timeout"),
			SampleRate:          viper.GetInt("relay.sample_rate"),
			Channels:            viper.GetInt("relay.channels"),
			BitDepth:            viper.GetInt("relay.bit_depth"),
		},
		DB:      db,
		Queue:   rabbitmq,
		Storage: minioClient,
	}, nil
}
