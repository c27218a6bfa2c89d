package nats

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go/jetstream"
)

// StreamManager creates and updates the key event stream.
type StreamManager struct {
	js     jetstream.JetStream
	config StreamConfig
	logger *slog.Logger
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(js jetstream.JetStream, cfg StreamConfig, logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamManager{
		js:     js,
		config: cfg,
		logger: logger.With("component", "stream-manager"),
	}
}

// streamConfig translates StreamConfig into the JetStream definition.
func (m *StreamManager) streamConfig() jetstream.StreamConfig {
	storage := jetstream.FileStorage
	if strings.ToLower(m.config.Storage) == "memory" {
		storage = jetstream.MemoryStorage
	}

	return jetstream.StreamConfig{
		Name:      m.config.Name,
		Subjects:  m.config.Subjects,
		Storage:   storage,
		MaxAge:    m.config.MaxAge,
		MaxBytes:  m.config.MaxBytes,
		Replicas:  m.config.Replicas,
		Retention: jetstream.LimitsPolicy,
		Discard:   jetstream.DiscardOld,
	}
}

// EnsureStream creates the stream, or updates it when it already exists.
func (m *StreamManager) EnsureStream(ctx context.Context) (jetstream.Stream, error) {
	streamCfg := m.streamConfig()

	stream, err := m.js.CreateOrUpdateStream(ctx, streamCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure stream %s: %w", m.config.Name, err)
	}

	m.logger.Info("stream ready",
		"name", m.config.Name,
		"subjects", m.config.Subjects,
		"storage", m.config.Storage,
		"max_age", m.config.MaxAge,
	)

	return stream, nil
}
