package apikey

import (
	"log/slog"
	"net/http"

	"github.com/SebastienMelki/keyportal/internal/apikey/internal/directory"
	"github.com/SebastienMelki/keyportal/internal/apikey/internal/handler"
	"github.com/SebastienMelki/keyportal/internal/apikey/internal/service"
	"github.com/SebastienMelki/keyportal/internal/observability"
)

// Module is the apikey module facade. It wires together the directory
// client, resolve service, and HTTP handler.
type Module struct {
	handler *handler.ResolveHandler
	logger  *slog.Logger
}

// New creates an apikey Module that talks to the key-management service
// described by cfg. publisher and metrics may be nil.
func New(cfg Config, publisher EventPublisher, metrics *observability.Metrics, logger *slog.Logger) *Module {
	if logger == nil {
		logger = slog.Default()
	}

	client := directory.New(directory.Config{
		BaseURL:   cfg.BaseURL,
		ProjectID: cfg.ProjectID,
		AccessKey: cfg.AccessKey,
		Timeout:   cfg.Timeout,
	}, nil, logger)

	return NewWithDirectory(client, cfg.ProjectID, publisher, metrics, logger)
}

// NewWithDirectory creates an apikey Module around any Directory
// implementation.
func NewWithDirectory(dir Directory, projectID string, publisher EventPublisher, metrics *observability.Metrics, logger *slog.Logger) *Module {
	if logger == nil {
		logger = slog.Default()
	}

	svc := service.NewResolveService(dir, projectID, publisher, metrics, logger)
	h := handler.NewResolveHandler(svc, logger)

	return &Module{
		handler: h,
		logger:  logger.With("component", "apikey-module"),
	}
}

// RegisterRoutes mounts the resolution endpoint onto the given ServeMux,
// wrapped in the given middleware (outermost first):
//   - POST /api/auth - Look up or create the caller's API key
func (m *Module) RegisterRoutes(mux *http.ServeMux, middleware ...func(http.Handler) http.Handler) {
	m.handler.RegisterRoutes(mux, middleware...)
}
