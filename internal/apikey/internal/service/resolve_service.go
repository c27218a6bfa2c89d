// Package service contains the lookup-or-create business logic for API key
// resolution.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	"github.com/SebastienMelki/keyportal/internal/apikey/internal/domain"
	"github.com/SebastienMelki/keyportal/internal/events"
	"github.com/SebastienMelki/keyportal/internal/gateway"
	"github.com/SebastienMelki/keyportal/internal/observability"
)

// Directory is the port to the external key directory. This mirrors the
// top-level apikey.Directory interface to avoid import cycles.
type Directory interface {
	Lookup(ctx context.Context, issuer string) ([]domain.Record, error)
	Create(ctx context.Context, issuer, email string) (domain.Record, error)
}

// EventPublisher is the port for key lifecycle notifications.
type EventPublisher interface {
	PublishKeyEvent(ctx context.Context, event events.KeyEvent) error
}

// Resolution outcomes recorded on the apikey.resolutions counter.
const (
	OutcomeExisting = "existing"
	OutcomeCreated  = "created"
	OutcomeError    = "error"
)

// Result is the outcome of one resolution.
type Result struct {
	Record  domain.Record
	Created bool
}

// ResolveService maps an issuer to its API key record, creating one when the
// directory has none.
//
// Concurrent resolutions for the same issuer within this process share one
// directory round trip. Two processes can still race on create; the
// directory is the only place that can prevent a duplicate across processes.
type ResolveService struct {
	directory Directory
	publisher EventPublisher
	metrics   *observability.Metrics
	projectID string
	group     singleflight.Group
	logger    *slog.Logger
}

// NewResolveService creates a ResolveService. publisher and metrics may be
// nil.
func NewResolveService(
	directory Directory,
	projectID string,
	publisher EventPublisher,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *ResolveService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResolveService{
		directory: directory,
		publisher: publisher,
		metrics:   metrics,
		projectID: projectID,
		logger:    logger.With("component", "resolve-service"),
	}
}

// Resolve returns the API key record for id, creating it if the directory
// has none. A lookup 404 counts as "no record". Any other lookup failure is
// returned without attempting create. A 404 on create is returned as
// domain.ErrNotFound.
func (s *ResolveService) Resolve(ctx context.Context, id domain.Identity) (Result, error) {
	if err := id.Validate(); err != nil {
		s.recordOutcome(ctx, OutcomeError)
		return Result{}, err
	}

	// The shared call must outlive any single waiter's cancellation; the
	// directory client's timeout still bounds it.
	flightCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(id.Issuer, func() (any, error) {
		return s.resolve(flightCtx, id)
	})

	select {
	case <-ctx.Done():
		s.recordOutcome(ctx, OutcomeError)
		return Result{}, fmt.Errorf("%w: resolve abandoned: %w", domain.ErrTransport, ctx.Err())
	case res := <-ch:
		if res.Shared && s.metrics != nil {
			s.metrics.SingleflightShared.Add(ctx, 1)
		}
		if res.Err != nil {
			s.recordOutcome(ctx, OutcomeError)
			return Result{}, res.Err
		}
		result := res.Val.(Result)
		if result.Created {
			s.recordOutcome(ctx, OutcomeCreated)
		} else {
			s.recordOutcome(ctx, OutcomeExisting)
		}
		return result, nil
	}
}

// resolve runs once per in-flight issuer.
func (s *ResolveService) resolve(ctx context.Context, id domain.Identity) (Result, error) {
	start := time.Now()
	records, err := s.directory.Lookup(ctx, id.Issuer)
	s.observeUpstream(ctx, "lookup", start, err)

	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.logger.Debug("lookup returned 404, treating as no record", "issuer", id.Issuer)
		records = nil
	case err != nil:
		return Result{}, fmt.Errorf("failed to look up key: %w", err)
	}

	if len(records) > 0 {
		if len(records) > 1 {
			s.logger.Warn("multiple key records for issuer, using first",
				"issuer", id.Issuer,
				"matches", len(records),
			)
		}
		s.publish(ctx, events.TypeResolved, id.Issuer)
		return Result{Record: records[0]}, nil
	}

	start = time.Now()
	record, err := s.directory.Create(ctx, id.Issuer, id.Email)
	s.observeUpstream(ctx, "create", start, err)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create key: %w", err)
	}

	s.logger.Info("api key created", "issuer", id.Issuer)
	s.publish(ctx, events.TypeCreated, id.Issuer)

	return Result{Record: record, Created: true}, nil
}

// publish emits a key event. Failures are logged and never fail resolution.
func (s *ResolveService) publish(ctx context.Context, eventType, issuer string) {
	if s.publisher == nil {
		return
	}

	event := events.NewKeyEvent(eventType, s.projectID, issuer, gateway.GetRequestID(ctx))
	if err := s.publisher.PublishKeyEvent(ctx, event); err != nil {
		s.logger.Warn("failed to publish key event",
			"event_id", event.ID,
			"type", eventType,
			"error", err,
		)
		if s.metrics != nil {
			s.metrics.EventsFailed.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("type", eventType)))
		}
		return
	}

	if s.metrics != nil {
		s.metrics.EventsPublished.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("type", eventType)))
	}
}

func (s *ResolveService) recordOutcome(ctx context.Context, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.Resolutions.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("outcome", outcome)))
}

func (s *ResolveService) observeUpstream(ctx context.Context, op string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.UpstreamLatency.Record(ctx, float64(time.Since(start).Milliseconds()),
		otelmetric.WithAttributes(
			attribute.String("op", op),
			attribute.String("status", upstreamStatus(err)),
		),
	)
}

// upstreamStatus labels a directory call result without leaking URLs.
func upstreamStatus(err error) string {
	if err == nil {
		return "ok"
	}
	var statusErr *domain.StatusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("%d", statusErr.StatusCode)
	}
	return domain.Kind(err)
}
