package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/tg-analytics-gateway/internal/domain"
)

// DialogService lists the conversations visible to a user's account.
type DialogService struct {
	Registry *ClientRegistry
	// DefaultLimit applies when the caller does not ask for a page size.
	DefaultLimit int
	// MaxLimit caps the page size a caller may request.
	MaxLimit int
}

// List returns up to limit dialogs in the platform's order.
func (s *DialogService) List(ctx context.Context, userID string, creds *domain.Credentials, limit int) ([]domain.Dialog, error) {
	ctx, span := otel.Tracer("services/DialogService").Start(ctx, "List",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	if limit <= 0 {
		limit = s.DefaultLimit
	}
	if s.MaxLimit > 0 && limit > s.MaxLimit {
		limit = s.MaxLimit
	}

	client, err := s.Registry.Acquire(ctx, userID, creds)
	if err != nil {
		return nil, err
	}
	cctx, cancel := s.Registry.callContext(ctx)
	defer cancel()
	if err := ensureAuthorized(cctx, client); err != nil {
		return nil, err
	}

	dialogs, err := client.GetDialogs(cctx, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fromPlatform(err)
	}
	if dialogs == nil {
		dialogs = []domain.Dialog{}
	}
	return dialogs, nil
}
