// Package services – AccountService
//
// Account removal is the one operation here that touches no row directly:
// it publishes PrincipalDeleted and lets CascadeCleanup perform the
// transactional removal, keeping the deletion semantics in one place.
package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-messaging-backend/internal/events"
)

// AccountService handles principal account removal.
type AccountService struct {
	Bus *events.Bus
}

// DeleteAccount publishes PrincipalDeleted for the given principal. The
// cascade subscriber removes messages, notifications, and history rows in
// one transaction; its failure is returned to the caller.
func (s *AccountService) DeleteAccount(ctx context.Context, principalID string) error {
	tr := otel.Tracer("services/AccountService")
	ctx, span := tr.Start(ctx, "DeleteAccount",
		trace.WithAttributes(attribute.String("principal.id", principalID)),
	)
	defer span.End()

	return s.Bus.Publish(ctx, events.PrincipalDeleted{PrincipalID: principalID})
}
