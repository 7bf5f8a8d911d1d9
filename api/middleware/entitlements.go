package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/helpdesk-billing/api/responses"
	"github.com/angelmondragon/helpdesk-billing/internal/guard"
	"github.com/angelmondragon/helpdesk-billing/pkg/logger"
)

type authorizer interface {
	Authorize(ctx context.Context, tenantID uuid.UUID, reqs ...guard.Requirement) (guard.Decision, error)
}

// RequireEntitlements runs reqs for the request's tenant before the handler.
// Quota requirements record usage here, so the handler must not record again.
func RequireEntitlements(g authorizer, logg *logger.Logger, reqs ...guard.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID, err := ResolveTenantID(r)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if _, err := g.Authorize(r.Context(), tenantID, reqs...); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
