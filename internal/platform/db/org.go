package db

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	OrgIDKey contextKey = "org_id"
	DBTxKey  contextKey = "db_tx"
)

// OrgMiddleware resolves the organization the caller is acting for and stores
// it on the request context. Requests without an organization pass through
// with uuid.Nil so that public reads keep working.
func OrgMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := extractOrgID(c)
			if raw == "" {
				return next(c)
			}
			orgID, err := uuid.Parse(raw)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid organization identifier")
			}

			ctx := WithOrg(c.Request().Context(), orgID)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("org_id", orgID)
			return next(c)
		}
	}
}

func extractOrgID(c echo.Context) string {
	// 1. JWT claim (set by auth middleware)
	if oid, ok := c.Get("jwt_org_id").(string); ok && oid != "" {
		return oid
	}
	// 2. X-Org-ID header
	if oid := c.Request().Header.Get("X-Org-ID"); oid != "" {
		return oid
	}
	// 3. query parameter
	return c.QueryParam("org_id")
}

// WithOrg returns a context carrying the acting organization.
func WithOrg(ctx context.Context, orgID uuid.UUID) context.Context {
	return context.WithValue(ctx, OrgIDKey, orgID)
}

// OrgFromContext returns the acting organization or uuid.Nil.
func OrgFromContext(ctx context.Context) uuid.UUID {
	oid, _ := ctx.Value(OrgIDKey).(uuid.UUID)
	return oid
}

// RequireOrg returns the acting organization or a 400 when the caller did not
// identify one.
func RequireOrg(c echo.Context) (uuid.UUID, error) {
	oid := OrgFromContext(c.Request().Context())
	if oid == uuid.Nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "organization is required (X-Org-ID header or org_id claim)")
	}
	return oid, nil
}
