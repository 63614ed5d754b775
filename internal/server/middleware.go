package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/garageflow/internal/audit/domain"
	auditcontext "github.com/smallbiznis/garageflow/internal/auditcontext"
	"github.com/smallbiznis/garageflow/internal/auth"
	"github.com/smallbiznis/garageflow/internal/garagecontext"
	obscontext "github.com/smallbiznis/garageflow/internal/observability/context"
)

const paramGarageID = "garageId"

// AuthRequired verifies the bearer token (header or access_token cookie) and
// scopes the request to the garage carried by its claims.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.tokens == nil {
			AbortWithError(c, ErrServiceUnavailable)
			return
		}

		principal, err := s.tokens.Verify(auth.TokenFromRequest(c.Request))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		actorType := string(auditdomain.ActorTypeUser)
		if principal.Role == auth.RoleSystem {
			actorType = string(auditdomain.ActorTypeSystem)
		}

		ctx := c.Request.Context()
		ctx = auth.WithPrincipal(ctx, principal)
		ctx = garagecontext.WithGarageID(ctx, principal.GarageID)
		ctx = auditcontext.WithActor(ctx, actorType, principal.Subject)
		ctx = obscontext.WithGarageID(ctx, principal.GarageID.String())
		ctx = obscontext.WithActor(ctx, actorType, principal.Subject)

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GaragePathGuard rejects requests whose :garageId path segment names a
// garage other than the caller's.
func (s *Server) GaragePathGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := auth.PrincipalFromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		raw := strings.TrimSpace(c.Param(paramGarageID))
		garageID, err := snowflake.ParseString(raw)
		if err != nil || garageID == 0 {
			AbortWithError(c, newValidationError(paramGarageID, "invalid_garageId", "invalid garage id"))
			return
		}
		if garageID != principal.GarageID {
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}

func principalFromGin(c *gin.Context) (auth.Principal, bool) {
	if c == nil || c.Request == nil {
		return auth.Principal{}, false
	}
	return auth.PrincipalFromContext(c.Request.Context())
}
