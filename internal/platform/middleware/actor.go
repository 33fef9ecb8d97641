package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"traceport/internal/permission"
)

type contextKeyActor struct{}

// ContextKeyActor is exported for use in handlers.
var ContextKeyActor = contextKeyActor{}

// GetActor retrieves the authenticated actor from the context.
func GetActor(ctx context.Context) (permission.Actor, bool) {
	actor, ok := ctx.Value(ContextKeyActor).(permission.Actor)
	return actor, ok
}

// actorClaims are the claims the identity provider signs for this core. The
// core trusts them; it performs no authentication beyond signature checking.
type actorClaims struct {
	Kind  string `json:"kind"` // platform | org | external
	OrgID string `json:"org"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// ActorParser validates bearer tokens and produces actors.
type ActorParser struct {
	signingKey []byte
}

func NewActorParser(signingKey string) *ActorParser {
	return &ActorParser{signingKey: []byte(signingKey)}
}

// Parse validates the token and maps its claims onto an Actor.
func (p *ActorParser) Parse(tokenString string) (permission.Actor, error) {
	var claims actorClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return p.signingKey, nil
	})
	if err != nil {
		return permission.Actor{}, err
	}

	actorID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return permission.Actor{}, err
	}

	actor := permission.Actor{ID: actorID}
	switch claims.Kind {
	case "platform":
		actor.Kind = permission.ActorPlatform
	case "org":
		actor.Kind = permission.ActorOrgMember
		orgID, err := uuid.Parse(claims.OrgID)
		if err != nil {
			return permission.Actor{}, err
		}
		actor.OrgID = orgID
		actor.Role = permission.Role(claims.Role)
	default:
		actor.Kind = permission.ActorExternal
	}
	return actor, nil
}

// RequireActor rejects requests without a valid bearer token and stores the
// resolved actor in context. Contributor endpoints are token-in-path and do
// not use this middleware.
func RequireActor(parser *ActorParser, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				unauthorized(w, r, logger, "missing or invalid Authorization header")
				return
			}
			actor, err := parser.Parse(token)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(r.Context()),
				)
				unauthorized(w, r, logger, "invalid or expired token")
				return
			}
			ctx := context.WithValue(r.Context(), ContextKeyActor, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, logger *slog.Logger, desc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if _, err := w.Write([]byte(`{"error":"unauthorized","error_description":"` + desc + `"}`)); err != nil {
		logger.ErrorContext(r.Context(), "failed to write unauthorized response",
			"error", err,
			"request_id", GetRequestID(r.Context()),
		)
	}
}
