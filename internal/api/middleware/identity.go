package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bbqhouse/storefront/internal/errors"
	models "github.com/bbqhouse/storefront/internal/models"
	"github.com/bbqhouse/storefront/internal/utils/response"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type identityContextKey string

const IdentityKey = identityContextKey("identity")

const SessionTokenHeader = "X-Session-Token"

type IdentityMiddleware struct {
	jwtKey []byte
}

func NewIdentityMiddleware(jwtKey []byte) *IdentityMiddleware {
	return &IdentityMiddleware{jwtKey: jwtKey}
}

// Resolve attaches an Identity to every request. A bearer token names a
// registered user; anything else is a guest tracked by a session token
// minted here and echoed back so the browser can hold on to it.
// A present-but-invalid bearer token is rejected rather than silently
// downgraded to a guest.
func (m *IdentityMiddleware) Resolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		logger := LoggerFromContext(r.Context())

		identity := models.Identity{}

		if authHeader := r.Header.Get("Authorization"); authHeader != "" {

			// Token is of format : "Bearer <token>"
			tokenParts := strings.Split(authHeader, " ")

			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				logger.Warn("Invalid authorization header format")
				response.Error(w, errors.UnauthorizedError("Invalid authorization format"))
				return
			}

			claims := &models.Claims{}

			token, err := jwt.ParseWithClaims(tokenParts[1], claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					logger.Error("Unexpected signing method used in JWT", slog.Any("alg", t.Header["alg"]))
					return nil, errors.BadRequestError("unexpected signing method")
				}
				return m.jwtKey, nil
			})

			if err != nil || !token.Valid {
				logger.Warn("JWT validation failed")
				response.Error(w, errors.UnauthorizedError("Invalid or expired token"))
				return
			}

			userID := claims.UserID
			identity.UserID = &userID
		}

		sessionToken := r.Header.Get(SessionTokenHeader)
		if sessionToken == "" {
			sessionToken = uuid.NewString()
		}

		w.Header().Set(SessionTokenHeader, sessionToken)
		identity.SessionToken = sessionToken

		ctx := context.WithValue(r.Context(), IdentityKey, identity)

		if identity.Authenticated() {
			requestScopedLogger := logger.With(slog.String("userId", identity.UserID.String()))
			ctx = context.WithValue(ctx, LoggerKey, requestScopedLogger)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser guards routes that only make sense for registered users.
func RequireUser(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		identity := IdentityFromContext(r.Context())

		if !identity.Authenticated() {
			response.Error(w, errors.UnauthorizedError("Authentication required"))
			return
		}

		next.ServeHTTP(w, r)
	}
}

func IdentityFromContext(ctx context.Context) models.Identity {
	if identity, ok := ctx.Value(IdentityKey).(models.Identity); ok {
		return identity
	}

	return models.Identity{}
}
