package middleware

import (
	"net/http"

	"github.com/angelmondragon/payoutcore-backend/api/responses"
	"github.com/angelmondragon/payoutcore-backend/api/validators"
	pkgAuth "github.com/angelmondragon/payoutcore-backend/pkg/auth"
	"github.com/angelmondragon/payoutcore-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/payoutcore-backend/pkg/errors"
	"github.com/angelmondragon/payoutcore-backend/pkg/logger"
)

// OperatorAuth validates an operator bearer token and seeds the request
// context with its subject and role. With no JWT secret configured the
// operator routes stay open.
func OperatorAuth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := validators.BearerToken(r.Header.Get("Authorization"))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseOperatorToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithOperator(r.Context(), claims.Subject, claims.Role)
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"operator":   claims.Subject,
					"actor_role": claims.Role,
				})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
