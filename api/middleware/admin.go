package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/foodmarketplace/api/responses"
	"github.com/angelmondragon/foodmarketplace/pkg/auth"
	"github.com/angelmondragon/foodmarketplace/pkg/config"
	pkgerrors "github.com/angelmondragon/foodmarketplace/pkg/errors"
	"github.com/angelmondragon/foodmarketplace/pkg/logger"
)

// AdminAuth requires a bearer admin token minted with cfg.
func AdminAuth(cfg config.AdminConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := auth.ParseAdminToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := context.WithValue(r.Context(), ctxAdmin, claims.Subject)
			if logg != nil {
				ctx = logg.WithField(ctx, "admin", claims.Subject)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
