package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/ausbildung/nachweis/internal/platform/httpx"
	"github.com/ausbildung/nachweis/internal/shared"
)

// Verifier validates bearer tokens.
type Verifier interface {
	Verify(token string) (shared.Principal, error)
}

// Middleware rejects requests without a valid bearer token and stores the principal.
func Middleware(verifier Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") {
				httpx.RespondError(w, shared.ErrUnauthorized)
				return
			}
			p, err := verifier.Verify(strings.TrimSpace(token))
			if err != nil {
				logger.Debug("bearer token rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), p)))
		})
	}
}

// RequireRole allows only the listed roles through.
func RequireRole(roles ...shared.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, shared.ErrUnauthorized)
				return
			}
			for _, role := range roles {
				if p.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			httpx.RespondError(w, shared.ErrForbidden)
		})
	}
}
