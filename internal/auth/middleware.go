package auth

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/todolist/internal/model"
)

// CookieName is the HttpOnly cookie that carries the session JWT.
const CookieName = "token"

// LoginPath is where unauthenticated requests are sent.
const LoginPath = "/login"

// contextKey is unexported so only this package can read or write the
// principal stored in a request context.
type contextKey string

const principalKey contextKey = "principal"

// UserLoader resolves the user id carried by a token.
// *sqlite.DB satisfies it.
type UserLoader interface {
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
}

// RequireAuth is a middleware for routes that need a signed-in user.
//
// It reads the "token" cookie, validates it, loads the user and stores it
// in the request context. A missing or invalid token, or a token for a
// user that no longer exists, redirects to /login (303) and stops the
// chain.
func RequireAuth(tokens *TokenService, users UserLoader, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := principalFromRequest(r, tokens, users)
			if err != nil {
				if _, cookieErr := r.Cookie(CookieName); cookieErr == nil {
					// A cookie was sent but is no good; drop it.
					logger.Debug("rejecting session", "error", err, "path", r.URL.Path)
					ClearSessionCookie(w, r)
				}
				http.Redirect(w, r, LoginPath, http.StatusSeeOther)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), user)))
		})
	}
}

// OptionalAuth is a middleware for public routes (login, register) that
// behave differently when someone is already signed in. It never blocks.
func OptionalAuth(tokens *TokenService, users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user, err := principalFromRequest(r, tokens, users); err == nil {
				r = r.WithContext(WithPrincipal(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithPrincipal returns a copy of ctx carrying user.
func WithPrincipal(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, principalKey, user)
}

// PrincipalFromContext returns the signed-in user, or (nil, false) for an
// anonymous request.
//
//	user, ok := auth.PrincipalFromContext(r.Context())
//	if !ok {
//	    // anonymous
//	}
func PrincipalFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(principalKey).(*model.User)
	return user, ok && user != nil
}

// SetSessionCookie stores token in the session cookie for the token's
// lifetime. Secure is set when the request arrived over TLS.
func SetSessionCookie(w http.ResponseWriter, r *http.Request, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func principalFromRequest(r *http.Request, tokens *TokenService, users UserLoader) (*model.User, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, err
	}

	userID, err := tokens.Validate(cookie.Value)
	if err != nil {
		return nil, err
	}

	return users.GetUserByID(r.Context(), userID)
}
