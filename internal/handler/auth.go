package handler

import (
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/todolist/internal/auth"
	"github.com/sakif/todolist/internal/service"
	"github.com/sakif/todolist/internal/view"
)

// stateCookie holds the OAuth state between the redirect to GitHub and
// the callback.
const stateCookie = "oauth_state"

// homePath is where a successful sign-in lands.
const homePath = "/todos"

// AuthHandler manages sign-in, registration and sign-out.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLoginForm / HandleLogin       → email + password sign-in
//   - HandleRegisterForm / HandleRegister → create an account
//   - HandleGitHubLogin                   → redirect the browser to GitHub's authorization page
//   - HandleGitHubCallback                → receive the code, exchange it for a user, issue JWT
//   - HandleLogout                        → clear the JWT cookie
//
// DEPENDENCY CHAIN:
//   - auth   *service.AuthService  → credential checks, user creation, token issuing
//   - github *auth.GitHubProvider  → performs the OAuth code exchange (nil when not configured)
//   - tokens *auth.TokenService    → only for the session cookie lifetime
type AuthHandler struct {
	responder
	auth   *service.AuthService
	github *auth.GitHubProvider
	tokens *auth.TokenService
}

// NewAuthHandler creates an AuthHandler. github may be nil, in which case
// the GitHub buttons are hidden and its routes are not mounted.
func NewAuthHandler(
	authService *service.AuthService,
	github *auth.GitHubProvider,
	tokens *auth.TokenService,
	views *view.Views,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		responder: responder{views: views, logger: logger},
		auth:      authService,
		github:    github,
		tokens:    tokens,
	}
}

// HandleLoginForm shows the login page. Someone already signed in goes
// straight to their todos.
//
// HTTP: GET /login (OptionalAuth)
func (h *AuthHandler) HandleLoginForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.PrincipalFromContext(r.Context()); ok {
		http.Redirect(w, r, homePath, http.StatusSeeOther)
		return
	}

	p := h.page(w, r, "Login")
	p.Data = h.github != nil
	h.render(w, r, http.StatusOK, view.Login, p)
}

// HandleLogin checks the submitted credentials and starts a session.
//
// HTTP: POST /login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var form loginForm
	if !h.parseForm(w, r, &form) {
		return
	}

	result, err := h.auth.Login(r.Context(), form.Email, form.Password)
	if err != nil {
		h.fail(w, r, err, "/login")
		return
	}

	h.startSession(w, r, result)
}

// HandleRegisterForm shows the registration page.
//
// HTTP: GET /register (OptionalAuth)
func (h *AuthHandler) HandleRegisterForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.PrincipalFromContext(r.Context()); ok {
		http.Redirect(w, r, homePath, http.StatusSeeOther)
		return
	}

	p := h.page(w, r, "Register")
	p.Data = h.github != nil
	h.render(w, r, http.StatusOK, view.Register, p)
}

// HandleRegister creates an account and signs it in.
//
// HTTP: POST /register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var form registerForm
	if !h.parseForm(w, r, &form) {
		return
	}

	result, err := h.auth.Register(r.Context(), service.RegisterInput{
		Name:                 form.Name,
		Email:                form.Email,
		Password:             form.Password,
		PasswordConfirmation: form.PasswordConfirmation,
	})
	if err != nil {
		h.fail(w, r, err, "/register")
		return
	}

	h.startSession(w, r, result)
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// We generate a random state string and store it in a short-lived cookie.
// When GitHub calls back, HandleGitHubCallback verifies the state matches.
// This proves the callback was initiated by this server, not a CSRF attacker.
//
// The state cookie is:
//   - HttpOnly: JavaScript can't read it
//   - SameSite=Lax: not sent on cross-site POSTs
//   - 10-minute expiry: long enough for the user to approve, short enough to limit risk
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub user profile
//  3. Find, link or create the local account
//  4. Issue a JWT stored in an HttpOnly cookie
//  5. Redirect to the todo list
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	// --- Step 1: Validate CSRF state ---
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		h.errorPage(w, r, http.StatusBadRequest, "Bad Request", "The GitHub sign-in could not be verified. Please try again.")
		return
	}

	if r.URL.Query().Get("state") != cookie.Value {
		h.logger.Warn("auth callback: state mismatch",
			slog.String("expected", cookie.Value),
			slog.String("got", r.URL.Query().Get("state")),
		)
		h.errorPage(w, r, http.StatusBadRequest, "Bad Request", "The GitHub sign-in could not be verified. Please try again.")
		return
	}

	// The state is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	// GitHub sends ?error=access_denied when the user declines.
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		h.redirect(w, r, auth.LoginPath, flash{Status: "GitHub sign-in was cancelled."})
		return
	}

	// --- Step 2: Exchange code for GitHub user profile ---
	code := r.URL.Query().Get("code")
	if code == "" {
		h.errorPage(w, r, http.StatusBadRequest, "Bad Request", "GitHub did not send an authorization code.")
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.fail(w, r, err, auth.LoginPath)
		return
	}

	// --- Steps 3 and 4: local account + token ---
	result, err := h.auth.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		h.fail(w, r, err, auth.LoginPath)
		return
	}

	// --- Step 5: Redirect to the app ---
	h.startSession(w, r, result)
}

// HandleLogout clears the JWT cookie, effectively logging the user out.
//
// HTTP: POST /logout
//
// WHY POST AND NOT GET?
// Logout is a state-changing operation. Using GET would be vulnerable to
// CSRF and to browsers pre-fetching the URL.
//
// Since sessions are stateless (JWT), "logout" just deletes the cookie. The
// token remains technically valid until it expires, but without the cookie
// the browser can't send it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, r)
	http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, result *service.AuthResult) {
	auth.SetSessionCookie(w, r, result.Token, h.tokens.TTL())

	h.logger.Info("user authenticated", slog.Int64("userID", result.User.ID))

	http.Redirect(w, r, homePath, http.StatusSeeOther)
}
