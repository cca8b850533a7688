package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/noticing/internal/logger"
	"github.com/noticing/internal/models"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

type contextKey string

const (
	userKey  contextKey = "user"
	tokenKey contextKey = "token"
)

// SessionProvider is the part of the identity provider the session
// middleware needs.
type SessionProvider interface {
	GetUser(ctx context.Context, accessToken string) (*models.User, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// WithUser returns a context carrying user and its session token.
func WithUser(ctx context.Context, user *models.User, tok *oauth2.Token) context.Context {
	ctx = context.WithValue(ctx, userKey, user)
	return context.WithValue(ctx, tokenKey, tok)
}

// UserFromContext returns the signed-in user, if any.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userKey).(*models.User)
	return user, ok && user != nil
}

// TokenFromContext returns the signed-in user's session token, if any.
func TokenFromContext(ctx context.Context) (*oauth2.Token, bool) {
	tok, ok := ctx.Value(tokenKey).(*oauth2.Token)
	return tok, ok && tok != nil
}

// Middleware resolves the session cookies into a user on the request
// context, refreshing an expired access token first. Requests without a
// valid session pass through without a user.
func Middleware(provider SessionProvider, cookies Cookies, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			tok, ok := cookies.ReadSession(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			reqLog := logger.FromContext(ctx, log)

			if !tok.Valid() && tok.RefreshToken != "" {
				refreshed, err := provider.Refresh(ctx, tok.RefreshToken)
				if err != nil {
					reqLog.Info("session refresh failed", zap.Error(err))
					cookies.ClearSession(w)
					next.ServeHTTP(w, r)
					return
				}
				if refreshed.RefreshToken == "" {
					refreshed.RefreshToken = tok.RefreshToken
				}
				tok = refreshed
				cookies.WriteSession(w, tok)
			}

			if tok.AccessToken == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := provider.GetUser(ctx, tok.AccessToken)
			if err != nil {
				if errors.Is(err, ErrUnauthenticated) {
					cookies.ClearSession(w)
				} else {
					reqLog.Warn("user lookup failed", zap.Error(err))
				}
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(ctx, user, tok)))
		})
	}
}

// RequireUser redirects to the sign-in page when no user is signed in.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
