package auth

import (
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

const (
	accessTokenCookie  = "noticing-access-token"
	refreshTokenCookie = "noticing-refresh-token"
	expiryCookie       = "noticing-token-expiry"
	verifierCookie     = "noticing-code-verifier"

	sessionMaxAge  = 60 * 60 * 24 * 30
	verifierMaxAge = 60 * 60 * 24
)

// Cookies writes and reads the session cookies.
type Cookies struct {
	Secure bool
}

func (c Cookies) set(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// WriteSession stores tok on the response.
func (c Cookies) WriteSession(w http.ResponseWriter, tok *oauth2.Token) {
	c.set(w, accessTokenCookie, tok.AccessToken, sessionMaxAge)
	if tok.RefreshToken != "" {
		c.set(w, refreshTokenCookie, tok.RefreshToken, sessionMaxAge)
	}
	if !tok.Expiry.IsZero() {
		c.set(w, expiryCookie, strconv.FormatInt(tok.Expiry.Unix(), 10), sessionMaxAge)
	}
}

// ReadSession returns the session carried by r, if any.
func (c Cookies) ReadSession(r *http.Request) (*oauth2.Token, bool) {
	tok := &oauth2.Token{TokenType: "Bearer"}

	if cookie, err := r.Cookie(accessTokenCookie); err == nil {
		tok.AccessToken = cookie.Value
	}
	if cookie, err := r.Cookie(refreshTokenCookie); err == nil {
		tok.RefreshToken = cookie.Value
	}
	if cookie, err := r.Cookie(expiryCookie); err == nil {
		if unix, err := strconv.ParseInt(cookie.Value, 10, 64); err == nil {
			tok.Expiry = time.Unix(unix, 0)
		}
	}

	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, false
	}
	return tok, true
}

// ClearSession expires every session cookie.
func (c Cookies) ClearSession(w http.ResponseWriter) {
	for _, name := range []string{accessTokenCookie, refreshTokenCookie, expiryCookie} {
		c.set(w, name, "", -1)
	}
}

// WriteVerifier remembers the PKCE verifier until the confirmation callback.
func (c Cookies) WriteVerifier(w http.ResponseWriter, verifier string) {
	c.set(w, verifierCookie, verifier, verifierMaxAge)
}

// TakeVerifier returns the stored PKCE verifier and expires its cookie.
func (c Cookies) TakeVerifier(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(verifierCookie)
	if err != nil {
		return ""
	}
	c.set(w, verifierCookie, "", -1)
	return cookie.Value
}
