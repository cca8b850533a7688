// Package auth talks to the external identity provider and carries the
// resulting session in cookies.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/noticing/internal/models"
	"golang.org/x/oauth2"
)

// ErrUnauthenticated is returned when the provider rejects an access token.
var ErrUnauthenticated = errors.New("unauthenticated")

// ProviderError carries the identity provider's own message, suitable for
// showing to the user.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return e.Message
}

// Client is an identity provider client. Tokens come from the standard
// OAuth2 grants at {baseURL}/token; sign-up, user lookup and logout use the
// provider's JSON endpoints.
type Client struct {
	baseURL    string
	clientID   string
	oauth      oauth2.Config
	httpClient *http.Client
}

func NewClient(baseURL, clientID, clientSecret string) *Client {
	baseURL = strings.TrimRight(baseURL, "/")

	httpClient := &http.Client{
		Timeout:   15 * time.Second,
		Transport: &apiKeyTransport{apiKey: clientID, base: http.DefaultTransport},
	}

	return &Client{
		baseURL:  baseURL,
		clientID: clientID,
		oauth: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   baseURL + "/authorize",
				TokenURL:  baseURL + "/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: httpClient,
	}
}

// apiKeyTransport identifies the application on every provider request.
type apiKeyTransport struct {
	apiKey string
	base   http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("apikey", t.apiKey)
	return t.base.RoundTrip(req)
}

func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// SignIn exchanges an email and password for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*oauth2.Token, error) {
	tok, err := c.oauth.PasswordCredentialsToken(c.oauthContext(ctx), email, password)
	if err != nil {
		return nil, providerError("sign in", err)
	}
	return tok, nil
}

// Exchange completes the authorization-code handshake. verifier is the PKCE
// code verifier issued at sign-up, or empty when none was issued.
func (c *Client) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}

	tok, err := c.oauth.Exchange(c.oauthContext(ctx), code, opts...)
	if err != nil {
		return nil, providerError("exchange code", err)
	}
	return tok, nil
}

// Refresh trades a refresh token for a new session.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	src := c.oauth.TokenSource(c.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, providerError("refresh session", err)
	}
	return tok, nil
}

type signUpRequest struct {
	Email               string `json:"email"`
	Password            string `json:"password"`
	CodeChallenge       string `json:"code_challenge,omitempty"`
	CodeChallengeMethod string `json:"code_challenge_method,omitempty"`
}

type signUpResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// SignUpResult is either an immediate session or a pending email
// confirmation whose callback must present Verifier.
type SignUpResult struct {
	Session  *oauth2.Token
	Verifier string
}

// SignUp registers a new account. The confirmation link the provider sends
// points at redirectTo.
func (c *Client) SignUp(ctx context.Context, email, password, redirectTo string) (*SignUpResult, error) {
	verifier := oauth2.GenerateVerifier()
	body := signUpRequest{
		Email:               email,
		Password:            password,
		CodeChallenge:       oauth2.S256ChallengeFromVerifier(verifier),
		CodeChallengeMethod: "s256",
	}

	endpoint := c.baseURL + "/signup"
	if redirectTo != "" {
		endpoint += "?redirect_to=" + url.QueryEscape(redirectTo)
	}

	var resp signUpResponse
	if err := c.doJSON(ctx, http.MethodPost, endpoint, "", body, &resp); err != nil {
		return nil, err
	}

	if resp.AccessToken == "" {
		return &SignUpResult{Verifier: verifier}, nil
	}

	tok := &oauth2.Token{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
	}
	if resp.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	return &SignUpResult{Session: tok}, nil
}

// GetUser validates accessToken and returns its user.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*models.User, error) {
	var user models.User
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/user", accessToken, nil, &user); err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, ErrUnauthenticated
	}
	return &user, nil
}

// SignOut revokes the session behind accessToken.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.doJSON(ctx, http.MethodPost, c.baseURL+"/logout", accessToken, nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, endpoint, accessToken string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		if accessToken != "" {
			return ErrUnauthenticated
		}
	}
	if resp.StatusCode >= 300 {
		return &ProviderError{StatusCode: resp.StatusCode, Message: errorMessage(respBody, resp.Status)}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// errorMessage pulls a human-readable message out of a provider error body.
func errorMessage(body []byte, fallback string) string {
	var payload struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
		Error            string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, m := range []string{payload.Msg, payload.Message, payload.ErrorDescription, payload.Error} {
			if m != "" {
				return m
			}
		}
	}
	return fallback
}

func providerError(op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		msg := re.ErrorDescription
		if msg == "" {
			status := ""
			if re.Response != nil {
				status = re.Response.Status
			}
			msg = errorMessage(re.Body, status)
		}
		if msg == "" {
			msg = re.ErrorCode
		}
		code := 0
		if re.Response != nil {
			code = re.Response.StatusCode
		}
		return &ProviderError{StatusCode: code, Message: msg}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
