// Package auth authenticates API callers.
//
// Users sign in with an email and password against an external identity
// provider. A successful sign-in is exchanged for a short-lived HS256
// session token, which protected routes accept as a bearer token.
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
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// DefaultIdentityURL is the Firebase Identity Toolkit REST endpoint.
const DefaultIdentityURL = "https://identitytoolkit.googleapis.com/v1"

var (
	// ErrInvalidCredentials is returned when the provider rejects an email
	// and password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken is returned when a session or provider token cannot
	// be verified.
	ErrInvalidToken = errors.New("invalid token")

	// ErrUnavailable is returned when the provider cannot be reached.
	ErrUnavailable = errors.New("identity provider unavailable")
)

// Identity is an authenticated user as reported by the provider.
type Identity struct {
	UID          string
	Email        string
	IDToken      string
	RefreshToken string
	ExpiresIn    time.Duration
}

// Provider authenticates users against an identity provider.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*Identity, error)
	Verify(ctx context.Context, idToken string) (*Identity, error)
}

// FirebaseProvider talks to the Firebase Identity Toolkit REST API.
// Transport failures and 5xx responses are retried with exponential
// backoff; 4xx responses fail immediately.
type FirebaseProvider struct {
	apiKey     string
	baseURL    string
	client     *http.Client
	log        zerolog.Logger
	maxRetries uint64
	newBackOff func() backoff.BackOff
}

// FirebaseOption configures a FirebaseProvider.
type FirebaseOption func(*FirebaseProvider)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) FirebaseOption {
	return func(p *FirebaseProvider) { p.client = c }
}

// WithProviderLogger sets the logger retries are reported to.
func WithProviderLogger(log zerolog.Logger) FirebaseOption {
	return func(p *FirebaseProvider) { p.log = log }
}

// WithRetries sets how many times a failed call is retried and the backoff
// policy between attempts.
func WithRetries(n uint64, policy func() backoff.BackOff) FirebaseOption {
	return func(p *FirebaseProvider) {
		p.maxRetries = n
		if policy != nil {
			p.newBackOff = policy
		}
	}
}

// NewFirebaseProvider creates a provider using apiKey. An empty baseURL
// selects DefaultIdentityURL.
func NewFirebaseProvider(apiKey, baseURL string, opts ...FirebaseOption) *FirebaseProvider {
	if baseURL == "" {
		baseURL = DefaultIdentityURL
	}
	p := &FirebaseProvider{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     &http.Client{Timeout: 10 * time.Second},
		log:        zerolog.Nop(),
		maxRetries: 3,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxElapsedTime = 5 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type signInRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type signInResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

type lookupRequest struct {
	IDToken string `json:"idToken"`
}

type lookupResponse struct {
	Users []struct {
		LocalID  string `json:"localId"`
		Email    string `json:"email"`
		Disabled bool   `json:"disabled"`
	} `json:"users"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SignIn exchanges an email and password for a provider ID token.
func (p *FirebaseProvider) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidCredentials)
	}

	var resp signInResponse
	err := p.call(ctx, "accounts:signInWithPassword", signInRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}, &resp, ErrInvalidCredentials)
	if err != nil {
		return nil, err
	}
	if resp.IDToken == "" {
		return nil, fmt.Errorf("%w: provider returned no token", ErrInvalidCredentials)
	}

	id := &Identity{
		UID:          resp.LocalID,
		Email:        resp.Email,
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
	}
	if secs, err := strconv.Atoi(resp.ExpiresIn); err == nil {
		id.ExpiresIn = time.Duration(secs) * time.Second
	}
	return id, nil
}

// Verify checks that idToken still identifies an enabled account.
func (p *FirebaseProvider) Verify(ctx context.Context, idToken string) (*Identity, error) {
	if idToken == "" {
		return nil, fmt.Errorf("%w: empty id token", ErrInvalidToken)
	}

	var resp lookupResponse
	if err := p.call(ctx, "accounts:lookup", lookupRequest{IDToken: idToken}, &resp, ErrInvalidToken); err != nil {
		return nil, err
	}
	if len(resp.Users) == 0 {
		return nil, fmt.Errorf("%w: unknown account", ErrInvalidToken)
	}
	user := resp.Users[0]
	if user.Disabled {
		return nil, fmt.Errorf("%w: account disabled", ErrInvalidToken)
	}
	return &Identity{UID: user.LocalID, Email: user.Email, IDToken: idToken}, nil
}

// call posts body to method and decodes the JSON answer into out. A 4xx
// answer is reported as rejected.
func (p *FirebaseProvider) call(ctx context.Context, method string, body, out any, rejected error) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	endpoint := p.baseURL + "/" + method + "?key=" + url.QueryEscape(p.apiKey)

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		res, err := p.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		defer func() { _ = res.Body.Close() }()

		data, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		switch {
		case res.StatusCode >= 500:
			return fmt.Errorf("%w: %s returned %d", ErrUnavailable, method, res.StatusCode)
		case res.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("%w: %s", rejected, providerMessage(data, res.StatusCode)))
		}

		if err := json.Unmarshal(data, out); err != nil {
			return backoff.Permanent(fmt.Errorf("%w: decoding %s response: %v", ErrUnavailable, method, err))
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(p.newBackOff(), p.maxRetries), ctx)
	return backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		p.log.Warn().Err(err).Str("method", method).Dur("retry_in", wait).Msg("identity provider call failed")
	})
}

func providerMessage(data []byte, status int) string {
	var e errorResponse
	if err := json.Unmarshal(data, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return http.StatusText(status)
}
