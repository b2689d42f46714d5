package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const claimsKey = "auth.claims"

// Authenticator ties the identity provider to session tokens.
type Authenticator struct {
	provider      Provider
	tokens        *Tokens
	verifyIDToken bool
	log           zerolog.Logger
}

// NewAuthenticator creates an Authenticator. When verifyIDToken is set,
// every authenticated request also re-checks the provider ID token
// embedded in the session.
func NewAuthenticator(provider Provider, tokens *Tokens, verifyIDToken bool, log zerolog.Logger) *Authenticator {
	return &Authenticator{
		provider:      provider,
		tokens:        tokens,
		verifyIDToken: verifyIDToken,
		log:           log,
	}
}

// Login signs the user in with the provider and returns a session token.
func (a *Authenticator) Login(ctx context.Context, email, password string) (string, error) {
	id, err := a.provider.SignIn(ctx, email, password)
	if err != nil {
		return "", err
	}
	return a.tokens.Issue(id)
}

// Authenticate verifies a session token.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*SessionClaims, error) {
	claims, err := a.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	if a.verifyIDToken {
		if _, err := a.provider.Verify(ctx, claims.IDToken); err != nil {
			return nil, err
		}
	}
	return claims, nil
}

// Middleware rejects requests without a valid bearer session token and
// makes the token claims available through ClaimsFrom.
func (a *Authenticator) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
				return echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated").SetInternal(err)
			}

			claims, err := a.Authenticate(c.Request().Context(), token)
			switch {
			case err == nil:
			case errors.Is(err, ErrInvalidToken):
				a.log.Debug().Err(err).Msg("rejected bearer token")
				c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Token").SetInternal(err)
			default:
				return echo.NewHTTPError(http.StatusInternalServerError, "Something happened during validation.").SetInternal(err)
			}

			c.Set(claimsKey, claims)
			return next(c)
		}
	}
}

// ClaimsFrom returns the session claims stored by Middleware.
func ClaimsFrom(c echo.Context) (*SessionClaims, bool) {
	claims, ok := c.Get(claimsKey).(*SessionClaims)
	return claims, ok
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("missing authorization header")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errors.New("unsupported authorization scheme")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("empty bearer token")
	}
	return token, nil
}
