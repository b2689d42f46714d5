package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"
)

// fakeIdentity imitates the two Identity Toolkit calls the provider uses.
type fakeIdentity struct {
	failures atomic.Int32 // 503 answers to give before succeeding
	calls    atomic.Int32
}

func (f *fakeIdentity) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	if f.failures.Load() > 0 {
		f.failures.Add(-1)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	if r.URL.Query().Get("key") != "api-key" {
		writeProviderError(w, http.StatusBadRequest, "API_KEY_INVALID")
		return
	}

	switch r.URL.Path {
	case "/v1/accounts:signInWithPassword":
		var req signInRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Email != "ana@example.com" || req.Password != "secret" || !req.ReturnSecureToken {
			writeProviderError(w, http.StatusBadRequest, "INVALID_LOGIN_CREDENTIALS")
			return
		}
		_ = json.NewEncoder(w).Encode(signInResponse{
			LocalID:      "u1",
			Email:        req.Email,
			IDToken:      "id-token-u1",
			RefreshToken: "refresh",
			ExpiresIn:    "3600",
		})
	case "/v1/accounts:lookup":
		var req lookupRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		switch req.IDToken {
		case "id-token-u1":
			_, _ = w.Write([]byte(`{"users":[{"localId":"u1","email":"ana@example.com"}]}`))
		case "id-token-disabled":
			_, _ = w.Write([]byte(`{"users":[{"localId":"u2","email":"bo@example.com","disabled":true}]}`))
		default:
			writeProviderError(w, http.StatusBadRequest, "INVALID_ID_TOKEN")
		}
	default:
		http.NotFound(w, r)
	}
}

func writeProviderError(w http.ResponseWriter, code int, message string) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": code, "message": message},
	})
}

func newTestProvider(t *testing.T, fake *fakeIdentity) *FirebaseProvider {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewFirebaseProvider("api-key", srv.URL+"/v1/", WithRetries(3, func() backoff.BackOff {
		return backoff.NewConstantBackOff(time.Millisecond)
	}))
}

func TestFirebaseProvider_SignIn(t *testing.T) {
	p := newTestProvider(t, &fakeIdentity{})

	id, err := p.SignIn(context.Background(), "ana@example.com", "secret")
	require.NoError(t, err)
	require.Equal(t, &Identity{
		UID:          "u1",
		Email:        "ana@example.com",
		IDToken:      "id-token-u1",
		RefreshToken: "refresh",
		ExpiresIn:    time.Hour,
	}, id)
}

func TestFirebaseProvider_SignInRejected(t *testing.T) {
	fake := &fakeIdentity{}
	p := newTestProvider(t, fake)

	_, err := p.SignIn(context.Background(), "ana@example.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	require.Contains(t, err.Error(), "INVALID_LOGIN_CREDENTIALS")
	require.Equal(t, int32(1), fake.calls.Load(), "4xx answers are not retried")

	_, err = p.SignIn(context.Background(), "", "secret")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	require.Equal(t, int32(1), fake.calls.Load(), "empty credentials never reach the provider")
}

func TestFirebaseProvider_Retries(t *testing.T) {
	fake := &fakeIdentity{}
	fake.failures.Store(2)
	p := newTestProvider(t, fake)

	id, err := p.SignIn(context.Background(), "ana@example.com", "secret")
	require.NoError(t, err)
	require.Equal(t, "u1", id.UID)
	require.Equal(t, int32(3), fake.calls.Load())
}

func TestFirebaseProvider_GivesUp(t *testing.T) {
	fake := &fakeIdentity{}
	fake.failures.Store(100)
	p := newTestProvider(t, fake)

	_, err := p.SignIn(context.Background(), "ana@example.com", "secret")
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, int32(4), fake.calls.Load())
}

func TestFirebaseProvider_Verify(t *testing.T) {
	p := newTestProvider(t, &fakeIdentity{})

	id, err := p.Verify(context.Background(), "id-token-u1")
	require.NoError(t, err)
	require.Equal(t, "ana@example.com", id.Email)

	for _, token := range []string{"", "forged", "id-token-disabled"} {
		_, err := p.Verify(context.Background(), token)
		require.ErrorIs(t, err, ErrInvalidToken, "token %q", token)
	}
}

func TestFirebaseProvider_WrongKey(t *testing.T) {
	srv := httptest.NewServer(&fakeIdentity{})
	t.Cleanup(srv.Close)
	p := NewFirebaseProvider("other-key", srv.URL+"/v1")

	_, err := p.SignIn(context.Background(), "ana@example.com", "secret")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}
