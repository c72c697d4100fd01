package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyring_PlaintextKey(t *testing.T) {
	ring := NewKeyring([]Key{{Name: "display", Value: "clock-key-1"}})

	name, err := ring.Authenticate("clock-key-1")
	require.NoError(t, err)
	assert.Equal(t, "display", name)
}

func TestKeyring_HashedKey(t *testing.T) {
	hash, err := HashKey("setup-secret")
	require.NoError(t, err)

	ring := NewKeyring([]Key{{Name: "setup", Value: hash}})

	name, err := ring.Authenticate("setup-secret")
	require.NoError(t, err)
	assert.Equal(t, "setup", name)

	_, err = ring.Authenticate("wrong")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestKeyring_RejectsUnknownKey(t *testing.T) {
	ring := NewKeyring([]Key{{Name: "display", Value: "clock-key-1"}})

	_, err := ring.Authenticate("other")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestKeyring_RejectsEmptyKey(t *testing.T) {
	ring := NewKeyring([]Key{{Name: "display", Value: "clock-key-1"}})

	_, err := ring.Authenticate("")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestKeyring_EmptyRingAuthenticatesNothing(t *testing.T) {
	ring := NewKeyring(nil)
	require.True(t, ring.Empty())

	_, err := ring.Authenticate("anything")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestMiddleware_AcceptsBearerAndHeader(t *testing.T) {
	ring := NewKeyring([]Key{{Name: "display", Value: "clock-key-1"}})

	var caller string
	handler := Middleware(ring, true, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, _ = Caller(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/untis/timetable", http.NoBody)
	req.Header.Set("Authorization", "Bearer clock-key-1")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "display", caller)

	req = httptest.NewRequest(http.MethodGet, "/untis/timetable", http.NoBody)
	req.Header.Set("X-API-Key", "clock-key-1")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMiddleware_RejectsMissingKey(t *testing.T) {
	ring := NewKeyring([]Key{{Name: "display", Value: "clock-key-1"}})

	handler := Middleware(ring, true, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run without a key")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/untis/timetable", http.NoBody))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Bearer", w.Result().Header.Get("WWW-Authenticate"))
}

func TestMiddleware_DisabledPassesThrough(t *testing.T) {
	ring := NewKeyring(nil)

	called := false
	handler := Middleware(ring, false, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
}
