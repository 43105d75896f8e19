package connection

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delivery-dispatch/internal/ports"
)

func TestPasswordLoginReturnsToken(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/drivers/auth", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var in ports.AuthDriverInput
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&in)) {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		if in.Email != "ada@example.com" || in.Password != "secret123" {
			http.Error(w, `{"error":"invalid credentials"}`, http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ports.AuthDriverResult{Token: "tok-1"})
	}))
	defer srv.Close()

	login := &PasswordLogin{BaseURL: srv.URL + "/", Email: "ada@example.com", Password: "secret123"}
	tok, err := login.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	_, err = login.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())

	bad := &PasswordLogin{BaseURL: srv.URL, Email: "ada@example.com", Password: "nope"}
	_, err = bad.Token(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestStaticToken(t *testing.T) {
	tok, err := StaticToken("abc").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)
}
