package credit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPGateCheck(t *testing.T) {
	t.Run("allowed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				UserID string `json:"user_id"`
				Cost   int    `json:"cost"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "user-1", req.UserID)
			assert.Equal(t, 2, req.Cost)

			json.NewEncoder(w).Encode(map[string]any{"allowed": true, "remaining": 8})
		}))
		defer srv.Close()

		d, err := NewHTTPGate(srv.URL).Check(context.Background(), "user-1", 2)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 8, d.Remaining)
	})

	t.Run("402 is a denial not an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusPaymentRequired)
			json.NewEncoder(w).Encode(map[string]any{"remaining": 1})
		}))
		defer srv.Close()

		d, err := NewHTTPGate(srv.URL).Check(context.Background(), "user-1", 2)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, 1, d.Remaining)
	})

	t.Run("unexpected status is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := NewHTTPGate(srv.URL).Check(context.Background(), "user-1", 2)
		require.Error(t, err)
	})

	t.Run("unreachable endpoint is an error", func(t *testing.T) {
		_, err := NewHTTPGate("http://127.0.0.1:1").Check(context.Background(), "user-1", 1)
		require.Error(t, err)
	})
}

func TestAllowAll(t *testing.T) {
	d, err := AllowAll{}.Check(context.Background(), "anyone", 100)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}
