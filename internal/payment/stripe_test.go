package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *StripeClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewStripeClient("sk_test_123", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
}

func TestCreateAuthorization(t *testing.T) {
	var gotForm map[string]string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payment_intents", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{}
		for k := range r.PostForm {
			gotForm[k] = r.PostForm.Get(k)
		}

		json.NewEncoder(w).Encode(map[string]string{
			"id":            "pi_1",
			"client_secret": "pi_1_secret_abc",
			"status":        "requires_payment_method",
		})
	})

	auth, err := client.CreateAuthorization(context.Background(), CreateParams{
		AmountCents: 250_000,
		Currency:    "usd",
		Metadata:    map[string]string{"booking_number": "BK000001"},
	})
	require.NoError(t, err)

	assert.Equal(t, "pi_1", auth.ID)
	assert.Equal(t, "pi_1_secret_abc", auth.ClientSecret)
	assert.Equal(t, AuthPending, auth.Status)

	assert.Equal(t, "250000", gotForm["amount"])
	assert.Equal(t, "usd", gotForm["currency"])
	assert.Equal(t, "BK000001", gotForm["metadata[booking_number]"])
}

func TestRetrieveAuthorizationStatusMapping(t *testing.T) {
	cases := []struct {
		stripeStatus string
		want         AuthorizationStatus
	}{
		{"succeeded", AuthSucceeded},
		{"canceled", AuthFailed},
		{"requires_payment_method", AuthPending},
		{"requires_capture", AuthPending},
		{"processing", AuthPending},
	}

	for _, tc := range cases {
		t.Run(tc.stripeStatus, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/payment_intents/pi_42", r.URL.Path)

				json.NewEncoder(w).Encode(map[string]string{
					"id":     "pi_42",
					"status": tc.stripeStatus,
				})
			})

			auth, err := client.RetrieveAuthorization(context.Background(), "pi_42")
			require.NoError(t, err)
			assert.Equal(t, tc.want, auth.Status)
		})
	}
}

func TestVoidAuthorization(t *testing.T) {
	var gotPath string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]string{"id": "pi_7", "status": "canceled"})
	})

	err := client.VoidAuthorization(context.Background(), "pi_7")
	require.NoError(t, err)
	assert.Equal(t, "/payment_intents/pi_7/cancel", gotPath)
}

func TestAPIErrorSurface(t *testing.T) {
	t.Run("structured error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusPaymentRequired)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{
					"type":    "card_error",
					"message": "Your card was declined.",
				},
			})
		})

		_, err := client.CreateAuthorization(context.Background(), CreateParams{AmountCents: 100, Currency: "usd"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Your card was declined.")
		assert.Contains(t, err.Error(), "card_error")
	})

	t.Run("unparseable error body", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("<html>oops</html>"))
		})

		_, err := client.RetrieveAuthorization(context.Background(), "pi_1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected status 500")
	})
}
