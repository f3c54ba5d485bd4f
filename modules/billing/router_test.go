package billing_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/modules/billing"
)

func doRequest(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCronEndpointRequiresSecret(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, billing.Config{CronSecret: "topsecret"})
	h := env.svc.Handler()

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic topsecret", http.StatusUnauthorized},
		{"wrong secret", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer topsecret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/cron/billing", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := doRequest(t, h, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestCronEndpointReportsSkipped(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, billing.Config{CronSecret: "topsecret", MinRunInterval: time.Hour})
	h := env.svc.Handler()

	run := func() map[string]any {
		req := httptest.NewRequest(http.MethodGet, "/cron/billing", nil)
		req.Header.Set("Authorization", "Bearer topsecret")
		rec := doRequest(t, h, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return body
	}

	first := run()
	assert.Equal(t, "completed", first["status"])

	// A second trigger inside the throttle window is acknowledged, not an
	// error: the scheduler should not retry it.
	second := run()
	assert.Equal(t, "skipped", second["status"])
}

func TestWebhookEndpoint(t *testing.T) {
	t.Parallel()

	provider, err := billing.NewPaystackProvider(paystackSecret)
	require.NoError(t, err)

	env := newTestEnv(t, billing.Config{CronSecret: "s"}, billing.WithProvider(provider))
	h := env.svc.Handler()

	periodEnd := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	sub := seedSubscription(t, env, paidSubscription(billing.StatusActive, billing.PlanPro, periodEnd))
	payload := paystackChargeSuccess("ref_http", sub.ProviderCustomerRef)

	t.Run("accepts a signed delivery", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", bytes.NewReader(payload))
		req.Header.Set("X-Paystack-Signature", provider.Sign(payload))
		rec := doRequest(t, h, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	})

	t.Run("rejects a bad signature with 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", bytes.NewReader(payload))
		req.Header.Set("X-Paystack-Signature", provider.Sign([]byte("tampered")))
		rec := doRequest(t, h, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown provider path is 404", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/braintree", bytes.NewReader(payload))
		rec := doRequest(t, h, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed payload is 400", func(t *testing.T) {
		broken := []byte(`{"event":`)
		req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", bytes.NewReader(broken))
		req.Header.Set("X-Paystack-Signature", provider.Sign(broken))
		rec := doRequest(t, h, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
