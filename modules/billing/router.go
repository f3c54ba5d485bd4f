package billing

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// maxWebhookBody caps inbound webhook payloads. Providers send kilobytes;
// anything near the cap is hostile.
const maxWebhookBody = 1 << 20

// signatureHeaders names the HTTP header each provider signs its
// deliveries with.
var signatureHeaders = map[Provider]string{
	ProviderStripe:   "Stripe-Signature",
	ProviderPaystack: "X-Paystack-Signature",
	ProviderPaddle:   "Paddle-Signature",
}

// Handler returns the module's HTTP surface:
//
//	POST /webhooks/{provider}  provider webhook ingestion
//	GET  /cron/billing         billing sweep trigger (also POST)
//
// The cron endpoint is guarded by a bearer secret checked before any
// billing work starts.
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()

	r.Post("/webhooks/{provider}", s.handleWebhook)
	r.Get("/cron/billing", s.handleCron)
	r.Post("/cron/billing", s.handleCron)

	return r
}

func (s *Service) handleWebhook(w http.ResponseWriter, r *http.Request) {
	provider := Provider(chi.URLParam(r, "provider"))

	header, ok := signatureHeaders[provider]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown provider"})
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable payload"})
		return
	}

	if err := s.HandleWebhook(r.Context(), provider, payload, r.Header.Get(header)); err != nil {
		status, msg := webhookErrorStatus(err)
		if status >= http.StatusInternalServerError {
			s.log.ErrorContext(r.Context(), "webhook processing failed",
				"provider", string(provider), "error", err)
		} else {
			s.log.WarnContext(r.Context(), "webhook rejected",
				"provider", string(provider), "error", err)
		}
		writeJSON(w, status, map[string]string{"error": msg})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// webhookErrorStatus maps processing errors to HTTP statuses. Signature
// failures are 401 so a key rotation gone wrong is visible in provider
// dashboards; malformed payloads are the sender's fault and get 400;
// everything else is our fault and gets 500 so the provider retries.
func webhookErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrUnknownProvider):
		return http.StatusNotFound, "unknown provider"
	case errors.Is(err, ErrInvalidSignature):
		return http.StatusUnauthorized, "invalid signature"
	case errors.Is(err, ErrMalformedPayload):
		return http.StatusBadRequest, "malformed payload"
	default:
		return http.StatusInternalServerError, "processing failed"
	}
}

func (s *Service) handleCron(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeCron(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	res, err := s.RunSweep(r.Context(), time.Now().UTC())
	if err != nil {
		s.log.ErrorContext(r.Context(), "billing sweep failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "sweep failed"})
		return
	}

	if res.Skipped {
		writeJSON(w, http.StatusOK, map[string]string{"status": "skipped"})
		return
	}

	errs := make([]string, 0, len(res.Errors))
	for _, e := range res.Errors {
		errs = append(errs, e.Error())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "completed",
		"processed":     res.Processed,
		"renewed":       res.Renewed,
		"downgraded":    res.Downgraded,
		"canceled":      res.Canceled,
		"failed":        res.Failed,
		"purged_events": res.PurgedEvents,
		"errors":        errs,
	})
}

// authorizeCron checks the bearer secret with a constant-time compare.
// Runs before any billing work; an unauthorized call must not consume a
// throttle slot.
func (s *Service) authorizeCron(r *http.Request) bool {
	if s.cfg.CronSecret == "" {
		return false
	}

	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.CronSecret)) == 1
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
