package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dalemusser/grouphub/internal/app/system/timeouts"
	svix "github.com/svix/svix-webhooks/go"
	"go.uber.org/zap"
)

var errBadPayload = errors.New("malformed webhook payload")

// ServeClerk verifies and applies a provider webhook.
// POST /api/webhooks/clerk
//
// Nothing is written before the signature checks out. Events are applied
// with upsert and delete-if-present semantics, so redelivery is harmless.
func (h *Handler) ServeClerk(w http.ResponseWriter, r *http.Request) {
	if h.Secret == "" {
		h.Log.Error("webhook secret not configured")
		h.Metrics.Webhook("unknown", "misconfigured")
		http.Error(w, "Missing secret", http.StatusInternalServerError)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.reject(w, r, "unreadable body", err)
		return
	}

	wh, err := svix.NewWebhook(h.Secret)
	if err != nil {
		h.Log.Error("webhook secret is malformed", zap.Error(err))
		h.Metrics.Webhook("unknown", "misconfigured")
		http.Error(w, "Missing secret", http.StatusInternalServerError)
		return
	}
	if err := wh.Verify(body, r.Header); err != nil {
		h.reject(w, r, "signature verification failed", err)
		return
	}

	var ev event
	if err := json.Unmarshal(body, &ev); err != nil {
		h.reject(w, r, "malformed payload", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	handled, err := h.apply(ctx, ev)
	if errors.Is(err, errBadPayload) {
		h.reject(w, r, "malformed payload", err)
		return
	}
	if err != nil {
		h.Log.Error("webhook apply failed",
			zap.String("type", ev.Type),
			zap.String("svix_id", r.Header.Get("svix-id")),
			zap.Error(err))
		h.Metrics.Webhook(ev.Type, "error")
		http.Error(w, "Error processing webhook", http.StatusInternalServerError)
		return
	}

	outcome := "applied"
	if !handled {
		outcome = "ignored"
		h.Log.Debug("webhook event ignored", zap.String("type", ev.Type))
	}
	h.Metrics.Webhook(ev.Type, outcome)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request, reason string, err error) {
	h.Log.Warn("webhook rejected", zap.String("reason", reason), zap.Error(err))
	h.Audit.WebhookRejected(r.Context(), r, reason)
	h.Metrics.Webhook("unknown", "rejected")
	http.Error(w, "Error verifying webhook", http.StatusBadRequest)
}

// apply dispatches ev. handled is false for event types the app ignores.
func (h *Handler) apply(ctx context.Context, ev event) (handled bool, err error) {
	switch ev.Type {
	case UserCreated, UserUpdated:
		var d userData
		if err := decode(ev.Data, &d, func() string { return d.ID }); err != nil {
			return true, err
		}
		_, err := h.Sync.ApplyUser(ctx, d.ID, d.fields())
		return true, err

	case UserDeleted:
		var d deletedData
		if err := decode(ev.Data, &d, func() string { return d.ID }); err != nil {
			return true, err
		}
		return true, h.Sync.DeleteUser(ctx, d.ID)

	case OrganizationCreated, OrganizationUpdated:
		var d organizationData
		if err := decode(ev.Data, &d, func() string { return d.ID }); err != nil {
			return true, err
		}
		_, err := h.Sync.ApplyOrganization(ctx, d.ID, d.fields())
		return true, err

	case OrganizationDeleted:
		var d deletedData
		if err := decode(ev.Data, &d, func() string { return d.ID }); err != nil {
			return true, err
		}
		return true, h.Sync.DeleteOrganization(ctx, d.ID)
	}
	return false, nil
}

func decode(raw json.RawMessage, v any, id func() string) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", errBadPayload, err)
	}
	if id() == "" {
		return fmt.Errorf("%w: no id", errBadPayload)
	}
	return nil
}
