package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	apperrors "parkflow/internal/errors"
	"parkflow/internal/service"
	"parkflow/internal/wizard"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

type StripeWebhookHandler struct {
	StripeSecret string
	payments     *service.PaymentService
	wizards      *wizard.Registry
	logger       *slog.Logger
}

func NewStripeWebhookHandler(stripeSecret string, payments *service.PaymentService, wizards *wizard.Registry, logger *slog.Logger) *StripeWebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeWebhookHandler{
		StripeSecret: stripeSecret,
		payments:     payments,
		wizards:      wizards,
		logger:       logger,
	}
}

func (h *StripeWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const maxBodyBytes = int64(65536)
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("reading webhook body", "err", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	event, err := webhook.ConstructEvent(payload, sigHeader, h.StripeSecret)
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "err", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			h.logger.Warn("parsing checkout.session", "event", event.ID, "err", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			// async methods settle later with async_payment_succeeded
			h.logger.Info("checkout completed unpaid", "checkout", sess.ID, "status", sess.PaymentStatus)
			break
		}
		sessionID, res, err := h.payments.CompleteCheckout(r.Context(), &sess)
		if err != nil {
			h.fail(w, event, err)
			return
		}
		if wz, ok := h.wizards.Get(sessionID); ok {
			wz.UpdateReservation(*res)
		}

	case "checkout.session.expired", "checkout.session.async_payment_failed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			h.logger.Warn("parsing checkout.session", "event", event.ID, "err", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if err := h.payments.FailCheckout(r.Context(), &sess); err != nil {
			h.fail(w, event, err)
			return
		}

	default:
		h.logger.Debug("unhandled event type", "type", event.Type)
	}

	w.WriteHeader(http.StatusOK)
}

// fail answers 5xx only for failures a redelivery can fix.
func (h *StripeWebhookHandler) fail(w http.ResponseWriter, event stripe.Event, err error) {
	switch {
	case apperrors.Is(err, apperrors.ErrBackend), apperrors.Is(err, apperrors.ErrNetwork):
		h.logger.Error("webhook not reconciled", "event", event.ID, "type", event.Type, "err", err)
		w.WriteHeader(http.StatusInternalServerError)
	default:
		h.logger.Warn("webhook dropped", "event", event.ID, "type", event.Type, "err", err)
		w.WriteHeader(http.StatusOK)
	}
}
