package api

import (
	"log/slog"
	"net/http"
	"strings"

	"parkflow/internal/entities"
	apperrors "parkflow/internal/errors"
	"parkflow/internal/service"
	"parkflow/internal/wizard"

	"github.com/gorilla/mux"
)

// PaymentHandler settles the reservation shown on the confirmation step.
type PaymentHandler struct {
	wizards     *wizard.Registry
	payments    *service.PaymentService
	frontendURL string
	logger      *slog.Logger
}

func NewPaymentHandler(wizards *wizard.Registry, payments *service.PaymentService, frontendURL string, logger *slog.Logger) *PaymentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentHandler{
		wizards:     wizards,
		payments:    payments,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logger:      logger,
	}
}

func (h *PaymentHandler) confirmed(w http.ResponseWriter, r *http.Request) (*wizard.Wizard, *entities.Reservation, bool) {
	id := mux.Vars(r)["sessionID"]
	wz, ok := h.wizards.Get(id)
	if !ok {
		writeError(w, apperrors.Newf(apperrors.ErrNotFound, "wizard session %s does not exist", id))
		return nil, nil, false
	}
	res, ok := wz.Reservation()
	if !ok {
		respond(w, wz, apperrors.New(apperrors.ErrMissingData, "no reservation to pay"))
		return nil, nil, false
	}
	return wz, res, true
}

func (h *PaymentHandler) settled(w http.ResponseWriter, wz *wizard.Wizard, res *entities.Reservation, err error) {
	if err != nil {
		wz.ReportError(err)
		respond(w, wz, err)
		return
	}
	wz.UpdateReservation(*res)
	respond(w, wz, nil)
}

// StartOnline opens the provider step again for the reservation already shown,
// as when creating the checkout failed right after the reservation was accepted.
func (h *PaymentHandler) StartOnline(w http.ResponseWriter, r *http.Request) {
	wz, current, ok := h.confirmed(w, r)
	if !ok {
		return
	}
	redirect, err := h.payments.StartOnline(r.Context(), wz.ID(), *current)
	if err != nil {
		h.logger.Warn("restarting online payment", "session", wz.ID(), "reservation", current.ID, "err", err)
		wz.ReportError(err)
		respond(w, wz, err)
		return
	}
	wz.DismissError()
	respondWith(w, WizardResponse{Redirect: redirect}, wz, nil)
}

func (h *PaymentHandler) ConfirmCash(w http.ResponseWriter, r *http.Request) {
	wz, current, ok := h.confirmed(w, r)
	if !ok {
		return
	}
	res, err := h.payments.ConfirmCash(r.Context(), wz.ID(), current.ID)
	h.settled(w, wz, res, err)
}

// ConfirmCard reconciles a payment intent confirmed by the page with Stripe.js.
func (h *PaymentHandler) ConfirmCard(w http.ResponseWriter, r *http.Request) {
	wz, current, ok := h.confirmed(w, r)
	if !ok {
		return
	}
	var req CardConfirmRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.payments.ConfirmCardPayment(r.Context(), wz.ID(), current.ID, req.PaymentIntentID)
	h.settled(w, wz, res, err)
}

// FlouciReturn is where Flouci sends the browser back with its payment_id.
func (h *PaymentHandler) FlouciReturn(w http.ResponseWriter, r *http.Request) {
	wz, current, ok := h.confirmed(w, r)
	if !ok {
		return
	}
	res, err := h.payments.VerifyFlouci(r.Context(), wz.ID(), current.ID, r.URL.Query().Get("payment_id"))
	if err == nil && h.frontendURL != "" {
		wz.UpdateReservation(*res)
		http.Redirect(w, r, h.frontendURL+"/reservation/"+wz.ID(), http.StatusSeeOther)
		return
	}
	h.settled(w, wz, res, err)
}

// StripeReturn is the checkout success URL. The wizard may be gone after a
// restart, in which case it is rebuilt on the confirmation step.
func (h *PaymentHandler) StripeReturn(w http.ResponseWriter, r *http.Request) {
	sessionID, res, err := h.payments.CompleteCheckoutByID(r.Context(), r.URL.Query().Get("session_id"))
	if sessionID == "" {
		writeError(w, err)
		return
	}
	wz, existed := h.wizards.Get(sessionID)
	if !existed {
		wz = h.wizards.CreateWithID(sessionID)
	}
	if err != nil {
		h.logger.Warn("stripe return not settled", "session", sessionID, "err", err)
		wz.ReportError(err)
		respond(w, wz, err)
		return
	}
	if _, shown := wz.Reservation(); shown {
		wz.UpdateReservation(*res)
	} else {
		_ = wz.ShowConfirmation(res)
	}
	if h.frontendURL != "" {
		http.Redirect(w, r, h.frontendURL+"/reservation/"+sessionID, http.StatusSeeOther)
		return
	}
	respond(w, wz, nil)
}
