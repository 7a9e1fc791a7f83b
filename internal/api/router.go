package api

import (
	"log/slog"
	"net/http"

	"parkflow/internal/auth"
	"parkflow/internal/clock"
	"parkflow/internal/session"

	"github.com/gorilla/mux"
)

type RouterDeps struct {
	Wizards  *WizardHandler
	Payments *PaymentHandler
	Webhook  *StripeWebhookHandler
	Store    session.Store
	Clock    clock.Clock
	Logger   *slog.Logger
}

func NewRouter(d RouterDeps) *mux.Router {
	r := mux.NewRouter()
	r.Use(LoggingMiddleware(d.Logger))

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	// Wizard endpoints
	r.HandleFunc("/api/wizard", d.Wizards.Create).Methods("POST")

	wz := r.PathPrefix("/api/wizard/{sessionID}").Subrouter()
	wz.Use(auth.CredentialMiddleware(d.Store, d.Clock.Now, d.Logger))
	wz.HandleFunc("", d.Wizards.Get).Methods("GET")
	wz.HandleFunc("", d.Wizards.Abandon).Methods("DELETE")
	wz.HandleFunc("/position", d.Wizards.PushPosition).Methods("POST")
	wz.HandleFunc("/parkings", d.Wizards.SearchParkings).Methods("GET")
	wz.HandleFunc("/parking", d.Wizards.SelectParking).Methods("POST")
	wz.HandleFunc("/reserve", d.Wizards.Reserve).Methods("POST")
	wz.HandleFunc("/back", d.Wizards.Back).Methods("POST")
	wz.HandleFunc("/map", d.Wizards.Map).Methods("GET")
	wz.HandleFunc("/map/refresh", d.Wizards.RefreshMap).Methods("POST")
	wz.HandleFunc("/map/gesture", d.Wizards.Gesture).Methods("POST")
	wz.HandleFunc("/map/locate", d.Wizards.LocateSpot).Methods("POST")
	wz.HandleFunc("/map/select", d.Wizards.SelectSpot).Methods("POST")
	wz.HandleFunc("/dates", d.Wizards.SetDates).Methods("PUT")
	wz.HandleFunc("/vehicle", d.Wizards.SetVehicle).Methods("PUT")
	wz.HandleFunc("/payment", d.Wizards.SetPayment).Methods("PUT")
	wz.HandleFunc("/continue", d.Wizards.Continue).Methods("POST")
	wz.HandleFunc("/stage", d.Wizards.GoToStage).Methods("PUT")
	wz.HandleFunc("/confirm", d.Wizards.Confirm).Methods("POST")
	wz.HandleFunc("/resume", d.Wizards.Resume).Methods("POST")
	wz.HandleFunc("/recover", d.Wizards.Recover).Methods("POST")
	wz.HandleFunc("/reservation/refresh", d.Wizards.RefreshReservation).Methods("POST")
	wz.HandleFunc("/error", d.Wizards.DismissError).Methods("DELETE")

	// Payment endpoints
	wz.HandleFunc("/payments/start", d.Payments.StartOnline).Methods("POST")
	wz.HandleFunc("/payments/cash", d.Payments.ConfirmCash).Methods("POST")
	wz.HandleFunc("/payments/card", d.Payments.ConfirmCard).Methods("POST")
	wz.HandleFunc("/payments/flouci/return", d.Payments.FlouciReturn).Methods("GET")
	r.HandleFunc("/api/payments/stripe/return", d.Payments.StripeReturn).Methods("GET")
	if d.Webhook != nil {
		r.HandleFunc("/api/payments/stripe/webhook", d.Webhook.HandleWebhook).Methods("POST")
	}

	return r
}
