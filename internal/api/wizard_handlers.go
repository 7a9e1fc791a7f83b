package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"parkflow/internal/auth"
	"parkflow/internal/clock"
	"parkflow/internal/entities"
	apperrors "parkflow/internal/errors"
	"parkflow/internal/geo"
	"parkflow/internal/livemap"
	"parkflow/internal/service"
	"parkflow/internal/session"
	"parkflow/internal/wizard"

	"github.com/gorilla/mux"
)

// Catalog is the read side of the reservation backend. *backend.Client implements it.
type Catalog interface {
	SearchParkings(ctx context.Context, query string, near *entities.Position) ([]entities.Parking, error)
	GetParking(ctx context.Context, parkingID string) (*entities.Parking, error)
	GetLayout(ctx context.Context, parkingID string) (*entities.ParkingLayout, error)
	ListSpotReservations(ctx context.Context, parkingID string) ([]entities.SpotReservation, error)
}

type WizardHandler struct {
	wizards      *wizard.Registry
	catalog      Catalog
	reservations *service.ReservationService
	payments     *service.PaymentService
	store        session.Store
	clock        clock.Clock
	logger       *slog.Logger
}

func NewWizardHandler(wizards *wizard.Registry, catalog Catalog, reservations *service.ReservationService,
	payments *service.PaymentService, store session.Store, c clock.Clock, logger *slog.Logger) *WizardHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if c == nil {
		c = clock.NewRealClock()
	}
	return &WizardHandler{
		wizards:      wizards,
		catalog:      catalog,
		reservations: reservations,
		payments:     payments,
		store:        store,
		clock:        c,
		logger:       logger,
	}
}

func (h *WizardHandler) wizard(w http.ResponseWriter, r *http.Request) (*wizard.Wizard, bool) {
	id := mux.Vars(r)["sessionID"]
	wz, ok := h.wizards.Get(id)
	if !ok {
		writeError(w, apperrors.Newf(apperrors.ErrNotFound, "wizard session %s does not exist", id))
		return nil, false
	}
	return wz, true
}

// Create starts a wizard. A browser returning with a known session id gets it
// back, with its pending reservation restored when there is one.
func (h *WizardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateWizardRequest
	if r.ContentLength > 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.SessionID == "" {
		respondWith(w, WizardResponse{}, h.wizards.Create(), nil)
		return
	}

	_, existed := h.wizards.Get(req.SessionID)
	wz := h.wizards.CreateWithID(req.SessionID)
	if !existed {
		res, err := h.reservations.Pending(r.Context(), wz.ID())
		if err != nil {
			h.logger.Warn("restoring pending reservation", "session", wz.ID(), "err", err)
		} else if res != nil {
			_ = wz.ShowConfirmation(res)
		}
	}
	respond(w, wz, nil)
}

func (h *WizardHandler) Get(w http.ResponseWriter, r *http.Request) {
	if wz, ok := h.wizard(w, r); ok {
		respond(w, wz, nil)
	}
}

// Abandon drops the wizard and its pending reservation slot.
func (h *WizardHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sessionID"]
	if err := h.reservations.Abandon(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	h.wizards.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *WizardHandler) PushPosition(w http.ResponseWriter, r *http.Request) {
	feed, ok := h.wizards.Feed(mux.Vars(r)["sessionID"])
	if !ok {
		writeError(w, apperrors.New(apperrors.ErrNotFound, "unknown wizard session"))
		return
	}
	var req PositionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Lat < -90 || req.Lat > 90 || req.Lng < -180 || req.Lng > 180 {
		writeError(w, apperrors.New(apperrors.ErrValidation, "position is out of range"))
		return
	}
	feed.Push(geo.Fix{
		Position: entities.Position{Lat: req.Lat, Lng: req.Lng},
		Accuracy: req.Accuracy,
		At:       h.clock.Now(),
	})
	w.WriteHeader(http.StatusAccepted)
}

func (h *WizardHandler) SearchParkings(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	var near *entities.Position
	if pos, ok := wz.Position(); ok {
		near = &pos
	}
	parkings, err := h.catalog.SearchParkings(r.Context(), strings.TrimSpace(r.URL.Query().Get("search")), near)
	if err != nil {
		wz.ReportError(err)
		respond(w, wz, err)
		return
	}
	wz.SetResults(parkings)
	respond(w, wz, nil)
}

func (h *WizardHandler) SelectParking(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	var req SelectParkingRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	parking, err := h.catalog.GetParking(r.Context(), req.ParkingID)
	if err != nil {
		wz.ReportError(err)
		respond(w, wz, err)
		return
	}
	respond(w, wz, wz.SelectParking(*parking))
}

// Reserve enters the spot selection step and loads the parking map.
func (h *WizardHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	has, err := auth.HasCredential(r.Context(), h.store, wz.ID(), h.clock.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	if err := wz.Reserve(has); err != nil {
		respond(w, wz, err)
		return
	}
	h.loadMap(w, r, wz)
}

func (h *WizardHandler) RefreshMap(w http.ResponseWriter, r *http.Request) {
	if wz, ok := h.wizard(w, r); ok {
		h.loadMap(w, r, wz)
	}
}

func (h *WizardHandler) loadMap(w http.ResponseWriter, r *http.Request, wz *wizard.Wizard) {
	parking, ok := wz.Parking()
	if !ok {
		respond(w, wz, apperrors.New(apperrors.ErrMissingData, "no parking chosen"))
		return
	}
	layout, err := h.catalog.GetLayout(r.Context(), parking.ID)
	if err != nil {
		wz.ReportError(err)
		respond(w, wz, err)
		return
	}
	reservations, err := h.catalog.ListSpotReservations(r.Context(), parking.ID)
	if err != nil {
		wz.ReportError(err)
		respond(w, wz, err)
		return
	}
	if err := wz.LoadMap(*layout, reservations); err != nil {
		respond(w, wz, err)
		return
	}
	h.respondMap(w, wz, nil)
}

func (h *WizardHandler) respondMap(w http.ResponseWriter, wz *wizard.Wizard, err error) {
	body := WizardResponse{}
	if view, mapErr := wz.MapView(); mapErr == nil {
		body.Map = &view
	}
	respondWith(w, body, wz, err)
}

func (h *WizardHandler) Back(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	var req BackRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	respond(w, wz, wz.Back(req.Step))
}

func (h *WizardHandler) Map(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	_, err := wz.MapView()
	h.respondMap(w, wz, err)
}

func (h *WizardHandler) Gesture(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	var req GestureRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p := entities.Point{X: req.X, Y: req.Y}
	var gesture func(*livemap.Viewport)
	switch req.Action {
	case "zoom_in":
		gesture = (*livemap.Viewport).ZoomIn
	case "zoom_out":
		gesture = (*livemap.Viewport).ZoomOut
	case "reset":
		gesture = (*livemap.Viewport).ResetView
	case "drag_start":
		gesture = func(v *livemap.Viewport) { v.BeginDrag(p) }
	case "drag_move":
		gesture = func(v *livemap.Viewport) { v.Drag(p) }
	case "drag_end":
		gesture = (*livemap.Viewport).EndDrag
	default:
		writeError(w, apperrors.Newf(apperrors.ErrValidation, "unknown gesture %q", req.Action))
		return
	}
	_, err := wz.Pan(gesture)
	h.respondMap(w, wz, err)
}

func (h *WizardHandler) LocateSpot(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	var req LocateSpotRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	_, err := wz.LocateSpot(req.Query)
	h.respondMap(w, wz, err)
}

func (h *WizardHandler) SelectSpot(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	var req SelectSpotRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	_, err := wz.SelectSpot(req.SpotID)
	h.respondMap(w, wz, err)
}

func (h *WizardHandler) SetDates(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	var req DatesRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	_, err := wz.SetDates(req.StartTime, req.EndTime)
	respond(w, wz, err)
}

func (h *WizardHandler) SetVehicle(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	var req VehicleRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := wz.SetVehicleType(req.VehicleType); err != nil {
		respond(w, wz, err)
		return
	}
	respond(w, wz, wz.SetMatricule(req.Matricule))
}

func (h *WizardHandler) SetPayment(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	var req PaymentMethodRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	respond(w, wz, wz.SetPaymentMethod(req.Method, req.Provider))
}

func (h *WizardHandler) Continue(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	_, err := wz.Continue()
	respond(w, wz, err)
}

var stagesByName = map[string]wizard.Stage{
	wizard.StageDates.String():   wizard.StageDates,
	wizard.StageVehicle.String(): wizard.StageVehicle,
	wizard.StagePayment.String(): wizard.StagePayment,
}

func (h *WizardHandler) GoToStage(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	var req StageRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	stage, known := stagesByName[req.Stage]
	if !known {
		writeError(w, apperrors.Newf(apperrors.ErrValidation, "unknown stage %q", req.Stage))
		return
	}
	respond(w, wz, wz.GoToStage(stage))
}

// Confirm submits the draft. An online reservation also gets its provider step.
func (h *WizardHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	res, err := wz.Confirm(r.Context(), h.reservations)
	if err != nil {
		respond(w, wz, err)
		return
	}
	body := WizardResponse{}
	if res.PaymentMethod == entities.PaymentOnline {
		redirect, err := h.payments.StartOnline(r.Context(), wz.ID(), *res)
		if err != nil {
			h.logger.Error("starting online payment", "session", wz.ID(), "reservation", res.ID, "err", err)
			wz.ReportError(err)
			respondWith(w, body, wz, err)
			return
		}
		body.Redirect = redirect
	}
	respondWith(w, body, wz, nil)
}

// Resume shows the pending reservation of the session, or the missing-data screen.
func (h *WizardHandler) Resume(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	res, err := h.reservations.Pending(r.Context(), wz.ID())
	if err != nil {
		respond(w, wz, err)
		return
	}
	respond(w, wz, wz.ShowConfirmation(res))
}

func (h *WizardHandler) Recover(w http.ResponseWriter, r *http.Request) {
	if wz, ok := h.wizard(w, r); ok {
		respond(w, wz, wz.Recover())
	}
}

func (h *WizardHandler) RefreshReservation(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	current, ok := wz.Reservation()
	if !ok {
		respond(w, wz, apperrors.New(apperrors.ErrMissingData, "no reservation to refresh"))
		return
	}
	res, err := h.reservations.Refresh(r.Context(), wz.ID(), current.ID)
	if err != nil {
		respond(w, wz, err)
		return
	}
	wz.UpdateReservation(*res)
	respond(w, wz, nil)
}

func (h *WizardHandler) DismissError(w http.ResponseWriter, r *http.Request) {
	if wz, ok := h.wizard(w, r); ok {
		wz.DismissError()
		respond(w, wz, nil)
	}
}
