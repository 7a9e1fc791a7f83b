// Package wizard is the four-step booking flow: location search, parking
// booking page, spot and details selection, confirmation. It holds the draft
// between steps and gates every forward move on the data collected so far.
package wizard

import (
	"context"
	"strings"
	"sync"
	"time"

	"parkflow/internal/clock"
	"parkflow/internal/entities"
	apperrors "parkflow/internal/errors"
	"parkflow/internal/geo"
	"parkflow/internal/livemap"
	"parkflow/internal/pricing"

	"gopkg.in/guregu/null.v4"
)

type Step int

const (
	StepLocation      Step = 1
	StepBooking       Step = 2
	StepSpotSelection Step = 3
	StepConfirmation  Step = 4
)

var stepNames = map[Step]string{
	StepLocation:      "location",
	StepBooking:       "booking",
	StepSpotSelection: "spot_selection",
	StepConfirmation:  "confirmation",
}

func (s Step) String() string {
	if n, ok := stepNames[s]; ok {
		return n
	}
	return "unknown"
}

// Stage is the detail sub-step inside StepSpotSelection.
type Stage int

const (
	StageDates Stage = iota
	StageVehicle
	StagePayment
)

var stageNames = [...]string{"dates", "vehicle", "payment"}

func (s Stage) String() string {
	if s < StageDates || s > StagePayment {
		return "unknown"
	}
	return stageNames[s]
}

// Submitter sends a complete draft to the backend.
type Submitter interface {
	Submit(ctx context.Context, sessionID string, draft entities.ReservationDraft) (*entities.Reservation, error)
}

type Config struct {
	MinDuration time.Duration
	Calculator  pricing.Calculator
	Clock       clock.Clock
	MapOptions  []livemap.Option
}

type Wizard struct {
	mu  sync.Mutex
	id  string
	cfg Config

	step      Step
	stage     Stage
	draft     entities.ReservationDraft
	parking   *entities.Parking
	results   []entities.Parking
	quote     *pricing.Quote
	viewport  *livemap.Viewport
	submitted *entities.Reservation

	err        error
	recoverTo  Step
	submitting bool

	scope    geo.Scope
	position *geo.Fix
	touched  time.Time
}

func New(sessionID string, cfg Config) *Wizard {
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = DefaultMinDuration
	}
	if cfg.Calculator == nil {
		cfg.Calculator = pricing.NewTieredCalculator()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewRealClock()
	}
	w := &Wizard{id: sessionID, cfg: cfg, step: StepLocation}
	w.touched = cfg.Clock.Now()
	return w
}

func (w *Wizard) ID() string { return w.id }

func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

func (w *Wizard) Draft() entities.ReservationDraft {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft
}

func (w *Wizard) Parking() (entities.Parking, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.parking == nil {
		return entities.Parking{}, false
	}
	return *w.parking, true
}

func (w *Wizard) Reservation() (*entities.Reservation, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitted == nil {
		return nil, false
	}
	res := *w.submitted
	return &res, true
}

// LastActivity is when the wizard last changed, for idle sweeping.
func (w *Wizard) LastActivity() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.touched
}

// SetResults stores the step 1 search results, nearest first when a position is known.
func (w *Wizard) SetResults(parkings []entities.Parking) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.results = append([]entities.Parking(nil), parkings...)
	if w.position != nil {
		geo.SortByDistance(w.results, w.position.Position)
	}
	w.record(nil)
}

func (w *Wizard) Position() (entities.Position, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.position == nil {
		return entities.Position{}, false
	}
	return w.position.Position, true
}

// SelectParking is the 1→2 transition.
func (w *Wizard) SelectParking(p entities.Parking) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.mutable(); err != nil {
		return err
	}
	if w.step != StepLocation {
		return w.record(apperrors.Newf(apperrors.ErrValidation, "a parking is chosen from the location step, not from %s", w.step))
	}
	if p.ID == "" {
		return w.record(apperrors.New(apperrors.ErrValidation, "parking has no id"))
	}

	if w.parking == nil || w.parking.ID != p.ID {
		w.draft.ParkingID = p.ID
		w.draft.SpotID = null.String{}
		w.viewport = nil
		w.quote = nil
		if w.draft.VehicleType != "" && !p.Accepts(w.draft.VehicleType) {
			w.draft.VehicleType = ""
		}
	}
	parking := p
	w.parking = &parking
	w.requote()
	w.step = StepBooking
	return w.record(nil)
}

// Reserve is the 2→3 transition. Without a stored credential it is refused so
// the front-end can show the sign-in prompt.
func (w *Wizard) Reserve(hasCredential bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.mutable(); err != nil {
		return err
	}
	if w.step != StepBooking {
		return w.record(apperrors.Newf(apperrors.ErrValidation, "reserve is only available on the booking step, not %s", w.step))
	}
	if !hasCredential {
		return w.record(apperrors.New(apperrors.ErrAuthRequired, "sign in to reserve a spot"))
	}
	w.step = StepSpotSelection
	return w.record(nil)
}

// Back moves to any earlier step and keeps everything collected so far. Leaving
// the confirmation step starts a new draft seeded with the submitted values.
func (w *Wizard) Back(to Step) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitting {
		return apperrors.New(apperrors.ErrInFlight, "the reservation is being submitted")
	}
	if to < StepLocation || to >= w.step {
		return w.record(apperrors.Newf(apperrors.ErrValidation, "cannot go back from %s to %s", w.step, to))
	}
	if w.step == StepConfirmation {
		w.submitted = nil
		w.recoverTo = 0
	}
	w.step = to
	return w.record(nil)
}

// LoadMap installs the layout for the chosen parking and derives reserved spots
// from the reservations active at the wizard's current time.
func (w *Wizard) LoadMap(layout entities.ParkingLayout, reservations []entities.SpotReservation) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.parking == nil {
		return w.record(apperrors.New(apperrors.ErrValidation, "choose a parking before loading its map"))
	}
	if layout.ParkingID != "" && layout.ParkingID != w.parking.ID {
		return w.record(apperrors.Newf(apperrors.ErrValidation, "layout of parking %s does not match %s", layout.ParkingID, w.parking.ID))
	}
	layout.ParkingID = w.parking.ID

	if w.viewport == nil {
		opts := append([]livemap.Option{livemap.OnSelect(w.spotSelected)}, w.cfg.MapOptions...)
		w.viewport = livemap.NewViewport(layout, opts...)
	} else {
		w.viewport.SetLayout(layout)
	}
	w.viewport.ApplyReservations(reservations, w.cfg.Clock.Now())
	if _, ok := w.viewport.Highlighted(); !ok {
		w.draft.SpotID = null.String{}
	}
	return w.record(nil)
}

// spotSelected runs inside viewport calls, which only happen with w.mu held.
func (w *Wizard) spotSelected(s entities.Spot) {
	w.draft.SpotID = null.StringFrom(s.ID)
}

func (w *Wizard) LocateSpot(text string) (entities.Spot, error) {
	return w.withMap(func(v *livemap.Viewport) (entities.Spot, error) { return v.LocateSpot(text) })
}

func (w *Wizard) SelectSpot(id string) (entities.Spot, error) {
	return w.withMap(func(v *livemap.Viewport) (entities.Spot, error) { return v.SelectSpot(id) })
}

func (w *Wizard) withMap(fn func(*livemap.Viewport) (entities.Spot, error)) (entities.Spot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.mutable(); err != nil {
		return entities.Spot{}, err
	}
	if err := w.mapReady(); err != nil {
		return entities.Spot{}, w.record(err)
	}
	s, err := fn(w.viewport)
	if _, ok := w.viewport.Highlighted(); !ok {
		w.draft.SpotID = null.String{}
	}
	return s, w.record(err)
}

// Pan applies one viewport gesture.
func (w *Wizard) Pan(fn func(*livemap.Viewport)) (livemap.View, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.mapReady(); err != nil {
		return livemap.View{}, err
	}
	fn(w.viewport)
	w.touched = w.cfg.Clock.Now()
	return w.viewport.Render(), nil
}

func (w *Wizard) MapView() (livemap.View, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.mapReady(); err != nil {
		return livemap.View{}, err
	}
	return w.viewport.Render(), nil
}

func (w *Wizard) mapReady() error {
	if w.step != StepSpotSelection {
		return apperrors.Newf(apperrors.ErrValidation, "the map is only available on the spot selection step, not %s", w.step)
	}
	if w.viewport == nil {
		return apperrors.New(apperrors.ErrMissingData, "the parking map is not loaded")
	}
	return nil
}

// SetDates records the window and, when it passes the gate, the quote.
func (w *Wizard) SetDates(start, end time.Time) (*pricing.Quote, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.detailsOpen(); err != nil {
		return nil, err
	}
	w.draft.StartTime, w.draft.EndTime = start, end
	w.requote()
	if err := ValidateWindow(start, end, w.cfg.MinDuration); err != nil {
		return nil, w.record(err)
	}
	q := *w.quote
	return &q, w.record(nil)
}

func (w *Wizard) SetVehicleType(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.detailsOpen(); err != nil {
		return err
	}
	vt, ok := entities.ParseVehicleType(name)
	if !ok {
		w.draft.VehicleType = ""
		if strings.TrimSpace(name) == "" {
			return w.record(ValidateVehicleType("", w.parking))
		}
		return w.record(apperrors.Newf(apperrors.ErrValidation, "unknown vehicle type %q", name))
	}
	w.draft.VehicleType = vt
	return w.record(ValidateVehicleType(vt, w.parking))
}

func (w *Wizard) SetMatricule(plate string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.detailsOpen(); err != nil {
		return err
	}
	plate = strings.ToUpper(strings.TrimSpace(plate))
	w.draft.Matricule = null.NewString(plate, plate != "")
	return w.record(nil)
}

func (w *Wizard) SetPaymentMethod(method entities.PaymentMethod, provider entities.OnlineProvider) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.detailsOpen(); err != nil {
		return err
	}
	if method != entities.PaymentOnline {
		provider = ""
	}
	w.draft.PaymentMethod, w.draft.OnlineProvider = method, provider
	return w.record(ValidatePayment(method, provider))
}

// Continue advances the detail cursor once the current stage is valid.
func (w *Wizard) Continue() (Stage, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.detailsOpen(); err != nil {
		return w.stage, err
	}
	if err := w.stageErr(w.stage); err != nil {
		return w.stage, w.record(err)
	}
	if w.stage < StagePayment {
		w.stage++
	}
	return w.stage, w.record(nil)
}

// GoToStage moves the detail cursor back freely, forward only over valid stages.
func (w *Wizard) GoToStage(s Stage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.detailsOpen(); err != nil {
		return err
	}
	if s < StageDates || s > StagePayment {
		return w.record(apperrors.Newf(apperrors.ErrValidation, "unknown stage %d", s))
	}
	for st := StageDates; st < s; st++ {
		if err := w.stageErr(st); err != nil {
			return w.record(err)
		}
	}
	w.stage = s
	return w.record(nil)
}

// Confirm is the 3→4 transition. The draft is submitted outside the lock; the
// wizard rejects edits and a second Confirm until the call returns, and only
// advances when the backend accepted the reservation.
func (w *Wizard) Confirm(ctx context.Context, sub Submitter) (*entities.Reservation, error) {
	w.mu.Lock()
	if w.submitting {
		w.mu.Unlock()
		return nil, apperrors.New(apperrors.ErrInFlight, "the reservation is already being submitted")
	}
	if w.submitted != nil {
		w.mu.Unlock()
		return nil, apperrors.New(apperrors.ErrConflict, "this reservation was already created")
	}
	if w.step != StepSpotSelection {
		err := w.record(apperrors.Newf(apperrors.ErrValidation, "confirm is only available on the spot selection step, not %s", w.step))
		w.mu.Unlock()
		return nil, err
	}
	for st := StageDates; st <= StagePayment; st++ {
		if err := w.stageErr(st); err != nil {
			w.stage = st
			err = w.record(err)
			w.mu.Unlock()
			return nil, err
		}
	}
	draft := w.draft
	w.submitting = true
	w.mu.Unlock()

	res, err := sub.Submit(ctx, w.id, draft)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false
	if err != nil {
		return nil, w.record(err)
	}
	w.submitted = res
	w.step = StepConfirmation
	w.recoverTo = 0
	out := *res
	return &out, w.record(nil)
}

// ShowConfirmation enters step 4 directly, as after a reload or a payment
// redirect. A nil reservation is the missing-data screen that offers step 3,
// unless the wizard already shows a reservation, which it keeps.
func (w *Wizard) ShowConfirmation(res *entities.Reservation) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if res == nil && w.submitted != nil {
		w.step = StepConfirmation
		w.recoverTo = 0
		return w.record(nil)
	}
	w.step = StepConfirmation
	if res == nil {
		w.recoverTo = StepSpotSelection
		return w.record(apperrors.New(apperrors.ErrMissingData, "no reservation to confirm, go back to the reservation details"))
	}
	r := *res
	w.submitted = &r
	w.recoverTo = 0
	if w.draft.ParkingID == "" {
		w.draft = entities.ReservationDraft{
			ParkingID:      res.ParkingID,
			SpotID:         res.SpotID,
			StartTime:      res.StartTime,
			EndTime:        res.EndTime,
			VehicleType:    res.VehicleType,
			TotalPrice:     res.TotalPrice,
			PaymentMethod:  res.PaymentMethod,
			OnlineProvider: res.OnlineProvider,
			Matricule:      res.Matricule,
		}
	}
	return w.record(nil)
}

// Recover leaves the missing-data screen for the step it offers.
func (w *Wizard) Recover() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.recoverTo == 0 {
		return w.record(apperrors.New(apperrors.ErrValidation, "nothing to recover from"))
	}
	w.step = w.recoverTo
	if w.step == StepSpotSelection && w.parking == nil {
		// without a parking there is nothing to pick a spot in
		w.step = StepLocation
	}
	w.recoverTo = 0
	return w.record(nil)
}

// UpdateReservation replaces the confirmed reservation after a status refresh.
func (w *Wizard) UpdateReservation(res entities.Reservation) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitted == nil || w.submitted.ID != res.ID {
		return
	}
	w.submitted = &res
	w.touched = w.cfg.Clock.Now()
}

// ReportError shows a failure that happened outside the wizard, such as a backend read.
func (w *Wizard) ReportError(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.record(err)
}

func (w *Wizard) DismissError() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.err = nil
}

// WatchPosition follows feed until the wizard is closed.
func (w *Wizard) WatchPosition(ctx context.Context, feed *geo.Feed) {
	sub := feed.Watch(ctx)
	w.scope.Add(sub.Cancel)
	go func() {
		for fix := range sub.C() {
			f := fix
			w.mu.Lock()
			w.position = &f
			w.mu.Unlock()
		}
	}()
}

// Close disposes everything the wizard subscribed to.
func (w *Wizard) Close() {
	w.scope.Close()
}

func (w *Wizard) mutable() error {
	if w.submitting {
		return apperrors.New(apperrors.ErrInFlight, "the reservation is being submitted")
	}
	if w.step == StepConfirmation {
		return w.record(apperrors.New(apperrors.ErrValidation, "the reservation is already submitted"))
	}
	return nil
}

func (w *Wizard) detailsOpen() error {
	if err := w.mutable(); err != nil {
		return err
	}
	if w.step != StepSpotSelection {
		return w.record(apperrors.Newf(apperrors.ErrValidation, "reservation details are edited on the spot selection step, not %s", w.step))
	}
	return nil
}

func (w *Wizard) stageErr(s Stage) error {
	switch s {
	case StageDates:
		return ValidateWindow(w.draft.StartTime, w.draft.EndTime, w.cfg.MinDuration)
	case StageVehicle:
		return ValidateVehicleType(w.draft.VehicleType, w.parking)
	case StagePayment:
		return ValidatePayment(w.draft.PaymentMethod, w.draft.OnlineProvider)
	}
	return nil
}

func (w *Wizard) requote() {
	if w.parking == nil || ValidateWindow(w.draft.StartTime, w.draft.EndTime, w.cfg.MinDuration) != nil {
		w.quote = nil
		w.draft.TotalPrice = 0
		return
	}
	q := w.cfg.Calculator.Quote(w.draft.StartTime, w.draft.EndTime, w.parking.Tariff)
	w.quote = &q
	w.draft.TotalPrice = q.Total
}

// record stores err as the visible error (nil clears it) and returns it.
func (w *Wizard) record(err error) error {
	w.err = err
	w.touched = w.cfg.Clock.Now()
	return err
}
