package wizard_test

import (
	"context"
	"testing"
	"time"

	"parkflow/internal/clock"
	"parkflow/internal/entities"
	apperrors "parkflow/internal/errors"
	"parkflow/internal/geo"
	"parkflow/internal/livemap"
	"parkflow/internal/wizard"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 7, 14, 9, 30, 0, 0, time.UTC)

type mockSubmitter struct {
	mock.Mock
}

func (m *mockSubmitter) Submit(ctx context.Context, sessionID string, draft entities.ReservationDraft) (*entities.Reservation, error) {
	args := m.Called(ctx, sessionID, draft)
	res, _ := args.Get(0).(*entities.Reservation)
	return res, args.Error(1)
}

// blockingSubmitter holds Submit until release is closed.
type blockingSubmitter struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSubmitter) Submit(ctx context.Context, _ string, draft entities.ReservationDraft) (*entities.Reservation, error) {
	close(b.entered)
	<-b.release
	return &entities.Reservation{ID: "r-slow", ParkingID: draft.ParkingID, QRCode: "qr"}, nil
}

func testParking() entities.Parking {
	return entities.Parking{
		ID:     "p1",
		Name:   "Parking du Lac",
		Tariff: entities.Tariff{Hourly: 5},
	}
}

func testLayout() entities.ParkingLayout {
	return entities.ParkingLayout{
		ParkingID: "p1",
		Spots: []entities.Spot{
			{ID: "spot-1", Position: entities.Point{X: 10, Y: 10}},
			{ID: "spot-2", Position: entities.Point{X: 30, Y: 10}, IsOccupied: true},
		},
	}
}

func newWizard() *wizard.Wizard {
	return wizard.New("s1", wizard.Config{Clock: clock.NewMockClock(now)})
}

// atDetails walks a fresh wizard to step 3 with the map loaded.
func atDetails(t *testing.T) *wizard.Wizard {
	t.Helper()
	w := newWizard()
	require.NoError(t, w.SelectParking(testParking()))
	require.NoError(t, w.Reserve(true))
	require.NoError(t, w.LoadMap(testLayout(), nil))
	return w
}

func fillDetails(t *testing.T, w *wizard.Wizard) {
	t.Helper()
	_, err := w.SetDates(now.Add(time.Hour), now.Add(3*time.Hour))
	require.NoError(t, err)
	require.NoError(t, w.SetVehicleType("Citadine"))
	require.NoError(t, w.SetPaymentMethod(entities.PaymentCash, ""))
}

func TestWizard_EndToEnd(t *testing.T) {
	w := newWizard()
	assert.Equal(t, wizard.StepLocation, w.Step())
	assert.Empty(t, w.Draft().ParkingID)

	require.NoError(t, w.SelectParking(testParking()))
	assert.Equal(t, wizard.StepBooking, w.Step())
	require.NoError(t, w.Reserve(true))
	assert.Equal(t, wizard.StepSpotSelection, w.Step())

	q, err := w.SetDates(now.Add(time.Hour), now.Add(3*time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 10, q.Total, 0.001)
	require.Len(t, q.Items, 1)
	assert.Equal(t, "2 heures à 10.00Dt", q.Items[0].Label)

	stage, err := w.Continue()
	require.NoError(t, err)
	assert.Equal(t, wizard.StageVehicle, stage)
	require.NoError(t, w.SetVehicleType("Citadine"))
	stage, err = w.Continue()
	require.NoError(t, err)
	assert.Equal(t, wizard.StagePayment, stage)
	require.NoError(t, w.SetPaymentMethod(entities.PaymentCash, ""))
	assert.True(t, w.View().CanConfirm)

	sub := &mockSubmitter{}
	sub.On("Submit", mock.Anything, "s1", mock.MatchedBy(func(d entities.ReservationDraft) bool {
		return d.ParkingID == "p1" && d.TotalPrice == 10 &&
			d.VehicleType == entities.VehicleCitadine && d.PaymentMethod == entities.PaymentCash
	})).Return(&entities.Reservation{
		ID:            "r-1",
		ParkingID:     "p1",
		QRCode:        "PARKFLOW:r-1",
		PaymentStatus: entities.PaymentStatusPending,
	}, nil).Once()

	res, err := w.Confirm(context.Background(), sub)
	require.NoError(t, err)
	sub.AssertExpectations(t)

	assert.Equal(t, wizard.StepConfirmation, w.Step())
	assert.NotEmpty(t, res.QRCode)
	assert.NotEqual(t, entities.PaymentStatusCompleted, res.PaymentStatus)

	view := w.View()
	require.NotNil(t, view.Reservation)
	assert.Equal(t, "r-1", view.Reservation.ID)
	assert.Empty(t, view.Error)
}

func TestWizard_ReserveRequiresCredential(t *testing.T) {
	w := newWizard()
	require.NoError(t, w.SelectParking(testParking()))

	err := w.Reserve(false)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrAuthRequired))
	assert.Equal(t, wizard.StepBooking, w.Step())
	assert.Equal(t, "auth_required", w.View().ErrorKind)

	require.NoError(t, w.Reserve(true))
	assert.Empty(t, w.View().Error)
}

func TestWizard_DatesGate(t *testing.T) {
	cases := []struct {
		name string
		dur  time.Duration
		ok   bool
	}{
		{"59 minutes is below the minimum", 59 * time.Minute, false},
		{"60 minutes passes", 60 * time.Minute, true},
		{"end equal to start", 0, false},
		{"end before start", -2 * time.Hour, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := atDetails(t)
			start := now.Add(24 * time.Hour)
			_, err := w.SetDates(start, start.Add(tc.dur))
			if tc.ok {
				require.NoError(t, err)
				assert.True(t, w.View().CanContinue)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
			assert.False(t, w.View().CanContinue)
			assert.Nil(t, w.View().Quote)
			_, err = w.Continue()
			assert.Error(t, err)
		})
	}
}

func TestValidateWindow(t *testing.T) {
	assert.Error(t, wizard.ValidateWindow(time.Time{}, now, time.Hour))
	assert.Error(t, wizard.ValidateWindow(now, now.Add(-time.Second), 0))
	assert.NoError(t, wizard.ValidateWindow(now, now.Add(10*time.Minute), 10*time.Minute))
	err := wizard.ValidateWindow(now, now.Add(30*time.Minute), time.Hour)
	assert.Equal(t, "a reservation must last at least 1 hour", apperrors.UserMessage(err))
}

func TestWizard_VehicleAndPaymentGates(t *testing.T) {
	w := atDetails(t)

	err := w.SetVehicleType("Tank")
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	require.NoError(t, w.SetVehicleType("berline/petit suv"))
	assert.Equal(t, entities.VehicleBerline, w.Draft().VehicleType)

	err = w.SetPaymentMethod(entities.PaymentOnline, "")
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	err = w.SetPaymentMethod(entities.PaymentOnline, "paypal")
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	require.NoError(t, w.SetPaymentMethod(entities.PaymentOnline, entities.ProviderStripe))

	require.NoError(t, w.SetPaymentMethod(entities.PaymentCash, entities.ProviderStripe))
	assert.Empty(t, w.Draft().OnlineProvider)
}

func TestWizard_ParkingRestrictsVehicleTypes(t *testing.T) {
	w := newWizard()
	p := testParking()
	p.VehicleTypes = []entities.VehicleType{entities.VehicleMoto}
	require.NoError(t, w.SelectParking(p))
	require.NoError(t, w.Reserve(true))

	err := w.SetVehicleType("Utilitaire")
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	require.NoError(t, w.SetVehicleType("moto"))
}

func TestWizard_BackKeepsData(t *testing.T) {
	w := atDetails(t)
	fillDetails(t, w)
	_, err := w.SelectSpot("spot-1")
	require.NoError(t, err)

	require.NoError(t, w.Back(wizard.StepLocation))
	assert.Equal(t, wizard.StepLocation, w.Step())
	assert.Equal(t, "spot-1", w.Draft().SpotID.String)

	require.NoError(t, w.SelectParking(testParking()))
	require.NoError(t, w.Reserve(true))
	d := w.Draft()
	assert.Equal(t, entities.VehicleCitadine, d.VehicleType)
	assert.Equal(t, "spot-1", d.SpotID.String)
	assert.InDelta(t, 10, d.TotalPrice, 0.001)

	assert.Error(t, w.Back(wizard.StepConfirmation))
	assert.Error(t, w.Back(wizard.StepSpotSelection))
}

func TestWizard_ChangingParkingDropsSpot(t *testing.T) {
	w := atDetails(t)
	_, err := w.SelectSpot("spot-1")
	require.NoError(t, err)
	require.NoError(t, w.Back(wizard.StepLocation))

	other := testParking()
	other.ID = "p2"
	require.NoError(t, w.SelectParking(other))
	assert.False(t, w.Draft().SpotID.Valid)
	assert.False(t, w.View().MapLoaded)
}

func TestWizard_SpotSelection(t *testing.T) {
	w := atDetails(t)

	_, err := w.LocateSpot("2")
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	assert.False(t, w.Draft().SpotID.Valid)

	_, err = w.LocateSpot("1")
	require.NoError(t, err)
	assert.Equal(t, "spot-1", w.Draft().SpotID.String)

	_, err = w.LocateSpot("2")
	require.Error(t, err)
	assert.Equal(t, "spot-1", w.Draft().SpotID.String, "a conflict keeps the previous selection")

	_, err = w.LocateSpot("42")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	assert.False(t, w.Draft().SpotID.Valid)
	assert.Equal(t, "not_found", w.View().ErrorKind)
}

func TestWizard_EmptyLocateDropsSpot(t *testing.T) {
	w := atDetails(t)
	_, err := w.LocateSpot("1")
	require.NoError(t, err)
	require.True(t, w.Draft().SpotID.Valid)

	_, err = w.LocateSpot("  ")
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	assert.False(t, w.Draft().SpotID.Valid)
	view, err := w.MapView()
	require.NoError(t, err)
	assert.Empty(t, view.Highlighted)
}

func TestWizard_MapRequiresStep(t *testing.T) {
	w := newWizard()
	_, err := w.MapView()
	assert.Error(t, err)

	w = atDetails(t)
	view, err := w.Pan(func(v *livemap.Viewport) { v.ZoomIn() })
	require.NoError(t, err)
	assert.InDelta(t, 1.2, view.Transform.Scale, 1e-9)
}

func TestWizard_ConfirmFailureStaysForRetry(t *testing.T) {
	w := atDetails(t)
	fillDetails(t, w)

	sub := &mockSubmitter{}
	sub.On("Submit", mock.Anything, "s1", mock.Anything).
		Return(nil, apperrors.Backend(409, "Spot already booked for this period")).Once()
	sub.On("Submit", mock.Anything, "s1", mock.Anything).
		Return(&entities.Reservation{ID: "r-2", QRCode: "qr"}, nil).Once()

	_, err := w.Confirm(context.Background(), sub)
	require.Error(t, err)
	assert.Equal(t, wizard.StepSpotSelection, w.Step())
	view := w.View()
	assert.Equal(t, "Spot already booked for this period", view.Error)
	assert.Equal(t, "conflict", view.ErrorKind)
	assert.Equal(t, entities.VehicleCitadine, view.Draft.VehicleType)

	res, err := w.Confirm(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, "r-2", res.ID)
	sub.AssertExpectations(t)

	_, err = w.Confirm(context.Background(), sub)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
}

func TestWizard_ConfirmRequiresAllStages(t *testing.T) {
	w := atDetails(t)
	_, err := w.SetDates(now.Add(time.Hour), now.Add(3*time.Hour))
	require.NoError(t, err)

	sub := &mockSubmitter{}
	_, err = w.Confirm(context.Background(), sub)
	require.Error(t, err)
	assert.Equal(t, "vehicle", w.View().Stage)
	sub.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
}

func TestWizard_ConfirmInFlightGuard(t *testing.T) {
	w := atDetails(t)
	fillDetails(t, w)

	slow := &blockingSubmitter{entered: make(chan struct{}), release: make(chan struct{})}
	done := make(chan error, 1)
	go func() {
		_, err := w.Confirm(context.Background(), slow)
		done <- err
	}()
	<-slow.entered

	_, err := w.Confirm(context.Background(), slow)
	assert.True(t, apperrors.Is(err, apperrors.ErrInFlight))
	assert.True(t, apperrors.Is(w.SetVehicleType("Moto"), apperrors.ErrInFlight))
	assert.True(t, w.View().Submitting)

	close(slow.release)
	require.NoError(t, <-done)
	assert.Equal(t, wizard.StepConfirmation, w.Step())
	assert.Equal(t, entities.VehicleCitadine, w.Draft().VehicleType)
}

func TestWizard_MissingDataConfirmation(t *testing.T) {
	w := newWizard()
	err := w.ShowConfirmation(nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrMissingData))

	view := w.View()
	assert.Equal(t, wizard.StepConfirmation, view.Step)
	assert.Equal(t, wizard.StepSpotSelection, view.RecoverTo)
	assert.Equal(t, "missing_data", view.ErrorKind)

	require.NoError(t, w.Recover())
	assert.Equal(t, wizard.StepLocation, w.Step(), "no parking chosen yet, so recovery restarts the search")
}

func TestWizard_MissingDataRecoversToDetails(t *testing.T) {
	w := atDetails(t)
	require.Error(t, w.ShowConfirmation(nil))
	require.NoError(t, w.Recover())
	assert.Equal(t, wizard.StepSpotSelection, w.Step())
}

func TestWizard_ShowConfirmationKeepsShownReservation(t *testing.T) {
	w := newWizard()
	require.NoError(t, w.ShowConfirmation(&entities.Reservation{ID: "r-7", ParkingID: "p1", QRCode: "qr"}))

	require.NoError(t, w.ShowConfirmation(nil))
	got, ok := w.Reservation()
	require.True(t, ok)
	assert.Equal(t, "r-7", got.ID)
	assert.Equal(t, "qr", got.QRCode)
	assert.Zero(t, w.View().RecoverTo)
}

func TestWizard_ShowConfirmationRestoresDraft(t *testing.T) {
	w := newWizard()
	res := &entities.Reservation{
		ID:            "r-9",
		ParkingID:     "p1",
		StartTime:     now,
		EndTime:       now.Add(2 * time.Hour),
		VehicleType:   entities.VehicleMoto,
		PaymentMethod: entities.PaymentOnline,
		PaymentStatus: entities.PaymentStatusPending,
	}
	require.NoError(t, w.ShowConfirmation(res))
	assert.Equal(t, "p1", w.Draft().ParkingID)

	res.PaymentStatus = entities.PaymentStatusCompleted
	w.UpdateReservation(*res)
	got, ok := w.Reservation()
	require.True(t, ok)
	assert.Equal(t, entities.PaymentStatusCompleted, got.PaymentStatus)
}

func TestWizard_PositionWatchAndClose(t *testing.T) {
	feed := geo.NewFeed()
	w := newWizard()
	w.WatchPosition(context.Background(), feed)
	require.Equal(t, 1, feed.Subscribers())

	feed.Push(geo.Fix{Position: entities.Position{Lat: 36.8, Lng: 10.18}})
	require.Eventually(t, func() bool {
		_, ok := w.Position()
		return ok
	}, time.Second, 5*time.Millisecond)

	w.SetResults([]entities.Parking{
		{ID: "far", Position: entities.Position{Lat: 37.2, Lng: 10.1}},
		{ID: "near", Position: entities.Position{Lat: 36.81, Lng: 10.18}},
	})
	assert.Equal(t, "near", w.View().Results[0].ID)

	w.Close()
	assert.Equal(t, 0, feed.Subscribers())
}
