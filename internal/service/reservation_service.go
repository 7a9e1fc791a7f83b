package service

import (
	"context"
	"log/slog"
	"time"

	"parkflow/internal/auth"
	"parkflow/internal/entities"
	apperrors "parkflow/internal/errors"
	"parkflow/internal/session"

	"github.com/go-playground/validator/v10"
)

// Backend is the part of the reservation backend the services call.
type Backend interface {
	CreateReservation(ctx context.Context, token string, draft entities.ReservationDraft) (*entities.Reservation, error)
	GetReservation(ctx context.Context, token, reservationID string) (*entities.Reservation, error)
	UpdatePaymentStatus(ctx context.Context, token, reservationID, status string) error
	CreatePaymentIntent(ctx context.Context, token, reservationID string, amount float64) (*entities.PaymentIntent, error)
	ConfirmPayment(ctx context.Context, token, reservationID, paymentIntentID string) error
	CreateFlouciPayment(ctx context.Context, token, reservationID string, amount float64) (*entities.FlouciPayment, error)
	VerifyPayment(ctx context.Context, token, paymentID string) (*entities.PaymentVerification, error)
}

// Notifier delivers the voucher of a freshly created reservation.
type Notifier interface {
	SendVoucher(contact entities.Contact, res entities.Reservation)
}

// ReservationService submits wizard drafts to the backend and tracks the
// pending reservation of each session.
type ReservationService struct {
	backend     Backend
	store       session.Store
	notifier    Notifier
	validate    *validator.Validate
	minDuration time.Duration
	logger      *slog.Logger
}

func NewReservationService(backend Backend, store session.Store, notifier Notifier, minDuration time.Duration, logger *slog.Logger) *ReservationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReservationService{
		backend:     backend,
		store:       store,
		notifier:    notifier,
		validate:    newDraftValidator(),
		minDuration: minDuration,
		logger:      logger,
	}
}

// Submit creates the reservation with the session's credential. It does not
// retry; a failure is returned as is so the wizard stays on the details step.
func (s *ReservationService) Submit(ctx context.Context, sessionID string, draft entities.ReservationDraft) (*entities.Reservation, error) {
	token, err := credential(ctx, s.store, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.ValidateDraft(draft); err != nil {
		return nil, err
	}

	res, err := s.backend.CreateReservation(ctx, token, draft)
	if err != nil {
		s.logger.Warn("reservation rejected", "session", sessionID, "parking", draft.ParkingID, "err", err)
		return nil, err
	}
	if res == nil || res.ID == "" {
		return nil, apperrors.New(apperrors.ErrBackend, "the backend did not return a reservation id")
	}
	fillFromDraft(res, draft)

	if err := s.store.Set(ctx, sessionID, session.KeyPendingReservation, res.ID); err != nil {
		s.logger.Error("saving pending reservation", "session", sessionID, "reservation", res.ID, "err", err)
	}
	s.logger.Info("reservation created",
		"session", sessionID, "reservation", res.ID, "parking", res.ParkingID,
		"total", res.TotalPrice, "payment", res.PaymentMethod)

	if s.notifier != nil {
		if contact, ok := auth.ContactFromToken(token); ok {
			s.notifier.SendVoucher(contact, *res)
		}
	}
	return res, nil
}

// Pending loads the reservation recorded for the session, as after a reload.
// It returns nil without error when there is none to show.
func (s *ReservationService) Pending(ctx context.Context, sessionID string) (*entities.Reservation, error) {
	id, ok, err := s.store.Get(ctx, sessionID, session.KeyPendingReservation)
	if err != nil {
		return nil, apperrors.Wrap(err, "reading pending reservation")
	}
	if !ok || id == "" {
		return nil, nil
	}
	token, err := credential(ctx, s.store, sessionID)
	if err != nil {
		return nil, err
	}
	res, err := s.backend.GetReservation(ctx, token, id)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, s.store.Clear(ctx, sessionID, session.KeyPendingReservation)
	}
	if err != nil {
		return nil, err
	}
	ensureVoucher(res)
	return res, nil
}

// Refresh fetches the current state of a reservation and forgets it once settled.
func (s *ReservationService) Refresh(ctx context.Context, sessionID, reservationID string) (*entities.Reservation, error) {
	token, err := credential(ctx, s.store, sessionID)
	if err != nil {
		return nil, err
	}
	res, err := s.backend.GetReservation(ctx, token, reservationID)
	if err != nil {
		return nil, err
	}
	ensureVoucher(res)
	if res.Settled() {
		if err := s.store.Clear(ctx, sessionID, session.KeyPendingReservation); err != nil {
			s.logger.Error("clearing pending reservation", "session", sessionID, "err", err)
		}
	}
	return res, nil
}

// Abandon forgets the session's pending reservation.
func (s *ReservationService) Abandon(ctx context.Context, sessionID string) error {
	return s.store.Clear(ctx, sessionID, session.KeyPendingReservation)
}

func credential(ctx context.Context, store session.Store, sessionID string) (string, error) {
	token, ok, err := store.Get(ctx, sessionID, session.KeyCredentialToken)
	if err != nil {
		return "", apperrors.Wrap(err, "reading credential")
	}
	if !ok || token == "" {
		return "", apperrors.New(apperrors.ErrAuthRequired, "sign in to continue")
	}
	return token, nil
}

// fillFromDraft completes a terse backend answer with what was submitted.
func fillFromDraft(res *entities.Reservation, d entities.ReservationDraft) {
	if res.ParkingID == "" {
		res.ParkingID = d.ParkingID
	}
	if !res.SpotID.Valid {
		res.SpotID = d.SpotID
	}
	if res.StartTime.IsZero() {
		res.StartTime, res.EndTime = d.StartTime, d.EndTime
	}
	if res.VehicleType == "" {
		res.VehicleType = d.VehicleType
	}
	if res.TotalPrice == 0 {
		res.TotalPrice = d.TotalPrice
	}
	if res.PaymentMethod == "" {
		res.PaymentMethod, res.OnlineProvider = d.PaymentMethod, d.OnlineProvider
	}
	if !res.Matricule.Valid {
		res.Matricule = d.Matricule
	}
	if res.PaymentStatus == "" {
		res.PaymentStatus = entities.PaymentStatusPending
	}
	ensureVoucher(res)
}

func ensureVoucher(res *entities.Reservation) {
	if res != nil && res.ID != "" && res.QRCode == "" {
		res.QRCode = VoucherPayload(res.ID)
	}
}

// VoucherPayload is the QR content used when the backend did not provide one.
func VoucherPayload(reservationID string) string {
	return "parkflow:reservation:" + reservationID
}
