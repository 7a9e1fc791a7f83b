package service

import (
	"context"
	"log/slog"
	"math"
	"net/url"
	"strings"

	"parkflow/internal/auth"
	"parkflow/internal/entities"
	apperrors "parkflow/internal/errors"
	"parkflow/internal/session"

	"github.com/stripe/stripe-go/v82"
)

// CheckoutGateway is the hosted checkout provider. StripeService implements it.
type CheckoutGateway interface {
	CreateCheckoutSession(p CheckoutParams) (string, string, error)
	GetCheckoutSession(id string) (*stripe.CheckoutSession, error)
}

type PaymentConfig struct {
	// PublicURL is the gateway's externally reachable base URL, used for provider return routes.
	PublicURL string
	// FrontendURL is where the browser lands when it abandons a checkout.
	FrontendURL string
	Currency    string
}

// PaymentService starts online payments and reconciles their outcome with the backend.
type PaymentService struct {
	backend  Backend
	store    session.Store
	checkout CheckoutGateway
	cfg      PaymentConfig
	logger   *slog.Logger
}

// NewPaymentService builds the service. A nil checkout makes Stripe payments fall
// back to a backend payment intent confirmed in the page.
func NewPaymentService(backend Backend, store session.Store, checkout CheckoutGateway, cfg PaymentConfig, logger *slog.Logger) *PaymentService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Currency == "" {
		cfg.Currency = "eur"
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")
	return &PaymentService{backend: backend, store: store, checkout: checkout, cfg: cfg, logger: logger}
}

// StartOnline prepares the provider step for a reservation paid online.
func (s *PaymentService) StartOnline(ctx context.Context, sessionID string, res entities.Reservation) (*entities.CheckoutRedirect, error) {
	if res.PaymentMethod != entities.PaymentOnline {
		return nil, apperrors.Newf(apperrors.ErrValidation, "reservation %s is not paid online", res.ID)
	}
	if res.PaymentStatus == entities.PaymentStatusCompleted {
		return nil, apperrors.Newf(apperrors.ErrConflict, "reservation %s is already paid", res.ID)
	}
	token, err := credential(ctx, s.store, sessionID)
	if err != nil {
		return nil, err
	}

	switch res.OnlineProvider {
	case entities.ProviderStripe:
		if s.checkout == nil {
			return s.startIntent(ctx, token, res)
		}
		return s.startCheckout(sessionID, token, res)
	case entities.ProviderFlouci:
		fp, err := s.backend.CreateFlouciPayment(ctx, token, res.ID, res.TotalPrice)
		if err != nil {
			return nil, err
		}
		s.logger.Info("flouci payment created", "session", sessionID, "reservation", res.ID, "payment", fp.PaymentID)
		return &entities.CheckoutRedirect{
			Provider:      entities.ProviderFlouci,
			URL:           fp.Link,
			ReservationID: res.ID,
			SessionID:     fp.PaymentID,
		}, nil
	}
	return nil, apperrors.Newf(apperrors.ErrValidation, "unknown online payment provider %q", res.OnlineProvider)
}

func (s *PaymentService) startCheckout(sessionID, token string, res entities.Reservation) (*entities.CheckoutRedirect, error) {
	var email string
	if c, ok := auth.ContactFromToken(token); ok {
		email = c.Email
	}
	cancel := s.cfg.FrontendURL
	if cancel == "" {
		cancel = s.cfg.PublicURL + "/api/wizard/" + url.PathEscape(sessionID)
	}
	checkoutURL, checkoutID, err := s.checkout.CreateCheckoutSession(CheckoutParams{
		Amount:          minorUnits(res.TotalPrice),
		Currency:        s.cfg.Currency,
		Description:     "Reservation " + res.ID,
		ReservationID:   res.ID,
		WizardSessionID: sessionID,
		CustomerEmail:   email,
		SuccessURL:      s.cfg.PublicURL + "/api/payments/stripe/return?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:       cancel,
	})
	if err != nil {
		return nil, apperrors.Mark(apperrors.Wrap(err, "creating checkout session"), apperrors.ErrBackend)
	}
	s.logger.Info("checkout session created", "session", sessionID, "reservation", res.ID, "checkout", checkoutID)
	return &entities.CheckoutRedirect{
		Provider:      entities.ProviderStripe,
		URL:           checkoutURL,
		ReservationID: res.ID,
		SessionID:     checkoutID,
	}, nil
}

func (s *PaymentService) startIntent(ctx context.Context, token string, res entities.Reservation) (*entities.CheckoutRedirect, error) {
	pi, err := s.backend.CreatePaymentIntent(ctx, token, res.ID, res.TotalPrice)
	if err != nil {
		return nil, err
	}
	return &entities.CheckoutRedirect{
		Provider:        entities.ProviderStripe,
		ReservationID:   res.ID,
		ClientSecret:    pi.ClientSecret,
		PaymentIntentID: pi.PaymentIntentID,
	}, nil
}

// ConfirmCardPayment reconciles a payment intent the page confirmed itself.
func (s *PaymentService) ConfirmCardPayment(ctx context.Context, sessionID, reservationID, paymentIntentID string) (*entities.Reservation, error) {
	if paymentIntentID == "" {
		return nil, apperrors.New(apperrors.ErrValidation, "payment intent id is required")
	}
	token, err := credential(ctx, s.store, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.backend.ConfirmPayment(ctx, token, reservationID, paymentIntentID); err != nil {
		return nil, err
	}
	return s.settle(ctx, sessionID, token, reservationID)
}

// ConfirmCash records the on-site payment of a cash reservation.
func (s *PaymentService) ConfirmCash(ctx context.Context, sessionID, reservationID string) (*entities.Reservation, error) {
	token, err := credential(ctx, s.store, sessionID)
	if err != nil {
		return nil, err
	}
	res, err := s.backend.GetReservation(ctx, token, reservationID)
	if err != nil {
		return nil, err
	}
	if res.PaymentMethod != entities.PaymentCash {
		return nil, apperrors.Newf(apperrors.ErrValidation, "reservation %s is not paid in cash", reservationID)
	}
	return s.settle(ctx, sessionID, token, reservationID)
}

// CompleteCheckoutByID looks the checkout session up, as on the success redirect.
func (s *PaymentService) CompleteCheckoutByID(ctx context.Context, checkoutID string) (string, *entities.Reservation, error) {
	if s.checkout == nil {
		return "", nil, apperrors.New(apperrors.ErrValidation, "stripe checkout is not configured")
	}
	if checkoutID == "" {
		return "", nil, apperrors.New(apperrors.ErrValidation, "session_id required")
	}
	sess, err := s.checkout.GetCheckoutSession(checkoutID)
	if err != nil {
		return "", nil, apperrors.Mark(apperrors.Wrap(err, "fetching checkout session"), apperrors.ErrBackend)
	}
	return s.CompleteCheckout(ctx, sess)
}

// CompleteCheckout reconciles a paid checkout session. It is safe to call twice
// for the same session, which happens when both the webhook and the redirect arrive.
func (s *PaymentService) CompleteCheckout(ctx context.Context, sess *stripe.CheckoutSession) (string, *entities.Reservation, error) {
	sessionID, reservationID, err := checkoutRefs(sess)
	if err != nil {
		return "", nil, err
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return sessionID, nil, apperrors.Newf(apperrors.ErrConflict, "checkout %s is not paid", sess.ID)
	}
	token, err := credential(ctx, s.store, sessionID)
	if err != nil {
		return sessionID, nil, err
	}

	current, err := s.backend.GetReservation(ctx, token, reservationID)
	if err != nil {
		return sessionID, nil, err
	}
	if current.PaymentStatus == entities.PaymentStatusCompleted {
		s.forget(ctx, sessionID)
		ensureVoucher(current)
		return sessionID, current, nil
	}
	if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
		if err := s.backend.ConfirmPayment(ctx, token, reservationID, sess.PaymentIntent.ID); err != nil {
			return sessionID, nil, err
		}
	}
	res, err := s.settle(ctx, sessionID, token, reservationID)
	return sessionID, res, err
}

// FailCheckout marks the reservation of an expired checkout as failed.
func (s *PaymentService) FailCheckout(ctx context.Context, sess *stripe.CheckoutSession) error {
	sessionID, reservationID, err := checkoutRefs(sess)
	if err != nil {
		return err
	}
	token, err := credential(ctx, s.store, sessionID)
	if err != nil {
		return err
	}
	return s.backend.UpdatePaymentStatus(ctx, token, reservationID, entities.PaymentStatusFailed)
}

// VerifyFlouci checks a Flouci payment on return from the provider.
func (s *PaymentService) VerifyFlouci(ctx context.Context, sessionID, reservationID, paymentID string) (*entities.Reservation, error) {
	if paymentID == "" {
		return nil, apperrors.New(apperrors.ErrValidation, "payment_id required")
	}
	token, err := credential(ctx, s.store, sessionID)
	if err != nil {
		return nil, err
	}
	v, err := s.backend.VerifyPayment(ctx, token, paymentID)
	if err != nil {
		return nil, err
	}
	if !v.Success {
		s.logger.Warn("flouci payment not successful", "session", sessionID, "reservation", reservationID, "status", v.Status)
		if err := s.backend.UpdatePaymentStatus(ctx, token, reservationID, entities.PaymentStatusFailed); err != nil {
			return nil, err
		}
		return nil, apperrors.Newf(apperrors.ErrConflict, "the payment was not completed (%s)", v.Status)
	}
	return s.settle(ctx, sessionID, token, reservationID)
}

func (s *PaymentService) settle(ctx context.Context, sessionID, token, reservationID string) (*entities.Reservation, error) {
	if err := s.backend.UpdatePaymentStatus(ctx, token, reservationID, entities.PaymentStatusCompleted); err != nil {
		return nil, err
	}
	res, err := s.backend.GetReservation(ctx, token, reservationID)
	if err != nil {
		return nil, err
	}
	s.forget(ctx, sessionID)
	ensureVoucher(res)
	s.logger.Info("payment completed", "session", sessionID, "reservation", reservationID)
	return res, nil
}

func (s *PaymentService) forget(ctx context.Context, sessionID string) {
	if err := s.store.Clear(ctx, sessionID, session.KeyPendingReservation); err != nil {
		s.logger.Error("clearing pending reservation", "session", sessionID, "err", err)
	}
}

func checkoutRefs(sess *stripe.CheckoutSession) (string, string, error) {
	if sess == nil || sess.ID == "" {
		return "", "", apperrors.New(apperrors.ErrValidation, "checkout session without id")
	}
	sessionID := sess.Metadata[MetadataWizardSession]
	if sessionID == "" || sess.ClientReferenceID == "" {
		return "", "", apperrors.Newf(apperrors.ErrValidation, "checkout %s does not reference a reservation", sess.ID)
	}
	return sessionID, sess.ClientReferenceID, nil
}

func minorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
