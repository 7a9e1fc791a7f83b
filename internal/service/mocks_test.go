package service_test

import (
	"context"
	"testing"

	"parkflow/internal/entities"
	"parkflow/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

type mockBackend struct {
	mock.Mock
}

var _ service.Backend = (*mockBackend)(nil)

func (m *mockBackend) CreateReservation(ctx context.Context, token string, draft entities.ReservationDraft) (*entities.Reservation, error) {
	args := m.Called(ctx, token, draft)
	res, _ := args.Get(0).(*entities.Reservation)
	return res, args.Error(1)
}

func (m *mockBackend) GetReservation(ctx context.Context, token, reservationID string) (*entities.Reservation, error) {
	args := m.Called(ctx, token, reservationID)
	res, _ := args.Get(0).(*entities.Reservation)
	return res, args.Error(1)
}

func (m *mockBackend) UpdatePaymentStatus(ctx context.Context, token, reservationID, status string) error {
	return m.Called(ctx, token, reservationID, status).Error(0)
}

func (m *mockBackend) CreatePaymentIntent(ctx context.Context, token, reservationID string, amount float64) (*entities.PaymentIntent, error) {
	args := m.Called(ctx, token, reservationID, amount)
	pi, _ := args.Get(0).(*entities.PaymentIntent)
	return pi, args.Error(1)
}

func (m *mockBackend) ConfirmPayment(ctx context.Context, token, reservationID, paymentIntentID string) error {
	return m.Called(ctx, token, reservationID, paymentIntentID).Error(0)
}

func (m *mockBackend) CreateFlouciPayment(ctx context.Context, token, reservationID string, amount float64) (*entities.FlouciPayment, error) {
	args := m.Called(ctx, token, reservationID, amount)
	fp, _ := args.Get(0).(*entities.FlouciPayment)
	return fp, args.Error(1)
}

func (m *mockBackend) VerifyPayment(ctx context.Context, token, paymentID string) (*entities.PaymentVerification, error) {
	args := m.Called(ctx, token, paymentID)
	v, _ := args.Get(0).(*entities.PaymentVerification)
	return v, args.Error(1)
}

type mockCheckout struct {
	mock.Mock
}

func (m *mockCheckout) CreateCheckoutSession(p service.CheckoutParams) (string, string, error) {
	args := m.Called(p)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *mockCheckout) GetCheckoutSession(id string) (*stripe.CheckoutSession, error) {
	args := m.Called(id)
	sess, _ := args.Get(0).(*stripe.CheckoutSession)
	return sess, args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendVoucher(contact entities.Contact, res entities.Reservation) {
	m.Called(contact, res)
}

type fakeEmail struct {
	sent   []*mail.SGMailV3
	status int
}

func (f *fakeEmail) Send(msg *mail.SGMailV3) (*rest.Response, error) {
	f.sent = append(f.sent, msg)
	return &rest.Response{StatusCode: f.status}, nil
}

type fakeSMS struct {
	sent []*openapi.CreateMessageParams
}

func (f *fakeSMS) CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error) {
	f.sent = append(f.sent, params)
	sid := "SM123"
	return &openapi.ApiV2010Message{Sid: &sid}, nil
}

func contactToken(t *testing.T) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"name":  "Amira Ben Salah",
		"email": "amira@example.tn",
		"phone": "+21620000000",
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return tok
}
