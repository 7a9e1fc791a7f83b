package service_test

import (
	"encoding/base64"
	"testing"
	"time"

	"parkflow/internal/entities"
	"parkflow/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v4"
)

func voucherReservation() entities.Reservation {
	return entities.Reservation{
		ID:            "r-1",
		ParkingID:     "p1",
		SpotID:        null.StringFrom("spot-3"),
		StartTime:     start,
		EndTime:       start.Add(2 * time.Hour),
		VehicleType:   entities.VehicleCitadine,
		TotalPrice:    10,
		PaymentMethod: entities.PaymentCash,
		PaymentStatus: entities.PaymentStatusPending,
		QRCode:        "QR:r-1",
	}
}

var contact = entities.Contact{Name: "Amira", Email: "amira@example.tn", Phone: "+21620000000"}

func newSender(email service.EmailClient, sms service.SMSClient) *service.SenderService {
	return service.NewSenderService(service.SenderConfig{
		FromEmail:  "noreply@parkflow.tn",
		FromNumber: "+15005550006",
		Location:   time.UTC,
	}, email, sms, nil)
}

func TestSenderService_BuildVoucherEmail(t *testing.T) {
	msg, err := newSender(nil, nil).BuildVoucherEmail(contact, voucherReservation())
	require.NoError(t, err)

	assert.Contains(t, msg.Subject, "r-1")
	require.Len(t, msg.Personalizations, 1)
	assert.Equal(t, "amira@example.tn", msg.Personalizations[0].To[0].Address)

	require.Len(t, msg.Content, 2)
	html := msg.Content[1].Value
	assert.Contains(t, html, "spot-3")
	assert.Contains(t, html, "10.00Dt")
	assert.Contains(t, html, "03/08/2026 08:00")
	assert.Contains(t, html, "cid:voucher-qr")

	require.Len(t, msg.Attachments, 1)
	att := msg.Attachments[0]
	assert.Equal(t, "image/png", att.Type)
	assert.Equal(t, "voucher-qr", att.ContentID)
	png, err := base64.StdEncoding.DecodeString(att.Content)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])
}

func TestSenderService_SendVoucher(t *testing.T) {
	email := &fakeEmail{status: 202}
	sms := &fakeSMS{}
	sender := newSender(email, sms)

	sender.SendVoucher(contact, voucherReservation())
	sender.Wait()

	require.Len(t, email.sent, 1)
	require.Len(t, sms.sent, 1)
	assert.Equal(t, "+21620000000", *sms.sent[0].To)
	assert.Contains(t, *sms.sent[0].Body, "r-1")
	assert.Contains(t, *sms.sent[0].Body, "03/08 08:00")
}

func TestSenderService_ChannelsAreOptional(t *testing.T) {
	sender := newSender(nil, nil)
	assert.NoError(t, sender.SendVoucherEmail(contact, voucherReservation()))
	assert.NoError(t, sender.SendVoucherSMS(contact, voucherReservation()))

	email := &fakeEmail{status: 202}
	sender = newSender(email, &fakeSMS{})
	assert.NoError(t, sender.SendVoucherEmail(entities.Contact{Phone: "+216"}, voucherReservation()))
	assert.Empty(t, email.sent)
}

func TestSenderService_EmailRejected(t *testing.T) {
	sender := newSender(&fakeEmail{status: 401}, nil)
	err := sender.SendVoucherEmail(contact, voucherReservation())
	assert.Error(t, err)
}
