package service

import (
	"bytes"
	_ "embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"sync"
	"time"

	"parkflow/internal/entities"
	apperrors "parkflow/internal/errors"

	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/skip2/go-qrcode"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

//go:embed templates/voucher_email.html
var voucherEmailHTML string

var voucherTemplate = template.Must(template.New("voucher").Parse(voucherEmailHTML))

const qrContentID = "voucher-qr"

type SenderConfig struct {
	FromEmail  string
	FromName   string
	FromNumber string
	// Location formats the times shown to the user.
	Location *time.Location
}

// SenderService emails the voucher with its QR code and announces it by SMS.
// Either channel is skipped when its client is nil.
type SenderService struct {
	email  EmailClient
	sms    SMSClient
	cfg    SenderConfig
	logger *slog.Logger
	wg     sync.WaitGroup
}

func NewSenderService(cfg SenderConfig, email EmailClient, sms SMSClient, logger *slog.Logger) *SenderService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = "ParkFlow"
	}
	if cfg.Location == nil {
		loc, err := time.LoadLocation("Africa/Tunis")
		if err != nil {
			loc = time.FixedZone("CET", 1*60*60)
		}
		cfg.Location = loc
	}
	return &SenderService{email: email, sms: sms, cfg: cfg, logger: logger}
}

// SendVoucher delivers in the background; failures are logged, never returned.
func (s *SenderService) SendVoucher(contact entities.Contact, res entities.Reservation) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.SendVoucherEmail(contact, res); err != nil {
			s.logger.Error("voucher email failed", "reservation", res.ID, "err", err)
		}
		if err := s.SendVoucherSMS(contact, res); err != nil {
			s.logger.Error("voucher sms failed", "reservation", res.ID, "err", err)
		}
	}()
}

// Wait blocks until every background delivery has finished.
func (s *SenderService) Wait() {
	s.wg.Wait()
}

func (s *SenderService) SendVoucherEmail(contact entities.Contact, res entities.Reservation) error {
	if s.email == nil || contact.Email == "" || s.cfg.FromEmail == "" {
		return nil
	}
	msg, err := s.BuildVoucherEmail(contact, res)
	if err != nil {
		return err
	}
	resp, err := s.email.Send(msg)
	if err != nil {
		return apperrors.Wrap(err, "sending voucher email")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.Newf(apperrors.ErrBackend, "sendgrid responded %d: %s", resp.StatusCode, resp.Body)
	}
	s.logger.Info("voucher email sent", "reservation", res.ID, "status", resp.StatusCode)
	return nil
}

// BuildVoucherEmail renders the voucher with the QR code attached inline.
func (s *SenderService) BuildVoucherEmail(contact entities.Contact, res entities.Reservation) (*mail.SGMailV3, error) {
	data := s.voucherData(contact, res)

	var html bytes.Buffer
	if err := voucherTemplate.Execute(&html, data); err != nil {
		return nil, apperrors.Wrapf(err, "rendering voucher for %s", res.ID)
	}
	png, err := qrcode.Encode(res.QRCode, qrcode.Medium, 256)
	if err != nil {
		return nil, apperrors.Wrapf(err, "encoding voucher qr for %s", res.ID)
	}

	subject := fmt.Sprintf("ParkFlow : votre réservation %s", res.ID)
	plain := fmt.Sprintf(
		"Bonjour %s,\n\nVotre réservation %s est enregistrée.\n\n"+
			"Parking : %s\n"+
			"Véhicule : %s\n"+
			"Arrivée : %s\n"+
			"Départ : %s\n"+
			"Total : %s (%s)\n\n"+
			"Présentez le code QR joint à l'entrée du parking.",
		data.UserName, data.ReservationID, data.ParkingID, data.VehicleType,
		data.StartTimeFormatted, data.EndTimeFormatted, data.TotalFormatted, data.PaymentMethod,
	)

	from := mail.NewEmail(s.cfg.FromName, s.cfg.FromEmail)
	to := mail.NewEmail(data.UserName, contact.Email)
	msg := mail.NewSingleEmail(from, subject, to, plain, html.String())

	qr := mail.NewAttachment()
	qr.SetContent(base64.StdEncoding.EncodeToString(png))
	qr.SetType("image/png")
	qr.SetFilename("reservation-" + res.ID + ".png")
	qr.SetDisposition("inline")
	qr.SetContentID(qrContentID)
	msg.AddAttachment(qr)
	return msg, nil
}

func (s *SenderService) SendVoucherSMS(contact entities.Contact, res entities.Reservation) error {
	if s.sms == nil || contact.Phone == "" || s.cfg.FromNumber == "" {
		return nil
	}
	if !strings.HasPrefix(contact.Phone, "+") {
		s.logger.Warn("phone number is not in E.164 format", "reservation", res.ID, "phone", contact.Phone)
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(contact.Phone)
	params.SetFrom(s.cfg.FromNumber)
	params.SetBody(fmt.Sprintf("ParkFlow : réservation %s enregistrée.\nArrivée : %s.\nLe voucher vous a été envoyé par e-mail.",
		res.ID, res.StartTime.In(s.cfg.Location).Format("02/01 15:04")))

	msg, err := s.sms.CreateMessage(params)
	if err != nil {
		return apperrors.Wrap(err, "sending voucher sms")
	}
	if msg != nil && msg.Sid != nil {
		s.logger.Info("voucher sms sent", "reservation", res.ID, "sid", *msg.Sid)
	}
	return nil
}

func (s *SenderService) voucherData(contact entities.Contact, res entities.Reservation) entities.VoucherEmailData {
	name := contact.Name
	if name == "" {
		name = contact.Email
	}
	method := "espèces, à régler sur place"
	if res.PaymentMethod == entities.PaymentOnline {
		method = "en ligne (" + string(res.OnlineProvider) + ")"
	}
	return entities.VoucherEmailData{
		UserName:           name,
		ReservationID:      res.ID,
		ParkingID:          res.ParkingID,
		SpotID:             res.SpotID.String,
		VehicleType:        string(res.VehicleType),
		Matricule:          res.Matricule.String,
		StartTimeFormatted: res.StartTime.In(s.cfg.Location).Format("02/01/2006 15:04"),
		EndTimeFormatted:   res.EndTime.In(s.cfg.Location).Format("02/01/2006 15:04"),
		TotalFormatted:     fmt.Sprintf("%.2fDt", res.TotalPrice),
		PaymentMethod:      method,
		QRContentID:        qrContentID,
		CurrentYear:        time.Now().In(s.cfg.Location).Year(),
	}
}
