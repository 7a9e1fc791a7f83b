package service

import (
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// EmailClient is satisfied by *sendgrid.Client.
type EmailClient interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

// SMSClient is satisfied by the Twilio v2010 API service.
type SMSClient interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// NewSendGridClient returns nil when no API key is configured, which disables email.
func NewSendGridClient(apiKey string) EmailClient {
	if apiKey == "" {
		return nil
	}
	return sendgrid.NewSendClient(apiKey)
}

// NewTwilioClient returns nil unless both credentials are configured, which disables SMS.
func NewTwilioClient(accountSID, authToken string) SMSClient {
	if accountSID == "" || authToken == "" {
		return nil
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username:   accountSID,
		Password:   authToken,
		AccountSid: accountSID,
	})
	return client.Api
}
