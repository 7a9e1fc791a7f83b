package entities

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentOnline PaymentMethod = "online"
)

type OnlineProvider string

const (
	ProviderFlouci OnlineProvider = "flouci"
	ProviderStripe OnlineProvider = "stripe"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

type PaymentIntent struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
}

type FlouciPayment struct {
	PaymentID string `json:"payment_id"`
	Link      string `json:"link"`
}

type PaymentVerification struct {
	PaymentID string `json:"paymentId"`
	Success   bool   `json:"success"`
	Status    string `json:"status"`
}

// CheckoutRedirect is what the browser needs to leave for an online provider.
type CheckoutRedirect struct {
	Provider      OnlineProvider `json:"provider"`
	URL           string         `json:"url,omitempty"`
	ReservationID string         `json:"reservationId"`
	SessionID     string         `json:"sessionId,omitempty"`
	// ClientSecret is set instead of URL when the card is confirmed in the page.
	ClientSecret    string `json:"clientSecret,omitempty"`
	PaymentIntentID string `json:"paymentIntentId,omitempty"`
}
