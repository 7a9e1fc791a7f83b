package api

import (
	"time"

	"parkflow/internal/entities"
	"parkflow/internal/livemap"
	"parkflow/internal/wizard"
)

// Wizard
type CreateWizardRequest struct {
	SessionID string `json:"sessionId"`
}

type PositionRequest struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float64 `json:"accuracy"`
}

type SelectParkingRequest struct {
	ParkingID string `json:"parkingId"`
}

type BackRequest struct {
	Step wizard.Step `json:"step"`
}

type StageRequest struct {
	Stage string `json:"stage"`
}

// Details
type DatesRequest struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

type VehicleRequest struct {
	VehicleType string `json:"vehicleType"`
	Matricule   string `json:"matricule"`
}

type PaymentMethodRequest struct {
	Method   entities.PaymentMethod  `json:"method"`
	Provider entities.OnlineProvider `json:"provider"`
}

// Map
type GestureRequest struct {
	Action string  `json:"action"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

type LocateSpotRequest struct {
	Query string `json:"query"`
}

type SelectSpotRequest struct {
	SpotID string `json:"spotId"`
}

// Payments
type CardConfirmRequest struct {
	PaymentIntentID string `json:"paymentIntentId"`
}

// WizardResponse is the body of every wizard route. Error and Kind repeat the
// failure of the request itself, which may not be one the wizard keeps on screen.
type WizardResponse struct {
	Wizard   wizard.Snapshot            `json:"wizard"`
	Map      *livemap.View              `json:"map,omitempty"`
	Redirect *entities.CheckoutRedirect `json:"redirect,omitempty"`
	Error    string                     `json:"error,omitempty"`
	Kind     string                     `json:"kind,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}
