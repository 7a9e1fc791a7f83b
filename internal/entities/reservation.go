package entities

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCanceled  = "canceled"
	StatusFinished  = "finished"
)

// Reservation is a submitted draft carrying the server-assigned id and QR payload.
type Reservation struct {
	ID             string         `json:"id"`
	ParkingID      string         `json:"parkingId"`
	SpotID         null.String    `json:"spotId"`
	StartTime      time.Time      `json:"startTime"`
	EndTime        time.Time      `json:"endTime"`
	VehicleType    VehicleType    `json:"vehicleType"`
	TotalPrice     float64        `json:"totalPrice"`
	PaymentMethod  PaymentMethod  `json:"paymentMethod"`
	OnlineProvider OnlineProvider `json:"onlineProvider,omitempty"`
	PaymentStatus  string         `json:"paymentStatus"`
	Status         string         `json:"status"`
	Matricule      null.String    `json:"matricule"`
	QRCode         string         `json:"qrCode"`
	CreatedAt      time.Time      `json:"createdAt"`
}

func (r Reservation) Settled() bool {
	return r.PaymentStatus == PaymentStatusCompleted || r.Status == StatusCanceled || r.Status == StatusFinished
}

// SpotReservation is the slim reservation view used to derive a spot's reserved state.
type SpotReservation struct {
	ID        string    `json:"id"`
	ParkingID string    `json:"parkingId"`
	SpotID    string    `json:"spotId"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Status    string    `json:"status"`
}

// Covers reports whether the reservation window contains t and the reservation still holds the spot.
func (r SpotReservation) Covers(t time.Time) bool {
	if r.Status == StatusCanceled {
		return false
	}
	return !t.Before(r.StartTime) && t.Before(r.EndTime)
}
