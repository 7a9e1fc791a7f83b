package entities

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

// ReservationDraft is the in-progress reservation owned by one wizard session.
type ReservationDraft struct {
	ParkingID      string         `json:"parkingId" validate:"required"`
	SpotID         null.String    `json:"spotId"`
	StartTime      time.Time      `json:"startTime"`
	EndTime        time.Time      `json:"endTime" validate:"gtfield=StartTime"`
	VehicleType    VehicleType    `json:"vehicleType" validate:"required,vehicletype"`
	TotalPrice     float64        `json:"totalPrice" validate:"gte=0"`
	PaymentMethod  PaymentMethod  `json:"paymentMethod" validate:"required,oneof=cash online"`
	OnlineProvider OnlineProvider `json:"onlineProvider,omitempty" validate:"omitempty,oneof=flouci stripe"`
	Matricule      null.String    `json:"matricule"`
}

func (d ReservationDraft) Duration() time.Duration {
	return d.EndTime.Sub(d.StartTime)
}
