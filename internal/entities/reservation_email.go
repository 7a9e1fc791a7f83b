package entities

// VoucherEmailData feeds the voucher email template.
type VoucherEmailData struct {
	UserName           string
	ReservationID      string
	ParkingID          string
	SpotID             string
	VehicleType        string
	Matricule          string
	StartTimeFormatted string
	EndTimeFormatted   string
	TotalFormatted     string
	PaymentMethod      string
	QRContentID        string
	CurrentYear        int
}
