package wizard

import (
	"fmt"
	"time"

	"parkflow/internal/entities"
	apperrors "parkflow/internal/errors"
)

// DefaultMinDuration is the shortest bookable window.
const DefaultMinDuration = time.Hour

// ValidateWindow is the dates gate: both set, end after start, and at least min long.
func ValidateWindow(start, end time.Time, min time.Duration) error {
	if start.IsZero() || end.IsZero() {
		return apperrors.New(apperrors.ErrValidation, "start and end dates are required")
	}
	if !end.After(start) {
		return apperrors.New(apperrors.ErrValidation, "end date must be after start date")
	}
	if end.Sub(start) < min {
		return apperrors.Newf(apperrors.ErrValidation, "a reservation must last at least %s", humanDuration(min))
	}
	return nil
}

func ValidateVehicleType(vt entities.VehicleType, parking *entities.Parking) error {
	if vt == "" {
		return apperrors.New(apperrors.ErrValidation, "choose a vehicle type")
	}
	if !vt.Valid() {
		return apperrors.Newf(apperrors.ErrValidation, "unknown vehicle type %q", vt)
	}
	if parking != nil && !parking.Accepts(vt) {
		return apperrors.Newf(apperrors.ErrValidation, "%s does not accept %s", parking.Name, vt)
	}
	return nil
}

func ValidatePayment(method entities.PaymentMethod, provider entities.OnlineProvider) error {
	switch method {
	case entities.PaymentCash:
		return nil
	case entities.PaymentOnline:
		switch provider {
		case entities.ProviderFlouci, entities.ProviderStripe:
			return nil
		case "":
			return apperrors.New(apperrors.ErrValidation, "choose an online payment provider")
		}
		return apperrors.Newf(apperrors.ErrValidation, "unknown online payment provider %q", provider)
	case "":
		return apperrors.New(apperrors.ErrValidation, "choose a payment method")
	}
	return apperrors.Newf(apperrors.ErrValidation, "unknown payment method %q", method)
}

func humanDuration(d time.Duration) string {
	switch {
	case d%time.Hour == 0:
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
	return d.String()
}
