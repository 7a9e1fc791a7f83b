package service

import (
	"fmt"
	"reflect"
	"strings"

	"parkflow/internal/entities"
	apperrors "parkflow/internal/errors"

	"github.com/go-playground/validator/v10"
)

func newDraftValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// the tag is known at compile time, registration cannot fail
	_ = v.RegisterValidation("vehicletype", func(fl validator.FieldLevel) bool {
		return entities.VehicleType(fl.Field().String()).Valid()
	})
	v.RegisterStructValidation(draftRules, entities.ReservationDraft{})
	return v
}

func draftRules(sl validator.StructLevel) {
	d := sl.Current().Interface().(entities.ReservationDraft)
	if d.StartTime.IsZero() {
		sl.ReportError(d.StartTime, "startTime", "StartTime", "required", "")
	}
	switch {
	case d.PaymentMethod == entities.PaymentOnline && d.OnlineProvider == "":
		sl.ReportError(d.OnlineProvider, "onlineProvider", "OnlineProvider", "required_online", "")
	case d.PaymentMethod == entities.PaymentCash && d.OnlineProvider != "":
		sl.ReportError(d.OnlineProvider, "onlineProvider", "OnlineProvider", "excluded_cash", "")
	}
}

// ValidateDraft is the last check before a draft leaves the gateway.
func (s *ReservationService) ValidateDraft(d entities.ReservationDraft) error {
	if err := s.validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if !apperrors.As(err, &verrs) {
			return apperrors.Wrap(err, "validating reservation")
		}
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
		}
		return apperrors.Newf(apperrors.ErrValidation, "invalid reservation: %s", strings.Join(fields, ", "))
	}
	if d.Duration() < s.minDuration {
		return apperrors.Newf(apperrors.ErrValidation, "invalid reservation: shorter than %s", s.minDuration)
	}
	return nil
}
