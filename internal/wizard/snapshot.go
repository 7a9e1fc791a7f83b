package wizard

import (
	"parkflow/internal/entities"
	apperrors "parkflow/internal/errors"
	"parkflow/internal/pricing"
)

// Snapshot is what a front-end needs to draw the current step.
type Snapshot struct {
	SessionID   string                    `json:"sessionId"`
	Step        Step                      `json:"step"`
	StepName    string                    `json:"stepName"`
	Stage       string                    `json:"stage,omitempty"`
	Draft       entities.ReservationDraft `json:"draft"`
	Parking     *entities.Parking         `json:"parking,omitempty"`
	Results     []entities.Parking        `json:"results,omitempty"`
	Quote       *pricing.Quote            `json:"quote,omitempty"`
	Reservation *entities.Reservation     `json:"reservation,omitempty"`
	Position    *entities.Position        `json:"position,omitempty"`
	MapLoaded   bool                      `json:"mapLoaded"`
	CanContinue bool                      `json:"canContinue"`
	CanConfirm  bool                      `json:"canConfirm"`
	Submitting  bool                      `json:"submitting"`
	Error       string                    `json:"error,omitempty"`
	ErrorKind   string                    `json:"errorKind,omitempty"`
	RecoverTo   Step                      `json:"recoverTo,omitempty"`
}

func (w *Wizard) View() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := Snapshot{
		SessionID:  w.id,
		Step:       w.step,
		StepName:   w.step.String(),
		Draft:      w.draft,
		Results:    w.results,
		MapLoaded:  w.viewport != nil,
		Submitting: w.submitting,
		RecoverTo:  w.recoverTo,
	}
	if w.parking != nil {
		p := *w.parking
		s.Parking = &p
	}
	if w.quote != nil {
		q := *w.quote
		s.Quote = &q
	}
	if w.submitted != nil {
		r := *w.submitted
		s.Reservation = &r
	}
	if w.position != nil {
		pos := w.position.Position
		s.Position = &pos
	}
	if w.step == StepSpotSelection {
		s.Stage = w.stage.String()
		s.CanContinue = w.stageErr(w.stage) == nil
		s.CanConfirm = !w.submitting && w.submitted == nil &&
			w.stageErr(StageDates) == nil && w.stageErr(StageVehicle) == nil && w.stageErr(StagePayment) == nil
	}
	if w.err != nil {
		s.Error = apperrors.UserMessage(w.err)
		s.ErrorKind = apperrors.KindOf(w.err)
	}
	return s
}
